package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/school"
)

const apiPrefix = "/dashboard/api"

// Form input kinds
const (
	kindText     = "text"
	kindEmail    = "email"
	kindTel      = "tel"
	kindNumber   = "number"
	kindDate     = "date"
	kindBool     = "bool"
	kindSelect   = "select"
	kindMarkdown = "markdown"
)

type (
	// field describes one column of a records table and its form input.
	field struct {
		Name     string
		Label    string
		Kind     string
		Options  []string
		Required bool // on create
		ReadOnly bool // computed by the remote database, not editable
	}

	// resource wires the typed school.Service operations of one entity to the HTML and JSON routes.
	resource struct {
		Name     string // URL segment
		Title    string
		Singular string
		Fields   []field

		list   func(ctx context.Context) (interface{}, error)
		create func(ctx echo.Context) (interface{}, error)
		update func(ctx echo.Context, id string) error
		remove func(ctx context.Context, id string) error
	}

	recordsView struct {
		Resource resource
		Rows     []map[string]interface{}
	}
)

func newResource[T, N, U any](
	name, title, singular string,
	fields []field,
	list func(context.Context) ([]T, error),
	create func(context.Context, N) (T, error),
	update func(context.Context, string, U) error,
	remove func(context.Context, string) error,
) resource {
	return resource{
		Name:     name,
		Title:    title,
		Singular: singular,
		Fields:   fields,
		list: func(ctx context.Context) (interface{}, error) {
			return list(ctx)
		},
		create: func(ctx echo.Context) (interface{}, error) {
			var data N
			if err := bind(ctx, &data); err != nil {
				return nil, err
			}
			return create(ctx.Request().Context(), data)
		},
		update: func(ctx echo.Context, id string) error {
			var data U
			if err := bind(ctx, &data); err != nil {
				return err
			}
			return update(ctx.Request().Context(), id, data)
		},
		remove: remove,
	}
}

func (r resource) Path() string {
	return "/dashboard/" + r.Name
}

// FormFields are the fields shown in the create and edit forms.
func (r resource) FormFields() []field {
	fields := make([]field, 0, len(r.Fields))
	for _, f := range r.Fields {
		if !f.ReadOnly {
			fields = append(fields, f)
		}
	}
	return fields
}

func schoolResources(svc *school.Service) []resource {
	return []resource{
		newResource("branches", "Branches", "Branch",
			[]field{
				{Name: "name", Label: "Name", Kind: kindText, Required: true},
				{Name: "address", Label: "Address", Kind: kindText},
				{Name: "phone", Label: "Phone", Kind: kindTel},
			},
			svc.QueryBranches, svc.CreateBranch, svc.UpdateBranch, svc.DeleteBranch),
		newResource("programs", "Programs", "Program",
			[]field{
				{Name: "name", Label: "Name", Kind: kindText, Required: true},
				{Name: "description", Label: "Description", Kind: kindMarkdown},
				{Name: "duration_weeks", Label: "Weeks", Kind: kindNumber},
				{Name: "price", Label: "Price", Kind: kindNumber},
				{Name: "active", Label: "Active", Kind: kindBool},
			},
			svc.QueryPrograms, svc.CreateProgram, svc.UpdateProgram, svc.DeleteProgram),
		newResource("courses", "Courses", "Course",
			[]field{
				{Name: "name", Label: "Name", Kind: kindText, Required: true},
				{Name: "program_id", Label: "Program ID", Kind: kindText, Required: true},
				{Name: "program_name", Label: "Program", ReadOnly: true},
				{Name: "branch_id", Label: "Branch ID", Kind: kindText, Required: true},
				{Name: "branch_name", Label: "Branch", ReadOnly: true},
				{Name: "teacher", Label: "Teacher", Kind: kindText},
				{Name: "classroom", Label: "Classroom", Kind: kindText},
				{Name: "start_date", Label: "Start", Kind: kindDate},
				{Name: "end_date", Label: "End", Kind: kindDate},
			},
			svc.QueryCourses, svc.CreateCourse, svc.UpdateCourse, svc.DeleteCourse),
		newResource("students", "Students", "Student",
			[]field{
				{Name: "full_name", Label: "Name", Kind: kindText, Required: true},
				{Name: "email", Label: "Email", Kind: kindEmail},
				{Name: "phone", Label: "Phone", Kind: kindTel},
				{Name: "birth_date", Label: "Birth date", Kind: kindDate},
				{Name: "branch_id", Label: "Branch ID", Kind: kindText, Required: true},
				{Name: "branch_name", Label: "Branch", ReadOnly: true},
				{Name: "program_id", Label: "Program ID", Kind: kindText},
				{Name: "school_id", Label: "School ID", Kind: kindText},
				{Name: "active", Label: "Active", Kind: kindBool},
			},
			svc.QueryStudents, svc.CreateStudent, svc.UpdateStudent, svc.DeleteStudent),
		newResource("exams", "Exams", "Exam",
			[]field{
				{Name: "title", Label: "Title", Kind: kindText, Required: true},
				{Name: "course_id", Label: "Course ID", Kind: kindText, Required: true},
				{Name: "course_name", Label: "Course", ReadOnly: true},
				{Name: "exam_date", Label: "Date", Kind: kindDate, Required: true},
				{Name: "max_score", Label: "Max score", Kind: kindNumber},
			},
			svc.QueryExams, svc.CreateExam, svc.UpdateExam, svc.DeleteExam),
		newResource("attendance", "Attendance", "Attendance record",
			[]field{
				{Name: "student_id", Label: "Student ID", Kind: kindText, Required: true},
				{Name: "student_name", Label: "Student", ReadOnly: true},
				{Name: "branch_name", Label: "Branch", ReadOnly: true},
				{Name: "classroom", Label: "Classroom", Kind: kindText},
				{Name: "date", Label: "Date", Kind: kindDate, Required: true},
				{Name: "status", Label: "Status", Kind: kindSelect, Options: school.AttendanceStatuses},
			},
			svc.QueryAttendanceRecords, svc.CreateAttendanceRecord, svc.UpdateAttendanceRecord, svc.DeleteAttendanceRecord),
		newResource("trials", "Trial lessons", "Trial",
			[]field{
				{Name: "full_name", Label: "Name", Kind: kindText, Required: true},
				{Name: "phone", Label: "Phone", Kind: kindTel, Required: true},
				{Name: "email", Label: "Email", Kind: kindEmail},
				{Name: "branch_id", Label: "Branch ID", Kind: kindText, Required: true},
				{Name: "program_id", Label: "Program ID", Kind: kindText},
				{Name: "scheduled_on", Label: "Scheduled on", Kind: kindDate, Required: true},
				{Name: "status", Label: "Status", Kind: kindSelect, Options: school.TrialStatuses},
				{Name: "notes", Label: "Notes", Kind: kindMarkdown},
			},
			svc.QueryTrials, svc.CreateTrial, svc.UpdateTrial, svc.DeleteTrial),
		newResource("payments", "Payments", "Payment",
			[]field{
				{Name: "student_id", Label: "Student ID", Kind: kindText, Required: true},
				{Name: "student_name", Label: "Student", ReadOnly: true},
				{Name: "amount", Label: "Amount", Kind: kindNumber, Required: true},
				{Name: "currency", Label: "Currency", Kind: kindText},
				{Name: "method", Label: "Method", Kind: kindSelect, Options: school.PaymentMethods},
				{Name: "paid_on", Label: "Paid on", Kind: kindDate, Required: true},
				{Name: "reference", Label: "Reference", Kind: kindText},
			},
			svc.QueryPayments, svc.CreatePayment, svc.UpdatePayment, svc.DeletePayment),
		newResource("schools", "Partner schools", "School",
			[]field{
				{Name: "name", Label: "Name", Kind: kindText, Required: true},
				{Name: "address", Label: "Address", Kind: kindText},
				{Name: "city", Label: "City", Kind: kindText},
				{Name: "contact_name", Label: "Contact", Kind: kindText},
				{Name: "contact_phone", Label: "Contact phone", Kind: kindTel},
			},
			svc.QuerySchools, svc.CreateSchool, svc.UpdateSchool, svc.DeleteSchool),
	}
}

func registerResources(dg *echo.Group, s *Server) {
	s.resources = schoolResources(s.SchoolSvc)

	api := dg.Group("/api")
	for _, r := range s.resources {
		g := dg.Group("/" + r.Name)
		g.GET("", s.listPage(r))
		g.POST("", s.createFromForm(r))
		g.POST("/:id", s.updateFromForm(r))
		g.POST("/:id/delete", s.deleteFromForm(r))

		ag := api.Group("/" + r.Name)
		ag.GET("", s.listJSON(r))
		ag.POST("", s.createJSON(r))
		ag.PUT("/:id", s.updateJSON(r))
		ag.DELETE("/:id", s.deleteJSON(r))
	}
}

// bind decodes the request body into dest. Blank form inputs are dropped so they read as "not set".
func bind(ctx echo.Context, dest interface{}) error {
	req := ctx.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm) {
		if err := req.ParseForm(); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
		}
		dropBlank(req.PostForm)
		dropBlank(req.Form)
	}
	return errors.Wrapf(ctx.Bind(dest), "binding to %T", dest)
}

func dropBlank(values url.Values) {
	for key, vals := range values {
		if len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
			delete(values, key)
		}
	}
}

// Dashboard

type dashboardView struct {
	Counts []resourceCount
}

type resourceCount struct {
	Resource resource
	Count    int
}

func (s *Server) dashboard(ctx echo.Context) error {
	view := dashboardView{Counts: make([]resourceCount, 0, len(s.resources))}
	for _, r := range s.resources {
		records, err := r.list(ctx.Request().Context())
		if err != nil {
			return errors.Wrapf(err, "counting %s", r.Name)
		}
		view.Counts = append(view.Counts, resourceCount{Resource: r, Count: reflect.ValueOf(records).Len()})
	}
	return s.render(ctx, http.StatusOK, "dashboard", "Dashboard", view)
}

// HTML handlers (post/redirect/get)

func (s *Server) listPage(r resource) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		records, err := r.list(ctx.Request().Context())
		if err != nil {
			return errors.Wrapf(err, "listing %s", r.Name)
		}
		rows, err := toRows(records)
		if err != nil {
			return err
		}
		return s.render(ctx, http.StatusOK, "records", r.Title, recordsView{Resource: r, Rows: rows})
	}
}

func (s *Server) createFromForm(r resource) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := r.create(ctx); err != nil {
			return s.formFailed(ctx, r, err)
		}
		s.addFlash(ctx, flashInfo, r.Singular+" created.")
		return s.redirect(ctx, r.Path())
	}
}

func (s *Server) updateFromForm(r resource) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := r.update(ctx, ctx.Param("id")); err != nil {
			return s.formFailed(ctx, r, err)
		}
		s.addFlash(ctx, flashInfo, r.Singular+" updated.")
		return s.redirect(ctx, r.Path())
	}
}

func (s *Server) deleteFromForm(r resource) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := r.remove(ctx.Request().Context(), ctx.Param("id")); err != nil {
			return s.formFailed(ctx, r, err)
		}
		s.addFlash(ctx, flashInfo, r.Singular+" deleted.")
		return s.redirect(ctx, r.Path())
	}
}

// formFailed flashes client errors back to the records page; server errors go to the error handler.
func (s *Server) formFailed(ctx echo.Context, r resource, err error) error {
	code, message := s.describeError(err)
	if code >= http.StatusInternalServerError {
		return err
	}
	if fields, ok := message.(map[string]string); ok {
		s.addFlash(ctx, flashFields, fields)
		s.addFlash(ctx, flashError, "Please correct the errors below.")
	} else {
		s.addFlash(ctx, flashError, messages(message)[0])
	}
	return s.redirect(ctx, r.Path())
}

// JSON handlers

func (s *Server) listJSON(r resource) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		records, err := r.list(ctx.Request().Context())
		if err != nil {
			return errors.Wrapf(err, "listing %s", r.Name)
		}
		return ctx.JSON(http.StatusOK, records)
	}
}

func (s *Server) createJSON(r resource) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		record, err := r.create(ctx)
		if err != nil {
			return errors.Wrapf(err, "creating %s", r.Singular)
		}
		return ctx.JSON(http.StatusCreated, record)
	}
}

func (s *Server) updateJSON(r resource) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := r.update(ctx, ctx.Param("id")); err != nil {
			return errors.Wrapf(err, "updating %s", r.Singular)
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}

func (s *Server) deleteJSON(r resource) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := r.remove(ctx.Request().Context(), ctx.Param("id")); err != nil {
			return errors.Wrapf(err, "deleting %s", r.Singular)
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}

// toRows turns typed records into generic rows keyed by their JSON field names.
func toRows(records interface{}) ([]map[string]interface{}, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, errors.Wrap(err, "encoding records")
	}
	var rows []map[string]interface{}
	if err = json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(err, "decoding records")
	}
	return rows, nil
}

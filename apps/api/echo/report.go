package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/school"
)

const mimePDF = "application/pdf"

type emailReportRequest struct {
	BranchID  string      `json:"branch_id" form:"branch_id"`
	From      school.Date `json:"from" form:"from"`
	To        school.Date `json:"to" form:"to"`
	Recipient string      `json:"recipient" form:"recipient" validate:"omitempty,email"`
}

func (er *emailReportRequest) Validate(validate *validator.Validate) error {
	er.BranchID = core.CleanString(er.BranchID, true /* lower */)
	er.Recipient = core.CleanString(er.Recipient, true /* lower */)
	if !er.From.IsZero() && !er.To.IsZero() && er.To.Before(er.From) {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "must not be before from"})
	}
	return validate.Struct(er)
}

func (er emailReportRequest) filter() report.Filter {
	return report.Filter{BranchID: er.BranchID, From: er.From, To: er.To}
}

func registerReportRoutes(dg *echo.Group, s *Server) {
	rg := dg.Group("/attendance/export")
	rg.GET("", s.exportAttendance)
	rg.POST("/email", s.emailAttendance)
}

func (s *Server) buildAttendanceReport(ctx echo.Context, filter report.Filter) (report.Report, *bytes.Buffer, error) {
	records, err := s.SchoolSvc.QueryAttendanceRecords(ctx.Request().Context())
	if err != nil {
		return report.Report{}, nil, errors.Wrap(err, "querying attendance records")
	}

	now := time.Now()
	rep := report.BuildAttendance(records, filter, now)

	opts := report.Options{Author: s.Conf.AppName, Compress: true, CreatedAt: now}
	if sess, ok := currentSession(ctx); ok {
		opts.Author = sess.User.Email
	}

	var buf bytes.Buffer
	if err = report.RenderPDF(&buf, rep, opts); err != nil {
		return report.Report{}, nil, errors.Wrap(err, "rendering attendance report")
	}
	return rep, &buf, nil
}

// exportAttendance downloads the attendance report, optionally filtered by ?branch_id=&from=&to=.
func (s *Server) exportAttendance(ctx echo.Context) error {
	var filter report.Filter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to report.Filter")
	}

	rep, buf, err := s.buildAttendanceReport(ctx, filter)
	if err != nil {
		return err
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", rep.Filename()))
	return ctx.Blob(http.StatusOK, mimePDF, buf.Bytes())
}

// emailAttendance sends the attendance report as an attachment, to the current user unless a recipient is given.
func (s *Server) emailAttendance(ctx echo.Context) error {
	var data emailReportRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(s.Validate); err != nil {
		return s.reportFailed(ctx, err)
	}

	to := data.Recipient
	if to == "" {
		sess, ok := currentSession(ctx)
		if !ok {
			return errors.New("no recipient for the attendance report")
		}
		to = sess.User.Email
	}

	rep, buf, err := s.buildAttendanceReport(ctx, data.filter())
	if err != nil {
		return s.reportFailed(ctx, err)
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: to}},
		Subject:      rep.Title + " " + rep.GeneratedOn.String(),
		TemplateName: "attendance_report",
		TemplateData: rep,
	}
	if err = msg.Attach(buf, rep.Filename(), mimePDF); err != nil {
		return errors.Wrap(err, "attaching attendance report")
	}
	s.MailSvc.SendMessages(msg)

	if wantsHTML(ctx) {
		s.addFlash(ctx, flashInfo, "The attendance report was sent to "+to+".")
		return s.redirect(ctx, "/dashboard/attendance")
	}
	return ctx.JSON(http.StatusAccepted, echo.Map{"success": "report sent to " + to})
}

// reportFailed flashes client errors back to the attendance page for browsers.
func (s *Server) reportFailed(ctx echo.Context, err error) error {
	if !wantsHTML(ctx) {
		return err
	}
	for _, r := range s.resources {
		if r.Name == "attendance" {
			return s.formFailed(ctx, r, err)
		}
	}
	return err
}

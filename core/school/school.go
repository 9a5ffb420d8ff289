package school

import (
	"context"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

var (
	// ErrNotFound is returned when an update or delete matched no record.
	ErrNotFound = errors.New("record not found")
)

// Remote procedures
const (
	procGetAllBranches = "get_all_branches"
	procInsertBranch   = "insert_branch"
	procUpdateBranch   = "update_branch"
	procDeleteBranch   = "delete_branch"

	procGetAllPrograms = "get_all_programs"
	procInsertProgram  = "insert_program"
	procUpdateProgram  = "update_program"
	procDeleteProgram  = "delete_program"

	procGetAllCourses = "get_all_courses"
	procInsertCourse  = "insert_course"
	procUpdateCourse  = "update_course"
	procDeleteCourse  = "delete_course"

	procGetAllStudents = "get_all_students"
	procInsertStudent  = "insert_student"
	procUpdateStudent  = "update_student"
	procDeleteStudent  = "delete_student"

	procGetAllExams = "get_all_exams"
	procInsertExam  = "insert_exam"
	procUpdateExam  = "update_exam"
	procDeleteExam  = "delete_exam"

	procGetAllAttendance = "get_all_attendance_records"
	procInsertAttendance = "insert_attendance_record"
	procUpdateAttendance = "update_attendance_record"
	procDeleteAttendance = "delete_attendance_record"

	procGetAllTrials = "get_all_trails" // sic: name of the remote procedure
	procInsertTrial  = "insert_trial"
	procUpdateTrial  = "update_trial"
	procDeleteTrial  = "delete_trial"

	procGetAllPayments = "get_all_payments"
	procInsertPayment  = "insert_payment"
	procUpdatePayment  = "update_payment"
	procDeletePayment  = "delete_payment"

	procGetAllSchools = "get_all_schools"
	procInsertSchool  = "insert_school"
	procUpdateSchool  = "update_school"
	procDeleteSchool  = "delete_school"
)

// Service exposes typed operations over the school records.
// Every read goes to the remote database; nothing is cached.
type Service struct {
	caller   rpc.Caller
	validate *validator.Validate
	mailSvc  core.EmailService
	conf     *core.Config
}

func NewService(caller rpc.Caller, validate *validator.Validate, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		caller:   caller,
		validate: validate,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

// InitValidators registers the school types with the validator.
func InitValidators(validate *validator.Validate) {
	validate.RegisterCustomTypeFunc(dateValue, Date{})
}

func dateValue(v reflect.Value) interface{} {
	if d, ok := v.Interface().(Date); ok && !d.IsZero() {
		return d.Time()
	}
	return nil
}

func queryAll[T any](ctx context.Context, caller rpc.Caller, procedure string) ([]T, error) {
	var rows []T
	if err := caller.Call(ctx, procedure, nil, &rows); err != nil {
		return nil, errors.Wrapf(err, "calling %s", procedure)
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

func insertOne[T any](ctx context.Context, caller rpc.Caller, procedure string, params rpc.Params) (T, error) {
	var rows []T
	var zero T
	if err := caller.Call(ctx, procedure, params, &rows); err != nil {
		return zero, errors.Wrapf(err, "calling %s", procedure)
	}
	if len(rows) == 0 {
		return zero, errors.Wrapf(rpc.ErrNoResult, "calling %s", procedure)
	}
	return rows[0], nil
}

// mutate calls an update or delete procedure, which returns the number of affected rows.
func mutate(ctx context.Context, caller rpc.Caller, procedure, id string, params rpc.Params) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	if params == nil {
		params = rpc.Params{}
	}
	params["_id"] = id

	var affected int
	if err := caller.Call(ctx, procedure, params, &affected); err != nil {
		return errors.Wrapf(err, "calling %s", procedure)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Helpers turning optional request fields into procedure arguments.

func strArg(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func dateArg(d *Date) interface{} {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func setStr(params rpc.Params, name string, s *string) {
	if s != nil {
		params[name] = *s
	}
}

func setDate(params rpc.Params, name string, d *Date) {
	if d != nil && !d.IsZero() {
		params[name] = d.String()
	}
}

func setBool(params rpc.Params, name string, b *bool) {
	if b != nil {
		params[name] = *b
	}
}

func setFloat(params rpc.Params, name string, f *float64) {
	if f != nil {
		params[name] = *f
	}
}

func setInt(params rpc.Params, name string, i *int) {
	if i != nil {
		params[name] = *i
	}
}

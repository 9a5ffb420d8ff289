package school

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

const errEndBeforeStart = "end date cannot be before the start date"

type Course struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ProgramID   string      `json:"program_id"`
	BranchID    string      `json:"branch_id"`
	Teacher     null.String `json:"teacher"`
	Classroom   null.String `json:"classroom"`
	StartDate   Date        `json:"start_date"`
	EndDate     Date        `json:"end_date"`
	ProgramName string      `json:"program_name,omitempty"`
	BranchName  string      `json:"branch_name,omitempty"`
}

type NewCourse struct {
	Name      string  `json:"name" form:"name" validate:"required,notblank"`
	ProgramID string  `json:"program_id" form:"program_id" validate:"required,uuid"`
	BranchID  string  `json:"branch_id" form:"branch_id" validate:"required,uuid"`
	Teacher   *string `json:"teacher" form:"teacher"`
	Classroom *string `json:"classroom" form:"classroom"`
	StartDate *Date   `json:"start_date" form:"start_date"`
	EndDate   *Date   `json:"end_date" form:"end_date"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.ProgramID = core.CleanString(nc.ProgramID, true /* lower */)
	nc.BranchID = core.CleanString(nc.BranchID, true /* lower */)
	nc.Teacher = core.CleanStringPtr(nc.Teacher)
	nc.Classroom = core.CleanStringPtr(nc.Classroom)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return checkDateRange(nc.StartDate, nc.EndDate)
}

func (nc NewCourse) params() rpc.Params {
	return rpc.Params{
		"_name":       nc.Name,
		"_program_id": nc.ProgramID,
		"_branch_id":  nc.BranchID,
		"_teacher":    strArg(nc.Teacher),
		"_classroom":  strArg(nc.Classroom),
		"_start_date": dateArg(nc.StartDate),
		"_end_date":   dateArg(nc.EndDate),
	}
}

type UpdateCourse struct {
	Name      *string `json:"name" form:"name" validate:"omitempty,notblank"`
	ProgramID *string `json:"program_id" form:"program_id" validate:"omitempty,uuid"`
	BranchID  *string `json:"branch_id" form:"branch_id" validate:"omitempty,uuid"`
	Teacher   *string `json:"teacher" form:"teacher"`
	Classroom *string `json:"classroom" form:"classroom"`
	StartDate *Date   `json:"start_date" form:"start_date"`
	EndDate   *Date   `json:"end_date" form:"end_date"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanStringPtr(uc.Name)
	uc.ProgramID = core.CleanStringPtr(uc.ProgramID, true /* lower */)
	uc.BranchID = core.CleanStringPtr(uc.BranchID, true /* lower */)
	uc.Teacher = core.CleanStringPtr(uc.Teacher)
	uc.Classroom = core.CleanStringPtr(uc.Classroom)

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return checkDateRange(uc.StartDate, uc.EndDate)
}

func (uc UpdateCourse) params() rpc.Params {
	params := rpc.Params{}
	setStr(params, "_name", uc.Name)
	setStr(params, "_program_id", uc.ProgramID)
	setStr(params, "_branch_id", uc.BranchID)
	setStr(params, "_teacher", uc.Teacher)
	setStr(params, "_classroom", uc.Classroom)
	setDate(params, "_start_date", uc.StartDate)
	setDate(params, "_end_date", uc.EndDate)
	return params
}

func checkDateRange(start, end *Date) error {
	if start == nil || end == nil || start.IsZero() || end.IsZero() {
		return nil
	}
	if end.Before(*start) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: errEndBeforeStart})
	}
	return nil
}

func (svc *Service) QueryCourses(ctx context.Context) ([]Course, error) {
	return queryAll[Course](ctx, svc.caller, procGetAllCourses)
}

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	return insertOne[Course](ctx, svc.caller, procInsertCourse, nc.params())
}

func (svc *Service) UpdateCourse(ctx context.Context, id string, uc UpdateCourse) error {
	if err := uc.Validate(svc.validate); err != nil {
		return err
	}
	return mutate(ctx, svc.caller, procUpdateCourse, id, uc.params())
}

func (svc *Service) DeleteCourse(ctx context.Context, id string) error {
	return mutate(ctx, svc.caller, procDeleteCourse, id, nil)
}

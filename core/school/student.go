package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

type Student struct {
	ID         string      `json:"id"`
	FullName   string      `json:"full_name"`
	Email      null.String `json:"email"`
	Phone      null.String `json:"phone"`
	BirthDate  Date        `json:"birth_date"`
	BranchID   string      `json:"branch_id"`
	ProgramID  null.String `json:"program_id"`
	SchoolID   null.String `json:"school_id"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
	BranchName string      `json:"branch_name,omitempty"`
}

type NewStudent struct {
	FullName  string  `json:"full_name" form:"full_name" validate:"required,notblank"`
	Email     *string `json:"email" form:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" form:"phone" validate:"omitempty,phone"`
	BirthDate *Date   `json:"birth_date" form:"birth_date"`
	BranchID  string  `json:"branch_id" form:"branch_id" validate:"required,uuid"`
	ProgramID *string `json:"program_id" form:"program_id" validate:"omitempty,uuid"`
	SchoolID  *string `json:"school_id" form:"school_id" validate:"omitempty,uuid"`
	Active    *bool   `json:"active" form:"active"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.FullName = core.CleanString(ns.FullName)
	ns.Email = core.CleanStringPtr(ns.Email, true /* lower */)
	ns.Phone = core.CleanStringPtr(ns.Phone)
	ns.BranchID = core.CleanString(ns.BranchID, true /* lower */)
	ns.ProgramID = core.CleanStringPtr(ns.ProgramID, true /* lower */)
	ns.SchoolID = core.CleanStringPtr(ns.SchoolID, true /* lower */)
	return validate.Struct(ns)
}

func (ns NewStudent) params() rpc.Params {
	active := true
	if ns.Active != nil {
		active = *ns.Active
	}
	return rpc.Params{
		"_full_name":  ns.FullName,
		"_email":      strArg(ns.Email),
		"_phone":      strArg(ns.Phone),
		"_birth_date": dateArg(ns.BirthDate),
		"_branch_id":  ns.BranchID,
		"_program_id": strArg(ns.ProgramID),
		"_school_id":  strArg(ns.SchoolID),
		"_active":     active,
	}
}

type UpdateStudent struct {
	FullName  *string `json:"full_name" form:"full_name" validate:"omitempty,notblank"`
	Email     *string `json:"email" form:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" form:"phone" validate:"omitempty,phone"`
	BirthDate *Date   `json:"birth_date" form:"birth_date"`
	BranchID  *string `json:"branch_id" form:"branch_id" validate:"omitempty,uuid"`
	ProgramID *string `json:"program_id" form:"program_id" validate:"omitempty,uuid"`
	SchoolID  *string `json:"school_id" form:"school_id" validate:"omitempty,uuid"`
	Active    *bool   `json:"active" form:"active"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.FullName = core.CleanStringPtr(us.FullName)
	us.Email = core.CleanStringPtr(us.Email, true /* lower */)
	us.Phone = core.CleanStringPtr(us.Phone)
	us.BranchID = core.CleanStringPtr(us.BranchID, true /* lower */)
	us.ProgramID = core.CleanStringPtr(us.ProgramID, true /* lower */)
	us.SchoolID = core.CleanStringPtr(us.SchoolID, true /* lower */)
	return validate.Struct(us)
}

func (us UpdateStudent) params() rpc.Params {
	params := rpc.Params{}
	setStr(params, "_full_name", us.FullName)
	setStr(params, "_email", us.Email)
	setStr(params, "_phone", us.Phone)
	setDate(params, "_birth_date", us.BirthDate)
	setStr(params, "_branch_id", us.BranchID)
	setStr(params, "_program_id", us.ProgramID)
	setStr(params, "_school_id", us.SchoolID)
	setBool(params, "_active", us.Active)
	return params
}

func (svc *Service) QueryStudents(ctx context.Context) ([]Student, error) {
	return queryAll[Student](ctx, svc.caller, procGetAllStudents)
}

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	return insertOne[Student](ctx, svc.caller, procInsertStudent, ns.params())
}

func (svc *Service) UpdateStudent(ctx context.Context, id string, us UpdateStudent) error {
	if err := us.Validate(svc.validate); err != nil {
		return err
	}
	return mutate(ctx, svc.caller, procUpdateStudent, id, us.params())
}

func (svc *Service) DeleteStudent(ctx context.Context, id string) error {
	return mutate(ctx, svc.caller, procDeleteStudent, id, nil)
}

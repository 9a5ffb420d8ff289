package school

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

// Trial statuses
const (
	TrialScheduled = "scheduled"
	TrialAttended  = "attended"
	TrialCancelled = "cancelled"
	TrialConverted = "converted"
)

var TrialStatuses = []string{TrialScheduled, TrialAttended, TrialCancelled, TrialConverted}

// Trial is a trial lesson booked by a prospective student.
type Trial struct {
	ID          string      `json:"id"`
	FullName    string      `json:"full_name"`
	Phone       string      `json:"phone"`
	Email       null.String `json:"email"`
	BranchID    string      `json:"branch_id"`
	ProgramID   null.String `json:"program_id"`
	ScheduledOn Date        `json:"scheduled_on"`
	Status      string      `json:"status"`
	Notes       null.String `json:"notes"`
	CreatedAt   time.Time   `json:"created_at"`
}

type NewTrial struct {
	FullName    string  `json:"full_name" form:"full_name" validate:"required,notblank"`
	Phone       string  `json:"phone" form:"phone" validate:"required,phone"`
	Email       *string `json:"email" form:"email" validate:"omitempty,email"`
	BranchID    string  `json:"branch_id" form:"branch_id" validate:"required,uuid"`
	ProgramID   *string `json:"program_id" form:"program_id" validate:"omitempty,uuid"`
	ScheduledOn Date    `json:"scheduled_on" form:"scheduled_on" validate:"required"`
	Notes       *string `json:"notes" form:"notes"`
}

func (nt *NewTrial) Validate(validate *validator.Validate) error {
	nt.FullName = core.CleanString(nt.FullName)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Email = core.CleanStringPtr(nt.Email, true /* lower */)
	nt.BranchID = core.CleanString(nt.BranchID, true /* lower */)
	nt.ProgramID = core.CleanStringPtr(nt.ProgramID, true /* lower */)
	nt.Notes = core.CleanStringPtr(nt.Notes)
	return validate.Struct(nt)
}

func (nt NewTrial) params() rpc.Params {
	return rpc.Params{
		"_full_name":    nt.FullName,
		"_phone":        nt.Phone,
		"_email":        strArg(nt.Email),
		"_branch_id":    nt.BranchID,
		"_program_id":   strArg(nt.ProgramID),
		"_scheduled_on": nt.ScheduledOn.String(),
		"_status":       TrialScheduled,
		"_notes":        strArg(nt.Notes),
	}
}

type UpdateTrial struct {
	FullName    *string `json:"full_name" form:"full_name" validate:"omitempty,notblank"`
	Phone       *string `json:"phone" form:"phone" validate:"omitempty,phone"`
	Email       *string `json:"email" form:"email" validate:"omitempty,email"`
	BranchID    *string `json:"branch_id" form:"branch_id" validate:"omitempty,uuid"`
	ProgramID   *string `json:"program_id" form:"program_id" validate:"omitempty,uuid"`
	ScheduledOn *Date   `json:"scheduled_on" form:"scheduled_on"`
	Status      *string `json:"status" form:"status" validate:"omitempty,oneof=scheduled attended cancelled converted"`
	Notes       *string `json:"notes" form:"notes"`
}

func (ut *UpdateTrial) Validate(validate *validator.Validate) error {
	ut.FullName = core.CleanStringPtr(ut.FullName)
	ut.Phone = core.CleanStringPtr(ut.Phone)
	ut.Email = core.CleanStringPtr(ut.Email, true /* lower */)
	ut.BranchID = core.CleanStringPtr(ut.BranchID, true /* lower */)
	ut.ProgramID = core.CleanStringPtr(ut.ProgramID, true /* lower */)
	ut.Status = core.CleanStringPtr(ut.Status, true /* lower */)
	ut.Notes = core.CleanStringPtr(ut.Notes)
	return validate.Struct(ut)
}

func (ut UpdateTrial) params() rpc.Params {
	params := rpc.Params{}
	setStr(params, "_full_name", ut.FullName)
	setStr(params, "_phone", ut.Phone)
	setStr(params, "_email", ut.Email)
	setStr(params, "_branch_id", ut.BranchID)
	setStr(params, "_program_id", ut.ProgramID)
	setDate(params, "_scheduled_on", ut.ScheduledOn)
	setStr(params, "_status", ut.Status)
	setStr(params, "_notes", ut.Notes)
	return params
}

func (svc *Service) QueryTrials(ctx context.Context) ([]Trial, error) {
	return queryAll[Trial](ctx, svc.caller, procGetAllTrials)
}

// CreateTrial books a trial and notifies the admissions team.
func (svc *Service) CreateTrial(ctx context.Context, nt NewTrial) (Trial, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return Trial{}, err
	}
	trial, err := insertOne[Trial](ctx, svc.caller, procInsertTrial, nt.params())
	if err != nil {
		return Trial{}, errors.Wrap(err, "booking trial")
	}

	if svc.mailSvc != nil && svc.conf != nil && svc.conf.AdmissionsEmail.Address != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{svc.conf.AdmissionsEmail},
			Subject:      "Trial booked: " + trial.FullName,
			TemplateName: "trial_booked",
			TemplateData: trial,
		})
	}
	return trial, nil
}

func (svc *Service) UpdateTrial(ctx context.Context, id string, ut UpdateTrial) error {
	if err := ut.Validate(svc.validate); err != nil {
		return err
	}
	return mutate(ctx, svc.caller, procUpdateTrial, id, ut.params())
}

func (svc *Service) DeleteTrial(ctx context.Context, id string) error {
	return mutate(ctx, svc.caller, procDeleteTrial, id, nil)
}

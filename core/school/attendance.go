package school

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

// Attendance statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

var AttendanceStatuses = []string{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

type AttendanceRecord struct {
	ID          string      `json:"id"`
	StudentID   string      `json:"student_id"`
	StudentName string      `json:"student_name"`
	BranchID    null.String `json:"branch_id"`
	BranchName  null.String `json:"branch_name"`
	Classroom   null.String `json:"classroom"`
	Date        Date        `json:"date"`
	Status      string      `json:"status"`
}

type NewAttendanceRecord struct {
	StudentID string  `json:"student_id" form:"student_id" validate:"required,uuid"`
	Date      Date    `json:"date" form:"date" validate:"required"`
	Status    string  `json:"status" form:"status" validate:"omitempty,oneof=present absent late excused"`
	Classroom *string `json:"classroom" form:"classroom"`
}

func (na *NewAttendanceRecord) Validate(validate *validator.Validate) error {
	na.StudentID = core.CleanString(na.StudentID, true /* lower */)
	na.Status = core.CleanString(na.Status, true /* lower */)
	if na.Status == "" {
		na.Status = StatusPresent
	}
	na.Classroom = core.CleanStringPtr(na.Classroom)
	return validate.Struct(na)
}

func (na NewAttendanceRecord) params() rpc.Params {
	return rpc.Params{
		"_student_id": na.StudentID,
		"_date":       na.Date.String(),
		"_status":     na.Status,
		"_classroom":  strArg(na.Classroom),
	}
}

type UpdateAttendanceRecord struct {
	StudentID *string `json:"student_id" form:"student_id" validate:"omitempty,uuid"`
	Date      *Date   `json:"date" form:"date"`
	Status    *string `json:"status" form:"status" validate:"omitempty,oneof=present absent late excused"`
	Classroom *string `json:"classroom" form:"classroom"`
}

func (ua *UpdateAttendanceRecord) Validate(validate *validator.Validate) error {
	ua.StudentID = core.CleanStringPtr(ua.StudentID, true /* lower */)
	ua.Status = core.CleanStringPtr(ua.Status, true /* lower */)
	ua.Classroom = core.CleanStringPtr(ua.Classroom)
	return validate.Struct(ua)
}

func (ua UpdateAttendanceRecord) params() rpc.Params {
	params := rpc.Params{}
	setStr(params, "_student_id", ua.StudentID)
	setDate(params, "_date", ua.Date)
	setStr(params, "_status", ua.Status)
	setStr(params, "_classroom", ua.Classroom)
	return params
}

func (svc *Service) QueryAttendanceRecords(ctx context.Context) ([]AttendanceRecord, error) {
	return queryAll[AttendanceRecord](ctx, svc.caller, procGetAllAttendance)
}

func (svc *Service) CreateAttendanceRecord(ctx context.Context, na NewAttendanceRecord) (AttendanceRecord, error) {
	if err := na.Validate(svc.validate); err != nil {
		return AttendanceRecord{}, err
	}
	return insertOne[AttendanceRecord](ctx, svc.caller, procInsertAttendance, na.params())
}

func (svc *Service) UpdateAttendanceRecord(ctx context.Context, id string, ua UpdateAttendanceRecord) error {
	if err := ua.Validate(svc.validate); err != nil {
		return err
	}
	return mutate(ctx, svc.caller, procUpdateAttendance, id, ua.params())
}

func (svc *Service) DeleteAttendanceRecord(ctx context.Context, id string) error {
	return mutate(ctx, svc.caller, procDeleteAttendance, id, nil)
}

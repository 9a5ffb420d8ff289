package school

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

type Exam struct {
	ID         string       `json:"id"`
	CourseID   string       `json:"course_id"`
	Title      string       `json:"title"`
	ExamDate   Date         `json:"exam_date"`
	MaxScore   null.Float64 `json:"max_score"`
	CourseName string       `json:"course_name,omitempty"`
}

type NewExam struct {
	CourseID string   `json:"course_id" form:"course_id" validate:"required,uuid"`
	Title    string   `json:"title" form:"title" validate:"required,notblank"`
	ExamDate Date     `json:"exam_date" form:"exam_date" validate:"required"`
	MaxScore *float64 `json:"max_score" form:"max_score" validate:"omitempty,gt=0"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.CourseID = core.CleanString(ne.CourseID, true /* lower */)
	ne.Title = core.CleanString(ne.Title)
	return validate.Struct(ne)
}

func (ne NewExam) params() rpc.Params {
	params := rpc.Params{
		"_course_id": ne.CourseID,
		"_title":     ne.Title,
		"_exam_date": ne.ExamDate.String(),
		"_max_score": nil,
	}
	setFloat(params, "_max_score", ne.MaxScore)
	return params
}

type UpdateExam struct {
	CourseID *string  `json:"course_id" form:"course_id" validate:"omitempty,uuid"`
	Title    *string  `json:"title" form:"title" validate:"omitempty,notblank"`
	ExamDate *Date    `json:"exam_date" form:"exam_date"`
	MaxScore *float64 `json:"max_score" form:"max_score" validate:"omitempty,gt=0"`
}

func (ue *UpdateExam) Validate(validate *validator.Validate) error {
	ue.CourseID = core.CleanStringPtr(ue.CourseID, true /* lower */)
	ue.Title = core.CleanStringPtr(ue.Title)
	return validate.Struct(ue)
}

func (ue UpdateExam) params() rpc.Params {
	params := rpc.Params{}
	setStr(params, "_course_id", ue.CourseID)
	setStr(params, "_title", ue.Title)
	setDate(params, "_exam_date", ue.ExamDate)
	setFloat(params, "_max_score", ue.MaxScore)
	return params
}

func (svc *Service) QueryExams(ctx context.Context) ([]Exam, error) {
	return queryAll[Exam](ctx, svc.caller, procGetAllExams)
}

func (svc *Service) CreateExam(ctx context.Context, ne NewExam) (Exam, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Exam{}, err
	}
	return insertOne[Exam](ctx, svc.caller, procInsertExam, ne.params())
}

func (svc *Service) UpdateExam(ctx context.Context, id string, ue UpdateExam) error {
	if err := ue.Validate(svc.validate); err != nil {
		return err
	}
	return mutate(ctx, svc.caller, procUpdateExam, id, ue.params())
}

func (svc *Service) DeleteExam(ctx context.Context, id string) error {
	return mutate(ctx, svc.caller, procDeleteExam, id, nil)
}

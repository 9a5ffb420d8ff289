package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

type Program struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   null.String  `json:"description"` // markdown
	DurationWeeks null.Int     `json:"duration_weeks"`
	Price         null.Float64 `json:"price"`
	Active        bool         `json:"active"`
	CreatedAt     time.Time    `json:"created_at"`
}

type NewProgram struct {
	Name          string   `json:"name" form:"name" validate:"required,notblank"`
	Description   *string  `json:"description" form:"description"`
	DurationWeeks *int     `json:"duration_weeks" form:"duration_weeks" validate:"omitempty,min=1"`
	Price         *float64 `json:"price" form:"price" validate:"omitempty,min=0"`
	Active        *bool    `json:"active" form:"active"`
}

func (np *NewProgram) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanStringPtr(np.Description)
	return validate.Struct(np)
}

func (np NewProgram) params() rpc.Params {
	active := true
	if np.Active != nil {
		active = *np.Active
	}
	params := rpc.Params{
		"_name":           np.Name,
		"_description":    strArg(np.Description),
		"_duration_weeks": nil,
		"_price":          nil,
		"_active":         active,
	}
	setInt(params, "_duration_weeks", np.DurationWeeks)
	setFloat(params, "_price", np.Price)
	return params
}

type UpdateProgram struct {
	Name          *string  `json:"name" form:"name" validate:"omitempty,notblank"`
	Description   *string  `json:"description" form:"description"`
	DurationWeeks *int     `json:"duration_weeks" form:"duration_weeks" validate:"omitempty,min=1"`
	Price         *float64 `json:"price" form:"price" validate:"omitempty,min=0"`
	Active        *bool    `json:"active" form:"active"`
}

func (up *UpdateProgram) Validate(validate *validator.Validate) error {
	up.Name = core.CleanStringPtr(up.Name)
	up.Description = core.CleanStringPtr(up.Description)
	return validate.Struct(up)
}

func (up UpdateProgram) params() rpc.Params {
	params := rpc.Params{}
	setStr(params, "_name", up.Name)
	setStr(params, "_description", up.Description)
	setInt(params, "_duration_weeks", up.DurationWeeks)
	setFloat(params, "_price", up.Price)
	setBool(params, "_active", up.Active)
	return params
}

func (svc *Service) QueryPrograms(ctx context.Context) ([]Program, error) {
	return queryAll[Program](ctx, svc.caller, procGetAllPrograms)
}

func (svc *Service) CreateProgram(ctx context.Context, np NewProgram) (Program, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Program{}, err
	}
	return insertOne[Program](ctx, svc.caller, procInsertProgram, np.params())
}

func (svc *Service) UpdateProgram(ctx context.Context, id string, up UpdateProgram) error {
	if err := up.Validate(svc.validate); err != nil {
		return err
	}
	return mutate(ctx, svc.caller, procUpdateProgram, id, up.params())
}

func (svc *Service) DeleteProgram(ctx context.Context, id string) error {
	return mutate(ctx, svc.caller, procDeleteProgram, id, nil)
}

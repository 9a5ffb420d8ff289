package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

type Branch struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Address   null.String `json:"address"`
	Phone     null.String `json:"phone"`
	CreatedAt time.Time   `json:"created_at"`
}

type NewBranch struct {
	Name    string  `json:"name" form:"name" validate:"required,notblank"`
	Address *string `json:"address" form:"address"`
	Phone   *string `json:"phone" form:"phone" validate:"omitempty,phone"`
}

func (nb *NewBranch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Address = core.CleanStringPtr(nb.Address)
	nb.Phone = core.CleanStringPtr(nb.Phone)
	return validate.Struct(nb)
}

func (nb NewBranch) params() rpc.Params {
	return rpc.Params{
		"_name":    nb.Name,
		"_address": strArg(nb.Address),
		"_phone":   strArg(nb.Phone),
	}
}

// UpdateBranch holds the fields to change; nil fields are left untouched.
type UpdateBranch struct {
	Name    *string `json:"name" form:"name" validate:"omitempty,notblank"`
	Address *string `json:"address" form:"address"`
	Phone   *string `json:"phone" form:"phone" validate:"omitempty,phone"`
}

func (ub *UpdateBranch) Validate(validate *validator.Validate) error {
	ub.Name = core.CleanStringPtr(ub.Name)
	ub.Address = core.CleanStringPtr(ub.Address)
	ub.Phone = core.CleanStringPtr(ub.Phone)
	return validate.Struct(ub)
}

func (ub UpdateBranch) params() rpc.Params {
	params := rpc.Params{}
	setStr(params, "_name", ub.Name)
	setStr(params, "_address", ub.Address)
	setStr(params, "_phone", ub.Phone)
	return params
}

func (svc *Service) QueryBranches(ctx context.Context) ([]Branch, error) {
	return queryAll[Branch](ctx, svc.caller, procGetAllBranches)
}

func (svc *Service) CreateBranch(ctx context.Context, nb NewBranch) (Branch, error) {
	if err := nb.Validate(svc.validate); err != nil {
		return Branch{}, err
	}
	return insertOne[Branch](ctx, svc.caller, procInsertBranch, nb.params())
}

func (svc *Service) UpdateBranch(ctx context.Context, id string, ub UpdateBranch) error {
	if err := ub.Validate(svc.validate); err != nil {
		return err
	}
	return mutate(ctx, svc.caller, procUpdateBranch, id, ub.params())
}

func (svc *Service) DeleteBranch(ctx context.Context, id string) error {
	return mutate(ctx, svc.caller, procDeleteBranch, id, nil)
}

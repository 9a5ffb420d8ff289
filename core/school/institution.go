package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

// School is a partner school the students come from.
type School struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Address      null.String `json:"address"`
	City         null.String `json:"city"`
	ContactName  null.String `json:"contact_name"`
	ContactPhone null.String `json:"contact_phone"`
	CreatedAt    time.Time   `json:"created_at"`
}

type NewSchool struct {
	Name         string  `json:"name" form:"name" validate:"required,notblank"`
	Address      *string `json:"address" form:"address"`
	City         *string `json:"city" form:"city"`
	ContactName  *string `json:"contact_name" form:"contact_name"`
	ContactPhone *string `json:"contact_phone" form:"contact_phone" validate:"omitempty,phone"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Address = core.CleanStringPtr(ns.Address)
	ns.City = core.CleanStringPtr(ns.City)
	ns.ContactName = core.CleanStringPtr(ns.ContactName)
	ns.ContactPhone = core.CleanStringPtr(ns.ContactPhone)
	return validate.Struct(ns)
}

func (ns NewSchool) params() rpc.Params {
	return rpc.Params{
		"_name":          ns.Name,
		"_address":       strArg(ns.Address),
		"_city":          strArg(ns.City),
		"_contact_name":  strArg(ns.ContactName),
		"_contact_phone": strArg(ns.ContactPhone),
	}
}

type UpdateSchool struct {
	Name         *string `json:"name" form:"name" validate:"omitempty,notblank"`
	Address      *string `json:"address" form:"address"`
	City         *string `json:"city" form:"city"`
	ContactName  *string `json:"contact_name" form:"contact_name"`
	ContactPhone *string `json:"contact_phone" form:"contact_phone" validate:"omitempty,phone"`
}

func (us *UpdateSchool) Validate(validate *validator.Validate) error {
	us.Name = core.CleanStringPtr(us.Name)
	us.Address = core.CleanStringPtr(us.Address)
	us.City = core.CleanStringPtr(us.City)
	us.ContactName = core.CleanStringPtr(us.ContactName)
	us.ContactPhone = core.CleanStringPtr(us.ContactPhone)
	return validate.Struct(us)
}

func (us UpdateSchool) params() rpc.Params {
	params := rpc.Params{}
	setStr(params, "_name", us.Name)
	setStr(params, "_address", us.Address)
	setStr(params, "_city", us.City)
	setStr(params, "_contact_name", us.ContactName)
	setStr(params, "_contact_phone", us.ContactPhone)
	return params
}

func (svc *Service) QuerySchools(ctx context.Context) ([]School, error) {
	return queryAll[School](ctx, svc.caller, procGetAllSchools)
}

func (svc *Service) CreateSchool(ctx context.Context, ns NewSchool) (School, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return School{}, err
	}
	return insertOne[School](ctx, svc.caller, procInsertSchool, ns.params())
}

func (svc *Service) UpdateSchool(ctx context.Context, id string, us UpdateSchool) error {
	if err := us.Validate(svc.validate); err != nil {
		return err
	}
	return mutate(ctx, svc.caller, procUpdateSchool, id, us.params())
}

func (svc *Service) DeleteSchool(ctx context.Context, id string) error {
	return mutate(ctx, svc.caller, procDeleteSchool, id, nil)
}

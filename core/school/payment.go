package school

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/storage/rpc"
)

// Payment methods
const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodTransfer = "transfer"

	defaultCurrency = "USD"
)

var PaymentMethods = []string{MethodCash, MethodCard, MethodTransfer}

type Payment struct {
	ID          string      `json:"id"`
	StudentID   string      `json:"student_id"`
	Amount      float64     `json:"amount"`
	Currency    string      `json:"currency"`
	Method      string      `json:"method"`
	PaidOn      Date        `json:"paid_on"`
	Reference   null.String `json:"reference"`
	StudentName string      `json:"student_name,omitempty"`
}

type NewPayment struct {
	StudentID string  `json:"student_id" form:"student_id" validate:"required,uuid"`
	Amount    float64 `json:"amount" form:"amount" validate:"required,gt=0"`
	Currency  string  `json:"currency" form:"currency" validate:"omitempty,len=3,alpha"`
	Method    string  `json:"method" form:"method" validate:"omitempty,oneof=cash card transfer"`
	PaidOn    Date    `json:"paid_on" form:"paid_on" validate:"required"`
	Reference *string `json:"reference" form:"reference"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID, true /* lower */)
	np.Currency = strings.ToUpper(core.CleanString(np.Currency))
	if np.Currency == "" {
		np.Currency = defaultCurrency
	}
	np.Method = core.CleanString(np.Method, true /* lower */)
	if np.Method == "" {
		np.Method = MethodCash
	}
	np.Reference = core.CleanStringPtr(np.Reference)
	return validate.Struct(np)
}

func (np NewPayment) params() rpc.Params {
	return rpc.Params{
		"_student_id": np.StudentID,
		"_amount":     np.Amount,
		"_currency":   np.Currency,
		"_method":     np.Method,
		"_paid_on":    np.PaidOn.String(),
		"_reference":  strArg(np.Reference),
	}
}

type UpdatePayment struct {
	StudentID *string  `json:"student_id" form:"student_id" validate:"omitempty,uuid"`
	Amount    *float64 `json:"amount" form:"amount" validate:"omitempty,gt=0"`
	Currency  *string  `json:"currency" form:"currency" validate:"omitempty,len=3,alpha"`
	Method    *string  `json:"method" form:"method" validate:"omitempty,oneof=cash card transfer"`
	PaidOn    *Date    `json:"paid_on" form:"paid_on"`
	Reference *string  `json:"reference" form:"reference"`
}

func (up *UpdatePayment) Validate(validate *validator.Validate) error {
	up.StudentID = core.CleanStringPtr(up.StudentID, true /* lower */)
	if cur := core.CleanStringPtr(up.Currency); cur != nil {
		upper := strings.ToUpper(*cur)
		up.Currency = &upper
	} else {
		up.Currency = nil
	}
	up.Method = core.CleanStringPtr(up.Method, true /* lower */)
	up.Reference = core.CleanStringPtr(up.Reference)
	return validate.Struct(up)
}

func (up UpdatePayment) params() rpc.Params {
	params := rpc.Params{}
	setStr(params, "_student_id", up.StudentID)
	setFloat(params, "_amount", up.Amount)
	setStr(params, "_currency", up.Currency)
	setStr(params, "_method", up.Method)
	setDate(params, "_paid_on", up.PaidOn)
	setStr(params, "_reference", up.Reference)
	return params
}

func (svc *Service) QueryPayments(ctx context.Context) ([]Payment, error) {
	return queryAll[Payment](ctx, svc.caller, procGetAllPayments)
}

func (svc *Service) CreatePayment(ctx context.Context, np NewPayment) (Payment, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Payment{}, err
	}
	return insertOne[Payment](ctx, svc.caller, procInsertPayment, np.params())
}

func (svc *Service) UpdatePayment(ctx context.Context, id string, up UpdatePayment) error {
	if err := up.Validate(svc.validate); err != nil {
		return err
	}
	return mutate(ctx, svc.caller, procUpdatePayment, id, up.params())
}

func (svc *Service) DeletePayment(ctx context.Context, id string) error {
	return mutate(ctx, svc.caller, procDeletePayment, id, nil)
}

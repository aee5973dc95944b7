package invest

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/form"
)

// Categories are the business categories offered by the registration form.
var Categories = []string{
	"retail",
	"agriculture",
	"transportation",
	"manufacturing",
	"services",
	"technology",
	"food-beverage",
	"other",
}

// BusinessInput is the business registration form.
type BusinessInput struct {
	BusinessName       string          `validate:"required,max=200" label:"Business name"`
	Category           string          `validate:"required,oneof=retail agriculture transportation manufacturing services technology food-beverage other"`
	RegistrationNumber string          `validate:"omitempty,max=50" label:"Registration number"`
	FundingAmount      decimal.Decimal `validate:"gt=0" label:"Funding amount"`
	BusinessPlan       string          `validate:"omitempty,file" label:"Business plan"`
	UseOfFunds         string          `validate:"required,max=2000" label:"Use of funds"`
}

// BusinessRegistration is the registration form. Submission is validated
// locally; the backend does not accept registrations yet.
type BusinessRegistration struct {
	guard form.Guard
}

// Submit validates in and reports ErrPreview when it is acceptable.
func (r *BusinessRegistration) Submit(_ context.Context, in BusinessInput) error {
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	in.Category = strings.TrimSpace(in.Category)
	in.UseOfFunds = strings.TrimSpace(in.UseOfFunds)
	if err := form.Validate(in); err != nil {
		return err
	}
	done, err := r.guard.Begin()
	if err != nil {
		return err
	}
	defer done()
	return ErrPreview
}

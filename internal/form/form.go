// Package form holds what every submit form shares: local validation with
// user-facing messages, the single-pending-submission guard, and mapping of
// backend failures to the message shown next to the form.
package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
)

// ErrPending is returned when a submission is already in flight.
var ErrPending = errors.New("a submission is already in progress")

// Kind classifies a form failure.
type Kind int

const (
	// Invalid means local validation rejected the input; nothing was sent.
	Invalid Kind = iota
	// Unreachable means the backend could not be reached.
	Unreachable
	// Rejected means the backend refused the request with a message.
	Rejected
	// Failed is any other failure; the form's generic message is shown.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case Unreachable:
		return "unreachable"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Error is a form failure carrying the message to show the user.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FromAPI maps a failed request to a form error. The backend's message is
// shown verbatim when it sent one, fallback otherwise.
func FromAPI(err error, fallback string) *Error {
	kind := Failed
	switch api.KindOf(err) {
	case api.KindNetwork:
		kind = Unreachable
	case api.KindRejected:
		kind = Rejected
	}
	return &Error{Kind: kind, Message: api.UserMessage(err, fallback), Err: err}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})
	v.RegisterCustomTypeFunc(func(rv reflect.Value) any {
		d, ok := rv.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})
	return v
}

// Validate checks v's `validate` tags and reports the first violation as an
// Invalid error. Field labels come from the `label` tag.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating form: %w", err)
	}
	fe := fieldErrs[0]
	return &Error{Kind: Invalid, Field: fe.StructField(), Message: message(fe), Err: err}
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please enter a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", label, fe.Param())
	case "eqfield":
		return label + " does not match"
	case "nefield":
		return label + " must differ from the current one"
	default:
		return label + " is invalid"
	}
}

// Guard allows one submission at a time.
type Guard struct {
	busy atomic.Bool
}

// Begin marks a submission as pending. The returned function ends it.
func (g *Guard) Begin() (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrPending
	}
	return func() { g.busy.Store(false) }, nil
}

// Pending reports whether a submission is in flight.
func (g *Guard) Pending() bool {
	return g.busy.Load()
}

// Package invest implements the investment marketplace preview: the
// listing and detail views, funding progress and the business
// registration form. Investing itself is not available yet.
package invest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/loader"
)

// ErrPreview is returned by actions that are announced but not launched.
var ErrPreview = errors.New("feature launching soon: available in the next version")

var hundred = decimal.NewFromInt(100)

// ListAPI is the part of the backend client the investment views use.
type ListAPI interface {
	Investments(ctx context.Context) ([]api.Investment, error)
	Investment(ctx context.Context, id api.ID) (api.Investment, error)
}

// List is the investment listing view.
type List struct {
	items *loader.Loader[[]api.Investment]
}

// OpenList mounts the listing view.
func OpenList(client ListAPI) *List {
	return &List{items: loader.New[[]api.Investment](client.Investments)}
}

// Load fetches the listings. On failure it returns an empty list along with
// the error so the view can still render.
func (v *List) Load(ctx context.Context) ([]api.Investment, error) {
	items, err := v.items.Load(ctx)
	if err != nil {
		slog.Warn("investments unavailable", "error", err)
		return []api.Investment{}, fmt.Errorf("loading investments: %w", err)
	}
	return items, nil
}

// Detail is the single investment view.
type Detail struct {
	id   api.ID
	item *loader.Loader[api.Investment]
}

// OpenDetail mounts the view for investment id.
func OpenDetail(client ListAPI, id api.ID) *Detail {
	return &Detail{
		id: id,
		item: loader.New[api.Investment](func(ctx context.Context) (api.Investment, error) {
			return client.Investment(ctx, id)
		}),
	}
}

// Load fetches the listing.
func (v *Detail) Load(ctx context.Context) (api.Investment, error) {
	inv, err := v.item.Load(ctx)
	if err != nil {
		return api.Investment{}, fmt.Errorf("loading investment %s: %w", v.id, err)
	}
	return inv, nil
}

// Invest is the "Invest Now" action.
func (v *Detail) Invest(context.Context, decimal.Decimal) error {
	return ErrPreview
}

// FundingPercent is raised/requested as a percentage clamped to [0, 100].
// A listing with nothing requested is 0% funded.
func FundingPercent(inv api.Investment) decimal.Decimal {
	if !inv.AmountRequested.IsPositive() {
		return decimal.Zero
	}
	pct := inv.AmountRaised.Div(inv.AmountRequested).Mul(hundred)
	switch {
	case pct.IsNegative():
		return decimal.Zero
	case pct.GreaterThan(hundred):
		return hundred
	}
	return pct
}

// FundedLabel renders the funding progress, e.g. "25% funded".
func FundedLabel(inv api.Investment) string {
	return FundingPercent(inv).Round(0).String() + "% funded"
}

var printer = message.NewPrinter(language.English)

// FormatKES renders an amount with thousands separators, e.g. "KES 25,000".
func FormatKES(amount decimal.Decimal) string {
	return printer.Sprintf("KES %v", number.Decimal(amount.InexactFloat64(), number.MaxFractionDigits(2)))
}

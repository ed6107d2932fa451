package export

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/helloviza/approvals/internal/domain/entity"
)

// MaskPlaceholder replaces hidden cost values
const MaskPlaceholder = "₹XXXXXX"

// ErrRevealForbidden is returned when a non-admin viewer asks to reveal costs
var ErrRevealForbidden = errors.New("only admins can reveal cost fields")

// Viewer is the rendering context that decides cost masking
type Viewer struct {
	Role     entity.Role
	Revealed bool
}

// Reveal returns a copy of v with costs unmasked
func (v Viewer) Reveal() (Viewer, error) {
	if !v.Role.AdminEquivalent() {
		return v, ErrRevealForbidden
	}
	v.Revealed = true
	return v, nil
}

// CanSeeCost reports whether actual prices render in cleartext
func (v Viewer) CanSeeCost() bool {
	return v.Role.AdminEquivalent() && v.Revealed
}

// FormatMoney renders d as ₹ with two decimals
func FormatMoney(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}

// FormatAmount renders an optional amount; nil renders empty
func FormatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return FormatMoney(decimal.NewFromFloat(*v))
}

// ActualPrice renders an actual price for v, masking it unless revealed
func ActualPrice(v *float64, viewer Viewer) string {
	if v == nil {
		return ""
	}
	if !viewer.CanSeeCost() {
		return MaskPlaceholder
	}
	return FormatAmount(v)
}

package derive

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/helloviza/approvals/internal/domain/entity"
)

// Signal labels
const (
	SignalHighValue     = "High-value trip"
	SignalTimeSensitive = "Time-sensitive"
	SignalClientFacing  = "Client-facing"
	SignalAwaitingFare  = "Awaiting fare"
	SignalPreApproval   = "Pre-approval"
	SignalRoutine       = "Looks routine"
)

// DefaultHighValue is the total above which a trip is flagged high-value
var DefaultHighValue = decimal.NewFromInt(200000)

var (
	timeSensitiveWords = []string{"urgent", "today", "tomorrow"}
	clientFacingWords  = []string{"client", "meeting", "business"}
)

// View selects view-dependent signal wording
type View int

const (
	ViewRequester View = iota
	ViewApprover
	ViewAdmin
)

// ViewFor returns the view a role renders
func ViewFor(role entity.Role) View {
	switch role {
	case entity.RoleAdmin:
		return ViewAdmin
	case entity.RoleApprover:
		return ViewApprover
	default:
		return ViewRequester
	}
}

// Signaler computes the advisory keyword signal for a request. It never
// feeds a transition decision.
type Signaler struct {
	HighValue decimal.Decimal
}

// NewSignaler returns a Signaler; a non-positive threshold uses DefaultHighValue
func NewSignaler(highValue decimal.Decimal) Signaler {
	if !highValue.IsPositive() {
		highValue = DefaultHighValue
	}
	return Signaler{HighValue: highValue}
}

// Signal evaluates the rules in fixed priority order
func (s Signaler) Signal(req *entity.ApprovalRequest, view View) string {
	threshold := s.HighValue
	if !threshold.IsPositive() {
		threshold = DefaultHighValue
	}

	total := Total(req)
	if total.GreaterThan(threshold) {
		return SignalHighValue
	}

	note := ""
	if req != nil {
		note = strings.ToLower(req.Comments)
	}
	if containsAny(note, timeSensitiveWords) {
		return SignalTimeSensitive
	}
	if containsAny(note, clientFacingWords) {
		return SignalClientFacing
	}

	if total.IsZero() {
		if view == ViewAdmin {
			return SignalAwaitingFare
		}
		return SignalPreApproval
	}

	return SignalRoutine
}

// Signal uses the default threshold
func Signal(req *entity.ApprovalRequest, view View) string {
	return Signaler{HighValue: DefaultHighValue}.Signal(req, view)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

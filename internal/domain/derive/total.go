package derive

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/helloviza/approvals/internal/domain/entity"
)

// Total returns Σ price×qty over the cart. It is always recomputed.
func Total(req *entity.ApprovalRequest) decimal.Decimal {
	total := decimal.Zero
	if req == nil {
		return total
	}
	for _, item := range req.CartItems {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ShortReqCode returns the ticket id, or REQ-<last 6 of id> uppercased
func ShortReqCode(req *entity.ApprovalRequest) string {
	if req == nil {
		return "REQ-"
	}
	if t := strings.TrimSpace(req.TicketID); t != "" {
		return t
	}

	id := []rune(req.ID)
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return "REQ-" + strings.ToUpper(string(id))
}

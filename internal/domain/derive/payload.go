package derive

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/helloviza/approvals/internal/domain/entity"
)

// Ordered candidate keys per logical field. Dotted keys walk nested objects.
// Each accessor below is total: it returns "" when no candidate is present.
var (
	ticketIDKeys       = []string{"ticketId", "ticket_id", "code"}
	requesterNameKeys  = []string{"frontlinerName", "requesterName", "frontliner.name", "requester.name", "createdBy.name"}
	requesterEmailKeys = []string{"frontlinerEmail", "requesterEmail", "frontliner.email", "requester.email", "createdBy.email"}
	approverNameKeys   = []string{"approverName", "managerName", "approver.name", "manager.name"}
	approverEmailKeys  = []string{"approverEmail", "managerEmail", "approver.email", "manager.email"}
	customerNameKeys   = []string{"customerName", "companyName", "customer.name", "customer.companyName", "workspace.name"}
	customerIDKeys     = []string{"customerId", "workspaceId", "businessId", "customer.id", "customer._id"}
	noteKeys           = []string{"comments", "comment", "note", "notes"}
	cartKeys           = []string{"cartItems", "items", "cart.items", "cart.cartItems"}
)

// TicketID returns the human-readable code from a payload
func TicketID(raw map[string]any) string { return pickString(raw, ticketIDKeys) }

// RequesterName returns the requester's display name from a payload
func RequesterName(raw map[string]any) string { return pickString(raw, requesterNameKeys) }

// RequesterEmail returns the requester's email from a payload
func RequesterEmail(raw map[string]any) string { return pickString(raw, requesterEmailKeys) }

// ApproverName returns the approver (manager) name from a payload
func ApproverName(raw map[string]any) string { return pickString(raw, approverNameKeys) }

// ApproverEmail returns the approver (manager) email from a payload
func ApproverEmail(raw map[string]any) string { return pickString(raw, approverEmailKeys) }

// CustomerName returns the workspace/customer name from a payload
func CustomerName(raw map[string]any) string { return pickString(raw, customerNameKeys) }

// CustomerID returns the workspace/customer id from a payload
func CustomerID(raw map[string]any) string { return pickString(raw, customerIDKeys) }

// Note returns the requester note from a payload
func Note(raw map[string]any) string { return pickString(raw, noteKeys) }

// CartItemsFromPayload returns the first present cart array of a payload,
// converted to cart items. Non-object elements are skipped.
func CartItemsFromPayload(raw map[string]any) []entity.CartItem {
	for _, key := range cartKeys {
		v, ok := lookup(raw, key)
		if !ok {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			continue
		}

		items := make([]entity.CartItem, 0, len(arr))
		for _, el := range arr {
			m, ok := el.(map[string]any)
			if !ok {
				continue
			}
			items = append(items, cartItemFromMap(m))
		}
		return items
	}
	return []entity.CartItem{}
}

// RequestFromPayload maps a loosely-typed submission body onto a request.
// Server-owned fields (id, status, history, timestamps) are left zero.
func RequestFromPayload(raw map[string]any) *entity.ApprovalRequest {
	return &entity.ApprovalRequest{
		TicketID:        TicketID(raw),
		CartItems:       CartItemsFromPayload(raw),
		Comments:        Note(raw),
		CustomerID:      CustomerID(raw),
		CustomerName:    CustomerName(raw),
		FrontlinerName:  RequesterName(raw),
		FrontlinerEmail: RequesterEmail(raw),
		ApproverName:    ApproverName(raw),
		ApproverEmail:   ApproverEmail(raw),
	}
}

func cartItemFromMap(m map[string]any) entity.CartItem {
	item := entity.CartItem{
		Type:        pickString(m, []string{"type"}),
		Service:     pickString(m, []string{"service", "serviceType"}),
		Category:    pickString(m, []string{"category"}),
		Title:       pickString(m, []string{"title", "name"}),
		Description: pickString(m, []string{"description", "details"}),
		Qty:         1,
		Price:       decimal.Zero,
		Meta:        map[string]any{},
	}

	if v, ok := firstPresent(m, []string{"qty", "quantity"}); ok {
		if n, ok := toDecimal(v); ok {
			item.Qty = int(n.IntPart())
		}
	}
	if v, ok := firstPresent(m, []string{"price", "amount", "fare"}); ok {
		if d, ok := toDecimal(v); ok {
			item.Price = d
		}
	}
	if v, ok := firstPresent(m, []string{"meta", "metadata"}); ok {
		if meta, ok := v.(map[string]any); ok {
			item.Meta = meta
		}
	}

	return item
}

// MetaString returns meta[key] rendered as a trimmed string
func MetaString(meta map[string]any, key string) string {
	v, ok := lookup(meta, key)
	if !ok {
		return ""
	}
	return stringify(v)
}

func pickString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := lookup(raw, key)
		if !ok {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func firstPresent(raw map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := lookup(raw, key); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookup(raw map[string]any, path string) (any, bool) {
	if raw == nil {
		return nil, false
	}

	var cur any = raw
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return decimal.NewFromFloat(x).String()
	case json.Number:
		return x.String()
	case bool, int, int64:
		return fmt.Sprint(x)
	default:
		return ""
	}
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

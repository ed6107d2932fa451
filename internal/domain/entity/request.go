package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalRequest represents a travel/service approval request raised by a requester
type ApprovalRequest struct {
	ID              string         `json:"id"`
	TicketID        string         `json:"ticketId,omitempty"`
	Status          Status         `json:"status"`
	AdminState      AdminState     `json:"adminState"`
	CartItems       []CartItem     `json:"cartItems"`
	Comments        string         `json:"comments"`
	History         []HistoryEntry `json:"history"`
	CustomerID      string         `json:"customerId"`
	CustomerName    string         `json:"customerName"`
	FrontlinerName  string         `json:"frontlinerName"`
	FrontlinerEmail string         `json:"frontlinerEmail"`
	ApproverName    string         `json:"approverName"`
	ApproverEmail   string         `json:"approverEmail"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// CartItem is a single requested service line
type CartItem struct {
	ID          int64           `json:"id,omitempty"`
	Type        string          `json:"type"`
	Service     string          `json:"service,omitempty"`
	Category    string          `json:"category,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Qty         int             `json:"qty"`
	Price       decimal.Decimal `json:"price"`
	Meta        map[string]any  `json:"meta"`
}

// LineTotal returns price × qty
func (c CartItem) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Qty)))
}

// NormalizedAdminState returns the admin state, defaulting to pending when absent
func (r *ApprovalRequest) NormalizedAdminState() AdminState {
	if r.AdminState == "" {
		return AdminStatePending
	}
	return r.AdminState
}

// Editable reports whether the requester may still edit or revoke the request.
// This is a gate for rendering actions; the workflow rules are the authority.
func (r *ApprovalRequest) Editable() bool {
	return r.Status == StatusPending || r.Status == StatusOnHold
}

// LatestHistory returns the last history entry, or nil if there is none
func (r *ApprovalRequest) LatestHistory() *HistoryEntry {
	if len(r.History) == 0 {
		return nil
	}
	return &r.History[len(r.History)-1]
}

// InAdminQueue reports whether the request is visible to admins
func (r *ApprovalRequest) InAdminQueue() bool {
	return r.Status == StatusApproved
}

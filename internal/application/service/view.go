package service

import (
	"context"
	"time"

	"github.com/helloviza/approvals/internal/domain/admincomment"
	"github.com/helloviza/approvals/internal/domain/derive"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/domain/workflow"
	"github.com/helloviza/approvals/internal/export"
	"github.com/shopspring/decimal"
)

// RequestView is a request as rendered for one actor, with derived fields
// computed server-side and cost fields masked for non-admins
type RequestView struct {
	ID               string             `json:"id"`
	Code             string             `json:"code"`
	TicketID         string             `json:"ticketId,omitempty"`
	Status           entity.Status      `json:"status"`
	AdminState       entity.AdminState  `json:"adminState"`
	ServiceKind      entity.ServiceKind `json:"serviceKind"`
	Segment          string             `json:"segment"`
	Signal           string             `json:"signal"`
	Total            decimal.Decimal    `json:"total"`
	CartItems        []entity.CartItem  `json:"cartItems"`
	Comments         string             `json:"comments"`
	CustomerID       string             `json:"customerId"`
	CustomerName     string             `json:"customerName"`
	FrontlinerName   string             `json:"frontlinerName"`
	FrontlinerEmail  string             `json:"frontlinerEmail"`
	ApproverName     string             `json:"approverName"`
	ApproverEmail    string             `json:"approverEmail"`
	History          []HistoryView      `json:"history"`
	AvailableActions []workflow.Action  `json:"availableActions"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// HistoryView is a history entry with its admin comment decoded
type HistoryView struct {
	ID      int64     `json:"id"`
	Action  string    `json:"action"`
	At      time.Time `json:"at"`
	By      string    `json:"by"`
	Comment string    `json:"comment"`
	// Admin is set when Comment is an admin comment
	Admin *AdminCommentView `json:"admin,omitempty"`
}

// AdminCommentView is a decoded admin comment safe to hand to the actor
type AdminCommentView struct {
	Mode          admincomment.Mode    `json:"mode,omitempty"`
	Service       string               `json:"service,omitempty"`
	Reason        *admincomment.Reason `json:"reason,omitempty"`
	BookingAmount *float64             `json:"bookingAmount,omitempty"`
	ActualPrice   *float64             `json:"actualPrice,omitempty"`
	// ActualPriceMasked is set when a price exists but the actor may not see it
	ActualPriceMasked bool   `json:"actualPriceMasked,omitempty"`
	Note              string `json:"note,omitempty"`
	AttachmentLink    string `json:"attachmentLink,omitempty"`
}

// ViewBuilder renders RequestViews
type ViewBuilder struct {
	signaler derive.Signaler
}

// NewViewBuilder creates a ViewBuilder using signaler for the signal column
func NewViewBuilder(signaler derive.Signaler) *ViewBuilder {
	return &ViewBuilder{signaler: signaler}
}

// Build renders req for actor
func (b *ViewBuilder) Build(ctx context.Context, actor entity.Actor, req *entity.ApprovalRequest) RequestView {
	viewer := export.Viewer{Role: actor.Role}
	if revealed, err := viewer.Reveal(); err == nil {
		viewer = revealed
	}

	items := req.CartItems
	if items == nil {
		items = []entity.CartItem{}
	}

	v := RequestView{
		ID:               req.ID,
		Code:             derive.ShortReqCode(req),
		TicketID:         req.TicketID,
		Status:           req.Status,
		AdminState:       req.NormalizedAdminState(),
		ServiceKind:      derive.ServiceKind(req),
		Segment:          derive.Segment(req),
		Signal:           b.signaler.Signal(req, derive.ViewFor(actor.Role)),
		Total:            derive.Total(req),
		CartItems:        items,
		Comments:         req.Comments,
		CustomerID:       req.CustomerID,
		CustomerName:     req.CustomerName,
		FrontlinerName:   req.FrontlinerName,
		FrontlinerEmail:  req.FrontlinerEmail,
		ApproverName:     req.ApproverName,
		ApproverEmail:    req.ApproverEmail,
		History:          make([]HistoryView, 0, len(req.History)),
		AvailableActions: workflow.AvailableActions(ctx, actor.Role, req),
		CreatedAt:        req.CreatedAt,
		UpdatedAt:        req.UpdatedAt,
	}

	for _, h := range req.History {
		v.History = append(v.History, historyView(h, viewer))
	}
	return v
}

// BuildAll renders every row for actor
func (b *ViewBuilder) BuildAll(ctx context.Context, actor entity.Actor, rows []*entity.ApprovalRequest) []RequestView {
	out := make([]RequestView, 0, len(rows))
	for _, r := range rows {
		out = append(out, b.Build(ctx, actor, r))
	}
	return out
}

func historyView(h entity.HistoryEntry, viewer export.Viewer) HistoryView {
	hv := HistoryView{
		ID:      h.ID,
		Action:  h.Action,
		At:      h.At,
		By:      h.By,
		Comment: h.Comment,
	}
	if !export.IsAdminEntry(h) {
		return hv
	}

	p := admincomment.Parse(h.Comment)
	hv.Comment = admincomment.Protect(h.Comment)
	hv.Admin = &AdminCommentView{
		Mode:           p.Mode,
		Service:        p.Service,
		Reason:         p.Reason,
		BookingAmount:  p.BookingAmount,
		ActualPrice:    p.ActualPrice,
		Note:           p.Note,
		AttachmentLink: admincomment.ProtectedLink(p.AttachmentURL),
	}
	if !viewer.CanSeeCost() {
		hv.Comment = admincomment.RedactActualPrice(hv.Comment)
		if p.ActualPrice != nil {
			hv.Admin.ActualPrice = nil
			hv.Admin.ActualPriceMasked = true
		}
	}
	return hv
}

package export

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/helloviza/approvals/internal/domain/admincomment"
	"github.com/helloviza/approvals/internal/domain/derive"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/domain/workflow"
)

// Columns is the fixed, ordered summary header
var Columns = []string{
	"Request Code",
	"Status",
	"Admin State",
	"Service",
	"Items",
	"Total",
	"Booking Amount",
	"Actual Price",
	"Segment",
	"Customer",
	"Requester Name",
	"Requester Email",
	"Approver Name",
	"Approver Email",
	"Created At",
	"Updated At",
	"Admin Mode",
	"Admin Service",
	"Admin Reason",
	"Admin Note",
	"Admin Attachment",
	"Admin Comment (raw)",
}

// ItemColumns is the header of the per-item sheet
var ItemColumns = []string{
	"Request Code", "#", "Service", "Type", "Title", "Description", "Qty", "Price", "Line Total", "Meta",
}

// HistoryColumns is the header of the per-history-entry sheet
var HistoryColumns = []string{
	"Request Code", "#", "Action", "At", "By",
	"Admin Mode", "Admin Service", "Admin Reason", "Booking Amount", "Actual Price",
	"Admin Note", "Admin Attachment", "Comment",
}

// IsAdminEntry reports whether h was written by an admin action and carries
// an admin comment. Requester and approver notes are never decoded, whatever
// tags they contain.
func IsAdminEntry(h entity.HistoryEntry) bool {
	return workflow.Action(h.Action).IsAdminAction() && admincomment.IsAdmin(h.Comment)
}

// LatestAdminComment returns the comment of the last admin entry in history
func LatestAdminComment(req *entity.ApprovalRequest) (string, bool) {
	for i := len(req.History) - 1; i >= 0; i-- {
		if IsAdminEntry(req.History[i]) {
			return req.History[i].Comment, true
		}
	}
	return "", false
}

// SummaryRow projects req onto Columns for viewer
func SummaryRow(req *entity.ApprovalRequest, viewer Viewer) []string {
	raw, _ := LatestAdminComment(req)
	admin := adminFields(raw, viewer)

	return []string{
		derive.ShortReqCode(req),
		string(req.Status),
		string(req.NormalizedAdminState()),
		derive.ServiceKind(req).Label(),
		strconv.Itoa(len(req.CartItems)),
		FormatMoney(derive.Total(req)),
		admin.bookingAmount,
		admin.actualPrice,
		derive.Segment(req),
		customer(req),
		req.FrontlinerName,
		req.FrontlinerEmail,
		req.ApproverName,
		req.ApproverEmail,
		formatTime(req.CreatedAt),
		formatTime(req.UpdatedAt),
		admin.mode,
		admin.service,
		admin.reason,
		admin.note,
		admin.attachment,
		admin.raw,
	}
}

// ItemRows projects each cart item of req onto ItemColumns
func ItemRows(req *entity.ApprovalRequest) [][]string {
	code := derive.ShortReqCode(req)
	rows := make([][]string, 0, len(req.CartItems))
	for i, item := range req.CartItems {
		meta := ""
		if len(item.Meta) > 0 {
			if b, err := json.Marshal(item.Meta); err == nil {
				meta = string(b)
			}
		}
		rows = append(rows, []string{
			code,
			strconv.Itoa(i + 1),
			derive.ItemKind(item).Label(),
			item.Type,
			item.Title,
			item.Description,
			strconv.Itoa(item.Qty),
			FormatMoney(item.Price),
			FormatMoney(item.LineTotal()),
			meta,
		})
	}
	return rows
}

// HistoryRows projects each history entry of req onto HistoryColumns,
// decomposing its own admin comment
func HistoryRows(req *entity.ApprovalRequest, viewer Viewer) [][]string {
	code := derive.ShortReqCode(req)
	rows := make([][]string, 0, len(req.History))
	for i, h := range req.History {
		comment := protectRaw(h.Comment, viewer)
		var admin adminColumns
		if IsAdminEntry(h) {
			admin = adminFields(h.Comment, viewer)
		}
		rows = append(rows, []string{
			code,
			strconv.Itoa(i + 1),
			h.Action,
			formatTime(h.At),
			h.By,
			admin.mode,
			admin.service,
			admin.reason,
			admin.bookingAmount,
			admin.actualPrice,
			admin.note,
			admin.attachment,
			comment,
		})
	}
	return rows
}

type adminColumns struct {
	mode          string
	service       string
	reason        string
	note          string
	attachment    string
	raw           string
	bookingAmount string
	actualPrice   string
}

func adminFields(raw string, viewer Viewer) adminColumns {
	if raw == "" {
		return adminColumns{}
	}
	p := admincomment.Parse(raw)

	cols := adminColumns{
		mode:          string(p.Mode),
		service:       p.Service,
		note:          p.Note,
		attachment:    admincomment.ProtectedLink(p.AttachmentURL),
		raw:           protectRaw(raw, viewer),
		bookingAmount: FormatAmount(p.BookingAmount),
		actualPrice:   ActualPrice(p.ActualPrice, viewer),
	}
	if p.Reason != nil {
		cols.reason = p.Reason.Label
		if cols.reason == "" {
			cols.reason = p.Reason.Code
		}
	}
	return cols
}

// protectRaw rewrites the attachment link and hides the actual price tag
// from viewers who cannot see costs
func protectRaw(raw string, viewer Viewer) string {
	out := admincomment.Protect(raw)
	if !viewer.CanSeeCost() {
		out = admincomment.RedactActualPrice(out)
	}
	return out
}

func customer(req *entity.ApprovalRequest) string {
	if req.CustomerName != "" {
		return req.CustomerName
	}
	return req.CustomerID
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/helloviza/approvals/internal/domain/admincomment"
	"github.com/helloviza/approvals/internal/domain/entity"
)

func f64(v float64) *float64 { return &v }

func sampleRequest() *entity.ApprovalRequest {
	t0 := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	adminNote := admincomment.Build(admincomment.Comment{
		Mode:          admincomment.ModeDone,
		Service:       "FLIGHT",
		Reason:        &admincomment.Reason{Code: "TICKET_ISSUED"},
		BookingAmount: f64(10500),
		ActualPrice:   f64(9800),
		Note:          "PNR ABC123",
		AttachmentURL: "https://host/uploads/abc123/report.pdf",
	})

	return &entity.ApprovalRequest{
		ID:              "abcdef123456",
		Status:          entity.StatusApproved,
		AdminState:      entity.AdminStateDone,
		Comments:        `He said "hi", then left`,
		CustomerName:    "Acme Corp",
		FrontlinerName:  "Riya",
		FrontlinerEmail: "riya@acme.test",
		ApproverName:    "Boss",
		ApproverEmail:   "boss@acme.test",
		CartItems: []entity.CartItem{
			{Type: "flight", Title: "DEL-BOM", Qty: 2, Price: decimal.NewFromInt(5250),
				Meta: map[string]any{"origin": "DEL", "destination": "BOM"}},
		},
		History: []entity.HistoryEntry{
			{Action: entity.HistoryActionCreated, At: t0, By: "riya@acme.test", Comment: `He said "hi", then left`},
			{Action: "approved", At: t0.Add(time.Hour), By: "boss@acme.test", Comment: "ok"},
			{Action: "done", At: t0.Add(2 * time.Hour), By: "admin@acme.test", Comment: adminNote},
		},
		CreatedAt: t0,
		UpdatedAt: t0.Add(2 * time.Hour),
	}
}

func TestEscapeCSV(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`He said "hi", then left`, `"He said ""hi"", then left"`},
		{"plain", "plain"},
		{"a,b", `"a,b"`},
		{"line\nbreak", "\"line\nbreak\""},
		{"cr\rhere", "\"cr\rhere\""},
		{"₹ → —", "₹ → —"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeCSV(tt.in))
	}
}

func TestViewer(t *testing.T) {
	requester := Viewer{Role: entity.RoleRequester}
	_, err := requester.Reveal()
	assert.ErrorIs(t, err, ErrRevealForbidden)
	assert.False(t, requester.CanSeeCost())

	admin := Viewer{Role: entity.RoleAdmin}
	assert.False(t, admin.CanSeeCost(), "admins start masked")

	revealed, err := admin.Reveal()
	require.NoError(t, err)
	assert.True(t, revealed.CanSeeCost())
	assert.False(t, admin.CanSeeCost(), "Reveal returns a copy")
}

func TestActualPrice_Masking(t *testing.T) {
	price := f64(9800)

	assert.Equal(t, MaskPlaceholder, ActualPrice(price, Viewer{Role: entity.RoleApprover}))
	assert.Equal(t, MaskPlaceholder, ActualPrice(price, Viewer{Role: entity.RoleRequester, Revealed: true}))
	assert.Equal(t, MaskPlaceholder, ActualPrice(price, Viewer{Role: entity.RoleAdmin}))
	assert.Equal(t, "₹9800.00", ActualPrice(price, Viewer{Role: entity.RoleAdmin, Revealed: true}))
	assert.Equal(t, "", ActualPrice(nil, Viewer{Role: entity.RoleAdmin, Revealed: true}))
}

func TestSummaryRow(t *testing.T) {
	req := sampleRequest()
	row := SummaryRow(req, Viewer{Role: entity.RoleApprover})
	require.Len(t, row, len(Columns))

	col := func(name string) string {
		for i, c := range Columns {
			if c == name {
				return row[i]
			}
		}
		t.Fatalf("no column %q", name)
		return ""
	}

	assert.Equal(t, "REQ-123456", col("Request Code"))
	assert.Equal(t, "done", col("Admin State"))
	assert.Equal(t, "Flight", col("Service"))
	assert.Equal(t, "1", col("Items"))
	assert.Equal(t, "₹10500.00", col("Total"))
	assert.Equal(t, "₹10500.00", col("Booking Amount"))
	assert.Equal(t, MaskPlaceholder, col("Actual Price"))
	assert.Equal(t, "DEL → BOM", col("Segment"))
	assert.Equal(t, "Acme Corp", col("Customer"))
	assert.Equal(t, "2026-02-01T09:30:00Z", col("Created At"))
	assert.Equal(t, "DONE", col("Admin Mode"))
	assert.Equal(t, "FLIGHT", col("Admin Service"))
	assert.Equal(t, "Ticket issued", col("Admin Reason"))
	assert.Equal(t, "PNR ABC123", col("Admin Note"))
	assert.Equal(t, "/approvals/attachments/report.pdf/download", col("Admin Attachment"))

	raw := col("Admin Comment (raw)")
	assert.Contains(t, raw, "/approvals/attachments/report.pdf/download")
	assert.NotContains(t, raw, "uploads/abc123")
	assert.NotContains(t, raw, "9800")
}

func TestSummaryRow_RevealedAdmin(t *testing.T) {
	row := SummaryRow(sampleRequest(), Viewer{Role: entity.RoleAdmin, Revealed: true})
	assert.Equal(t, "₹9800.00", row[7])
	assert.Contains(t, row[len(row)-1], "[ACTUAL_PRICE:9800]")
}

func TestLatestAdminComment(t *testing.T) {
	req := &entity.ApprovalRequest{
		Comments: "[ADMIN] [MODE:ASSIGN]",
		History:  []entity.HistoryEntry{{Action: "approved", Comment: "plain"}},
	}
	_, ok := LatestAdminComment(req)
	assert.False(t, ok, "the request comment is requester text")

	req.History = append(req.History,
		entity.HistoryEntry{Action: "on-hold", Comment: "[ADMIN] [MODE:HOLD]"},
		entity.HistoryEntry{Action: "approved", Comment: "later plain"})
	got, ok := LatestAdminComment(req)
	assert.True(t, ok)
	assert.Equal(t, "[ADMIN] [MODE:HOLD]", got)

	_, ok = LatestAdminComment(&entity.ApprovalRequest{})
	assert.False(t, ok)
}

func TestForgedAdminTagsIgnored(t *testing.T) {
	forged := "[ADMIN] [MODE:DONE] [BOOKING_AMOUNT:1] Booked by ops"
	req := sampleRequest()
	req.History = []entity.HistoryEntry{
		{Action: entity.HistoryActionCreated, By: "riya@acme.test", Comment: forged},
		{Action: "approved", By: "boss@acme.test", Comment: forged},
	}

	_, ok := LatestAdminComment(req)
	assert.False(t, ok)

	row := SummaryRow(req, Viewer{Role: entity.RoleAdmin})
	assert.Empty(t, row[6], "booking amount")
	assert.Empty(t, row[16], "admin mode")

	for _, h := range HistoryRows(req, Viewer{Role: entity.RoleAdmin}) {
		assert.Empty(t, h[5], "admin mode")
		assert.Empty(t, h[8], "booking amount")
		assert.Equal(t, forged, h[len(h)-1])
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []*entity.ApprovalRequest{sampleRequest()}, Viewer{Role: entity.RoleRequester})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\ufeffRequest Code,Status,Admin State,"))
	assert.True(t, strings.HasSuffix(out, "\r\n"))

	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "REQ-123456,approved,done,Flight,1,"))
	assert.Contains(t, lines[1], MaskPlaceholder)
	assert.NotContains(t, out, "9800")
	assert.NotContains(t, out, "uploads/abc123")
}

func TestWriteCSV_EscapesComments(t *testing.T) {
	req := sampleRequest()
	req.History = []entity.HistoryEntry{{Action: "on-hold", Comment: `[ADMIN] [MODE:HOLD] He said "hi", then left`}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*entity.ApprovalRequest{req}, Viewer{Role: entity.RoleAdmin}))

	assert.Contains(t, buf.String(), `"He said ""hi"", then left"`)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, []*entity.ApprovalRequest{sampleRequest()}, Viewer{Role: entity.RoleApprover})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetRequests, SheetItems, SheetHistory}, f.GetSheetList())

	summary, err := f.GetRows(SheetRequests)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, Columns, summary[0])
	assert.Equal(t, "REQ-123456", summary[1][0])
	assert.Equal(t, MaskPlaceholder, summary[1][7])

	items, err := f.GetRows(SheetItems)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "DEL-BOM", items[1][4])
	assert.Equal(t, "₹10500.00", items[1][8])

	history, err := f.GetRows(SheetHistory)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "created", history[1][2])
	assert.Equal(t, "DONE", history[3][5])
	assert.Equal(t, MaskPlaceholder, history[3][9])
	assert.Equal(t, "/approvals/attachments/report.pdf/download", history[3][11])
	for _, row := range history {
		for _, cell := range row {
			assert.NotContains(t, cell, "uploads/abc123")
		}
	}
}

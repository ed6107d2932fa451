package admincomment

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helloviza/approvals/internal/domain/workflow"
)

func f64(v float64) *float64 { return &v }

func TestBuild(t *testing.T) {
	got := Build(Comment{
		Mode:          ModeHold,
		Service:       "flight",
		Reason:        &Reason{Code: "FARE_CHANGED"},
		BookingAmount: f64(12500.5),
		ActualPrice:   f64(9800),
		Note:          "Waiting on airline",
		AttachmentURL: "https://host/uploads/abc123/report.pdf",
	})

	want := "[ADMIN] [MODE:HOLD] [SERVICE:FLIGHT] [REASON:FARE_CHANGED] [BOOKING_AMOUNT:12500.5] [ACTUAL_PRICE:9800] " +
		"Fare changed — Waiting on airline — Attachment: https://host/uploads/abc123/report.pdf"
	assert.Equal(t, want, got)
}

func TestBuild_OmitsEmptySegments(t *testing.T) {
	assert.Equal(t, "[ADMIN] [MODE:DONE]", Build(Comment{Mode: ModeDone}))
	assert.Equal(t, "[ADMIN] [MODE:DONE] Attachment: /uploads/x/a.pdf",
		Build(Comment{Mode: ModeDone, AttachmentURL: "/uploads/x/a.pdf"}))
	assert.Equal(t, "[ADMIN] [MODE:CANCEL] [REASON:MY_CODE] MY_CODE",
		Build(Comment{Mode: ModeCancel, Reason: &Reason{Code: "MY_CODE"}}))
	assert.Equal(t, "[ADMIN] [MODE:ASSIGN]", Build(Comment{Mode: ModeAssign, ActualPrice: f64(math.NaN())}))
}

func TestBuild_ReasonCodeFromLabel(t *testing.T) {
	got := Build(Comment{Mode: ModeCancel, Reason: &Reason{Label: "Trip postponed, by client"}})
	assert.Equal(t, "[ADMIN] [MODE:CANCEL] [REASON:TRIP_POSTPONED_BY_CLIENT] Trip postponed, by client", got)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Comment
	}{
		{"full", Comment{
			Mode: ModeUnderProcess, Service: "HOTEL",
			Reason:        &Reason{Code: "PAYMENT_PENDING", Label: "Payment pending"},
			BookingAmount: f64(45000), ActualPrice: f64(41999.99),
			Note: "Card declined once", AttachmentURL: "https://cdn.example.com/uploads/9f/invoice.pdf",
		}},
		{"mode only", Comment{Mode: ModeAssign}},
		{"note with separator", Comment{Mode: ModeHold, Note: "first — second"}},
		{"reason and note with separator", Comment{
			Mode: ModeHold, Reason: &Reason{Code: "VENDOR_DELAY", Label: "Vendor delay"}, Note: "a — b",
		}},
		{"reason and attachment no note", Comment{
			Mode: ModeDone, Reason: &Reason{Code: "BOOKED", Label: "Booked"}, AttachmentURL: "/uploads/abc/ticket.pdf",
		}},
		{"bare pdf attachment", Comment{Mode: ModeDone, Note: "issued", AttachmentURL: "ticket-44.pdf"}},
		{"amounts only", Comment{Mode: ModeCancel, BookingAmount: f64(0), ActualPrice: f64(-12.25)}},
		{"service only", Comment{Service: "VISA"}},
		{"note opening with a bracket", Comment{Mode: ModeHold, Note: "[urgent] call vendor"}},
		{"note mentioning the marker", Comment{
			Mode: ModeDone, Note: "see attachment: below", AttachmentURL: "/uploads/abc-ticket.pdf",
		}},
		{"note ending in a separator", Comment{Mode: ModeHold, Note: "ticket —"}},
		{"note ending in a separator with attachment", Comment{
			Mode: ModeHold, Note: "ticket —", AttachmentURL: "https://h/uploads/a.pdf",
		}},
		{"reason with bracketed note", Comment{
			Mode: ModeHold, Reason: &Reason{Code: "VENDOR_DELAY", Label: "Vendor delay"}, Note: "[VIP] Attachment: later",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(Build(tt.in))

			assert.True(t, p.IsAdmin)
			assert.Equal(t, tt.in.Mode, p.Mode)
			assert.Equal(t, tt.in.Service, p.Service)
			assert.Equal(t, tt.in.Note, p.Note)
			assert.Equal(t, tt.in.AttachmentURL, p.AttachmentURL)
			if tt.in.Reason != nil {
				require.NotNil(t, p.Reason)
				assert.Equal(t, tt.in.Reason.Code, p.Reason.Code)
				assert.Equal(t, tt.in.Reason.Label, p.Reason.Label)
			} else {
				assert.Nil(t, p.Reason)
			}
			if tt.in.BookingAmount != nil {
				require.NotNil(t, p.BookingAmount)
				assert.Equal(t, *tt.in.BookingAmount, *p.BookingAmount)
			} else {
				assert.Nil(t, p.BookingAmount)
			}
			if tt.in.ActualPrice != nil {
				require.NotNil(t, p.ActualPrice)
				assert.Equal(t, *tt.in.ActualPrice, *p.ActualPrice)
			} else {
				assert.Nil(t, p.ActualPrice)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("plain comment", func(t *testing.T) {
		p := Parse("Approved, go ahead")
		assert.False(t, p.IsAdmin)
		assert.Equal(t, "Approved, go ahead", p.Note)
		assert.Empty(t, p.Mode)
		assert.Nil(t, p.Reason)
	})

	t.Run("case insensitive tags", func(t *testing.T) {
		p := Parse("[admin] [mode:hold] [service:cab] note here")
		assert.True(t, p.IsAdmin)
		assert.Equal(t, ModeHold, p.Mode)
		assert.Equal(t, "CAB", p.Service)
		assert.Equal(t, "note here", p.Note)
	})

	t.Run("tags scanned independently of order", func(t *testing.T) {
		p := Parse("[ACTUAL_PRICE:10] [ADMIN] [MODE:DONE]")
		assert.True(t, p.IsAdmin)
		assert.Equal(t, ModeDone, p.Mode)
		require.NotNil(t, p.ActualPrice)
		assert.Equal(t, 10.0, *p.ActualPrice)
	})

	t.Run("invalid numbers", func(t *testing.T) {
		p := Parse("[ADMIN] [BOOKING_AMOUNT:abc] [ACTUAL_PRICE:Infinity]")
		assert.Nil(t, p.BookingAmount)
		assert.True(t, p.BookingAmountInvalid)
		assert.Nil(t, p.ActualPrice)
		assert.True(t, p.ActualPriceInvalid)
	})

	t.Run("attachment prefers http url", func(t *testing.T) {
		p := Parse("[ADMIN] [MODE:DONE] Booked — Attachment: https://h/uploads/a/b.pdf")
		assert.Equal(t, "https://h/uploads/a/b.pdf", p.AttachmentURL)
		assert.Equal(t, "Booked", p.Note)
	})

	t.Run("only the final segment is the attachment", func(t *testing.T) {
		p := Parse("[ADMIN] [MODE:DONE] Attachment: a.pdf was wrong — Attachment: /uploads/b.pdf")
		assert.Equal(t, "/uploads/b.pdf", p.AttachmentURL)
		assert.Equal(t, "Attachment: a.pdf was wrong", p.Note)
	})

	t.Run("tags after text are content", func(t *testing.T) {
		p := Parse("[ADMIN] [MODE:HOLD] waiting [REASON:X] [ADMIN]")
		assert.Nil(t, p.Reason)
		assert.Equal(t, "waiting [REASON:X] [ADMIN]", p.Note)
		assert.False(t, IsAdmin("note first [ADMIN] [MODE:DONE]"))
	})

	t.Run("marker without url", func(t *testing.T) {
		p := Parse("[ADMIN] Attachment: pending")
		assert.Empty(t, p.AttachmentURL)
		assert.Equal(t, "Attachment: pending", p.Note)
	})
}

func TestValidAttachmentURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://host/uploads/a.pdf", true},
		{"/uploads/abc-ticket.pdf", true},
		{"ticket-44.pdf", true},
		{"https://host/my file.pdf", false},
		{"pending", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidAttachmentURL(tt.in), tt.in)
	}
}

func TestProtectedLink(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://host/uploads/abc123/report.pdf", "/approvals/attachments/report.pdf/download"},
		{"/uploads/abc123/report.pdf?sig=1#p2", "/approvals/attachments/report.pdf/download"},
		{"report.pdf", "/approvals/attachments/report.pdf/download"},
		{"https://host/uploads/x/my%20file.pdf", "/approvals/attachments/my%20file.pdf/download"},
		{"", ""},
		{"https://host", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ProtectedLink(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "uploads/")
		})
	}
}

func TestProtect(t *testing.T) {
	raw := Build(Comment{Mode: ModeDone, Note: "ok", AttachmentURL: "https://host/uploads/abc123/report.pdf"})
	got := Protect(raw)

	assert.Contains(t, got, "Attachment: /approvals/attachments/report.pdf/download")
	assert.False(t, strings.Contains(got, "uploads/abc123"))
	assert.Equal(t, "plain note", Protect("plain note"))

	// a note quoting the same url is left alone
	raw = Build(Comment{Mode: ModeDone, Note: "was /uploads/a.pdf", AttachmentURL: "/uploads/a.pdf"})
	assert.Equal(t, "[ADMIN] [MODE:DONE] was /uploads/a.pdf — Attachment: /approvals/attachments/a.pdf/download", Protect(raw))
}

func TestCatalog(t *testing.T) {
	label, ok := LookupReason(ModeHold, "fare_changed")
	assert.True(t, ok)
	assert.Equal(t, "Fare changed", label)

	assert.NoError(t, ValidateReason(ModeHold, &Reason{Code: "FARE_CHANGED"}))
	assert.NoError(t, ValidateReason(ModeHold, &Reason{Code: "CUSTOM", Label: "Custom"}))
	assert.NoError(t, ValidateReason(ModeHold, nil))
	assert.Error(t, ValidateReason(ModeDone, &Reason{Code: "FARE_CHANGED"}))

	reasons := Reasons(ModeCancel)
	reasons[0].Code = "MUTATED"
	assert.NotEqual(t, "MUTATED", Reasons(ModeCancel)[0].Code)
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		action workflow.Action
		want   Mode
		ok     bool
	}{
		{workflow.ActionAssign, ModeAssign, true},
		{workflow.ActionHold, ModeHold, true},
		{workflow.ActionUnderProcess, ModeUnderProcess, true},
		{workflow.ActionDone, ModeDone, true},
		{workflow.ActionCancel, ModeCancel, true},
		{workflow.ActionApprove, "", false},
	}

	for _, tt := range tests {
		got, ok := ModeFor(tt.action)
		assert.Equal(t, tt.want, got, tt.action)
		assert.Equal(t, tt.ok, ok, tt.action)
	}
}

func TestCodeFromLabel(t *testing.T) {
	assert.Equal(t, "NO_SEATS_LEFT", CodeFromLabel("  no seats -- left! "))
	assert.Equal(t, "", CodeFromLabel("—"))
}

func TestRedactActualPrice(t *testing.T) {
	raw := Build(Comment{Mode: ModeDone, ActualPrice: f64(9800), BookingAmount: f64(10000)})
	got := RedactActualPrice(raw)

	assert.NotContains(t, got, "9800")
	assert.Contains(t, got, "[BOOKING_AMOUNT:10000]")
	assert.Contains(t, got, "[ACTUAL_PRICE:XXXXXX]")
	assert.True(t, Parse(got).ActualPriceInvalid)
}

package admincomment

import (
	"fmt"
	"strings"

	"github.com/helloviza/approvals/internal/domain/workflow"
)

// catalog lists the known reason codes per mode, in display order
var catalog = map[Mode][]Reason{
	ModeAssign: {
		{Code: "AGENT_ASSIGNED", Label: "Assigned to booking agent"},
		{Code: "VENDOR_ASSIGNED", Label: "Assigned to vendor desk"},
	},
	ModeHold: {
		{Code: "AWAITING_DOCUMENTS", Label: "Awaiting documents"},
		{Code: "FARE_CHANGED", Label: "Fare changed"},
		{Code: "CLARIFICATION_NEEDED", Label: "Clarification needed"},
		{Code: "VENDOR_DELAY", Label: "Vendor delay"},
	},
	ModeUnderProcess: {
		{Code: "BOOKING_IN_PROGRESS", Label: "Booking in progress"},
		{Code: "AWAITING_VENDOR", Label: "Awaiting vendor confirmation"},
		{Code: "PAYMENT_PENDING", Label: "Payment pending"},
	},
	ModeDone: {
		{Code: "BOOKED", Label: "Booked"},
		{Code: "TICKET_ISSUED", Label: "Ticket issued"},
		{Code: "VOUCHER_SENT", Label: "Voucher sent"},
	},
	ModeCancel: {
		{Code: "REQUESTER_CANCELLED", Label: "Cancelled by requester"},
		{Code: "NO_AVAILABILITY", Label: "No availability"},
		{Code: "POLICY_VIOLATION", Label: "Policy violation"},
		{Code: "DUPLICATE", Label: "Duplicate request"},
	},
}

// Reasons returns the catalog entries for mode
func Reasons(mode Mode) []Reason {
	return append([]Reason{}, catalog[mode]...)
}

// LookupReason returns the catalog label of code under mode
func LookupReason(mode Mode, code string) (string, bool) {
	for _, r := range catalog[mode] {
		if strings.EqualFold(r.Code, code) {
			return r.Label, true
		}
	}
	return "", false
}

// ValidateReason accepts catalog codes and free-text labels. A bare code
// outside the catalog is rejected.
func ValidateReason(mode Mode, r *Reason) error {
	if r == nil {
		return nil
	}
	code := strings.TrimSpace(r.Code)
	if code == "" || strings.TrimSpace(r.Label) != "" {
		return nil
	}
	if _, ok := LookupReason(mode, code); !ok {
		return fmt.Errorf("unknown reason code %q for mode %s", code, mode)
	}
	return nil
}

// ModeFor maps an admin action onto the mode recorded in its comment.
// Hold and under-process share a state; only the mode tells them apart.
func ModeFor(action workflow.Action) (Mode, bool) {
	switch action {
	case workflow.ActionAssign:
		return ModeAssign, true
	case workflow.ActionHold:
		return ModeHold, true
	case workflow.ActionUnderProcess:
		return ModeUnderProcess, true
	case workflow.ActionDone:
		return ModeDone, true
	case workflow.ActionCancel:
		return ModeCancel, true
	default:
		return "", false
	}
}

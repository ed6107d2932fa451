package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/helloviza/approvals/internal/application/service"
	"github.com/helloviza/approvals/internal/domain/admincomment"
	"github.com/helloviza/approvals/internal/domain/derive"
	"github.com/helloviza/approvals/internal/domain/entity"
)

// decodeObject reads a JSON object body, keeping numbers exact. An empty
// body decodes to an empty object.
func decodeObject(body io.Reader) (map[string]any, error) {
	raw := map[string]any{}
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, &service.ValidationError{Field: "body", Message: "request body must be a JSON object"}
	}
	return raw, nil
}

func bindOptionalJSON(c *gin.Context, v any) error {
	if err := json.NewDecoder(c.Request.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &service.ValidationError{Field: "body", Message: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return nil
}

// stringField returns the first non-empty string among keys
func stringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func editInput(raw map[string]any, note string) service.EditInput {
	in := service.EditInput{Note: note}
	for _, key := range []string{"cartItems", "items"} {
		if _, ok := raw[key]; ok {
			in.CartItems = derive.CartItemsFromPayload(raw)
			break
		}
	}
	if s, ok := raw["comments"].(string); ok {
		in.Comments = &s
	}
	return in
}

type adminActionRequest struct {
	Service       string               `json:"service"`
	Reason        *admincomment.Reason `json:"reason"`
	ReasonCode    string               `json:"reasonCode"`
	BookingAmount *float64             `json:"bookingAmount"`
	ActualPrice   *float64             `json:"actualPrice"`
	Note          string               `json:"note"`
	Comment       string               `json:"comment"`
	AttachmentURL string               `json:"attachmentUrl"`
}

func (r adminActionRequest) input() service.AdminInput {
	reason := r.Reason
	if reason == nil && strings.TrimSpace(r.ReasonCode) != "" {
		reason = &admincomment.Reason{Code: strings.TrimSpace(r.ReasonCode)}
	}
	note := r.Note
	if strings.TrimSpace(note) == "" {
		note = r.Comment
	}
	return service.AdminInput{
		Service:       r.Service,
		Reason:        reason,
		BookingAmount: r.BookingAmount,
		ActualPrice:   r.ActualPrice,
		Note:          note,
		AttachmentURL: r.AttachmentURL,
	}
}

// filterFromQuery reads days, service, status, adminStatus, customerId and q
func filterFromQuery(c *gin.Context) (derive.Filter, error) {
	f := derive.Filter{
		ServiceKind: entity.ServiceKind(strings.ToLower(strings.TrimSpace(c.Query("service")))),
		Status:      entity.Status(strings.TrimSpace(c.Query("status"))),
		AdminState:  entity.AdminState(strings.TrimSpace(c.Query("adminStatus"))),
		CustomerID:  strings.TrimSpace(c.Query("customerId")),
		Query:       c.Query("q"),
	}

	if d := strings.TrimSpace(c.Query("days")); d != "" {
		days, err := strconv.Atoi(d)
		if err != nil || days < 0 {
			return f, &service.ValidationError{Field: "days", Message: "must be a non-negative integer"}
		}
		f.Days = min(days, derive.MaxDays)
	}
	// "all" is what the list UIs send for an unset dropdown
	if f.ServiceKind == "all" {
		f.ServiceKind = ""
	}
	if strings.EqualFold(string(f.Status), "all") {
		f.Status = ""
	}
	if strings.EqualFold(string(f.AdminState), "all") {
		f.AdminState = ""
	}
	if f.Status != "" && !f.Status.IsValid() {
		return f, &service.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", f.Status)}
	}
	if f.AdminState != "" && !f.AdminState.IsValid() {
		return f, &service.ValidationError{Field: "adminStatus", Message: fmt.Sprintf("unknown admin status %q", f.AdminState)}
	}
	return f, nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

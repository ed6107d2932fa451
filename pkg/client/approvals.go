package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one line of a travel request.
type CartItem struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Service string          `json:"service,omitempty"`
	Title   string          `json:"title"`
	Qty     int             `json:"qty"`
	Price   decimal.Decimal `json:"price"`
	Meta    map[string]any  `json:"meta,omitempty"`
}

// AdminComment is a decoded admin history comment.
type AdminComment struct {
	Mode              string   `json:"mode,omitempty"`
	Service           string   `json:"service,omitempty"`
	Reason            *Reason  `json:"reason,omitempty"`
	BookingAmount     *float64 `json:"bookingAmount,omitempty"`
	ActualPrice       *float64 `json:"actualPrice,omitempty"`
	ActualPriceMasked bool     `json:"actualPriceMasked,omitempty"`
	Note              string   `json:"note,omitempty"`
	AttachmentLink    string   `json:"attachmentLink,omitempty"`
}

// Reason is a coded reason for an on-hold or cancel action.
type Reason struct {
	Code  string `json:"code"`
	Label string `json:"label,omitempty"`
}

// HistoryEntry is one recorded action.
type HistoryEntry struct {
	ID      int64         `json:"id"`
	Action  string        `json:"action"`
	At      time.Time     `json:"at"`
	By      string        `json:"by"`
	Comment string        `json:"comment"`
	Admin   *AdminComment `json:"admin,omitempty"`
}

// ApprovalRequest is a request as the server rendered it for the caller.
type ApprovalRequest struct {
	ID               string          `json:"id"`
	Code             string          `json:"code"`
	TicketID         string          `json:"ticketId,omitempty"`
	Status           string          `json:"status"`
	AdminState       string          `json:"adminState"`
	ServiceKind      string          `json:"serviceKind"`
	Segment          string          `json:"segment"`
	Signal           string          `json:"signal"`
	Total            decimal.Decimal `json:"total"`
	CartItems        []CartItem      `json:"cartItems"`
	Comments         string          `json:"comments"`
	CustomerID       string          `json:"customerId"`
	CustomerName     string          `json:"customerName"`
	FrontlinerName   string          `json:"frontlinerName"`
	FrontlinerEmail  string          `json:"frontlinerEmail"`
	ApproverName     string          `json:"approverName"`
	ApproverEmail    string          `json:"approverEmail"`
	History          []HistoryEntry  `json:"history"`
	AvailableActions []string        `json:"availableActions"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// SubmitRequest is the body of a new request.
type SubmitRequest struct {
	CustomerID     string     `json:"customerId,omitempty"`
	CustomerName   string     `json:"customerName,omitempty"`
	ApproverEmail  string     `json:"approverEmail,omitempty"`
	ApproverName   string     `json:"approverName,omitempty"`
	CartItems      []CartItem `json:"cartItems"`
	Comments       string     `json:"comments,omitempty"`
	FrontlinerName string     `json:"frontlinerName,omitempty"`
}

// AdminActionRequest is the body of an admin action.
type AdminActionRequest struct {
	Service       string   `json:"service,omitempty"`
	Reason        *Reason  `json:"reason,omitempty"`
	BookingAmount *float64 `json:"bookingAmount,omitempty"`
	ActualPrice   *float64 `json:"actualPrice,omitempty"`
	Note          string   `json:"note,omitempty"`
	AttachmentURL string   `json:"attachmentUrl,omitempty"`
}

// Filter narrows list and export calls. Zero values are omitted.
type Filter struct {
	Days        int
	Service     string
	Status      string
	AdminStatus string
	CustomerID  string
	Query       string
	// IncludeClosed applies to AdminQueue only
	IncludeClosed bool
	// Reveal asks an export to show actual prices; admin only
	Reveal bool
}

func (f Filter) values() url.Values {
	v := url.Values{}
	if f.Days > 0 {
		v.Set("days", strconv.Itoa(f.Days))
	}
	set := func(k, val string) {
		if strings.TrimSpace(val) != "" {
			v.Set(k, val)
		}
	}
	set("service", f.Service)
	set("status", f.Status)
	set("adminStatus", f.AdminStatus)
	set("customerId", f.CustomerID)
	set("q", f.Query)
	if f.IncludeClosed {
		v.Set("includeClosed", "1")
	}
	if f.Reveal {
		v.Set("reveal", "1")
	}
	return v
}

// Submit creates a request as the signed-in requester.
func (c *Client) Submit(ctx context.Context, in SubmitRequest) (*ApprovalRequest, error) {
	if len(in.CartItems) == 0 {
		return nil, &ValidationError{Field: "cartItems", Message: "at least one item is required"}
	}
	var out ApprovalRequest
	err := c.DoJSON(ctx, Request{Method: http.MethodPost, Path: "/approvals", Body: in}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches one request.
func (c *Client) Get(ctx context.Context, id string) (*ApprovalRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}
	var out ApprovalRequest
	if err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/approvals/" + url.PathEscape(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mine lists the caller's own requests.
func (c *Client) Mine(ctx context.Context, f Filter) ([]ApprovalRequest, error) {
	return c.list(ctx, "/approvals/mine", f)
}

// Inbox lists requests waiting on the calling approver.
func (c *Client) Inbox(ctx context.Context, f Filter) ([]ApprovalRequest, error) {
	return c.list(ctx, "/approvals/inbox", f)
}

// AdminQueue lists approved requests for the admin desk.
func (c *Client) AdminQueue(ctx context.Context, f Filter) ([]ApprovalRequest, error) {
	return c.list(ctx, "/approvals/admin/approved", f)
}

func (c *Client) list(ctx context.Context, path string, f Filter) ([]ApprovalRequest, error) {
	var out []ApprovalRequest
	if err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: path, Query: f.values()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApproverAction applies approved, declined or on_hold with an optional comment.
func (c *Client) ApproverAction(ctx context.Context, id, action, comment string) (*ApprovalRequest, error) {
	switch action {
	case "approved", "declined", "on_hold":
	default:
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown approver action %q", action)}
	}
	var out ApprovalRequest
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPut,
		Path:   "/approvals/" + url.PathEscape(id) + "/" + action,
		Body:   map[string]string{"comment": comment},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminAction applies assign, on-hold, under-process, done or cancel.
func (c *Client) AdminAction(ctx context.Context, id, action string, in AdminActionRequest) (*ApprovalRequest, error) {
	switch action {
	case "assign", "on-hold", "under-process", "done", "cancel":
	default:
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("unknown admin action %q", action)}
	}
	var out ApprovalRequest
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPut,
		Path:   "/approvals/admin/" + url.PathEscape(id) + "/" + action,
		Body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Revoke withdraws the caller's own pending request.
func (c *Client) Revoke(ctx context.Context, id, note string) (*ApprovalRequest, error) {
	var out ApprovalRequest
	err := c.DoJSON(ctx, Request{
		Method: http.MethodPut,
		Path:   "/approvals/" + url.PathEscape(id),
		Body:   map[string]string{"action": "revoked", "comment": note},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportResult is a downloaded export file.
type ExportResult struct {
	Filename    string
	ContentType string
	Rows        int
	Data        []byte
}

// Export downloads the caller's visible requests as csv or xlsx.
func (c *Client) Export(ctx context.Context, format string, f Filter) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "csv" && format != "xlsx" {
		return nil, &ValidationError{Field: "format", Message: "must be csv or xlsx"}
	}
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/approvals/export." + format, Query: f.values()})
	if err != nil {
		return nil, err
	}
	if isHTML(resp) {
		return nil, ErrSchemaMismatch
	}

	out := &ExportResult{
		Filename:    "approvals." + format,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        resp.Body,
	}
	if name := filenameFrom(resp.Header.Get("Content-Disposition")); name != "" {
		out.Filename = name
	}
	if n, err := strconv.Atoi(resp.Header.Get("X-Export-Rows")); err == nil {
		out.Rows = n
	}
	return out, nil
}

func isHTML(resp *Response) bool {
	return strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html")
}

// Attachment is a stored upload.
type Attachment struct {
	FileName string `json:"fileName"`
	URL      string `json:"url"`
	Link     string `json:"link"`
	Size     int    `json:"size"`
}

// UploadAttachment stores a PDF for use in an admin action.
func (c *Client) UploadAttachment(ctx context.Context, name string, content []byte) (*Attachment, error) {
	if err := ValidateAttachmentName(name); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	var out Attachment
	err = c.DoJSON(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/approvals/attachments",
		Body:        &buf,
		ContentType: mw.FormDataContentType(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

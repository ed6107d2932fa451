package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helloviza/approvals/internal/application/service"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/domain/workflow"
	"github.com/helloviza/approvals/internal/metrics"
)

// Version is reported by the health check
var Version = "dev"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services  Services
	health    func(ctx context.Context) error
	maxUpload int64
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, health func(ctx context.Context) error, maxUpload int64, logger Logger) *Handlers {
	if maxUpload <= 0 {
		maxUpload = service.DefaultMaxUploadSize
	}
	return &Handlers{
		services:  services,
		health:    health,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	code, status := http.StatusOK, "healthy"
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			code, status = http.StatusServiceUnavailable, "unhealthy"
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data: HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// Submit handles POST /approvals
func (h *Handlers) Submit(c *gin.Context) {
	actor := actorFrom(c)
	raw, err := decodeObject(c.Request.Body)
	if err != nil {
		h.respondError(c, err)
		return
	}

	req, err := h.services.Requests.Submit(c.Request.Context(), actor, service.SubmitInput{Payload: raw})
	h.recordAction(actor, "submit", err)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: h.services.Views.Build(c.Request.Context(), actor, req)})
}

// EditOrRevoke handles PUT|PATCH /approvals/:id. A body with
// {"action":"revoked"} revokes; anything else is an edit.
func (h *Handlers) EditOrRevoke(c *gin.Context) {
	actor := actorFrom(c)
	raw, err := decodeObject(c.Request.Body)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	comment := stringField(raw, "comment", "note", "reason")

	var req *entity.ApprovalRequest
	switch action := stringField(raw, "action"); action {
	case string(workflow.ActionRevoke), "revoke":
		req, err = h.services.Requests.Revoke(ctx, actor, id, comment)
		h.recordAction(actor, string(workflow.ActionRevoke), err)
	case "", string(workflow.ActionEdit):
		req, err = h.services.Requests.Edit(ctx, actor, id, editInput(raw, comment))
		h.recordAction(actor, string(workflow.ActionEdit), err)
	default:
		err = &service.ValidationError{Field: "action", Message: fmt.Sprintf("unsupported action %q", action)}
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: h.services.Views.Build(ctx, actor, req)})
}

// ListMine handles GET /approvals/mine
func (h *Handlers) ListMine(c *gin.Context) {
	actor := actorFrom(c)
	filter, err := filterFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	rows, err := h.services.Requests.ListMine(c.Request.Context(), actor, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.services.Views.BuildAll(c.Request.Context(), actor, rows)})
}

// GetRequest handles GET /approvals/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	actor := actorFrom(c)
	req, err := h.services.Requests.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.services.Views.Build(c.Request.Context(), actor, req)})
}

// Inbox handles GET /approvals/inbox
func (h *Handlers) Inbox(c *gin.Context) {
	actor := actorFrom(c)
	filter, err := filterFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	rows, err := h.services.Approver.Inbox(c.Request.Context(), actor, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.services.Views.BuildAll(c.Request.Context(), actor, rows)})
}

type commentRequest struct {
	Comment string `json:"comment"`
}

// ApproverAction handles PUT /approvals/:id/:action
func (h *Handlers) ApproverAction(c *gin.Context) {
	actor := actorFrom(c)
	var body commentRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		h.respondError(c, err)
		return
	}

	action := workflow.Action(c.Param("action"))
	req, err := h.services.Approver.Act(c.Request.Context(), actor, c.Param("id"), action, body.Comment)
	h.recordAction(actor, string(action), err)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.services.Views.Build(c.Request.Context(), actor, req)})
}

// AdminQueue handles GET /approvals/admin/approved
func (h *Handlers) AdminQueue(c *gin.Context) {
	actor := actorFrom(c)
	filter, err := filterFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	rows, err := h.services.Admin.Queue(c.Request.Context(), actor, service.QueueFilter{
		Filter:        filter,
		IncludeClosed: truthy(c.Query("includeClosed")),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.services.Views.BuildAll(c.Request.Context(), actor, rows)})
}

// AdminAction handles PUT /approvals/admin/:id/:action
func (h *Handlers) AdminAction(c *gin.Context) {
	actor := actorFrom(c)
	var body adminActionRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		h.respondError(c, err)
		return
	}

	action := workflow.Action(c.Param("action"))
	req, err := h.services.Admin.Act(c.Request.Context(), actor, c.Param("id"), action, body.input())
	h.recordAction(actor, string(action), err)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.services.Views.Build(c.Request.Context(), actor, req)})
}

// UploadAttachment handles POST /approvals/attachments (multipart field "file")
func (h *Handlers) UploadAttachment(c *gin.Context) {
	actor := actorFrom(c)
	// leave room for the multipart envelope around the file
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+64<<10)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{Error: "file too large"})
			return
		}
		h.respondError(c, &service.ValidationError{Field: "file", Message: "a multipart file field is required"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.services.Attachments.Upload(c.Request.Context(), actor, fh.Filename, content)
	h.recordAction(actor, "upload", err)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: res})
}

// DownloadAttachment handles GET /approvals/attachments/:file/download
func (h *Handlers) DownloadAttachment(c *gin.Context) {
	name, content, err := h.services.Attachments.Open(c.Request.Context(), actorFrom(c), c.Param("file"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, "application/pdf", content)
}

var exportContentTypes = map[string]string{
	service.FormatCSV:  "text/csv; charset=utf-8",
	service.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Export handles GET /approvals/export.csv and /approvals/export.xlsx.
// The export is buffered so a failure still answers with a JSON error.
func (h *Handlers) Export(format string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		filter, err := filterFromQuery(c)
		if err != nil {
			h.respondError(c, err)
			return
		}

		var buf bytes.Buffer
		n, err := h.services.Export.Export(c.Request.Context(), actor, service.ExportOptions{
			Format: format,
			Filter: filter,
			Reveal: truthy(c.Query("reveal")),
		}, &buf)
		if err != nil {
			h.respondError(c, err)
			return
		}
		metrics.IncExport(format)

		filename := fmt.Sprintf("approvals-%s.%s", time.Now().UTC().Format("20060102"), format)
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
		c.Header("X-Export-Rows", fmt.Sprint(n))
		c.Data(http.StatusOK, exportContentTypes[format], buf.Bytes())
	}
}

// classify maps a service error onto an HTTP status and a metrics result
func classify(err error) (int, string) {
	switch {
	case service.IsValidation(err):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrGuardFailed),
		errors.Is(err, workflow.ErrInvalidState):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	code, _ := classify(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		msg = "internal server error"
	}
	c.JSON(code, Response{Error: msg})
}

func (h *Handlers) recordAction(actor entity.Actor, action string, err error) {
	result := "ok"
	if err != nil {
		_, result = classify(err)
	}
	metrics.IncAction(string(actor.Role), action, result)
}

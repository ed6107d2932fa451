package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/domain/admincomment"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/domain/event"
	"github.com/helloviza/approvals/internal/domain/workflow"
	"github.com/helloviza/approvals/internal/infrastructure/storage"
)

// DefaultMaxUploadSize caps a single attachment
const DefaultMaxUploadSize = 10 << 20

// UploadDir is the storage directory holding attachments
const UploadDir = "uploads"

// UploadResult describes a stored attachment
type UploadResult struct {
	FileName string `json:"fileName"`
	// URL is the stored location to put in an admin comment
	URL string `json:"url"`
	// Link is the protected download route clients should render
	Link string `json:"link"`
	Size int    `json:"size"`
}

// AttachmentService stores and serves PDF attachments
type AttachmentService interface {
	Upload(ctx context.Context, actor entity.Actor, filename string, content []byte) (*UploadResult, error)
	Open(ctx context.Context, actor entity.Actor, filename string) (string, []byte, error)
}

type attachmentServiceImpl struct {
	core
	storage port.FileStorage
	maxSize int
}

// NewAttachmentService creates a new AttachmentService. maxSize <= 0 uses DefaultMaxUploadSize.
func NewAttachmentService(deps Dependencies, fs port.FileStorage, maxSize int) AttachmentService {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &attachmentServiceImpl{
		core:    newCore(deps),
		storage: fs,
		maxSize: maxSize,
	}
}

func (s *attachmentServiceImpl) Upload(ctx context.Context, actor entity.Actor, filename string, content []byte) (*UploadResult, error) {
	if !actor.Role.IsValid() {
		return nil, ErrForbidden
	}

	name := storage.SanitizeFileName(filename)
	if name == "" {
		return nil, invalid("file", "a file name is required")
	}
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		return nil, invalid("file", "only PDF attachments are accepted")
	}
	if len(content) == 0 {
		return nil, invalid("file", "file is empty")
	}
	if len(content) > s.maxSize {
		return nil, invalid("file", "file exceeds %d bytes", s.maxSize)
	}
	if mt := mimetype.Detect(content); !mt.Is("application/pdf") {
		return nil, invalid("file", "content is %s, not a PDF", mt.String())
	}

	// the stored name is unique so equal display names never share a link
	rel := path.Join(UploadDir, uuid.NewString()+"-"+name)
	if err := s.storage.Save(ctx, rel, content); err != nil {
		s.Logger.Error("Failed to store attachment", "error", err, "file", name)
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	url := "/" + rel
	result := &UploadResult{
		FileName: name,
		URL:      url,
		Link:     admincomment.ProtectedLink(url),
		Size:     len(content),
	}

	s.Logger.Info("Attachment uploaded", "file", name, "size", len(content), "by", actor.Email)
	s.publish(ctx, event.NewEvent(event.TypeAttachmentUploaded, "", actor.Email, map[string]interface{}{
		event.KeyFileName: name,
		event.KeySize:     len(content),
		event.KeyRole:     actor.Role,
	}))
	return result, nil
}

// Open resolves a protected link's stored name to its content and display
// name. A file cited in history is visible to whoever can see one of the
// citing requests; an uncited upload is visible to admins only.
func (s *attachmentServiceImpl) Open(ctx context.Context, actor entity.Actor, filename string) (string, []byte, error) {
	if !actor.Role.IsValid() {
		return "", nil, ErrForbidden
	}

	name := storage.SanitizeFileName(filename)
	display, ok := displayName(name)
	if !ok || name != strings.TrimSpace(filename) {
		return "", nil, ErrNotFound
	}

	rel := path.Join(UploadDir, name)
	if !s.storage.Exists(ctx, rel) {
		return "", nil, ErrNotFound
	}
	if err := s.authorize(ctx, actor, name); err != nil {
		return "", nil, err
	}

	content, err := s.storage.Read(ctx, rel)
	if err != nil {
		return "", nil, fmt.Errorf("read attachment: %w", err)
	}
	return display, content, nil
}

// authorize counts only admin-action entries as citations
func (s *attachmentServiceImpl) authorize(ctx context.Context, actor entity.Actor, name string) error {
	entries, err := s.History.FindByFileReference(ctx, name)
	if err != nil {
		return fmt.Errorf("find citing requests: %w", err)
	}

	cited := false
	seen := make(map[string]bool)
	for _, h := range entries {
		if !workflow.Action(h.Action).IsAdminAction() || seen[h.RequestID] {
			continue
		}
		seen[h.RequestID] = true
		cited = true

		req, err := s.Requests.GetByID(ctx, h.RequestID)
		if err != nil {
			return fmt.Errorf("load request: %w", err)
		}
		if req == nil || !inWorkspace(actor, req) {
			continue
		}
		if actor.Role == entity.RoleRequester && !sameEmail(actor.Email, req.FrontlinerEmail) {
			continue
		}
		return nil
	}

	if !cited && actor.Role == entity.RoleAdmin {
		return nil
	}
	return ErrNotFound
}

// displayName strips the "<uuid>-" prefix Upload puts on stored names
func displayName(stored string) (string, bool) {
	const prefix = 36
	if len(stored) <= prefix+1 || stored[prefix] != '-' {
		return "", false
	}
	if _, err := uuid.Parse(stored[:prefix]); err != nil {
		return "", false
	}
	return stored[prefix+1:], true
}

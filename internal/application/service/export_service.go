package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/helloviza/approvals/internal/domain/derive"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/export"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ExportOptions selects what an export contains
type ExportOptions struct {
	Format string
	Filter derive.Filter
	// Reveal unmasks actual prices; only admins may set it
	Reveal bool
}

// ExportService writes the rows an actor can see as CSV or XLSX
type ExportService interface {
	Export(ctx context.Context, actor entity.Actor, opts ExportOptions, w io.Writer) (int, error)
}

type exportServiceImpl struct {
	requests RequestService
	approver ApproverService
	admin    AdminService
	logger   Logger
}

// NewExportService creates a new ExportService on top of the role services,
// so an export never contains more than the matching list view
func NewExportService(requests RequestService, approver ApproverService, admin AdminService, logger Logger) ExportService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &exportServiceImpl{
		requests: requests,
		approver: approver,
		admin:    admin,
		logger:   logger,
	}
}

// Export writes the rows and returns how many were exported
func (s *exportServiceImpl) Export(ctx context.Context, actor entity.Actor, opts ExportOptions, w io.Writer) (int, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != FormatCSV && format != FormatXLSX {
		return 0, invalid("format", "unsupported export format %q", opts.Format)
	}

	viewer := export.Viewer{Role: actor.Role}
	if opts.Reveal {
		var err error
		if viewer, err = viewer.Reveal(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrForbidden, err)
		}
	}

	rows, err := s.rowsFor(ctx, actor, opts.Filter)
	if err != nil {
		return 0, err
	}

	switch format {
	case FormatCSV:
		err = export.WriteCSV(w, rows, viewer)
	case FormatXLSX:
		err = export.WriteXLSX(w, rows, viewer)
	}
	if err != nil {
		s.logger.Error("Failed to write export", "error", err, "format", format)
		return 0, fmt.Errorf("write %s export: %w", format, err)
	}

	s.logger.Info("Export written", "format", format, "rows", len(rows), "role", actor.Role, "revealed", viewer.Revealed)
	return len(rows), nil
}

func (s *exportServiceImpl) rowsFor(ctx context.Context, actor entity.Actor, filter derive.Filter) ([]*entity.ApprovalRequest, error) {
	switch actor.Role {
	case entity.RoleRequester:
		return s.requests.ListMine(ctx, actor, filter)
	case entity.RoleApprover:
		return s.approver.Inbox(ctx, actor, filter)
	case entity.RoleAdmin:
		return s.admin.Queue(ctx, actor, QueueFilter{Filter: filter, IncludeClosed: true})
	default:
		return nil, ErrForbidden
	}
}

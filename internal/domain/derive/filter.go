package derive

import (
	"sort"
	"strings"
	"time"

	"github.com/helloviza/approvals/internal/domain/entity"
)

// MaxDays caps the date-range window; larger values behave as "everything"
// without overflowing the duration arithmetic
const MaxDays = 36500

// Filter is a conjunctive predicate over requests. Zero-valued criteria match everything.
type Filter struct {
	// Days keeps requests created within the last N days of Now
	Days        int
	Now         time.Time
	ServiceKind entity.ServiceKind
	Status      entity.Status
	AdminState  entity.AdminState
	CustomerID  string
	// Query is a case-insensitive substring search over SearchText
	Query string
}

// Match reports whether req satisfies every non-empty criterion
func (f Filter) Match(req *entity.ApprovalRequest) bool {
	if req == nil {
		return false
	}

	if f.Days > 0 {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		cutoff := now.AddDate(0, 0, -min(f.Days, MaxDays))
		if req.CreatedAt.Before(cutoff) {
			return false
		}
	}
	if f.ServiceKind != "" && ServiceKind(req) != f.ServiceKind {
		return false
	}
	if f.Status != "" && req.Status != f.Status {
		return false
	}
	if f.AdminState != "" && req.NormalizedAdminState() != f.AdminState {
		return false
	}
	if f.CustomerID != "" && req.CustomerID != f.CustomerID {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(SearchText(req)), q) {
			return false
		}
	}

	return true
}

// Apply returns the rows that match, preserving order
func (f Filter) Apply(rows []*entity.ApprovalRequest) []*entity.ApprovalRequest {
	out := make([]*entity.ApprovalRequest, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// SearchText is the fixed concatenation free-text search runs over
func SearchText(req *entity.ApprovalRequest) string {
	parts := []string{
		ShortReqCode(req),
		Segment(req),
		req.CustomerName,
		req.CustomerID,
		req.FrontlinerName,
		req.FrontlinerEmail,
		req.ApproverName,
		req.ApproverEmail,
		req.Comments,
	}
	for _, h := range req.History {
		parts = append(parts, h.Comment)
	}
	return strings.Join(parts, " ")
}

// SortByUpdatedDesc orders rows newest-updated first, ties broken by id
func SortByUpdatedDesc(rows []*entity.ApprovalRequest) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
}

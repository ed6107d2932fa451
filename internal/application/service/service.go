package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/helloviza/approvals/internal/application/dispatcher"
	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/domain/event"
)

// DefaultLockTTL bounds how long one action may hold a request
const DefaultLockTTL = 15 * time.Second

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Dependencies are shared by every service
type Dependencies struct {
	Requests port.RequestRepository
	History  port.HistoryRepository
	Tx       port.TransactionManager
	Lock     port.ActionLock
	Events   dispatcher.Dispatcher
	Logger   Logger
	LockTTL  time.Duration
	Now      func() time.Time
}

// core carries the plumbing common to all services: loading with scope
// checks, the action lock and event dispatch
type core struct {
	Dependencies
}

func newCore(deps Dependencies) core {
	if deps.LockTTL <= 0 {
		deps.LockTTL = DefaultLockTTL
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	return core{Dependencies: deps}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func (c *core) now() time.Time {
	return c.Now().UTC()
}

// load fetches a request with its history, hiding requests outside the
// actor's workspace
func (c *core) load(ctx context.Context, actor entity.Actor, id string) (*entity.ApprovalRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "is required")
	}

	req, err := c.Requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil || !inWorkspace(actor, req) {
		return nil, ErrNotFound
	}

	history, err := c.History.GetByRequestID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	req.History = history

	return req, nil
}

// attachHistory fills History on every row with one batched query
func (c *core) attachHistory(ctx context.Context, rows []*entity.ApprovalRequest) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	byRequest, err := c.History.GetByRequestIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, r := range rows {
		r.History = byRequest[r.ID]
	}
	return nil
}

// withActionLock runs fn while holding the per-request lock. A held lock
// surfaces as ErrBusy.
func (c *core) withActionLock(ctx context.Context, id string, fn func() error) error {
	if c.Lock == nil {
		return fn()
	}

	release, err := c.Lock.Acquire(ctx, "request:"+id, c.LockTTL)
	if errors.Is(err, port.ErrLockHeld) {
		return ErrBusy
	}
	if err != nil {
		return fmt.Errorf("acquire action lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			c.Logger.Error("Failed to release action lock", "request_id", id, "error", err)
		}
	}()

	return fn()
}

// appendHistory stamps and persists one entry and mirrors it onto req
func (c *core) appendHistory(ctx context.Context, req *entity.ApprovalRequest, action, by, comment string) error {
	entry := entity.HistoryEntry{
		RequestID: req.ID,
		Action:    action,
		At:        req.UpdatedAt,
		By:        by,
		Comment:   comment,
	}
	if err := c.History.Append(ctx, &entry); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	req.History = append(req.History, entry)
	return nil
}

// publish dispatches evt after the change is committed. Handler failures are
// logged; the mutation already succeeded.
func (c *core) publish(ctx context.Context, evt *event.Event) {
	if c.Events == nil {
		return
	}
	if err := c.Events.Dispatch(ctx, evt); err != nil {
		c.Logger.Error("Failed to dispatch event", "event_type", evt.Type, "request_id", evt.RequestID, "error", err)
	}
}

// inWorkspace reports whether actor may see req at all. An actor without a
// workspace (a global admin) sees every workspace.
func inWorkspace(actor entity.Actor, req *entity.ApprovalRequest) bool {
	return actor.CustomerID == "" || actor.CustomerID == req.CustomerID
}

func sameEmail(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func requireRole(actor entity.Actor, roles ...entity.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q may not perform this operation", ErrForbidden, actor.Role)
}

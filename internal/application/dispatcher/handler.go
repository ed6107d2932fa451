package dispatcher

import (
	"context"

	"github.com/helloviza/approvals/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler. EventType is empty for
// handlers registered with SubscribeAll.
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/helloviza/approvals/internal/application/dispatcher"
	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/domain/admincomment"
	"github.com/helloviza/approvals/internal/domain/derive"
	"github.com/helloviza/approvals/internal/domain/entity"
	"github.com/helloviza/approvals/internal/domain/event"
	"github.com/helloviza/approvals/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

var (
	requester = entity.Actor{ID: "u-1", Email: "riya@acme.test", Name: "Riya", Role: entity.RoleRequester, CustomerID: "ws-1"}
	approver  = entity.Actor{ID: "u-2", Email: "boss@acme.test", Name: "Boss", Role: entity.RoleApprover, CustomerID: "ws-1"}
	admin     = entity.Actor{ID: "u-3", Email: "ops@acme.test", Name: "Ops", Role: entity.RoleAdmin, CustomerID: "ws-1"}
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *memStore
	lock  *mockLock
	deps  Dependencies

	mu     sync.Mutex
	events []*event.Event
}

func newFixture() *fixture {
	f := &fixture{store: newMemStore(), lock: &mockLock{}}
	d := dispatcher.NewDispatcher()
	d.SubscribeAll("capture", func(ctx context.Context, evt *event.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, evt)
		return nil
	})
	f.deps = Dependencies{
		Requests: f.store,
		History:  f.store,
		Tx:       &mockTxManager{},
		Lock:     f.lock,
		Events:   d,
		Logger:   &mockLogger{},
		Now:      func() time.Time { return fixedNow },
	}
	return f
}

func (f *fixture) eventTypes() []event.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.Type, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func seed(id string, status entity.Status, adminState entity.AdminState) *entity.ApprovalRequest {
	return &entity.ApprovalRequest{
		ID:              id,
		Status:          status,
		AdminState:      adminState,
		CustomerID:      "ws-1",
		FrontlinerName:  "Riya",
		FrontlinerEmail: "riya@acme.test",
		CartItems: []entity.CartItem{
			{Type: "flight", Title: "DEL-BOM", Qty: 1, Price: decimal.NewFromInt(9800), Meta: map[string]any{"origin": "DEL", "destination": "BOM"}},
		},
		CreatedAt: fixedNow.Add(-time.Hour),
		UpdatedAt: fixedNow.Add(-time.Hour),
	}
}

func validItems() []entity.CartItem {
	return []entity.CartItem{{Type: "hotel", Title: "Taj", Qty: 2, Price: decimal.NewFromInt(5000)}}
}

func TestRequestService_Submit(t *testing.T) {
	f := newFixture()
	svc := NewRequestService(f.deps)

	req, err := svc.Submit(context.Background(), requester, SubmitInput{
		CartItems:     validItems(),
		Comments:      "  client meeting  ",
		ApproverEmail: "boss@acme.test",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if req.Status != entity.StatusPending || req.AdminState != entity.AdminStatePending {
		t.Errorf("Submit() state = %s/%s, want pending/pending", req.Status, req.AdminState)
	}
	if req.FrontlinerEmail != requester.Email || req.CustomerID != "ws-1" {
		t.Errorf("Submit() did not stamp requester identity: %+v", req)
	}
	if req.Comments != "client meeting" {
		t.Errorf("Comments = %q, want trimmed", req.Comments)
	}

	history := f.store.historyOf(req.ID)
	if len(history) != 1 || history[0].Action != entity.HistoryActionCreated {
		t.Fatalf("history = %+v, want one created entry", history)
	}
	if history[0].By != "Riya" || !history[0].At.Equal(fixedNow) {
		t.Errorf("history entry = %+v", history[0])
	}

	if got := f.eventTypes(); len(got) != 1 || got[0] != event.TypeRequestCreated {
		t.Errorf("events = %v, want [request.created]", got)
	}
}

func TestRequestService_Submit_FromPayload(t *testing.T) {
	f := newFixture()
	svc := NewRequestService(f.deps)

	req, err := svc.Submit(context.Background(), requester, SubmitInput{
		Payload: map[string]any{
			"ticketId": "TKT-9",
			"approver": map[string]any{"email": "boss@acme.test", "name": "Boss"},
			"items": []any{
				map[string]any{"type": "visa", "title": "UAE visa", "amount": 6000},
			},
		},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if req.TicketID != "TKT-9" {
		t.Errorf("TicketID = %q", req.TicketID)
	}
	if len(req.CartItems) != 1 || req.CartItems[0].Qty != 1 || !req.CartItems[0].Price.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("CartItems = %+v", req.CartItems)
	}
}

func TestRequestService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input SubmitInput
	}{
		{"no items", SubmitInput{}},
		{"zero qty", SubmitInput{CartItems: []entity.CartItem{{Type: "cab", Qty: 0}}}},
		{"negative price", SubmitInput{CartItems: []entity.CartItem{{Type: "cab", Qty: 1, Price: decimal.NewFromInt(-5)}}}},
		{"no title or type", SubmitInput{CartItems: []entity.CartItem{{Qty: 1}}}},
		{"bad approver email", SubmitInput{CartItems: validItems(), ApproverEmail: "boss@"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := NewRequestService(f.deps).Submit(context.Background(), requester, tt.input)
			if !IsValidation(err) {
				t.Fatalf("Submit() error = %v, want validation error", err)
			}
			if len(f.store.requests) != 0 {
				t.Error("rejected submit must not persist")
			}
		})
	}
}

func TestRequestService_Submit_WrongRole(t *testing.T) {
	f := newFixture()
	_, err := NewRequestService(f.deps).Submit(context.Background(), approver, SubmitInput{CartItems: validItems()})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("Submit() error = %v, want ErrForbidden", err)
	}
}

func TestRequestService_Edit(t *testing.T) {
	comments := "updated"

	tests := []struct {
		name       string
		status     entity.Status
		actor      entity.Actor
		wantErr    error
		wantStatus entity.Status
	}{
		{"pending stays pending", entity.StatusPending, requester, nil, entity.StatusPending},
		{"on hold returns to pending", entity.StatusOnHold, requester, nil, entity.StatusPending},
		{"approved is final", entity.StatusApproved, requester, workflow.ErrInvalidTransition, ""},
		{"declined is final", entity.StatusDeclined, requester, workflow.ErrInvalidTransition, ""},
		{"other requester", entity.StatusPending, entity.Actor{Email: "x@acme.test", Role: entity.RoleRequester, CustomerID: "ws-1"}, ErrForbidden, ""},
		{"other workspace", entity.StatusPending, entity.Actor{Email: requester.Email, Role: entity.RoleRequester, CustomerID: "ws-2"}, ErrNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.store.put(seed("r1", tt.status, entity.AdminStatePending))
			svc := NewRequestService(f.deps)

			req, err := svc.Edit(context.Background(), tt.actor, "r1", EditInput{CartItems: validItems(), Comments: &comments, Note: "fixed dates"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Edit() error = %v, want %v", err, tt.wantErr)
				}
				if h := f.store.historyOf("r1"); len(h) != 0 {
					t.Errorf("failed edit appended history: %+v", h)
				}
				return
			}
			if err != nil {
				t.Fatalf("Edit() error = %v", err)
			}
			if req.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", req.Status, tt.wantStatus)
			}

			stored, _ := f.store.GetByID(context.Background(), "r1")
			if stored.Comments != "updated" || stored.CartItems[0].Type != "hotel" {
				t.Errorf("stored = %+v", stored)
			}
			h := f.store.historyOf("r1")
			if len(h) != 1 || h[0].Action != entity.HistoryActionEdited || h[0].Comment != "fixed dates" {
				t.Errorf("history = %+v", h)
			}
		})
	}
}

func TestRequestService_Revoke(t *testing.T) {
	f := newFixture()
	f.store.put(seed("r1", entity.StatusPending, entity.AdminStatePending))
	svc := NewRequestService(f.deps)

	req, err := svc.Revoke(context.Background(), requester, "r1", "plans changed")
	if err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if req.Status != entity.StatusDeclined {
		t.Errorf("Status = %s, want declined", req.Status)
	}
	h := f.store.historyOf("r1")
	if len(h) != 1 || h[0].Action != entity.HistoryActionRevoked || h[0].Comment != "plans changed" {
		t.Errorf("history = %+v", h)
	}
	if got := f.eventTypes(); len(got) != 1 || got[0] != event.TypeRequestRevoked {
		t.Errorf("events = %v", got)
	}

	if _, err := svc.Revoke(context.Background(), requester, "r1", ""); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("second Revoke() error = %v, want ErrInvalidTransition", err)
	}
}

func TestRequestService_GetScoping(t *testing.T) {
	f := newFixture()
	f.store.put(seed("r1", entity.StatusPending, entity.AdminStatePending))
	svc := NewRequestService(f.deps)
	ctx := context.Background()

	if _, err := svc.Get(ctx, requester, "r1"); err != nil {
		t.Errorf("owner Get() error = %v", err)
	}
	if _, err := svc.Get(ctx, approver, "r1"); err != nil {
		t.Errorf("approver Get() error = %v", err)
	}
	if _, err := svc.Get(ctx, entity.Actor{Email: "x@acme.test", Role: entity.RoleRequester, CustomerID: "ws-1"}, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign requester Get() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, entity.Actor{Role: entity.RoleAdmin, CustomerID: "ws-2"}, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other workspace Get() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, entity.Actor{Role: entity.RoleAdmin}, "r1"); err != nil {
		t.Errorf("global admin Get() error = %v", err)
	}
	if _, err := svc.Get(ctx, requester, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing Get() error = %v, want ErrNotFound", err)
	}
}

func TestRequestService_ListMine(t *testing.T) {
	f := newFixture()
	a := seed("a", entity.StatusPending, entity.AdminStatePending)
	b := seed("b", entity.StatusApproved, entity.AdminStatePending)
	b.UpdatedAt = fixedNow
	other := seed("c", entity.StatusPending, entity.AdminStatePending)
	other.FrontlinerEmail = "dev@acme.test"
	f.store.put(a, b, other)

	rows, err := NewRequestService(f.deps).ListMine(context.Background(), requester, derive.Filter{})
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "b" || rows[1].ID != "a" {
		t.Errorf("ListMine() = %v, want [b a]", ids(rows))
	}

	rows, _ = NewRequestService(f.deps).ListMine(context.Background(), requester, derive.Filter{Status: entity.StatusApproved})
	if len(rows) != 1 || rows[0].ID != "b" {
		t.Errorf("filtered ListMine() = %v, want [b]", ids(rows))
	}
}

func ids(rows []*entity.ApprovalRequest) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestApproverService_Act(t *testing.T) {
	tests := []struct {
		name          string
		status        entity.Status
		approverEmail string
		action        workflow.Action
		wantErr       error
		wantStatus    entity.Status
	}{
		{"approve unassigned", entity.StatusPending, "", workflow.ActionApprove, nil, entity.StatusApproved},
		{"decline addressed", entity.StatusPending, "boss@acme.test", workflow.ActionDecline, nil, entity.StatusDeclined},
		{"hold", entity.StatusPending, "", workflow.ActionPutOnHold, nil, entity.StatusOnHold},
		{"approve from hold", entity.StatusOnHold, "", workflow.ActionApprove, nil, entity.StatusApproved},
		{"addressed to someone else", entity.StatusPending, "other@acme.test", workflow.ActionApprove, ErrForbidden, ""},
		{"declined is final", entity.StatusDeclined, "", workflow.ActionApprove, workflow.ErrInvalidTransition, ""},
		{"approved is final", entity.StatusApproved, "", workflow.ActionDecline, workflow.ErrInvalidTransition, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			r := seed("r1", tt.status, entity.AdminStatePending)
			r.ApproverEmail = tt.approverEmail
			f.store.put(r)

			got, err := NewApproverService(f.deps).Act(context.Background(), approver, "r1", tt.action, "looks fine")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Act() error = %v, want %v", err, tt.wantErr)
				}
				stored, _ := f.store.GetByID(context.Background(), "r1")
				if stored.Status != tt.status {
					t.Errorf("failed action mutated status to %s", stored.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("Act() error = %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if got.ApproverEmail != "boss@acme.test" {
				t.Errorf("ApproverEmail = %q, want the acting approver", got.ApproverEmail)
			}
			h := f.store.historyOf("r1")
			if len(h) != 1 || h[0].Action != string(tt.action) || h[0].Comment != "looks fine" {
				t.Errorf("history = %+v", h)
			}
			if f.lock.released != 1 {
				t.Errorf("lock released %d times, want 1", f.lock.released)
			}
		})
	}
}

func TestApproverService_Act_InvalidAction(t *testing.T) {
	f := newFixture()
	f.store.put(seed("r1", entity.StatusPending, entity.AdminStatePending))

	_, err := NewApproverService(f.deps).Act(context.Background(), approver, "r1", workflow.ActionDone, "")
	if !IsValidation(err) {
		t.Fatalf("Act() error = %v, want validation error", err)
	}
}

func TestApproverService_Inbox(t *testing.T) {
	f := newFixture()
	mine := seed("a", entity.StatusPending, entity.AdminStatePending)
	mine.ApproverEmail = "BOSS@acme.test"
	open := seed("b", entity.StatusPending, entity.AdminStatePending)
	theirs := seed("c", entity.StatusPending, entity.AdminStatePending)
	theirs.ApproverEmail = "other@acme.test"
	f.store.put(mine, open, theirs)

	rows, err := NewApproverService(f.deps).Inbox(context.Background(), approver, derive.Filter{})
	if err != nil {
		t.Fatalf("Inbox() error = %v", err)
	}
	if got := strings.Join(ids(rows), ","); got != "a,b" {
		t.Errorf("Inbox() = %s, want a,b", got)
	}
}

func TestAdminService_Act(t *testing.T) {
	booking, actual := 9500.0, 9800.0
	input := AdminInput{
		Service:       "flight",
		Reason:        &admincomment.Reason{Code: "AGENT_ASSIGNED"},
		BookingAmount: &booking,
		ActualPrice:   &actual,
		Note:          "handled by desk 2",
		AttachmentURL: "https://files.test/uploads/abc/itinerary.pdf",
	}

	f := newFixture()
	f.store.put(seed("r1", entity.StatusApproved, entity.AdminStatePending))
	svc := NewAdminService(f.deps)

	req, err := svc.Assign(context.Background(), admin, "r1", input)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if req.AdminState != entity.AdminStateAssigned {
		t.Errorf("AdminState = %s, want assigned", req.AdminState)
	}

	h := f.store.historyOf("r1")
	if len(h) != 1 {
		t.Fatalf("history = %+v, want exactly one entry", h)
	}
	p := admincomment.Parse(h[0].Comment)
	if !p.IsAdmin || p.Mode != admincomment.ModeAssign || p.Service != "FLIGHT" {
		t.Errorf("parsed comment = %+v", p)
	}
	if p.Reason == nil || p.Reason.Code != "AGENT_ASSIGNED" || p.Reason.Label != "Assigned to booking agent" {
		t.Errorf("reason = %+v", p.Reason)
	}
	if p.ActualPrice == nil || *p.ActualPrice != 9800 || p.AttachmentURL != input.AttachmentURL {
		t.Errorf("parsed comment = %+v", p)
	}

	// Under process collapses onto the hold state, told apart only by mode
	req, err = svc.UnderProcess(context.Background(), admin, "r1", AdminInput{})
	if err != nil {
		t.Fatalf("UnderProcess() error = %v", err)
	}
	if req.AdminState != entity.AdminStateOnHold {
		t.Errorf("AdminState = %s, want on_hold", req.AdminState)
	}
	h = f.store.historyOf("r1")
	if got := admincomment.Parse(h[1].Comment).Mode; got != admincomment.ModeUnderProcess {
		t.Errorf("mode = %s, want UNDERPROCESS", got)
	}
	if got := admincomment.Parse(h[1].Comment).Service; got != "FLIGHT" {
		t.Errorf("service defaulted to %q, want FLIGHT from the first cart item", got)
	}

	if _, err := svc.Done(context.Background(), admin, "r1", AdminInput{}); err != nil {
		t.Fatalf("Done() error = %v", err)
	}
	if _, err := svc.Cancel(context.Background(), admin, "r1", AdminInput{}); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("Cancel() after done error = %v, want ErrInvalidTransition", err)
	}
	if got := len(f.store.historyOf("r1")); got != 3 {
		t.Errorf("history length = %d, want 3", got)
	}
}

func TestAdminService_Act_Rejections(t *testing.T) {
	negative := -1.0

	tests := []struct {
		name    string
		status  entity.Status
		actor   entity.Actor
		action  workflow.Action
		input   AdminInput
		wantErr func(error) bool
	}{
		{"not approved yet", entity.StatusPending, admin, workflow.ActionAssign, AdminInput{}, func(err error) bool { return errors.Is(err, workflow.ErrGuardFailed) }},
		{"approver cannot", entity.StatusApproved, approver, workflow.ActionAssign, AdminInput{}, func(err error) bool { return errors.Is(err, ErrForbidden) }},
		{"unknown action", entity.StatusApproved, admin, workflow.ActionApprove, AdminInput{}, IsValidation},
		{"unknown reason code", entity.StatusApproved, admin, workflow.ActionHold, AdminInput{Reason: &admincomment.Reason{Code: "NOPE"}}, IsValidation},
		{"negative amount", entity.StatusApproved, admin, workflow.ActionDone, AdminInput{BookingAmount: &negative}, IsValidation},
		{"attachment url with a space", entity.StatusApproved, admin, workflow.ActionDone, AdminInput{AttachmentURL: "https://files.test/uploads/my ticket.pdf"}, IsValidation},
		{"attachment that is not a link", entity.StatusApproved, admin, workflow.ActionDone, AdminInput{AttachmentURL: "see email"}, IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.store.put(seed("r1", tt.status, entity.AdminStatePending))

			_, err := NewAdminService(f.deps).Act(context.Background(), tt.actor, "r1", tt.action, tt.input)
			if !tt.wantErr(err) {
				t.Fatalf("Act() error = %v", err)
			}
			if h := f.store.historyOf("r1"); len(h) != 0 {
				t.Errorf("rejected action appended history: %+v", h)
			}
		})
	}
}

func TestAdminService_Queue(t *testing.T) {
	f := newFixture()
	open := seed("a", entity.StatusApproved, entity.AdminStateAssigned)
	done := seed("b", entity.StatusApproved, entity.AdminStateDone)
	pending := seed("c", entity.StatusPending, entity.AdminStatePending)
	f.store.put(open, done, pending)
	svc := NewAdminService(f.deps)

	rows, err := svc.Queue(context.Background(), admin, QueueFilter{})
	if err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if got := strings.Join(ids(rows), ","); got != "a" {
		t.Errorf("Queue() = %s, want a", got)
	}

	rows, _ = svc.Queue(context.Background(), admin, QueueFilter{IncludeClosed: true})
	if len(rows) != 2 {
		t.Errorf("Queue(includeClosed) = %v, want a and b", ids(rows))
	}

	rows, _ = svc.Queue(context.Background(), admin, QueueFilter{IncludeClosed: true, Filter: derive.Filter{AdminState: entity.AdminStateDone}})
	if got := strings.Join(ids(rows), ","); got != "b" {
		t.Errorf("Queue(adminStatus=done) = %s, want b", got)
	}

	f.store.put(seed("d", entity.StatusApproved, entity.AdminStateCancelled))
	for _, state := range []entity.AdminState{entity.AdminStateDone, entity.AdminStateCancelled} {
		rows, _ = svc.Queue(context.Background(), admin, QueueFilter{Filter: derive.Filter{AdminState: state}})
		if len(rows) != 1 || rows[0].NormalizedAdminState() != state {
			t.Errorf("Queue(adminStatus=%s) without includeClosed = %v, want the %s request", state, ids(rows), state)
		}
	}
}

func TestActionLock_Busy(t *testing.T) {
	f := newFixture()
	f.store.put(seed("r1", entity.StatusPending, entity.AdminStatePending))
	f.deps.Lock = &mockLock{acquireFunc: func(ctx context.Context, key string, ttl time.Duration) (port.ReleaseFunc, error) {
		return nil, port.ErrLockHeld
	}}

	_, err := NewApproverService(f.deps).Act(context.Background(), approver, "r1", workflow.ActionApprove, "")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Act() error = %v, want ErrBusy", err)
	}
}

func TestActionLock_KeyAndTTL(t *testing.T) {
	f := newFixture()
	f.store.put(seed("r1", entity.StatusPending, entity.AdminStatePending))

	var gotKey string
	var gotTTL time.Duration
	f.deps.Lock = &mockLock{acquireFunc: func(ctx context.Context, key string, ttl time.Duration) (port.ReleaseFunc, error) {
		gotKey, gotTTL = key, ttl
		return func(context.Context) error { return nil }, nil
	}}

	if _, err := NewApproverService(f.deps).Act(context.Background(), approver, "r1", workflow.ActionApprove, ""); err != nil {
		t.Fatalf("Act() error = %v", err)
	}
	if gotKey != "request:r1" || gotTTL != DefaultLockTTL {
		t.Errorf("lock key/ttl = %s/%s", gotKey, gotTTL)
	}
}

func TestMutation_PersistFailure(t *testing.T) {
	f := newFixture()
	f.store.put(seed("r1", entity.StatusPending, entity.AdminStatePending))
	f.store.updateErr = errors.New("disk full")

	_, err := NewApproverService(f.deps).Act(context.Background(), approver, "r1", workflow.ActionApprove, "")
	if err == nil {
		t.Fatal("Act() error = nil, want persist failure")
	}
	if h := f.store.historyOf("r1"); len(h) != 0 {
		t.Errorf("history = %+v, want none", h)
	}
	if len(f.eventTypes()) != 0 {
		t.Error("no event may be dispatched for a failed action")
	}
	if f.lock.released != 1 {
		t.Errorf("lock released %d times, want 1", f.lock.released)
	}
}

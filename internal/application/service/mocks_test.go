package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/helloviza/approvals/internal/application/port"
	"github.com/helloviza/approvals/internal/domain/entity"
)

// memStore is an in-memory RequestRepository and HistoryRepository
type memStore struct {
	mu       sync.Mutex
	requests map[string]entity.ApprovalRequest
	history  []entity.HistoryEntry
	nextID   int64

	updateErr error
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{requests: make(map[string]entity.ApprovalRequest)}
}

func cloneRequest(r entity.ApprovalRequest) entity.ApprovalRequest {
	r.CartItems = append([]entity.CartItem(nil), r.CartItems...)
	r.History = nil
	return r
}

func (m *memStore) put(reqs ...*entity.ApprovalRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reqs {
		m.requests[r.ID] = cloneRequest(*r)
	}
}

func (m *memStore) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; ok {
		return errors.New("duplicate id")
	}
	m.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	c := cloneRequest(r)
	return &c, nil
}

func (m *memStore) Update(ctx context.Context, req *entity.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	cur, ok := m.requests[req.ID]
	if !ok {
		return errors.New("not found")
	}
	cur.Status = req.Status
	cur.AdminState = req.AdminState
	cur.Comments = req.Comments
	cur.ApproverName = req.ApproverName
	cur.ApproverEmail = req.ApproverEmail
	cur.UpdatedAt = req.UpdatedAt
	m.requests[req.ID] = cur
	return nil
}

func (m *memStore) ReplaceCartItems(ctx context.Context, requestID string, items []entity.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.requests[requestID]
	cur.CartItems = append([]entity.CartItem(nil), items...)
	m.requests[requestID] = cur
	return nil
}

func (m *memStore) List(ctx context.Context, q port.RequestQuery) ([]*entity.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*entity.ApprovalRequest
	for _, r := range m.requests {
		if q.CustomerID != "" && r.CustomerID != q.CustomerID {
			continue
		}
		if q.FrontlinerEmail != "" && !strings.EqualFold(r.FrontlinerEmail, q.FrontlinerEmail) {
			continue
		}
		if q.ApproverEmail != "" && r.ApproverEmail != "" && !strings.EqualFold(r.ApproverEmail, q.ApproverEmail) {
			continue
		}
		if len(q.Statuses) > 0 {
			found := false
			for _, s := range q.Statuses {
				found = found || r.Status == s
			}
			if !found {
				continue
			}
		}
		c := cloneRequest(r)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.nextID++
	entry.ID = m.nextID
	m.history = append(m.history, *entry)
	return nil
}

func (m *memStore) GetByRequestID(ctx context.Context, requestID string) ([]entity.HistoryEntry, error) {
	byID, err := m.GetByRequestIDs(ctx, []string{requestID})
	return byID[requestID], err
}

func (m *memStore) GetByRequestIDs(ctx context.Context, requestIDs []string) (map[string][]entity.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(requestIDs))
	for _, id := range requestIDs {
		want[id] = true
	}
	out := make(map[string][]entity.HistoryEntry)
	for _, h := range m.history {
		if want[h.RequestID] {
			out[h.RequestID] = append(out[h.RequestID], h)
		}
	}
	return out, nil
}

func (m *memStore) ReferencesFile(ctx context.Context, fileName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.history {
		if strings.Contains(h.Comment, fileName) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FindByFileReference(ctx context.Context, fileName string) ([]entity.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.HistoryEntry
	for _, h := range m.history {
		if strings.Contains(h.Comment, fileName) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) historyOf(id string) []entity.HistoryEntry {
	h, _ := m.GetByRequestID(context.Background(), id)
	return h
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLock struct {
	acquireFunc func(ctx context.Context, key string, ttl time.Duration) (port.ReleaseFunc, error)

	mu       sync.Mutex
	acquired []string
	released int
}

func (m *mockLock) Acquire(ctx context.Context, key string, ttl time.Duration) (port.ReleaseFunc, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	m.acquired = append(m.acquired, key)
	m.mu.Unlock()
	return func(context.Context) error {
		m.mu.Lock()
		m.released++
		m.mu.Unlock()
		return nil
	}, nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

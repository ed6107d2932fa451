package client

import (
	"context"
	"sync"
)

// SessionState is where a Session is in its token lifecycle.
type SessionState string

const (
	StateInit          SessionState = "init"
	StateAuthenticated SessionState = "authenticated"
	StateRefreshing    SessionState = "refreshing"
	StateExpired       SessionState = "expired"
)

// Refresher obtains a new access token, e.g. by calling a refresh endpoint
// with a refresh cookie.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (string, error)

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

// Session is the single owner of the access token. It is safe for
// concurrent use; concurrent refreshes are coalesced into one.
type Session struct {
	mu        sync.Mutex
	state     SessionState
	token     string
	listeners []func(SessionState)

	refreshing chan struct{}
}

// NewSession returns a session holding token. An empty token starts in init.
func NewSession(token string) *Session {
	s := &Session{state: StateInit}
	if token != "" {
		s.state = StateAuthenticated
		s.token = token
	}
	return s
}

// Token returns the current access token.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn to be called after every state change.
func (s *Session) OnChange(fn func(SessionState)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// SetToken stores a fresh token, e.g. after login.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	next := StateAuthenticated
	if token == "" {
		next = StateInit
	}
	listeners := s.transitionLocked(next)
	s.mu.Unlock()
	notify(listeners, next)
}

// Expire drops the token and marks the session expired.
func (s *Session) Expire() {
	s.mu.Lock()
	s.token = ""
	listeners := s.transitionLocked(StateExpired)
	s.mu.Unlock()
	notify(listeners, StateExpired)
}

// refresh runs r once. Callers arriving while a refresh is in flight wait
// for it and share its outcome.
func (s *Session) refresh(ctx context.Context, r Refresher) error {
	s.mu.Lock()
	if s.state == StateExpired {
		s.mu.Unlock()
		return ErrAuthExpired
	}
	if wait := s.refreshing; wait != nil {
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		if s.State() != StateAuthenticated {
			return ErrAuthExpired
		}
		return nil
	}
	done := make(chan struct{})
	s.refreshing = done
	listeners := s.transitionLocked(StateRefreshing)
	s.mu.Unlock()
	notify(listeners, StateRefreshing)

	token, err := "", ErrAuthExpired
	if r != nil {
		token, err = r.Refresh(ctx)
	}

	s.mu.Lock()
	s.refreshing = nil
	next := StateAuthenticated
	if err != nil || token == "" {
		next = StateExpired
		s.token = ""
	} else {
		s.token = token
	}
	listeners = s.transitionLocked(next)
	s.mu.Unlock()
	close(done)
	notify(listeners, next)

	if next == StateExpired {
		return ErrAuthExpired
	}
	return nil
}

func (s *Session) transitionLocked(next SessionState) []func(SessionState) {
	if s.state == next {
		return nil
	}
	s.state = next
	return append([]func(SessionState){}, s.listeners...)
}

func notify(listeners []func(SessionState), state SessionState) {
	for _, fn := range listeners {
		fn(state)
	}
}

// Package session owns the authentication token and the resolved profile of
// the current user. A Manager is created once per process and handed to
// whatever needs it; there is no package-level state.
package session

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/avitolog/avitolog/pkg/client"
	"github.com/avitolog/avitolog/pkg/domain"
)

// State is the authentication state derived from a Snapshot.
type State int

const (
	Unauthenticated State = iota
	// Authenticating means a token is held but no profile has been resolved for it.
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Snapshot is an immutable copy of the session at one point in time.
type Snapshot struct {
	Token   string
	User    *domain.User
	Loading bool
}

// State derives the state from the snapshot fields.
func (s Snapshot) State() State {
	switch {
	case s.Token == "":
		return Unauthenticated
	case s.User != nil:
		// includes the optimistic profile from login while reconciliation runs
		return Authenticated
	default:
		return Authenticating
	}
}

// AuthAPI is the subset of the API client the manager drives.
type AuthAPI interface {
	Login(ctx context.Context, req client.LoginRequest) (*client.AuthResponse, error)
	Register(ctx context.Context, req client.RegisterRequest) (*client.AuthResponse, error)
	Me(ctx context.Context) (*domain.User, error)
}

// Manager is the session state machine. It is safe for concurrent use.
type Manager struct {
	store  Store
	api    AuthAPI
	logger *log.Logger

	// deliverMu orders notifications: snapshots reach subscribers in the
	// order they were taken.
	deliverMu sync.Mutex

	mu      sync.Mutex
	token   string
	user    *domain.User
	loading bool
	gen     uint64 // bumped whenever the token changes
	nextSub int
	subs    map[int]func(Snapshot)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for transitions and swallowed failures.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Manager in the Unauthenticated state. Call Bootstrap to load
// the persisted token.
func New(store Store, api AuthAPI, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		api:    api,
		logger: log.New(io.Discard),
		subs:   make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns the current token. It lets the Manager act as the API
// client's token source.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Snapshot returns the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// State returns the current state.
func (m *Manager) State() State {
	return m.Snapshot().State()
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{Token: m.token, Loading: m.loading}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

// Subscribe registers fn to receive a snapshot after every transition.
// Deliveries are serialised, so fn must not start a transition itself.
// The returned func removes the subscription.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify() {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	m.mu.Lock()
	snap := m.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// setTokenLocked changes the token in memory and in the store.
// A store failure is logged; the in-memory session stays usable.
func (m *Manager) setTokenLocked(token string) {
	m.token = token
	m.gen++
	var err error
	if token == "" {
		err = m.store.Clear()
	} else {
		err = m.store.Save(token)
	}
	if err != nil {
		m.logger.Warn("persist token", "err", err)
	}
}

// Bootstrap loads the persisted token and, when one exists, resolves the
// profile for it. A store read error leaves the session Unauthenticated and is
// returned.
func (m *Manager) Bootstrap(ctx context.Context) error {
	tok, err := m.store.Load()
	if err != nil {
		m.logger.Warn("load persisted token", "err", err)
		return err
	}
	m.mu.Lock()
	m.token = tok
	m.user = nil
	m.gen++
	m.mu.Unlock()

	m.Refresh(ctx)
	return nil
}

// Refresh fetches the profile for the current token. Any failure is treated as
// an invalid token: token and profile are cleared and the failure is only
// logged. Results for a token that has since changed are discarded.
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.Lock()
	if m.token == "" {
		m.user = nil
		m.loading = false
		m.mu.Unlock()
		m.notify()
		return
	}
	m.loading = true
	gen := m.gen
	m.mu.Unlock()
	m.notify()

	user, err := m.api.Me(ctx)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug("discard stale profile fetch")
		return
	}
	m.loading = false
	if err != nil {
		m.logger.Warn("profile fetch failed, logging out", "kind", client.KindOf(err), "err", err)
		m.user = nil
		m.setTokenLocked("")
	} else {
		m.user = user
		m.logger.Debug("profile resolved", "user", user.ID)
	}
	m.mu.Unlock()
	m.notify()
}

// Login exchanges credentials for a token. Errors from the backend are
// returned unchanged for display.
func (m *Manager) Login(ctx context.Context, email, password string) (*client.AuthResponse, error) {
	resp, err := m.api.Login(ctx, client.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	m.adopt(ctx, resp)
	return resp, nil
}

// Register creates an account and signs in with the returned token.
func (m *Manager) Register(ctx context.Context, email, password, name string) (*client.AuthResponse, error) {
	resp, err := m.api.Register(ctx, client.RegisterRequest{Email: email, Password: password, Name: name})
	if err != nil {
		return nil, err
	}
	m.adopt(ctx, resp)
	return resp, nil
}

// adopt installs a freshly issued token in two steps: the profile from the auth
// response is taken as-is, then reconciled with a profile fetch. A successful
// fetch always wins. A failed one keeps the token and the response profile, so
// a transient error does not throw away a session that was just issued.
func (m *Manager) adopt(ctx context.Context, resp *client.AuthResponse) {
	if resp == nil || resp.Token == "" {
		return
	}
	m.mu.Lock()
	m.setTokenLocked(resp.Token)
	m.user = nil
	if resp.User != nil {
		u := *resp.User
		m.user = &u
	}
	m.loading = true
	gen := m.gen
	m.mu.Unlock()
	m.notify()

	user, err := m.api.Me(ctx)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.loading = false
	if err != nil {
		m.logger.Warn("profile reconcile failed, keeping token", "err", err)
	} else {
		m.user = user
	}
	m.mu.Unlock()
	m.notify()
}

// Logout clears token and profile. Calling it repeatedly is harmless.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.user = nil
	m.loading = false
	m.setTokenLocked("")
	m.mu.Unlock()
	m.notify()
}

// Close releases the store when it holds resources.
func (m *Manager) Close() error {
	if c, ok := m.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CanEdit reports whether the session's user may edit or delete c. The
// backend's is_owner flag is trusted when present; otherwise author and user
// ids are compared. This only drives what is shown; the backend enforces it.
func CanEdit(c domain.Comment, s Snapshot) bool {
	if c.IsOwner != nil {
		return *c.IsOwner
	}
	if s.User == nil || s.User.ID.IsZero() {
		return false
	}
	return c.Author.ID == s.User.ID
}

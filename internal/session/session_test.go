package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/avitolog/avitolog/internal/apitest"
	"github.com/avitolog/avitolog/pkg/client"
	"github.com/avitolog/avitolog/pkg/domain"
)

// newTestSession wires a Manager to a fake backend the same way main does:
// the client reads its token from the manager.
func newTestSession(t *testing.T, store Store) (*Manager, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	var m *Manager
	c := client.New(srv.URL,
		client.WithPathPrefix(apitest.Prefix),
		client.WithTokenSource(client.TokenFunc(func() string { return m.Token() })),
	)
	m = New(store, c)
	return m, srv
}

func TestBootstrap_NoToken(t *testing.T) {
	m, _ := newTestSession(t, NewMemoryStore(""))
	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}
	if got := m.State(); got != Unauthenticated {
		t.Errorf("State() = %v, want %v", got, Unauthenticated)
	}
}

func TestBootstrap_ValidToken(t *testing.T) {
	store := NewMemoryStore("")
	m, srv := newTestSession(t, store)
	user, tok := srv.AddUser("ann@example.com", "pw", "Ann")
	store.Save(tok) //nolint:errcheck

	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}
	snap := m.Snapshot()
	if snap.State() != Authenticated {
		t.Fatalf("State() = %v, want %v", snap.State(), Authenticated)
	}
	if snap.User.ID != user.ID {
		t.Errorf("User.ID = %q, want %q", snap.User.ID, user.ID)
	}
	if snap.Loading {
		t.Error("Loading = true after bootstrap finished")
	}
}

func TestBootstrap_InvalidTokenClearsSession(t *testing.T) {
	store := NewMemoryStore("abc")
	m, _ := newTestSession(t, store)

	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}
	snap := m.Snapshot()
	if snap.Token != "" || snap.User != nil {
		t.Errorf("session = %+v, want token and user absent", snap)
	}
	if snap.State() != Unauthenticated {
		t.Errorf("State() = %v, want %v", snap.State(), Unauthenticated)
	}
	if tok, _ := store.Load(); tok != "" {
		t.Errorf("persisted token = %q, want cleared", tok)
	}
}

func TestRefresh_AnyFailureLogsOut(t *testing.T) {
	store := NewMemoryStore("")
	m, srv := newTestSession(t, store)
	_, tok := srv.AddUser("ann@example.com", "pw", "Ann")
	store.Save(tok) //nolint:errcheck
	m.Bootstrap(context.Background()) //nolint:errcheck
	if m.State() != Authenticated {
		t.Fatalf("State() = %v, want %v", m.State(), Authenticated)
	}

	srv.FailMe(1, http.StatusBadGateway)
	m.Refresh(context.Background())
	if m.State() != Unauthenticated {
		t.Errorf("State() after failed refresh = %v, want %v", m.State(), Unauthenticated)
	}
}

type storeErr struct{ MemoryStore }

func (s *storeErr) Load() (string, error) { return "", errors.New("disk on fire") }

func TestBootstrap_StoreError(t *testing.T) {
	m, _ := newTestSession(t, &storeErr{})
	if err := m.Bootstrap(context.Background()); err == nil {
		t.Fatal("expected store error from Bootstrap")
	}
	if m.State() != Unauthenticated {
		t.Errorf("State() = %v, want %v", m.State(), Unauthenticated)
	}
}

func TestLogin(t *testing.T) {
	store := NewMemoryStore("")
	m, srv := newTestSession(t, store)
	srv.AddUser("ann@example.com", "secret", "Ann")

	resp, err := m.Login(context.Background(), "ann@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	snap := m.Snapshot()
	if snap.State() != Authenticated {
		t.Fatalf("State() = %v, want %v", snap.State(), Authenticated)
	}
	if snap.Token != resp.Token {
		t.Errorf("Token = %q, want %q", snap.Token, resp.Token)
	}
	if snap.User == nil || snap.User.Email != "ann@example.com" {
		t.Errorf("User = %+v, want ann@example.com", snap.User)
	}
	if tok, _ := store.Load(); tok != resp.Token {
		t.Errorf("persisted token = %q, want %q", tok, resp.Token)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	m, srv := newTestSession(t, NewMemoryStore(""))
	srv.AddUser("ann@example.com", "secret", "Ann")

	_, err := m.Login(context.Background(), "ann@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error for wrong password")
	}
	if got := client.Message(err, "fallback"); got != "Invalid email or password" {
		t.Errorf("Message() = %q, want backend detail", got)
	}
	if m.State() != Unauthenticated {
		t.Errorf("State() = %v, want %v", m.State(), Unauthenticated)
	}
}

func TestLogin_ReconcileFailureKeepsToken(t *testing.T) {
	m, srv := newTestSession(t, NewMemoryStore(""))
	srv.AddUser("ann@example.com", "secret", "Ann")
	srv.FailMe(1, http.StatusServiceUnavailable)

	resp, err := m.Login(context.Background(), "ann@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	snap := m.Snapshot()
	if snap.Token != resp.Token {
		t.Errorf("Token = %q, want token kept after failed reconcile", snap.Token)
	}
	if snap.User == nil || snap.User.Email != "ann@example.com" {
		t.Errorf("User = %+v, want optimistic profile from login", snap.User)
	}
	if snap.State() != Authenticated {
		t.Errorf("State() = %v, want %v", snap.State(), Authenticated)
	}
}

func TestLogin_ReconcileFillsMissingUser(t *testing.T) {
	m, srv := newTestSession(t, NewMemoryStore(""))
	srv.AddUser("ann@example.com", "secret", "Ann")
	srv.OmitLoginUser(true)

	if _, err := m.Login(context.Background(), "ann@example.com", "secret"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	snap := m.Snapshot()
	if snap.User == nil || snap.User.Name != "Ann" {
		t.Errorf("User = %+v, want profile from /auth/me", snap.User)
	}
}

func TestRegister(t *testing.T) {
	m, _ := newTestSession(t, NewMemoryStore(""))

	resp, err := m.Register(context.Background(), "bob@example.com", "pw", "Bob")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("Register() returned empty token")
	}
	if m.State() != Authenticated {
		t.Errorf("State() = %v, want %v", m.State(), Authenticated)
	}

	_, err = m.Register(context.Background(), "bob@example.com", "pw", "Bob")
	if got := client.Message(err, ""); got != "Email already registered" {
		t.Errorf("duplicate Register() message = %q", got)
	}
}

type noTokenAPI struct{}

func (noTokenAPI) Login(context.Context, client.LoginRequest) (*client.AuthResponse, error) {
	return &client.AuthResponse{}, nil
}

func (noTokenAPI) Register(context.Context, client.RegisterRequest) (*client.AuthResponse, error) {
	return &client.AuthResponse{}, nil
}

func (noTokenAPI) Me(context.Context) (*domain.User, error) {
	return nil, errors.New("unexpected profile fetch")
}

func TestLogin_ResponseWithoutToken(t *testing.T) {
	m := New(NewMemoryStore(""), noTokenAPI{})
	if _, err := m.Login(context.Background(), "a", "b"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if m.State() != Unauthenticated {
		t.Errorf("State() = %v, want session untouched", m.State())
	}
}

// gatedAPI issues a fixed token and parks every profile fetch until the test
// answers it on the channel received from calls. A nil answer is a failure.
type gatedAPI struct {
	token string
	calls chan chan *domain.User
}

func newGatedAPI(token string) *gatedAPI {
	return &gatedAPI{token: token, calls: make(chan chan *domain.User, 2)}
}

func (a *gatedAPI) Login(context.Context, client.LoginRequest) (*client.AuthResponse, error) {
	return &client.AuthResponse{Token: a.token}, nil
}

func (a *gatedAPI) Register(context.Context, client.RegisterRequest) (*client.AuthResponse, error) {
	return &client.AuthResponse{Token: a.token}, nil
}

func (a *gatedAPI) Me(context.Context) (*domain.User, error) {
	reply := make(chan *domain.User)
	a.calls <- reply
	if u := <-reply; u != nil {
		return u, nil
	}
	return nil, errors.New("profile unavailable")
}

func TestRefresh_DiscardsResultAfterLogout(t *testing.T) {
	api := newGatedAPI("")
	m := New(NewMemoryStore("old-token"), api)
	done := make(chan error, 1)
	go func() { done <- m.Bootstrap(context.Background()) }()

	pending := <-api.calls
	if got := m.State(); got != Authenticating {
		t.Fatalf("State() during fetch = %v, want %v", got, Authenticating)
	}
	m.Logout()
	pending <- &domain.User{ID: "1", Email: "ann@example.com"}
	if err := <-done; err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	snap := m.Snapshot()
	if snap.State() != Unauthenticated || snap.Token != "" || snap.User != nil {
		t.Errorf("snapshot = %+v, want the logged out session", snap)
	}
}

func TestRefresh_DiscardsResultAfterLogin(t *testing.T) {
	api := newGatedAPI("new-token")
	store := NewMemoryStore("old-token")
	m := New(store, api)
	booted := make(chan error, 1)
	go func() { booted <- m.Bootstrap(context.Background()) }()
	bootFetch := <-api.calls

	loggedIn := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), "ann@example.com", "secret")
		loggedIn <- err
	}()
	loginFetch := <-api.calls
	loginFetch <- &domain.User{ID: "2", Email: "ann@example.com"}
	if err := <-loggedIn; err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	// the old token's fetch fails late; it must not log the new session out
	bootFetch <- nil
	if err := <-booted; err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	snap := m.Snapshot()
	if snap.State() != Authenticated || snap.Token != "new-token" {
		t.Fatalf("snapshot = %+v, want the new session", snap)
	}
	if snap.User.ID != "2" {
		t.Errorf("User.ID = %q, want 2", snap.User.ID)
	}
	if tok, _ := store.Load(); tok != "new-token" {
		t.Errorf("persisted token = %q, want new-token", tok)
	}
}

func TestSubscribe_DeliversInOrder(t *testing.T) {
	api := newGatedAPI("tok")
	m := New(NewMemoryStore(""), api)

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		got   []State
		first = true
	)
	m.Subscribe(func(s Snapshot) {
		if first {
			first = false
			close(entered)
			<-release
		}
		mu.Lock()
		got = append(got, s.State())
		mu.Unlock()
	})

	loggedIn := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), "ann@example.com", "secret")
		loggedIn <- err
	}()
	<-entered

	// logout lands while the login notification is still being delivered
	loggedOut := make(chan struct{})
	go func() {
		m.Logout()
		close(loggedOut)
	}()
	for m.Token() != "" {
		time.Sleep(time.Millisecond)
	}
	close(release)

	(<-api.calls) <- &domain.User{ID: "1"}
	if err := <-loggedIn; err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	<-loggedOut

	mu.Lock()
	defer mu.Unlock()
	want := []State{Authenticating, Unauthenticated}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLogoutIdempotent(t *testing.T) {
	store := NewMemoryStore("")
	m, srv := newTestSession(t, store)
	srv.AddUser("ann@example.com", "secret", "Ann")
	if _, err := m.Login(context.Background(), "ann@example.com", "secret"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	m.Logout()
	once := m.Snapshot()
	m.Logout()
	twice := m.Snapshot()

	if once != twice {
		t.Errorf("snapshot after second logout = %+v, want %+v", twice, once)
	}
	if twice.State() != Unauthenticated || twice.Token != "" || twice.User != nil {
		t.Errorf("snapshot = %+v, want empty session", twice)
	}
	if tok, _ := store.Load(); tok != "" {
		t.Errorf("persisted token = %q, want cleared", tok)
	}
}

func TestSubscribe(t *testing.T) {
	m, srv := newTestSession(t, NewMemoryStore(""))
	srv.AddUser("ann@example.com", "secret", "Ann")

	var states []State
	unsubscribe := m.Subscribe(func(s Snapshot) { states = append(states, s.State()) })
	if _, err := m.Login(context.Background(), "ann@example.com", "secret"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	unsubscribe()
	m.Logout()

	if len(states) != 2 {
		t.Fatalf("got %d notifications, want 2 (optimistic + reconciled): %v", len(states), states)
	}
	for i, s := range states {
		if s != Authenticated {
			t.Errorf("notification %d = %v, want %v", i, s, Authenticated)
		}
	}
}

func TestCanEdit(t *testing.T) {
	yes, no := true, false
	me := &domain.User{ID: "7"}
	tests := []struct {
		name    string
		comment domain.Comment
		snap    Snapshot
		want    bool
	}{
		{"server says owner", domain.Comment{IsOwner: &yes, Author: domain.Author{ID: "9"}}, Snapshot{}, true},
		{"server says not owner despite id match", domain.Comment{IsOwner: &no, Author: domain.Author{ID: "7"}}, Snapshot{Token: "t", User: me}, false},
		{"derived owner", domain.Comment{Author: domain.Author{ID: "7"}}, Snapshot{Token: "t", User: me}, true},
		{"derived other author", domain.Comment{Author: domain.Author{ID: "8"}}, Snapshot{Token: "t", User: me}, false},
		{"derived anonymous session", domain.Comment{Author: domain.Author{ID: "7"}}, Snapshot{}, false},
		{"derived empty ids", domain.Comment{}, Snapshot{Token: "t", User: &domain.User{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanEdit(tt.comment, tt.snap); got != tt.want {
				t.Errorf("CanEdit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommentRoundTrip(t *testing.T) {
	m, srv := newTestSession(t, NewMemoryStore(""))
	srv.AddUser("ann@example.com", "secret", "Ann")
	listing := srv.SeedListing("https://www.avito.ru/bike", "Bike", 3)
	if _, err := m.Login(context.Background(), "ann@example.com", "secret"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	c := client.New(srv.URL, client.WithPathPrefix(apitest.Prefix), client.WithTokenSource(m))
	if _, err := c.CreateComment(context.Background(), listing.ID, "still available?"); err != nil {
		t.Fatalf("CreateComment() error: %v", err)
	}
	page, err := c.GetComments(context.Background(), listing.ID)
	if err != nil {
		t.Fatalf("GetComments() error: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Content != "still available?" {
		t.Fatalf("comments = %+v, want the new comment", page.Items)
	}
	if !CanEdit(page.Items[0], m.Snapshot()) {
		t.Error("CanEdit() = false for own comment")
	}
}

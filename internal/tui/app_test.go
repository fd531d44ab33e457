package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/avitolog/avitolog/internal/apitest"
	"github.com/avitolog/avitolog/internal/session"
	"github.com/avitolog/avitolog/pkg/client"
	"github.com/avitolog/avitolog/pkg/domain"
)

func newTestApp() App {
	a := NewApp(nil, nil)
	model, _ := a.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return model.(App)
}

func update(t *testing.T, a App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	model, cmd := a.Update(msg)
	return model.(App), cmd
}

func TestAppGlobalQuitOnQ(t *testing.T) {
	a := newTestApp()
	_, cmd := a.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("expected quit command on 'q', got nil")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestAppQWhileTypingDoesNotQuit(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, keyRunes("/"))
	a, cmd := update(t, a, keyRunes("q"))
	if cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			t.Fatal("q quit while typing a link")
		}
	}
	if got := a.home.input.Value(); got != "q" {
		t.Errorf("input = %q, want the typed key", got)
	}
}

func TestAppOpenListingAndBack(t *testing.T) {
	a := newTestApp()
	a, cmd := update(t, a, openListingMsg{id: "42"})
	if a.view != viewListing {
		t.Fatalf("view = %v, want listing", a.view)
	}
	if a.listing.id != "42" || cmd == nil {
		t.Errorf("listing not opened: id=%q cmd=%v", a.listing.id, cmd != nil)
	}

	a, _ = update(t, a, backMsg{})
	if a.view != viewHome {
		t.Errorf("view = %v, want home", a.view)
	}
}

func TestAppListingResultsRoutedWhileOnHome(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, openListingMsg{id: "42"})
	gen := a.listing.gen
	a, _ = update(t, a, backMsg{})

	a, _ = update(t, a, listingLoadedMsg{id: "42", gen: gen, listing: &domain.Listing{ID: "42", Title: "late"}})
	if a.view != viewHome {
		t.Error("a late result must not switch views")
	}
}

func TestAppRequireAuthOpensOverlay(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, requireAuthMsg{})
	if !a.authOpen {
		t.Fatal("expected auth overlay")
	}
	if !strings.Contains(a.View(), "Log in") {
		t.Errorf("overlay not rendered:\n%s", a.View())
	}

	// overlay captures keys: q types instead of quitting
	a, cmd := update(t, a, keyRunes("q"))
	if cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			t.Fatal("q quit while the overlay was open")
		}
	}

	a, _ = update(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	if a.authOpen {
		t.Error("expected overlay closed on esc")
	}
}

func TestAppLoginKeyOnlyWhenSignedOut(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, keyRunes("l"))
	if !a.authOpen {
		t.Fatal("l should open the overlay when signed out")
	}

	a = newTestApp()
	a, _ = update(t, a, SessionChanged(session.Snapshot{Token: "t", User: &domain.User{ID: "1", Email: "ann@example.com"}}))
	a, _ = update(t, a, keyRunes("l"))
	if a.authOpen {
		t.Error("l should do nothing when signed in")
	}
}

func TestAppHeaderFollowsSession(t *testing.T) {
	a := newTestApp()
	if !strings.Contains(a.View(), "not signed in") {
		t.Errorf("expected signed-out header:\n%s", a.View())
	}

	a, _ = update(t, a, SessionChanged(session.Snapshot{Token: "t", Loading: true}))
	if !strings.Contains(a.View(), "checking session") {
		t.Errorf("expected authenticating header:\n%s", a.View())
	}

	snap := session.Snapshot{Token: "t", User: &domain.User{ID: "1", Email: "ann@example.com"}}
	a, _ = update(t, a, SessionChanged(snap))
	if !strings.Contains(a.View(), "signed in as ann@example.com") {
		t.Errorf("expected user in header:\n%s", a.View())
	}
	if a.listing.snap.User == nil {
		t.Error("snapshot not passed to the listing view")
	}
}

func TestAppHelpOverlay(t *testing.T) {
	a := newTestApp()
	a, _ = update(t, a, keyRunes("h"))
	if !a.helpOpen || !strings.Contains(a.View(), "Commands") {
		t.Fatalf("help not shown:\n%s", a.View())
	}
	a, _ = update(t, a, tea.KeyMsg{Type: tea.KeyEsc})
	if a.helpOpen {
		t.Error("expected help closed")
	}
}

func TestAppShimmerTick(t *testing.T) {
	a := newTestApp()
	a, cmd := update(t, a, shimmerTickMsg{})
	if a.frame != 1 || cmd == nil {
		t.Errorf("frame = %d, cmd = %v", a.frame, cmd != nil)
	}
}

// TestAppLoginThroughOverlay drives the overlay against the fake backend and
// runs the commands it returns by hand.
func TestAppLoginThroughOverlay(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ann@example.com", "secret", "Ann")
	var m *session.Manager
	c := client.New(srv.URL,
		client.WithPathPrefix(apitest.Prefix),
		client.WithTokenSource(client.TokenFunc(func() string { return m.Token() })),
	)
	m = session.New(session.NewMemoryStore(""), c)
	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	model, _ := NewApp(c, m).Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	a := model.(App)
	a, _ = update(t, a, keyRunes("l"))
	a, _ = update(t, a, keyRunes("ann@example.com"))
	a, _ = update(t, a, tea.KeyMsg{Type: tea.KeyTab})
	a, _ = update(t, a, keyRunes("secret"))
	a, cmd := update(t, a, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected login command")
	}

	a, _ = update(t, a, cmd())
	if a.authOpen {
		t.Fatalf("overlay still open:\n%s", a.View())
	}
	if a.snap.State() != session.Authenticated {
		t.Fatalf("state = %v, want authenticated", a.snap.State())
	}
	if !strings.Contains(a.View(), "signed in as ann@example.com") {
		t.Errorf("header not updated:\n%s", a.View())
	}

	a, cmd = update(t, a, keyRunes("L"))
	if cmd == nil {
		t.Fatal("expected logout command")
	}
	a, _ = update(t, a, cmd())
	if a.snap.State() != session.Unauthenticated {
		t.Errorf("state after logout = %v", a.snap.State())
	}
}

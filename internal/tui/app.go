package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/avitolog/avitolog/internal/session"
	"github.com/avitolog/avitolog/pkg/client"
)

type view int

const (
	viewHome view = iota
	viewListing
)

// sessionMsg carries a session snapshot into the program.
type sessionMsg struct {
	snap session.Snapshot
}

// SessionChanged wraps a snapshot for tea.Program.Send. Pair it with
// session.Manager.Subscribe so the header follows logins, logouts and
// profile refreshes.
func SessionChanged(s session.Snapshot) tea.Msg {
	return sessionMsg{snap: s}
}

type bootstrapDoneMsg struct {
	err error
}

// App is the root Bubbletea model.
type App struct {
	client   *client.Client
	session  *session.Manager
	view     view
	home     homeModel
	listing  listingModel
	auth     authModel
	authOpen bool
	helpOpen bool
	snap     session.Snapshot
	status   string
	width    int
	height   int
	frame    int // logo shimmer animation frame
}

// NewApp creates the TUI. The session may be nil, in which case every
// action that needs a login opens an overlay that cannot succeed.
func NewApp(c *client.Client, s *session.Manager) App {
	a := App{
		client:  c,
		session: s,
		home:    newHomeModel(c),
		listing: newListingModel(c),
		auth:    newAuthModel(s),
	}
	if s != nil {
		a.snap = s.Snapshot()
		a.listing.snap = a.snap
	}
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.home.Init(), shimmerTickCmd(), a.bootstrap())
}

func (a App) bootstrap() tea.Cmd {
	s := a.session
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		return bootstrapDoneMsg{err: s.Bootstrap(context.Background())}
	}
}

func (a App) logout() tea.Cmd {
	s := a.session
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		s.Logout()
		return SessionChanged(s.Snapshot())
	}
}

func (a App) setSnapshot(snap session.Snapshot) App {
	a.snap = snap
	a.listing.snap = snap
	return a
}

func (a App) openAuth() (App, tea.Cmd) {
	a.authOpen = true
	a.auth = newAuthModel(a.session)
	return a, a.auth.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + help(1)
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 3}
		a.home, _ = a.home.Update(bodyMsg)
		a.listing, _ = a.listing.Update(bodyMsg)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case sessionMsg:
		return a.setSnapshot(msg.snap), nil

	case bootstrapDoneMsg:
		if msg.err != nil {
			a.status = "could not read the saved session: " + msg.err.Error()
		}
		if a.session != nil {
			a = a.setSnapshot(a.session.Snapshot())
		}
		return a, nil

	case openListingMsg:
		a.view = viewListing
		var cmd tea.Cmd
		a.listing, cmd = a.listing.open(msg.id)
		return a, cmd

	case backMsg:
		a.view = viewHome
		return a, a.home.load()

	case requireAuthMsg:
		return a.openAuth()

	case authDoneMsg:
		var cmd tea.Cmd
		a.auth, cmd = a.auth.Update(msg)
		if a.auth.closed {
			a.authOpen = false
		}
		if a.session != nil {
			a = a.setSnapshot(a.session.Snapshot())
		}
		return a, cmd

	case topLoadedMsg, ingestDoneMsg:
		var cmd tea.Cmd
		a.home, cmd = a.home.Update(msg)
		return a, cmd

	case listingLoadedMsg, commentsLoadedMsg, commentMutatedMsg, linkActionMsg:
		var cmd tea.Cmd
		a.listing, cmd = a.listing.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		// Auth overlay captures all keys when open
		if a.authOpen {
			var cmd tea.Cmd
			a.auth, cmd = a.auth.Update(msg)
			if a.auth.closed {
				a.authOpen = false
			}
			return a, cmd
		}

		if a.helpOpen {
			switch msg.String() {
			case "h", "?", "esc":
				a.helpOpen = false
			case "q":
				return a, tea.Quit
			}
			return a, nil
		}

		if !a.isEditing() {
			switch msg.String() {
			case "q":
				return a, tea.Quit
			case "h", "?":
				a.helpOpen = true
				return a, nil
			case "l":
				if a.snap.State() == session.Unauthenticated {
					return a.openAuth()
				}
				return a, nil
			case "L":
				if a.snap.State() != session.Unauthenticated {
					return a, a.logout()
				}
				return a, nil
			}
		}
	}

	if a.authOpen {
		var cmd tea.Cmd
		a.auth, cmd = a.auth.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	switch a.view {
	case viewHome:
		a.home, cmd = a.home.Update(msg)
	case viewListing:
		a.listing, cmd = a.listing.Update(msg)
	}
	return a, cmd
}

func (a App) isEditing() bool {
	switch a.view {
	case viewHome:
		return a.home.inputFocused
	case viewListing:
		return a.listing.editing()
	}
	return false
}

func centerLine(s string, width int) string {
	pad := (width - lipgloss.Width(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}

func (a App) userLine() string {
	switch a.snap.State() {
	case session.Authenticated:
		return metaStyle.Render("signed in as ") + accentStyle.Render(a.snap.User.DisplayName())
	case session.Authenticating:
		return metaStyle.Render("checking session...")
	default:
		return metaStyle.Render("not signed in")
	}
}

func (a App) View() string {
	header := centerLine(renderShimmerLogo(a.frame), a.width) + "\n" + centerLine(a.userLine(), a.width)

	var body, help string
	switch a.view {
	case viewHome:
		body = a.home.View()
		if a.home.inputFocused {
			help = helpBar("enter", "add", "esc", "cancel")
		} else {
			help = helpBar("/", "add link", "j/k", "nav", "enter", "open", "r", "reload")
		}
	case viewListing:
		body = a.listing.View()
		help = a.listing.helpKeys()
	}
	if !a.isEditing() {
		if a.snap.State() == session.Unauthenticated {
			help += "  " + helpEntry("l", "log in")
		} else {
			help += "  " + helpEntry("L", "log out")
		}
		help += "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
	}
	if a.status != "" {
		body = " " + errorStyle.Render(a.status) + "\n" + body
	}

	bodyHeight := a.height - 3
	if a.helpOpen {
		body = helpView()
		help = helpBar("esc", "close")
	}
	if a.authOpen {
		body = lipgloss.Place(a.width, max(bodyHeight, 0), lipgloss.Center, lipgloss.Center, a.auth.View())
		help = a.auth.helpKeys()
	}

	body = strings.TrimRight(truncateToHeight(body, bodyHeight), "\n")
	return header + "\n" + body + "\n" + help
}

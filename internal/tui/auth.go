package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/avitolog/avitolog/internal/session"
)

type authMode int

const (
	authLogin authMode = iota
	authRegister
)

const (
	fieldEmail = iota
	fieldPassword
	fieldName
)

type authDoneMsg struct {
	err error
}

// authModel is the login/register overlay.
type authModel struct {
	session *session.Manager
	mode    authMode
	fields  [3]textinput.Model
	focus   int
	pending bool
	err     string
	closed  bool
}

func newAuthModel(s *session.Manager) authModel {
	m := authModel{session: s}
	for i := range m.fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.Width = 36
		m.fields[i] = ti
	}
	m.fields[fieldEmail].Placeholder = "you@example.com"
	m.fields[fieldPassword].Placeholder = "password"
	m.fields[fieldPassword].EchoMode = textinput.EchoPassword
	m.fields[fieldPassword].EchoCharacter = '•'
	m.fields[fieldName].Placeholder = "how others see you"
	m.fields[fieldEmail].Focus()
	return m
}

func (m authModel) Init() tea.Cmd {
	return textinput.Blink
}

// visibleFields is the number of fields the current mode shows.
func (m authModel) visibleFields() int {
	if m.mode == authRegister {
		return 3
	}
	return 2
}

func (m authModel) setFocus(i int) (authModel, tea.Cmd) {
	n := m.visibleFields()
	m.focus = (i%n + n) % n
	var cmd tea.Cmd
	for j := range m.fields {
		if j == m.focus {
			cmd = m.fields[j].Focus()
		} else {
			m.fields[j].Blur()
		}
	}
	return m, cmd
}

func (m authModel) submit() (authModel, tea.Cmd) {
	if m.pending {
		return m, nil
	}
	email := strings.TrimSpace(m.fields[fieldEmail].Value())
	password := m.fields[fieldPassword].Value()
	name := strings.TrimSpace(m.fields[fieldName].Value())
	if email == "" || password == "" {
		m.err = "Email and password are required"
		return m, nil
	}
	m.pending = true
	m.err = ""

	s, mode := m.session, m.mode
	return m, func() tea.Msg {
		var err error
		if mode == authRegister {
			_, err = s.Register(context.Background(), email, password, name)
		} else {
			_, err = s.Login(context.Background(), email, password)
		}
		return authDoneMsg{err: err}
	}
}

func (m authModel) Update(msg tea.Msg) (authModel, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		m.pending = false
		if msg.err != nil {
			if m.mode == authRegister {
				m.err = errorText(msg.err, "Registration failed")
			} else {
				m.err = errorText(msg.err, "Login failed")
			}
			return m, nil
		}
		m.closed = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.closed = true
			return m, nil
		case "ctrl+r":
			if m.mode == authLogin {
				m.mode = authRegister
			} else {
				m.mode = authLogin
			}
			m.err = ""
			return m.setFocus(m.focus)
		case "tab", "down":
			return m.setFocus(m.focus + 1)
		case "shift+tab", "up":
			return m.setFocus(m.focus - 1)
		case "ctrl+s":
			return m.submit()
		case "enter":
			if m.focus < m.visibleFields()-1 {
				return m.setFocus(m.focus + 1)
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

func (m authModel) View() string {
	var sb strings.Builder

	login, register := dimStyle.Render("Log in"), dimStyle.Render("Register")
	if m.mode == authLogin {
		login = selectedStyle.Underline(true).Render("Log in")
	} else {
		register = selectedStyle.Underline(true).Render("Register")
	}
	sb.WriteString(login + "   " + register + "\n\n")

	labels := [3]string{"Email", "Password", "Name"}
	for i := 0; i < m.visibleFields(); i++ {
		label := dimStyle.Render(labels[i])
		if i == m.focus {
			label = accentStyle.Render(labels[i])
		}
		sb.WriteString(label + "\n" + m.fields[i].View() + "\n\n")
	}

	switch {
	case m.pending:
		sb.WriteString(dimStyle.Render("signing in..."))
	case m.err != "":
		sb.WriteString(errorStyle.Render(m.err))
	}
	return overlayStyle.Render(strings.TrimRight(sb.String(), "\n"))
}

func (m authModel) helpKeys() string {
	return helpBar("tab", "next", "ctrl+r", "log in / register", "enter", "submit", "esc", "close")
}

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/avitolog/avitolog/pkg/client"
	"github.com/avitolog/avitolog/pkg/domain"
)

type topLoadedMsg struct {
	items []domain.Listing
	total int
	err   error
}

type ingestDoneMsg struct {
	listing *domain.Listing
	err     error
}

// openListingMsg asks the shell to switch to the detail view of a listing.
type openListingMsg struct {
	id domain.ID
}

type homeModel struct {
	client       *client.Client
	input        textinput.Model
	inputFocused bool
	submitting   bool
	listings     []domain.Listing
	total        int
	cursor       int
	loading      bool
	err          string // ranked list
	formErr      string // URL form
	width        int
	height       int
}

func newHomeModel(c *client.Client) homeModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = inputPromptStyle
	ti.Placeholder = "paste a listing link, e.g. https://www.avito.ru/..."
	ti.CharLimit = 2048
	return homeModel{client: c, input: ti, loading: true}
}

func (m homeModel) Init() tea.Cmd {
	return m.load()
}

func (m homeModel) load() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		page, err := c.GetTopListings(context.Background(), client.TopListingsParams{
			Sort:  client.DefaultSort,
			Limit: topListingsLimit,
		})
		if err != nil {
			return topLoadedMsg{err: err}
		}
		return topLoadedMsg{items: page.Items, total: page.Total}
	}
}

func (m homeModel) ingest(rawURL string) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		env, err := c.IngestListing(context.Background(), rawURL)
		if err != nil {
			return ingestDoneMsg{err: err}
		}
		return ingestDoneMsg{listing: env.Listing}
	}
}

func openListing(id domain.ID) tea.Cmd {
	return func() tea.Msg { return openListingMsg{id: id} }
}

func (m homeModel) Update(msg tea.Msg) (homeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case topLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = errorText(msg.err, "Could not load listings")
			return m, nil
		}
		m.err = ""
		m.listings = msg.items
		m.total = msg.total
		if m.cursor >= len(m.listings) {
			m.cursor = max(len(m.listings)-1, 0)
		}
		return m, nil

	case ingestDoneMsg:
		m.submitting = false
		if msg.err != nil {
			m.formErr = errorText(msg.err, "Could not add the listing")
			return m, nil
		}
		if msg.listing == nil || msg.listing.ID.IsZero() {
			m.formErr = "The listing was accepted but no id came back"
			return m, m.load()
		}
		m.formErr = ""
		m.input.Reset()
		m.input.Blur()
		m.inputFocused = false
		return m, openListing(msg.listing.ID)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case tea.KeyMsg:
		if m.inputFocused {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "/", "i":
			m.inputFocused = true
			m.formErr = ""
			return m, m.input.Focus()
		case "j", "down":
			if m.cursor < len(m.listings)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "g":
			m.cursor = 0
		case "G":
			m.cursor = max(len(m.listings)-1, 0)
		case "r":
			m.loading = true
			return m, m.load()
		case "enter":
			if m.cursor < len(m.listings) {
				return m, openListing(m.listings[m.cursor].ID)
			}
		}
		return m, nil
	}

	if m.inputFocused {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m homeModel) updateInput(msg tea.KeyMsg) (homeModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inputFocused = false
		m.input.Blur()
		return m, nil
	case "enter":
		if m.submitting {
			return m, nil
		}
		rawURL := strings.TrimSpace(m.input.Value())
		if rawURL == "" {
			m.formErr = "Enter a listing link first"
			return m, nil
		}
		m.formErr = ""
		m.submitting = true
		return m, m.ingest(rawURL)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m homeModel) View() string {
	var sb strings.Builder

	if m.inputFocused || m.input.Value() != "" {
		sb.WriteString(" " + m.input.View() + "\n")
	} else {
		sb.WriteString(" " + inputPromptStyle.Render("> ") + dimStyle.Render("press / to add a listing by its link") + "\n")
	}
	switch {
	case m.submitting:
		sb.WriteString(" " + dimStyle.Render("adding listing...") + "\n")
	case m.formErr != "":
		sb.WriteString(" " + errorStyle.Render(m.formErr) + "\n")
	default:
		sb.WriteString("\n")
	}

	header := "Top listings"
	if m.total > len(m.listings) {
		header += fmt.Sprintf(" (%d of %d)", len(m.listings), m.total)
	}
	sb.WriteString(" " + sectionHeaderStyle.Render(header) + "\n")

	switch {
	case m.loading && len(m.listings) == 0:
		sb.WriteString(" " + dimStyle.Render("loading listings...") + "\n")
		return sb.String()
	case m.err != "":
		sb.WriteString(" " + errorStyle.Render(m.err) + "\n")
		return sb.String()
	case len(m.listings) == 0:
		sb.WriteString(" " + dimStyle.Render("no listings yet, add the first one") + "\n")
		return sb.String()
	}

	titleW := m.width - 20
	if titleW < 20 {
		titleW = 40
	}
	for i, l := range m.listings {
		marker := "  "
		style := normalStyle
		if i == m.cursor {
			marker = accentStyle.Render("▸ ")
			style = selectedStyle
		}
		views := viewsStyle.Render(fmt.Sprintf("%6d", l.ViewCount))
		sb.WriteString(" " + marker + views + metaStyle.Render(" views  ") + style.Render(truncStr(oneLine(l.DisplayTitle()), titleW)) + "\n")
	}
	return sb.String()
}

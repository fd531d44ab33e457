package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/avitolog/avitolog/internal/browser"
	"github.com/avitolog/avitolog/internal/session"
	"github.com/avitolog/avitolog/pkg/client"
	"github.com/avitolog/avitolog/pkg/domain"
)

type listingMode int

const (
	listingNormal listingMode = iota
	listingComposing
	listingEditing
	listingConfirmDelete
)

// Results carry the listing id and load generation they were requested for;
// anything that no longer matches the open listing is dropped.
type listingLoadedMsg struct {
	id      domain.ID
	gen     int
	listing *domain.Listing
	err     error
}

type commentsLoadedMsg struct {
	id       domain.ID
	gen      int
	comments []domain.Comment
	err      error
}

type commentMutatedMsg struct {
	id       domain.ID
	fallback string
	err      error
}

type linkActionMsg struct {
	done string
	err  error
}

// requireAuthMsg asks the shell to open the login overlay.
type requireAuthMsg struct{}

// backMsg asks the shell to return to the home view.
type backMsg struct{}

type listingModel struct {
	client      *client.Client
	snap        session.Snapshot
	id          domain.ID
	gen         int
	commentsGen int

	listing         *domain.Listing
	loading         bool
	notFound        bool
	err             string
	comments        []domain.Comment
	commentsLoading bool
	commentsErr     string
	cursor          int

	mode      listingMode
	input     textinput.Model
	editingID domain.ID
	pending   bool
	actionErr string
	notice    string

	width  int
	height int
}

func newListingModel(c *client.Client) listingModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = inputPromptStyle
	ti.CharLimit = maxCommentLen
	return listingModel{client: c, input: ti}
}

// open resets the view for listing id and starts loading it.
func (m listingModel) open(id domain.ID) (listingModel, tea.Cmd) {
	m.id = id
	m.gen++
	m.listing = nil
	m.notFound = false
	m.err = ""
	m.comments = nil
	m.commentsErr = ""
	m.cursor = 0
	m.actionErr = ""
	m.notice = ""
	m.pending = false
	m.resetInput()
	m.loading = true
	var loadComments tea.Cmd
	m, loadComments = m.reloadComments()
	return m, tea.Batch(m.loadListing(), loadComments)
}

func (m listingModel) loadListing() tea.Cmd {
	c, id, gen := m.client, m.id, m.gen
	return func() tea.Msg {
		env, err := c.GetListingByID(context.Background(), id)
		if err != nil {
			return listingLoadedMsg{id: id, gen: gen, err: err}
		}
		return listingLoadedMsg{id: id, gen: gen, listing: env.Listing}
	}
}

func (m listingModel) reloadComments() (listingModel, tea.Cmd) {
	m.commentsGen++
	m.commentsLoading = true
	c, id, gen := m.client, m.id, m.commentsGen
	return m, func() tea.Msg {
		page, err := c.GetComments(context.Background(), id)
		if err != nil {
			return commentsLoadedMsg{id: id, gen: gen, err: err}
		}
		return commentsLoadedMsg{id: id, gen: gen, comments: page.Items}
	}
}

func (m listingModel) createComment(content string) tea.Cmd {
	c, id := m.client, m.id
	return func() tea.Msg {
		_, err := c.CreateComment(context.Background(), id, content)
		return commentMutatedMsg{id: id, fallback: "Could not post the comment", err: err}
	}
}

func (m listingModel) updateComment(commentID domain.ID, content string) tea.Cmd {
	c, id := m.client, m.id
	return func() tea.Msg {
		_, err := c.UpdateComment(context.Background(), commentID, content)
		return commentMutatedMsg{id: id, fallback: "Could not update the comment", err: err}
	}
}

func (m listingModel) deleteComment(commentID domain.ID) tea.Cmd {
	c, id := m.client, m.id
	return func() tea.Msg {
		err := c.DeleteComment(context.Background(), commentID)
		return commentMutatedMsg{id: id, fallback: "Could not delete the comment", err: err}
	}
}

func (m *listingModel) resetInput() {
	m.mode = listingNormal
	m.editingID = ""
	m.input.Reset()
	m.input.Blur()
}

// editing reports whether keystrokes belong to the comment input.
func (m listingModel) editing() bool {
	return m.mode == listingComposing || m.mode == listingEditing
}

func (m listingModel) selected() (domain.Comment, bool) {
	if m.cursor < 0 || m.cursor >= len(m.comments) {
		return domain.Comment{}, false
	}
	return m.comments[m.cursor], true
}

func (m listingModel) Update(msg tea.Msg) (listingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case listingLoadedMsg:
		if msg.id != m.id || msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		switch {
		case client.IsStatus(msg.err, 404):
			m.notFound = true
		case msg.err != nil:
			m.err = errorText(msg.err, "Could not load the listing")
		case msg.listing == nil:
			m.notFound = true
		default:
			m.listing = msg.listing
		}
		return m, nil

	case commentsLoadedMsg:
		if msg.id != m.id || msg.gen != m.commentsGen {
			return m, nil
		}
		m.commentsLoading = false
		if msg.err != nil {
			m.commentsErr = errorText(msg.err, "Could not load comments")
			return m, nil
		}
		m.commentsErr = ""
		m.comments = msg.comments
		if m.cursor >= len(m.comments) {
			m.cursor = max(len(m.comments)-1, 0)
		}
		return m, nil

	case commentMutatedMsg:
		if msg.id != m.id {
			return m, nil
		}
		m.pending = false
		if msg.err != nil {
			m.actionErr = errorText(msg.err, msg.fallback)
			return m, nil
		}
		m.actionErr = ""
		m.resetInput()
		return m.reloadComments()

	case linkActionMsg:
		if msg.err != nil {
			m.actionErr = msg.err.Error()
		} else {
			m.actionErr = ""
			m.notice = msg.done
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case listingComposing, listingEditing:
			return m.updateInput(msg)
		case listingConfirmDelete:
			return m.updateConfirm(msg)
		}
		return m.updateNormal(msg)
	}

	if m.editing() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m listingModel) updateNormal(msg tea.KeyMsg) (listingModel, tea.Cmd) {
	m.notice = ""
	switch msg.String() {
	case "esc", "backspace":
		return m, func() tea.Msg { return backMsg{} }
	case "j", "down":
		if m.cursor < len(m.comments)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "r":
		return m.open(m.id)
	case "a":
		if m.snap.State() != session.Authenticated {
			return m, func() tea.Msg { return requireAuthMsg{} }
		}
		m.mode = listingComposing
		m.actionErr = ""
		m.input.Placeholder = "write a comment..."
		m.input.Reset()
		return m, m.input.Focus()
	case "e":
		c, ok := m.selected()
		if !ok || !session.CanEdit(c, m.snap) {
			return m, nil
		}
		m.mode = listingEditing
		m.editingID = c.ID
		m.actionErr = ""
		m.input.Placeholder = ""
		m.input.SetValue(c.Content)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case "d":
		c, ok := m.selected()
		if !ok || !session.CanEdit(c, m.snap) {
			return m, nil
		}
		m.mode = listingConfirmDelete
		m.editingID = c.ID
		m.actionErr = ""
	case "o":
		if m.listing == nil {
			return m, nil
		}
		u := m.listing.URL
		return m, func() tea.Msg {
			return linkActionMsg{done: "opened in browser", err: browser.Open(u)}
		}
	case "c":
		if m.listing == nil {
			return m, nil
		}
		u := m.listing.URL
		return m, func() tea.Msg {
			return linkActionMsg{done: "link copied", err: clipboard.WriteAll(u)}
		}
	}
	return m, nil
}

func (m listingModel) updateInput(msg tea.KeyMsg) (listingModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.resetInput()
		return m, nil
	case "enter":
		if m.pending {
			return m, nil
		}
		content := strings.TrimSpace(m.input.Value())
		if content == "" {
			m.actionErr = "Comment cannot be empty"
			return m, nil
		}
		m.pending = true
		m.actionErr = ""
		if m.mode == listingEditing {
			return m, m.updateComment(m.editingID, content)
		}
		return m, m.createComment(content)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m listingModel) updateConfirm(msg tea.KeyMsg) (listingModel, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if m.pending {
			return m, nil
		}
		m.pending = true
		return m, m.deleteComment(m.editingID)
	case "n", "N", "esc":
		m.resetInput()
	}
	return m, nil
}

func (m listingModel) View() string {
	switch {
	case m.loading && m.listing == nil:
		return " " + dimStyle.Render("loading listing...")
	case m.notFound:
		return " " + errorStyle.Render("listing not found") + "\n " + dimStyle.Render("esc to go back")
	case m.err != "":
		return " " + errorStyle.Render(m.err) + "\n " + dimStyle.Render("r to retry, esc to go back")
	case m.listing == nil:
		return ""
	}

	var sb strings.Builder
	l := m.listing
	wrapW := max(m.width-4, 20)

	sb.WriteString(" " + titleStyle.Width(wrapW).Render(l.DisplayTitle()) + "\n")
	sb.WriteString(" " + urlStyle.Render(l.URL) + "\n")
	meta := viewsStyle.Render(fmt.Sprintf("%d views", l.ViewCount))
	if !l.CreatedAt.IsZero() {
		meta += metaStyle.Render(" · added " + formatTime(l.CreatedAt.Time))
	}
	sb.WriteString(" " + meta + "\n")
	if l.ImageURL != "" {
		sb.WriteString(" " + metaStyle.Render("image: "+truncStr(l.ImageURL, wrapW-7)) + "\n")
	}
	sb.WriteString("\n")

	header := "Comments"
	if len(m.comments) > 0 {
		header += fmt.Sprintf(" (%d)", len(m.comments))
	}
	sb.WriteString(" " + sectionHeaderStyle.Render(header) + "\n")

	switch {
	case m.commentsLoading && len(m.comments) == 0:
		sb.WriteString(" " + dimStyle.Render("loading comments...") + "\n")
	case m.commentsErr != "":
		sb.WriteString(" " + errorStyle.Render(m.commentsErr) + "\n")
	case len(m.comments) == 0:
		sb.WriteString(" " + dimStyle.Render("no comments yet") + "\n")
	}

	for i, c := range m.comments {
		marker := "  "
		nameStyle := normalStyle
		if i == m.cursor {
			marker = accentStyle.Render("▸ ")
			nameStyle = selectedStyle
		}
		line := " " + marker + nameStyle.Render(c.Author.DisplayName())
		if session.CanEdit(c, m.snap) {
			line += " " + ownerStyle.Render("(you)")
		}
		if ts := formatTime(c.CreatedAt.Time); ts != "" {
			line += "  " + commentTimeStyle.Render(ts)
		}
		if c.UpdatedAt.Sub(c.CreatedAt.Time) > time.Second {
			line += commentTimeStyle.Render(" · edited")
		}
		sb.WriteString(line + "\n")
		for _, text := range strings.Split(commentTextStyle.Width(wrapW-4).Render(c.Content), "\n") {
			sb.WriteString("     " + text + "\n")
		}
	}

	sb.WriteString("\n")
	switch m.mode {
	case listingComposing, listingEditing:
		sb.WriteString(" " + m.input.View() + "\n")
	case listingConfirmDelete:
		sb.WriteString(" " + errorStyle.Render("Delete this comment?") + " " + helpEntry("y", "yes") + "  " + helpEntry("n", "no") + "\n")
	}
	switch {
	case m.pending:
		sb.WriteString(" " + dimStyle.Render("saving...") + "\n")
	case m.actionErr != "":
		sb.WriteString(" " + errorStyle.Render(m.actionErr) + "\n")
	case m.notice != "":
		sb.WriteString(" " + okStyle.Render(m.notice) + "\n")
	}
	return sb.String()
}

// helpKeys returns the help bar for the current mode.
func (m listingModel) helpKeys() string {
	switch m.mode {
	case listingComposing, listingEditing:
		return helpBar("enter", "send", "esc", "cancel")
	case listingConfirmDelete:
		return helpBar("y", "delete", "n", "keep")
	}
	pairs := []string{"j/k", "nav", "a", "comment"}
	if c, ok := m.selected(); ok && session.CanEdit(c, m.snap) {
		pairs = append(pairs, "e", "edit", "d", "delete")
	}
	pairs = append(pairs, "o", "open", "c", "copy link", "r", "reload", "esc", "back")
	return helpBar(pairs...)
}

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragstore/internal/auth"
	"ragstore/internal/domain"
	"ragstore/internal/service"
)

const pageSize = 10

// Ingestor is the TUI-facing subset of the ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, rawText, userID string) ([]service.ChunkResult, error)
}

// Retriever is the TUI-facing subset of the retrieval service.
type Retriever interface {
	QuerySimilar(ctx context.Context, queryText, userID string, topK int) ([]domain.Match, error)
	ListAll(ctx context.Context, userID string) ([]domain.Match, error)
	DeleteSelected(ctx context.Context, ids []string, userID string) error
	Stats(ctx context.Context, userID string) (service.Stats, error)
}

// Authenticator is the TUI-facing subset of the credential store.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (auth.User, error)
	AddUser(ctx context.Context, username, password string) (auth.User, error)
}

type screen int

const (
	screenLogin screen = iota
	screenMenu
	screenIngest
	screenSearch
	screenManage
)

var menuItems = []string{"Ingest text", "Search", "Manage records", "Quit"}

// Model is the Bubble Tea model for the management front end. All domain
// state lives behind the services; the model only tracks widgets, the
// current page and the current selection.
type Model struct {
	ingestor  Ingestor
	retriever Retriever
	users     Authenticator
	topK      int

	scr      screen
	user     auth.User
	status   string
	register bool

	username textinput.Model
	password textinput.Model
	pwFocus  bool

	menuCursor int

	editor textarea.Model

	query   textinput.Model
	results viewport.Model
	ready   bool

	records  []domain.Match
	page     int
	cursor   int
	selected map[string]struct{}
	stats    service.Stats
}

// New creates the TUI model.
func New(ingestor Ingestor, retriever Retriever, users Authenticator, topK int) Model {
	username := textinput.New()
	username.Prompt = "Username: "
	username.Focus()
	password := textinput.New()
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword

	editor := textarea.New()
	editor.Placeholder = "Paste or type text to embed and store..."

	query := textinput.New()
	query.Prompt = "> "
	query.Placeholder = "Type query and press Enter"

	if topK <= 0 {
		topK = 5
	}
	return Model{
		ingestor:  ingestor,
		retriever: retriever,
		users:     users,
		topK:      topK,
		username:  username,
		password:  password,
		editor:    editor,
		query:     query,
		results:   viewport.New(0, 0),
		selected:  make(map[string]struct{}),
		status:    "Log in, or press ctrl+r to register.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.results.Width = max(20, msg.Width-4)
		m.results.Height = max(3, msg.Height-8)
		m.editor.SetWidth(max(20, msg.Width-4))
		m.editor.SetHeight(max(3, msg.Height-8))
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.scr {
		case screenLogin:
			return m.updateLogin(msg)
		case screenMenu:
			return m.updateMenu(msg)
		case screenIngest:
			return m.updateIngest(msg)
		case screenSearch:
			return m.updateSearch(msg)
		case screenManage:
			return m.updateManage(msg)
		}
	}
	return m, nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.pwFocus = !m.pwFocus
		if m.pwFocus {
			m.username.Blur()
			m.password.Focus()
		} else {
			m.password.Blur()
			m.username.Focus()
		}
		return m, nil
	case "ctrl+r":
		m.register = !m.register
		if m.register {
			m.status = "Registering: enter a new username and password."
		} else {
			m.status = "Log in, or press ctrl+r to register."
		}
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.username.Value())
		pass := m.password.Value()
		if name == "" || pass == "" {
			m.status = "Username and password are required."
			return m, nil
		}
		ctx := context.Background()
		var (
			user auth.User
			err  error
		)
		if m.register {
			user, err = m.users.AddUser(ctx, name, pass)
		} else {
			user, err = m.users.Authenticate(ctx, name, pass)
		}
		if err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.user = user
		m.scr = screenMenu
		m.status = fmt.Sprintf("Logged in as %s.", user.Username)
		return m, nil
	}
	var cmd tea.Cmd
	if m.pwFocus {
		m.password, cmd = m.password.Update(msg)
	} else {
		m.username, cmd = m.username.Update(msg)
	}
	return m, cmd
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case "down", "j":
		if m.menuCursor < len(menuItems)-1 {
			m.menuCursor++
		}
	case "enter":
		switch m.menuCursor {
		case 0:
			m.scr = screenIngest
			m.editor.Reset()
			m.editor.Focus()
			m.status = "Enter text; ctrl+s stores it, esc goes back."
		case 1:
			m.scr = screenSearch
			m.query.Reset()
			m.query.Focus()
			m.status = "Type a query and press Enter; esc goes back."
		case 2:
			m.reloadRecords()
			m.scr = screenManage
		case 3:
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) updateIngest(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.scr = screenMenu
		return m, nil
	case "ctrl+s":
		text := strings.TrimSpace(m.editor.Value())
		if text == "" {
			m.status = "Nothing to store."
			return m, nil
		}
		results, err := m.ingestor.Ingest(context.Background(), text, m.user.ID)
		if err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		stored, failed := 0, 0
		for _, r := range results {
			if r.Status == service.StatusStored {
				stored++
			} else {
				failed++
			}
		}
		m.status = fmt.Sprintf("Stored %d chunks (%d failed).", stored, failed)
		m.editor.Reset()
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.scr = screenMenu
		return m, nil
	case "enter":
		q := strings.TrimSpace(m.query.Value())
		if q == "" {
			return m, nil
		}
		matches, err := m.retriever.QuerySimilar(context.Background(), q, m.user.ID, m.topK)
		if err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("%d results for %q", len(matches), q)
		m.results.SetContent(renderMatches(matches))
		return m, nil
	}
	var cmd tea.Cmd
	m.query, cmd = m.query.Update(msg)
	return m, cmd
}

func (m Model) updateManage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.scr = screenMenu
		return m, nil
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.pageRecords())-1 {
			m.cursor++
		}
	case "left", "h":
		if m.page > 0 {
			m.page--
			m.cursor = 0
		}
	case "right", "l":
		if (m.page+1)*pageSize < len(m.records) {
			m.page++
			m.cursor = 0
		}
	case " ":
		page := m.pageRecords()
		if m.cursor < len(page) {
			id := page[m.cursor].ID
			if _, ok := m.selected[id]; ok {
				delete(m.selected, id)
			} else {
				m.selected[id] = struct{}{}
			}
		}
	case "d":
		if len(m.selected) == 0 {
			m.status = "Nothing selected."
			return m, nil
		}
		ids := make([]string, 0, len(m.selected))
		for id := range m.selected {
			ids = append(ids, id)
		}
		if err := m.retriever.DeleteSelected(context.Background(), ids, m.user.ID); err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Deleted %d records.", len(ids))
		m.reloadRecords()
	}
	return m, nil
}

func (m *Model) reloadRecords() {
	ctx := context.Background()
	records, err := m.retriever.ListAll(ctx, m.user.ID)
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	stats, err := m.retriever.Stats(ctx, m.user.ID)
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	m.records = records
	m.stats = stats
	m.page = 0
	m.cursor = 0
	m.selected = make(map[string]struct{})
	m.status = fmt.Sprintf("%d documents, %d chunks stored.", stats.TotalDocuments, stats.TotalChunks)
}

func (m Model) pageRecords() []domain.Match {
	lo := m.page * pageSize
	if lo >= len(m.records) {
		return nil
	}
	hi := lo + pageSize
	if hi > len(m.records) {
		hi = len(m.records)
	}
	return m.records[lo:hi]
}

// View renders the current screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("ragstore")
	status := statusStyle.Render(m.status)
	var body string
	switch m.scr {
	case screenLogin:
		mode := "Login"
		if m.register {
			mode = "Register"
		}
		body = boxStyle.Render(mode + "\n\n" + m.username.View() + "\n" + m.password.View())
	case screenMenu:
		var b strings.Builder
		for i, item := range menuItems {
			cursor := "  "
			if i == m.menuCursor {
				cursor = "> "
			}
			b.WriteString(cursor + item + "\n")
		}
		body = boxStyle.Render(b.String())
	case screenIngest:
		body = boxStyle.Render(m.editor.View())
	case screenSearch:
		body = boxStyle.Render(m.results.View()) + "\n" + boxStyle.Render(m.query.View())
	case screenManage:
		body = boxStyle.Render(m.renderRecordPage())
	}
	return header + "\n" + body + "\n" + status
}

func (m Model) renderRecordPage() string {
	page := m.pageRecords()
	if len(page) == 0 {
		return "No records stored."
	}
	var b strings.Builder
	totalPages := (len(m.records) + pageSize - 1) / pageSize
	fmt.Fprintf(&b, "Page %d/%d  (space selects, d deletes, ←/→ pages)\n\n", m.page+1, totalPages)
	for i, rec := range page {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		mark := "[ ]"
		if _, ok := m.selected[rec.ID]; ok {
			mark = "[x]"
		}
		text := rec.Metadata[domain.MetaText]
		if len(text) > 60 {
			text = text[:60] + "..."
		}
		line := fmt.Sprintf("%s%s %s  %s", cursor, mark, rec.ID, text)
		if i == m.cursor {
			line = highlightStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func renderMatches(matches []domain.Match) string {
	if len(matches) == 0 {
		return "No similar entries found."
	}
	var b strings.Builder
	for i, match := range matches {
		fmt.Fprintf(&b, "%d. score=%.4f\n%s\n\n", i+1, match.Score, match.Metadata[domain.MetaText])
	}
	return b.String()
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

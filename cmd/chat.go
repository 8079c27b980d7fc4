package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/petcli/petcli/internal/config"
	"github.com/petcli/petcli/internal/engine"
	"github.com/petcli/petcli/internal/history"
	"github.com/petcli/petcli/internal/pet"
	"github.com/petcli/petcli/internal/provider"
	"github.com/petcli/petcli/internal/scrollback"
)

const pageLines = 5

var (
	sUser   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	sText   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	sFaint  = lipgloss.NewStyle().Faint(true)
	sDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sInput  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("4"))
	sChat   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
	sMargin = lipgloss.NewStyle().Margin(1, 1)
)

// moodColor mirrors the fallback mood bands.
func moodColor(mood float64) lipgloss.Color {
	switch {
	case mood > 0.8:
		return lipgloss.Color("10")
	case mood > 0.4:
		return lipgloss.Color("11")
	default:
		return lipgloss.Color("9")
	}
}

type keyMap struct {
	Submit   key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Up:       key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "scroll up")),
	Down:     key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "scroll down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	Quit:     key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
}

type tickMsg time.Time

// replyMsg carries the result of the single outstanding generate call.
type replyMsg struct {
	turn  *engine.Turn
	reply string
	err   error
}

func tick() tea.Cmd {
	return tea.Tick(engine.TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func runTurn(t *engine.Turn) tea.Cmd {
	return func() tea.Msg {
		reply, err := t.Run(context.Background())
		return replyMsg{turn: t, reply: reply, err: err}
	}
}

// --- model ---

type model struct {
	eng      *engine.Engine
	cfg      *config.Config
	input    textinput.Model
	spinner  spinner.Model
	chat     viewport.Model
	renderer *glamour.TermRenderer
	md       *mdCache
	width    int
	height   int
}

// mdCache keeps glamour output per assistant text for the current wrap width.
type mdCache struct {
	out map[string]string
}

func (c *mdCache) reset() { c.out = make(map[string]string) }

func initialModel(eng *engine.Engine, cfg *config.Config) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Say something, $cmd to share a command, /help for commands"
	ti.Focus()
	ti.CharLimit = 0
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		eng: eng, cfg: cfg,
		input: ti, spinner: sp,
		chat: viewport.New(80, 10),
		md:   &mdCache{},
	}
	m.md.reset()
	if cfg.Markdown() {
		m.renderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.input.Cursor.SetMode(cursor.CursorStatic),
		m.spinner.Tick,
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tickMsg:
		m.eng.Tick(time.Time(msg))
		return m, tick()

	case replyMsg:
		if _, err := m.eng.Complete(msg.turn, msg.reply, msg.err); err != nil {
			logger.Error("complete turn", zap.Error(err))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			_ = m.eng.Flush()
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.eng.Scroll().ScrollUp()
			return m, nil
		case key.Matches(msg, keys.Down):
			m.eng.Scroll().ScrollDown()
			return m, nil
		case key.Matches(msg, keys.PageUp):
			m.eng.Scroll().PageUp(pageLines)
			return m, nil
		case key.Matches(msg, keys.PageDown):
			m.eng.Scroll().PageDown(pageLines)
			return m, nil
		}
		// input is held while a reply is outstanding
		if m.eng.Busy() {
			return m, nil
		}
		if key.Matches(msg, keys.Submit) {
			line := m.input.Value()
			m.input.Reset()
			out, err := m.eng.Submit(line)
			if errors.Is(err, engine.ErrBusy) {
				return m, nil
			}
			if out.Quit {
				return m, tea.Quit
			}
			if out.Turn != nil {
				return m, runTurn(out.Turn)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) header() string {
	st := m.eng.State()
	color := moodColor(st.Mood)
	title := fmt.Sprintf(" %s (Mood: %.0f%%) ", st.Name, st.Mood*100)
	art := strings.Trim(m.cfg.PetASCII, "\n")
	w := m.contentWidth()
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Foreground(color).
		Width(w).
		Align(lipgloss.Center)
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(runewidth.Truncate(title, w, "…")) + "\n" + box.Render(art)
}

func (m *model) contentWidth() int {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m *model) layout() {
	w := m.contentWidth()
	headerH := lipgloss.Height(m.header())
	// input box (3) + status (1) + chat border (2) + outer margin (2)
	h := m.height - headerH - 3 - 1 - 2 - 2
	if h < 3 {
		h = 3
	}
	m.chat.Width = w - 2
	m.chat.Height = h
	m.input.Width = w - 4
	if m.renderer != nil {
		m.renderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(w-8))
		m.md.reset()
	}
}

func (m *model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	if r, ok := m.md.out[text]; ok {
		return r
	}
	r, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	r = strings.Trim(r, "\n")
	if len(m.md.out) >= 2*scrollback.Capacity {
		m.md.reset()
	}
	m.md.out[text] = r
	return r
}

// renderLines lays out the scrollback the same way scrollback.Line.Height
// counts it: one row per text line, plus a spacer after non-user entries.
// Markdown can change an entry's row count, so the rows used by each entry
// are returned alongside the content.
func (m *model) renderLines(lines []scrollback.Line) (string, []int) {
	name := m.eng.State().Name
	color := moodColor(m.eng.State().Mood)
	sPet := lipgloss.NewStyle().Foreground(color).Bold(true)

	var out []string
	rows := make([]int, len(lines))
	for n, l := range lines {
		start := len(out)
		var prefix string
		text := l.Text
		switch l.Role {
		case scrollback.RoleUser:
			prefix = sUser.Render("You:")
		case scrollback.RoleAssistant:
			prefix = sPet.Render(name + ":")
			text = m.markdown(text)
		}
		for i, row := range strings.Split(text, "\n") {
			switch {
			case l.Role == scrollback.RoleSystem:
				out = append(out, sFaint.Render(row))
			case i == 0:
				out = append(out, prefix+" "+sText.Render(row))
			default:
				out = append(out, strings.Repeat(" ", lipgloss.Width(prefix)+1)+sText.Render(row))
			}
		}
		if l.Role != scrollback.RoleUser {
			out = append(out, "")
		}
		rows[n] = len(out) - start
	}
	return strings.Join(out, "\n"), rows
}

// cursorRow converts a scrollback cursor, counted in logical lines, to a
// rendered row. Inside an entry the cursor is spread evenly over the rows
// that entry actually rendered to.
func cursorRow(lines []scrollback.Line, rows []int, cursor int) int {
	logical, row := 0, 0
	for i, l := range lines {
		h := l.Height()
		if cursor <= logical+h {
			return row + (cursor-logical)*rows[i]/h
		}
		logical += h
		row += rows[i]
	}
	return row
}

// syncViewport loads the scrollback into the viewport and places the cursor
// on the last visible row.
func (m *model) syncViewport() {
	sb := m.eng.Scroll()
	lines := sb.Lines()
	content, rows := m.renderLines(lines)
	m.chat.SetContent(content)
	if sb.AtBottom() {
		m.chat.GotoBottom()
		return
	}
	off := cursorRow(lines, rows, sb.Cursor()) - m.chat.Height
	if off < 0 {
		off = 0
	}
	m.chat.SetYOffset(off)
}

func (m model) status() string {
	if m.eng.Busy() {
		return m.spinner.View() + sFaint.Render(" thinking...")
	}
	hint := fmt.Sprintf("%s │ /help commands │ ↑↓ PgUp/PgDn scroll │ esc quit", m.eng.GatewayName())
	return sDim.Render(runewidth.Truncate(hint, m.contentWidth(), "…"))
}

func (m model) View() string {
	m.syncViewport()

	return sMargin.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		sChat.Render(m.chat.View()),
		sInput.Width(m.contentWidth()).Render(m.input.View()),
		m.status(),
	))
}

// --- entry ---

func runChat() error {
	ensureColorTerm()
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("config recovered with defaults", zap.Error(err))
	}
	if providerOverride != "" {
		cfg.LLMProvider = providerOverride
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	apiKey, err := config.ResolveCredential(cfg.LLMProvider)
	if err != nil {
		return err
	}
	gw, err := provider.New(cfg, apiKey, logger.Sugar().Debugf)
	if err != nil {
		return err
	}

	store, err := pet.Open(config.Dir(), cfg.PetName)
	if err != nil {
		logger.Warn("state load failed, using defaults", zap.Error(err))
	}
	home, _ := os.UserHomeDir()
	eng := engine.New(engine.Options{
		Store:        store,
		Gateway:      gw,
		ShellHistory: history.LoadShell(home, cfg.CommandHistoryLimit),
		Logger:       logger,
	})
	logger.Info("session start",
		zap.String("provider", gw.Name()),
		zap.String("pet", store.Name()),
		zap.Int("history", store.HistoryLen()))

	p := tea.NewProgram(initialModel(eng, cfg), tea.WithAltScreen())
	_, err = p.Run()
	if ferr := eng.Flush(); ferr != nil && err == nil {
		logger.Error("final save", zap.Error(ferr))
	}
	return err
}

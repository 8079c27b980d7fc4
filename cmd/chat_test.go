package cmd

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petcli/petcli/internal/config"
	"github.com/petcli/petcli/internal/engine"
	"github.com/petcli/petcli/internal/pet"
	"github.com/petcli/petcli/internal/provider"
	"github.com/petcli/petcli/internal/scrollback"
)

type stubGateway struct {
	provider.Context
	reply string
}

func (s *stubGateway) Name() string                                      { return "stub" }
func (s *stubGateway) FormatPrompt(input string, _ []string) string      { return input }
func (s *stubGateway) Generate(context.Context, string) (string, error) { return s.reply, nil }

func newTestModel(t *testing.T) model {
	t.Helper()
	return newModelWith(t, false, nil)
}

func newModelWith(t *testing.T, markdown bool, seed func(*pet.Store)) model {
	t.Helper()
	logger = zap.NewNop()
	store, err := pet.Open(t.TempDir(), "Whiskers")
	require.NoError(t, err)
	if seed != nil {
		seed(store)
	}
	eng := engine.New(engine.Options{Store: store, Gateway: &stubGateway{reply: "purr"}})
	cfg := config.Default()
	cfg.RenderMarkdown = &markdown
	m := initialModel(eng, cfg)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	return updated.(model)
}

// seedLongReplies stores n exchanges whose replies wrap over several rows.
func seedLongReplies(n int) func(*pet.Store) {
	return func(s *pet.Store) {
		for i := 0; i < n; i++ {
			reply := fmt.Sprintf("Reply %d: ", i) + strings.Repeat("the cat stretches and yawns at the keyboard ", 8)
			_ = s.RecordExchange(fmt.Sprintf("message %d", i), reply, 0)
		}
	}
}

func typeLine(m model, s string) model {
	for _, r := range s {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = updated.(model)
	}
	return m
}

func TestEnterRunsTurnAndCompletes(t *testing.T) {
	m := typeLine(newTestModel(t), "hello")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(model)
	require.NotNil(t, cmd)
	assert.True(t, m.eng.Busy())
	assert.Empty(t, m.input.Value())

	msg := cmd()
	reply, ok := msg.(replyMsg)
	require.True(t, ok)
	assert.Equal(t, "purr", reply.reply)

	updated, _ = m.Update(reply)
	m = updated.(model)
	assert.False(t, m.eng.Busy())
	assert.Equal(t, 1, len(m.eng.State().ChatHistory))
	assert.Contains(t, m.View(), "purr")
}

func TestTypingHeldWhileBusy(t *testing.T) {
	m := typeLine(newTestModel(t), "hello")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = typeLine(updated.(model), "more")
	assert.Empty(t, m.input.Value())
}

func TestExitCommandQuits(t *testing.T) {
	m := typeLine(newTestModel(t), "/exit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestScrollKeysMoveCursor(t *testing.T) {
	m := newTestModel(t)
	bottom := m.eng.Scroll().Cursor()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(model)
	assert.Equal(t, bottom-1, m.eng.Scroll().Cursor())
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	m = updated.(model)
	assert.Equal(t, bottom, m.eng.Scroll().Cursor())
}

func TestViewShowsMoodAndName(t *testing.T) {
	view := newTestModel(t).View()
	assert.Contains(t, view, "Whiskers (Mood: 80%)")
	assert.True(t, strings.Contains(view, engine.Welcome))
}

func TestMarkdownScrollStepsAreSmall(t *testing.T) {
	m := newModelWith(t, true, seedLongReplies(50))
	sb := m.eng.Scroll()

	m.syncViewport()
	bottom := m.chat.YOffset
	require.Greater(t, m.chat.TotalLineCount(), sb.TotalLines())

	sb.ScrollUp()
	m.syncViewport()
	step := bottom - m.chat.YOffset
	assert.Greater(t, step, 0)
	assert.LessOrEqual(t, step, 8)
}

func TestMarkdownScrollReachesEveryRow(t *testing.T) {
	m := newModelWith(t, true, seedLongReplies(50))
	sb := m.eng.Scroll()
	for sb.Cursor() > 0 {
		sb.ScrollUp()
	}

	m.syncViewport()
	prev := m.chat.YOffset
	assert.Equal(t, 0, prev)
	for !sb.AtBottom() {
		sb.ScrollDown()
		m.syncViewport()
		off := m.chat.YOffset
		assert.GreaterOrEqual(t, off, prev)
		assert.LessOrEqual(t, off-prev, m.chat.Height, "rows skipped between %d and %d", prev, off)
		prev = off
	}
	assert.True(t, m.chat.AtBottom())
}

func TestCursorRowSpreadsOverRenderedRows(t *testing.T) {
	lines := []scrollback.Line{
		{Role: scrollback.RoleUser, Text: "hi"},
		{Role: scrollback.RoleAssistant, Text: "hello"},
	}
	rows := []int{1, 9}

	assert.Equal(t, 0, cursorRow(lines, rows, 0))
	assert.Equal(t, 1, cursorRow(lines, rows, 1))
	assert.Equal(t, 5, cursorRow(lines, rows, 2))
	assert.Equal(t, 10, cursorRow(lines, rows, 3))
}

func TestMarkdownRenderedOncePerReply(t *testing.T) {
	m := newModelWith(t, true, seedLongReplies(3))
	m.syncViewport()
	require.Len(t, m.md.out, 3)

	reply := m.eng.State().ChatHistory[2].Response
	m.md.out[reply] = "cached-render"
	m.syncViewport()
	assert.Contains(t, m.chat.View(), "cached-render")

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(model)
	assert.Empty(t, m.md.out)
}

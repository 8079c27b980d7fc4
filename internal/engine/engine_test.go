package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/petcli/petcli/internal/command"
	"github.com/petcli/petcli/internal/pet"
	"github.com/petcli/petcli/internal/provider"
	"github.com/petcli/petcli/internal/scrollback"
)

type fakeGateway struct {
	provider.Context
	reply   string
	err     error
	prompts []string
	block   chan struct{}
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) FormatPrompt(input string, commands []string) string {
	return fmt.Sprintf("%v|%s", commands, input)
}

func (f *fakeGateway) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.block != nil {
		<-f.block
	}
	return f.reply, f.err
}

func newEngine(t *testing.T, gw provider.Gateway) (*Engine, *pet.Store) {
	t.Helper()
	store, err := pet.Open(t.TempDir(), "Whiskers")
	require.NoError(t, err)
	return New(Options{Store: store, Gateway: gw}), store
}

func roles(b *scrollback.Buffer) []scrollback.Role {
	var out []scrollback.Role
	for _, l := range b.Lines() {
		out = append(out, l.Role)
	}
	return out
}

func TestChatSuccess(t *testing.T) {
	gw := &fakeGateway{reply: "purr"}
	e, store := newEngine(t, gw)
	mood := store.Mood()

	_, err := e.Handle(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, 1, store.HistoryLen())
	assert.InDelta(t, mood+pet.ExchangeBoost, store.Mood(), 1e-9)
	assert.Equal(t, 1, gw.Len(), "success feeds the provider context")
	last := e.Scroll().Lines()[e.Scroll().Len()-1]
	assert.Equal(t, scrollback.Line{Role: scrollback.RoleAssistant, Text: "purr"}, last)
	assert.False(t, e.Busy())
}

func TestChatFallbackTreat(t *testing.T) {
	gw := &fakeGateway{err: &provider.Error{Kind: provider.KindNetwork, Provider: "fake", Err: errors.New("refused")}}
	e, store := newEngine(t, gw)
	require.NoError(t, store.RecordExchange("seed", "seed", -0.4))
	require.InDelta(t, 0.4, store.Mood(), 1e-9)
	require.NoError(t, store.RecordExchange("seed", "seed", 0.1))

	_, err := e.Handle(context.Background(), "I brought you a treat")
	require.NoError(t, err)

	assert.InDelta(t, 0.7, store.Mood(), 1e-9)
	st := e.State()
	assert.Equal(t, pet.TreatReply, st.ChatHistory[len(st.ChatHistory)-1].Response)
	assert.Equal(t, 0, gw.Len(), "failed turns stay out of the provider context")
}

func TestFallbackIsDeterministic(t *testing.T) {
	gw := &fakeGateway{err: errors.New("down")}
	var replies []string
	for i := 0; i < 2; i++ {
		e, _ := newEngine(t, gw)
		_, err := e.Handle(context.Background(), "hello there")
		require.NoError(t, err)
		st := e.State()
		replies = append(replies, st.ChatHistory[0].Response)
	}
	assert.Equal(t, replies[0], replies[1])
	assert.Equal(t, pet.CuriousReply, replies[0])
}

func TestStatsDoesNotTouchHistory(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	e, store := newEngine(t, gw)
	_, err := e.Handle(context.Background(), "hi")
	require.NoError(t, err)

	out, err := e.Handle(context.Background(), "/stats")
	require.NoError(t, err)
	assert.False(t, out.Quit)
	assert.Equal(t, 1, store.HistoryLen())
	assert.Len(t, gw.prompts, 1, "commands never reach the backend")

	last := e.Scroll().Lines()[e.Scroll().Len()-1]
	assert.Contains(t, last.Text, "Mood: 90%")
	assert.Contains(t, last.Text, "Chat History: 1 messages")
}

func TestUnknownSlashFallsThrough(t *testing.T) {
	gw := &fakeGateway{reply: "meow?"}
	e, store := newEngine(t, gw)

	_, err := e.Handle(context.Background(), "/bogus")
	require.NoError(t, err)
	require.Len(t, gw.prompts, 1)
	assert.Contains(t, gw.prompts[0], "/bogus")
	assert.Equal(t, 1, store.HistoryLen())
}

func TestPurge(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	e, store := newEngine(t, gw)
	for i := 0; i < 3; i++ {
		_, err := e.Handle(context.Background(), "hi")
		require.NoError(t, err)
	}
	mood, name := store.Mood(), store.Name()

	_, err := e.Handle(context.Background(), "/purge")
	require.NoError(t, err)

	assert.Equal(t, 0, store.HistoryLen())
	assert.Equal(t, mood, store.Mood())
	assert.Equal(t, name, store.Name())
	assert.Equal(t, []scrollback.Role{scrollback.RoleSystem}, roles(e.Scroll()))
	assert.Equal(t, 3, gw.Len(), "provider context is kept apart from chat history")
}

func TestClearKeepsHistory(t *testing.T) {
	e, store := newEngine(t, &fakeGateway{reply: "ok"})
	_, err := e.Handle(context.Background(), "hi")
	require.NoError(t, err)

	_, err = e.Handle(context.Background(), "/clear")
	require.NoError(t, err)
	assert.Equal(t, 1, store.HistoryLen())
	require.Equal(t, 1, e.Scroll().Len())
	assert.Equal(t, command.ClearedText, e.Scroll().Lines()[0].Text)
}

func TestExit(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	e, store := newEngine(t, gw)

	out, err := e.Handle(context.Background(), "  /exit ")
	require.NoError(t, err)
	assert.True(t, out.Quit)
	assert.Empty(t, gw.prompts)

	reloaded, err := pet.Open(filepath.Dir(store.Path()), "Whiskers")
	require.NoError(t, err)
	assert.Equal(t, store.Mood(), reloaded.Mood())
	last := e.Scroll().Lines()[e.Scroll().Len()-1]
	assert.Equal(t, command.Farewell, last.Text)
}

func TestScrollbackStabilizesAt100(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	e, store := newEngine(t, gw)
	for i := 0; i < 120; i++ {
		_, err := e.Handle(context.Background(), fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, scrollback.Capacity, e.Scroll().Len())
	assert.Equal(t, 120, store.HistoryLen())
	for _, l := range e.Scroll().Lines() {
		assert.NotEqual(t, "message 0", l.Text)
	}
}

func TestDollarCommandsReachPrompt(t *testing.T) {
	gw := &fakeGateway{reply: "ok"}
	store, err := pet.Open(t.TempDir(), "Whiskers")
	require.NoError(t, err)
	e := New(Options{Store: store, Gateway: gw, ShellHistory: []string{"ls"}})

	_, err = e.Handle(context.Background(), "$ git status ")
	require.NoError(t, err)
	assert.Equal(t, "[ls git status]|$ git status ", gw.prompts[0])
}

func TestReplayHistoryOnStart(t *testing.T) {
	dir := t.TempDir()
	store, err := pet.Open(dir, "Whiskers")
	require.NoError(t, err)
	require.NoError(t, store.RecordExchange("hi", "meow", 0))

	reopened, err := pet.Open(dir, "Whiskers")
	require.NoError(t, err)
	e := New(Options{Store: reopened, Gateway: &fakeGateway{}})
	assert.Equal(t,
		[]scrollback.Role{scrollback.RoleSystem, scrollback.RoleUser, scrollback.RoleAssistant},
		roles(e.Scroll()))
}

func TestOneTurnAtATime(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &fakeGateway{reply: "slow", block: make(chan struct{})}
	e, _ := newEngine(t, gw)

	out, err := e.Submit("first")
	require.NoError(t, err)
	require.NotNil(t, out.Turn)
	assert.True(t, e.Busy())

	type result struct {
		reply string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		r, err := out.Turn.Run(context.Background())
		done <- result{r, err}
	}()

	_, err = e.Submit("second")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = e.Submit("/stats")
	assert.ErrorIs(t, err, ErrBusy)

	close(gw.block)
	res := <-done
	reply, err := e.Complete(out.Turn, res.reply, res.err)
	require.NoError(t, err)
	assert.Equal(t, "slow", reply)
	assert.False(t, e.Busy())

	_, err = e.Complete(out.Turn, "again", nil)
	assert.Error(t, err, "a turn completes once")
}

func TestEmptyInputIgnored(t *testing.T) {
	gw := &fakeGateway{}
	e, _ := newEngine(t, gw)
	out, err := e.Submit("   ")
	require.NoError(t, err)
	assert.Nil(t, out.Turn)
	assert.Equal(t, 1, e.Scroll().Len())
}

func TestTickCadence(t *testing.T) {
	e, store := newEngine(t, &fakeGateway{})
	start := store.LastInteractionTime()

	assert.True(t, e.Tick(start))
	assert.False(t, e.Tick(start.Add(50*time.Millisecond)))
	assert.True(t, e.Tick(start.Add(2*time.Hour)))
	assert.InDelta(t, 0.6, store.Mood(), 1e-9)
	assert.False(t, e.Tick(start.Add(2*time.Hour+time.Millisecond)))
	assert.True(t, e.Tick(start.Add(2*time.Hour+TickInterval)))
	assert.InDelta(t, 0.6, store.Mood(), 1e-9, "decay does not compound across ticks")
}

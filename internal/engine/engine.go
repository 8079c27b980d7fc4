package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/petcli/petcli/internal/command"
	"github.com/petcli/petcli/internal/history"
	"github.com/petcli/petcli/internal/pet"
	"github.com/petcli/petcli/internal/provider"
	"github.com/petcli/petcli/internal/scrollback"
)

// TickInterval is the decay and redraw cadence.
const TickInterval = 100 * time.Millisecond

const Welcome = "Welcome back! Type your message and press Enter to chat."

// ErrBusy is returned by Submit while a turn is still waiting on the gateway.
var ErrBusy = errors.New("still waiting for the previous reply")

// Turn is one pending chat exchange. Run is the only call that blocks on the
// network; its result must be handed back through Engine.Complete.
type Turn struct {
	Input  string
	Prompt string

	gateway provider.Gateway
}

func (t *Turn) Run(ctx context.Context) (string, error) {
	return t.gateway.Generate(ctx, t.Prompt)
}

// Outcome of Submit. A nil Turn means the input was fully handled.
type Outcome struct {
	Turn *Turn
	Quit bool
}

// Engine is the session context. It exclusively owns the state store, the
// gateway, the dispatcher and the scrollback; all of them are touched only
// from the goroutine driving the engine.
type Engine struct {
	store      *pet.Store
	gateway    provider.Gateway
	dispatcher *command.Dispatcher
	scroll     *scrollback.Buffer
	shell      []string
	recent     history.Recent
	log        *zap.Logger

	pending  *Turn
	lastTick time.Time
}

type Options struct {
	Store        *pet.Store
	Gateway      provider.Gateway
	ShellHistory []string
	Logger       *zap.Logger
}

// New builds the session and replays the persisted chat history into the
// scrollback.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:   opts.Store,
		gateway: opts.Gateway,
		scroll:  scrollback.New(),
		shell:   opts.ShellHistory,
		log:     log,
	}
	e.dispatcher = &command.Dispatcher{State: e.store, Display: e.scroll}

	e.scroll.Append(scrollback.RoleSystem, Welcome)
	for _, ex := range e.store.Snapshot().ChatHistory {
		e.scroll.Append(scrollback.RoleUser, ex.User)
		e.scroll.Append(scrollback.RoleAssistant, ex.Response)
	}
	return e
}

func (e *Engine) Scroll() *scrollback.Buffer { return e.scroll }

func (e *Engine) State() pet.State { return e.store.Snapshot() }

func (e *Engine) GatewayName() string { return e.gateway.Name() }

// Busy reports whether a turn is outstanding.
func (e *Engine) Busy() bool { return e.pending != nil }

// Commands is the command list sent with prompts: shell history followed by
// the commands typed with '$'.
func (e *Engine) Commands() []string {
	cmds := append([]string(nil), e.shell...)
	return append(cmds, e.recent.Commands()...)
}

// Submit routes one input line. Control commands run immediately; chat input
// yields a Turn. Only one turn may be outstanding.
func (e *Engine) Submit(line string) (Outcome, error) {
	if strings.TrimSpace(line) == "" {
		return Outcome{}, nil
	}
	if e.pending != nil {
		return Outcome{}, ErrBusy
	}

	if command.IsExit(line) {
		return e.run(command.Exit), nil
	}

	e.scroll.Append(scrollback.RoleUser, line)
	e.recent.Capture(line)

	if strings.HasPrefix(line, "/") {
		if c, ok := command.Parse(line); ok {
			return e.run(c), nil
		}
		e.log.Debug("unrecognized slash input, sending as chat", zap.String("input", line))
	}

	e.pending = &Turn{
		Input:   line,
		Prompt:  e.gateway.FormatPrompt(line, e.Commands()),
		gateway: e.gateway,
	}
	return Outcome{Turn: e.pending}, nil
}

func (e *Engine) run(c command.Command) Outcome {
	e.log.Debug("command", zap.String("command", string(c)))
	res := e.dispatcher.Execute(c)
	if res.Err != nil {
		e.log.Error("command failed", zap.String("command", string(c)), zap.Error(res.Err))
	}
	if res.System != "" {
		e.scroll.Append(scrollback.RoleSystem, res.System)
	}
	if res.Assistant != "" {
		e.scroll.Append(scrollback.RoleAssistant, res.Assistant)
	}
	return Outcome{Quit: res.Quit}
}

// Complete finishes t with the gateway result. On error the fallback reply is
// used; either way the exchange is recorded and shown. It returns the reply.
func (e *Engine) Complete(t *Turn, reply string, err error) (string, error) {
	if t == nil || t != e.pending {
		return "", errors.New("complete: turn is not outstanding")
	}
	e.pending = nil

	boost := pet.ExchangeBoost
	if err != nil {
		e.log.Warn("backend failed, using fallback",
			zap.String("provider", e.gateway.Name()),
			zap.Stringer("kind", provider.KindOf(err)),
			zap.Error(err))
		reply, boost = pet.Fallback(t.Input, e.store.Mood())
	} else {
		e.gateway.AddToHistory(t.Input, reply)
	}

	if serr := e.store.RecordExchange(t.Input, reply, boost); serr != nil {
		e.log.Error("save state", zap.Error(serr))
	}
	e.scroll.Append(scrollback.RoleAssistant, reply)
	return reply, nil
}

// Handle submits line and, for chat input, waits for the reply in place.
func (e *Engine) Handle(ctx context.Context, line string) (Outcome, error) {
	out, err := e.Submit(line)
	if err != nil || out.Turn == nil {
		return out, err
	}
	reply, genErr := out.Turn.Run(ctx)
	_, err = e.Complete(out.Turn, reply, genErr)
	return Outcome{Quit: out.Quit}, err
}

// Tick applies mood decay at most once per TickInterval and reports whether
// it did, which is also the redraw signal.
func (e *Engine) Tick(now time.Time) bool {
	if !e.lastTick.IsZero() && now.Sub(e.lastTick) < TickInterval {
		return false
	}
	e.lastTick = now
	e.store.Decay(now)
	return true
}

// Flush persists the state; used by the exit keys.
func (e *Engine) Flush() error {
	if err := e.store.Save(); err != nil {
		e.log.Error("save state", zap.Error(err))
		return err
	}
	return nil
}

package command

import (
	"fmt"
	"strings"
	"time"
)

type Command string

const (
	Stats Command = "/stats"
	Clear Command = "/clear"
	Purge Command = "/purge"
	Help  Command = "/help"
	Exit  Command = "/exit"
)

var all = []Command{Stats, Clear, Purge, Help, Exit}

const (
	Farewell    = "Goodbye! Take care! 👋"
	ClearedText = "Chat window cleared."
	PurgedText  = "Chat history has been purged from disk."
	HelpText    = `Available Commands:
/stats - Display current pet statistics
/clear - Clear chat window
/purge - Remove all chat history
/help  - Show this help message
/exit  - Exit the application`
)

// Parse matches the whole trimmed line, case-sensitively, against the fixed
// command set.
func Parse(line string) (Command, bool) {
	trimmed := strings.TrimSpace(line)
	for _, c := range all {
		if trimmed == string(c) {
			return c, true
		}
	}
	return "", false
}

// IsExit is checked before anything else so /exit always ends the session.
func IsExit(line string) bool {
	return strings.TrimSpace(line) == string(Exit)
}

// State is what the dispatcher needs from the state store.
type State interface {
	Mood() float64
	HistoryLen() int
	LastInteractionTime() time.Time
	Purge() error
	Save() error
}

// Display is what the dispatcher needs from the scrollback buffer.
type Display interface {
	Clear()
}

// Result tells the session what to show. Assistant text is spoken by the pet;
// System text is a plain notice.
type Result struct {
	Assistant string
	System    string
	Quit      bool
	Err       error
}

type Dispatcher struct {
	State   State
	Display Display
}

func (d *Dispatcher) Execute(c Command) Result {
	switch c {
	case Stats:
		return Result{Assistant: FormatStats(d.State.Mood(), d.State.LastInteractionTime(), d.State.HistoryLen())}
	case Clear:
		d.Display.Clear()
		return Result{System: ClearedText}
	case Purge:
		err := d.State.Purge()
		d.Display.Clear()
		return Result{System: PurgedText, Err: err}
	case Help:
		return Result{Assistant: HelpText}
	case Exit:
		return Result{Assistant: Farewell, Quit: true, Err: d.State.Save()}
	}
	return Result{Err: fmt.Errorf("unknown command: %s", c)}
}

func FormatStats(mood float64, last time.Time, count int) string {
	return fmt.Sprintf("Current Stats:\nMood: %.0f%%\nLast Interaction: %s\nChat History: %d messages",
		mood*100, last.UTC().Format("2006-01-02 15:04:05 UTC"), count)
}

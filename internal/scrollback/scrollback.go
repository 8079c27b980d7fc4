// Package scrollback holds the bounded on-screen conversation log and its
// scroll cursor.
package scrollback

import "strings"

const Capacity = 100

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Line struct {
	Role Role
	Text string
}

// Height is the number of display lines the entry takes before wrapping.
// Non-user entries are followed by a spacer line.
func (l Line) Height() int {
	n := strings.Count(l.Text, "\n") + 1
	if l.Role != RoleUser {
		n++
	}
	return n
}

// Buffer keeps at most Capacity entries, dropping the oldest first. The
// cursor is the last visible display line and ranges over [0, TotalLines()].
type Buffer struct {
	lines  []Line
	cursor int
}

func New() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(role Role, text string) {
	if len(b.lines) >= Capacity {
		b.lines = append(b.lines[:0], b.lines[1:]...)
	}
	b.lines = append(b.lines, Line{Role: role, Text: text})
	b.ScrollToBottom()
}

func (b *Buffer) Clear() {
	b.lines = nil
	b.cursor = 0
}

func (b *Buffer) Len() int { return len(b.lines) }

// Lines returns a copy of the entries, oldest first.
func (b *Buffer) Lines() []Line {
	return append([]Line(nil), b.lines...)
}

func (b *Buffer) TotalLines() int {
	total := 0
	for _, l := range b.lines {
		total += l.Height()
	}
	return total
}

func (b *Buffer) Cursor() int { return b.cursor }

func (b *Buffer) AtBottom() bool { return b.cursor >= b.TotalLines() }

func (b *Buffer) ScrollToBottom() {
	b.cursor = b.TotalLines()
}

func (b *Buffer) ScrollUp() {
	if b.cursor > 0 {
		b.cursor--
	}
}

func (b *Buffer) ScrollDown() {
	if total := b.TotalLines(); b.cursor < total {
		b.cursor++
	} else {
		b.cursor = total
	}
}

// PageUp and PageDown move by n single steps.
func (b *Buffer) PageUp(n int) {
	for i := 0; i < n; i++ {
		b.ScrollUp()
	}
}

func (b *Buffer) PageDown(n int) {
	for i := 0; i < n; i++ {
		b.ScrollDown()
	}
}

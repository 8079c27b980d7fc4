// Package history supplies the shell commands the companion comments on:
// the user's shell history file and the commands typed into the session
// with a leading '$'.
package history

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// RecentLimit caps the '$' command ring.
const RecentLimit = 5

// Files returns the history files tried in order.
func Files(home string) []string {
	return []string{
		filepath.Join(home, ".zsh_history"),
		filepath.Join(home, ".bash_history"),
		filepath.Join(home, ".history"),
	}
}

// LoadShell returns up to limit of the newest commands from the first history
// file that can be opened. Unreadable or missing files yield nil.
func LoadShell(home string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	for _, path := range Files(home) {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		cmds := readCommands(f, limit)
		f.Close()
		return cmds
	}
	return nil
}

func readCommands(f *os.File, limit int) []string {
	var cmds []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		cmd := CleanLine(sc.Text())
		if cmd == "" {
			continue
		}
		cmds = append(cmds, cmd)
		if len(cmds) > limit {
			cmds = cmds[1:]
		}
	}
	return cmds
}

// CleanLine strips zsh extended-history metadata (": 1700000000:0;cmd") and
// otherwise keeps the last whitespace-separated token.
func CleanLine(line string) string {
	if strings.HasPrefix(line, ":") {
		if i := strings.LastIndex(line, ";"); i >= 0 {
			return strings.TrimSpace(line[i+1:])
		}
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// Recent is the ring of commands typed with a leading '$'.
type Recent struct {
	cmds []string
}

// Capture records line if it starts with '$' and reports whether it did.
func (r *Recent) Capture(line string) bool {
	rest, ok := strings.CutPrefix(line, "$")
	if !ok {
		return false
	}
	r.cmds = append(r.cmds, strings.TrimSpace(rest))
	if len(r.cmds) > RecentLimit {
		r.cmds = r.cmds[len(r.cmds)-RecentLimit:]
	}
	return true
}

func (r *Recent) Commands() []string {
	return append([]string(nil), r.cmds...)
}

package editor

import "sync"

// DefaultConsoleLines is how many lines the console keeps.
const DefaultConsoleLines = 15

// Console is the short user-facing log shown next to the scene, newest line first.
type Console struct {
	mu    sync.RWMutex
	lines []string
	limit int
}

// NewConsole returns a console holding at most limit lines.
func NewConsole(limit int) *Console {
	if limit <= 0 {
		limit = DefaultConsoleLines
	}
	return &Console{limit: limit}
}

// Add prepends line, dropping the oldest line past the limit.
func (c *Console) Add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, "")
	copy(c.lines[1:], c.lines)
	c.lines[0] = line
	if len(c.lines) > c.limit {
		c.lines = c.lines[:c.limit]
	}
}

// Lines returns a copy of the lines, newest first.
func (c *Console) Lines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Last returns the newest line, or "" when empty.
func (c *Console) Last() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[0]
}

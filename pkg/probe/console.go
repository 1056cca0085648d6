package probe

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the console verbosity level
type Level int

const (
	// LevelQuiet shows only failures, warnings and the final summary
	LevelQuiet Level = iota
	// LevelNormal shows one line per check (default)
	LevelNormal
	// LevelVerbose adds check details
	LevelVerbose
	// LevelDebug shows all internal details for debugging
	LevelDebug
)

// ParseLevel converts a configured verbosity to a Level. Unknown values
// are treated as normal.
func ParseLevel(level string) Level {
	switch level {
	case "quiet":
		return LevelQuiet
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelNormal
	}
}

const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorRed       = "\033[31m"
	colorGray      = "\033[90m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
	colorBoldWhite = "\033[1;37m"
)

// Console prints run progress for people watching a terminal. It is safe
// for concurrent use by check goroutines.
type Console struct {
	mu     sync.Mutex
	level  Level
	writer io.Writer
	color  bool
}

// NewConsole creates a console writing to w. A nil w writes to stdout.
func NewConsole(level Level, w io.Writer, color bool) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{level: level, writer: w, color: color}
}

func (c *Console) printf(at Level, color, format string, args ...any) {
	if c == nil || c.level < at {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if c.color && color != "" {
		msg = color + msg + colorReset
	}
	fmt.Fprintln(c.writer, msg)
}

// Header prints a prominent header message
func (c *Console) Header(message string) {
	rule := strings.Repeat("=", 70)
	c.printf(LevelNormal, colorBoldWhite, "\n%s\n  %s\n%s", rule, message, rule)
}

// Infof prints an informational message
func (c *Console) Infof(format string, args ...any) {
	c.printf(LevelNormal, "", format, args...)
}

// Warningf prints a warning message
func (c *Console) Warningf(format string, args ...any) {
	c.printf(LevelQuiet, colorYellow, "⚠ Warning: "+format, args...)
}

// Errorf prints an error message
func (c *Console) Errorf(format string, args ...any) {
	c.printf(LevelQuiet, colorBoldRed, "✗ Error: "+format, args...)
}

// Verbosef prints detailed information (only in verbose mode)
func (c *Console) Verbosef(format string, args ...any) {
	c.printf(LevelVerbose, colorGray, "→ "+format, args...)
}

// Debugf prints debug information (only in debug mode)
func (c *Console) Debugf(format string, args ...any) {
	c.printf(LevelDebug, colorGray, "[DEBUG] "+format, args...)
}

// CheckStarted logs the start of a check
func (c *Console) CheckStarted(name string) {
	c.printf(LevelVerbose, colorCyan, "▶ %s", name)
}

// CheckFinished logs a check's result line. Failures show even when quiet.
func (c *Console) CheckFinished(r Result) {
	switch r.Status {
	case StatusPassed:
		c.printf(LevelNormal, colorBoldGreen, "  ✓ %s (%s)", r.Name, r.Duration.Round(time.Millisecond))
	case StatusSkipped:
		c.printf(LevelNormal, colorYellow, "  - %s: skipped: %s", r.Name, r.Detail)
	default:
		c.printf(LevelQuiet, colorBoldRed, "  ✗ %s: %s: %s", r.Name, r.Status, r.Detail)
		if r.Error != "" {
			c.printf(LevelVerbose, colorGray, "    %s", r.Error)
		}
		if r.PageText != "" {
			c.printf(LevelDebug, colorGray, "    page: %s", r.PageText)
		}
	}
}

// Summary prints the final run summary
func (c *Console) Summary(s *Summary) {
	rule := strings.Repeat("=", 70)
	c.printf(LevelQuiet, colorBoldWhite, "\n%s\n  RUN SUMMARY\n%s", rule, rule)

	statusColor := colorBoldGreen
	if s.Status != StatusPassed {
		statusColor = colorBoldRed
	}
	c.printf(LevelQuiet, statusColor, "  Status: %s", strings.ToUpper(string(s.Status)))
	c.printf(LevelQuiet, "", "  Target: %s (%s)", s.BaseURL, s.Profile)
	c.printf(LevelQuiet, "", "  Duration: %s", s.Duration.Round(time.Millisecond))
	c.printf(LevelQuiet, "", "  Checks: %d passed, %d failed, %d errored, %d skipped",
		s.Metrics.Passed, s.Metrics.Failed, s.Metrics.Errored, s.Metrics.Skipped)
	if s.Error != "" {
		c.printf(LevelQuiet, colorRed, "  Error: %s", s.Error)
	}
	c.printf(LevelQuiet, colorBoldWhite, "%s", rule)
}

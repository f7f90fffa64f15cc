// Package cli holds terminal helpers shared by the edushop commands:
// status lines, a spinner for slow steps and shell completion scripts.
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
)

// Printer writes status lines, coloured when the target is a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter writes to w. Colour is enabled only for character devices.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: isTerminal(w)}
}

// Stdout is the default printer.
func Stdout() *Printer { return NewPrinter(os.Stdout) }

func (p *Printer) line(symbol, color, message string) {
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s %s\n", color, symbol, ColorReset, message)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", symbol, message)
}

func (p *Printer) Success(message string) { p.line("✓", ColorGreen, message) }
func (p *Printer) Error(message string)   { p.line("✗", ColorRed, message) }
func (p *Printer) Warning(message string) { p.line("⚠", ColorYellow, message) }
func (p *Printer) Info(message string)    { p.line("ℹ", ColorBlue, message) }

// Checks prints a name/result map in name order; "ok" entries succeed.
func (p *Printer) Checks(checks map[string]string) {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if checks[name] == "ok" {
			p.Success(name)
		} else {
			p.Error(name + ": " + checks[name])
		}
	}
}

// Spinner animates while a slow step (migrations, a health probe) runs.
type Spinner struct {
	frames  []string
	current int
	prefix  string
	mu      sync.Mutex
	printer *Printer
	active  bool
	started time.Time
	done    chan struct{}
}

func (p *Printer) Spinner(prefix string) *Spinner {
	return &Spinner{
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		prefix:  prefix,
		printer: p,
		done:    make(chan struct{}),
	}
}

// Start animates only on terminals; elsewhere it prints the prefix once.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.started = time.Now()
	if !s.printer.color {
		fmt.Fprintf(s.printer.w, "%s...\n", s.prefix)
		return
	}
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.printer.w, "\r%s%s%s %s", ColorCyan, s.frames[s.current], ColorReset, s.prefix)
				s.current = (s.current + 1) % len(s.frames)
				s.mu.Unlock()
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Spinner) stop() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return 0
	}
	s.active = false
	close(s.done)
	if s.printer.color {
		fmt.Fprint(s.printer.w, "\r"+strings.Repeat(" ", len(s.prefix)+4)+"\r")
	}
	return time.Since(s.started)
}

// Success stops the spinner and reports message with the elapsed time.
func (s *Spinner) Success(message string) {
	d := s.stop()
	s.printer.Success(fmt.Sprintf("%s (%s)", message, formatDuration(d)))
}

// Error stops the spinner and reports message.
func (s *Spinner) Error(message string) {
	s.stop()
	s.printer.Error(message)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

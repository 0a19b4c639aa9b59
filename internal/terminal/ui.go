package terminal

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Colors for terminal output.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a one-line status while a build or launch runs. Off a
// TTY it prints the message once and stays silent.
type Spinner struct {
	mu          sync.Mutex
	message     string
	interactive bool
	stop        chan struct{}
	stopped     chan struct{}
}

func NewSpinner(message string) *Spinner {
	return &Spinner{
		message:     message,
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Start is a no-op on a running spinner.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	if !s.interactive {
		fmt.Printf("  %s\n", s.message)
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.spin(s.stop, s.stopped)
}

func (s *Spinner) spin(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		s.mu.Lock()
		msg := s.message
		s.mu.Unlock()
		fmt.Printf("\r\033[K%s%s %s%s", Cyan, spinnerFrames[i%len(spinnerFrames)], msg, Reset)
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and clears its line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-stopped
	fmt.Print("\r\033[K")
}

// UI helper functions.

// Success prints a green success message.
func Success(msg string) {
	fmt.Printf("%s%s✓%s %s\n", Bold, Green, Reset, msg)
}

// Error prints a red error message.
func Error(msg string) {
	fmt.Printf("%s%s✗%s %s\n", Bold, Red, Reset, msg)
}

// Info prints a blue info message.
func Info(msg string) {
	fmt.Printf("%s%si%s %s\n", Bold, Blue, Reset, msg)
}

// Warning prints a yellow warning message.
func Warning(msg string) {
	fmt.Printf("%s%s!%s %s\n", Bold, Yellow, Reset, msg)
}

// Header prints a bold header.
func Header(msg string) {
	fmt.Printf("\n%s%s%s\n", Bold, msg, Reset)
}

// Detail prints an indented detail line.
func Detail(label, value string) {
	fmt.Printf("  %s%s:%s %s\n", Dim, label, Reset, value)
}

// Divider prints a horizontal line.
func Divider() {
	fmt.Printf("%s%s%s\n", Dim, strings.Repeat("─", 60), Reset)
}

// Banner prints the welcome box with the given version.
func Banner(version string) {
	fmt.Println()
	fmt.Printf("  %s╭─────────────────────────────────╮%s\n", Dim, Reset)
	fmt.Printf("  %s│%s  SwiftSmith %s%-20s%s%s│%s\n", Dim, Reset, Bold, "v"+version, Reset, Dim, Reset)
	fmt.Printf("  %s│%s  SwiftUI apps from one sentence %s│%s\n", Dim, Reset, Dim, Reset)
	fmt.Printf("  %s╰─────────────────────────────────╯%s\n", Dim, Reset)
	fmt.Println()
}

// ToolLine is one row of the tool availability report.
type ToolLine struct {
	Name      string
	Available bool
	Detail    string
	Hint      string
}

// ToolStatus prints tool availability with install hints for missing tools.
// It reports whether everything was available.
func ToolStatus(tools []ToolLine) bool {
	all := true
	for _, t := range tools {
		mark := Green + "✓" + Reset
		if !t.Available {
			mark = Red + "✗" + Reset
			all = false
		}
		line := fmt.Sprintf("  %s %-14s", mark, t.Name)
		if t.Detail != "" {
			line += " " + Dim + t.Detail + Reset
		}
		if !t.Available && t.Hint != "" {
			line += fmt.Sprintf(" %s(%s)%s", Dim, t.Hint, Reset)
		}
		fmt.Println(line)
	}
	return all
}

// Prompt returns the shell prompt string.
func Prompt() string {
	return Bold + "> " + Reset
}

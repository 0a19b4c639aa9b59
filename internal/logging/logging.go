// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options selects the level and output of the root logger.
type Options struct {
	Level   string
	Verbose bool
	// Output defaults to stderr.
	Output io.Writer
	// Console forces the human-readable writer. When nil it is chosen by
	// whether Output is a terminal.
	Console *bool
}

// New returns the root logger. Terminals get zerolog's console writer;
// everything else gets JSON lines. Verbose forces debug level.
func New(o Options) zerolog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stderr
	}
	console := isTerminal(out)
	if o.Console != nil {
		console = *o.Console
	}
	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	level := ParseLevel(o.Level)
	if o.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown or empty names
// mean warn, which keeps normal CLI runs quiet.
func ParseLevel(s string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.WarnLevel
	}
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

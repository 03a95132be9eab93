package orchestrator

import (
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
)

// Logger is the orchestrator's "log token" (spec.md §7): components never
// import log directly, they accept this interface, so a host can redirect
// or silence diagnostics without reaching into every package.
type Logger interface {
	Printf(format string, args ...interface{})
}

// stdLogger is the default Logger, matching the dbg/warn pattern used
// throughout this module's packages.
type stdLogger struct {
	l *log.Logger
}

func (s stdLogger) Printf(format string, args ...interface{}) { s.l.Printf(format, args...) }

// NewStdLogger returns the default logger: stderr, colored prefix.
func NewStdLogger() Logger {
	return stdLogger{l: log.New(os.Stderr, term.MagentaBold("orchestrator:")+" ", 0)}
}

var dbg = log.New(os.Stderr, term.MagentaBold("orchestrator:")+" ", 0)
var warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)

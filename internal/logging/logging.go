package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls global logger initialisation.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Defaults to info.
	Level string

	// Console switches from JSON to human-readable console output.
	Console bool

	// Output overrides the destination writer. Defaults to stderr.
	Output io.Writer
}

var (
	mu   sync.Mutex
	root zerolog.Logger
	set  bool
)

// Init configures the process-wide root logger. Safe to call more than
// once; the last call wins.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(parseLevel(opts.Level)).With().Timestamp().Logger()

	mu.Lock()
	root = logger
	set = true
	mu.Unlock()
}

// New returns a logger tagged with the given component name.
func New(component string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !set {
		root = zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()
		set = true
	}
	return root.With().Str("component", component).Logger()
}

// Nop returns a disabled logger for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

package vizcore

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gekko3d/vizcore/render/core"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

var _ core.Logger = Logger(nil)

type DefaultLogger struct {
	mu    sync.Mutex
	debug bool
	base  *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewLoggerTo(os.Stderr, prefix, debug)
}

// NewLoggerTo writes to w instead of stderr.
func NewLoggerTo(w io.Writer, prefix string, debug bool) *DefaultLogger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
	})
	dl := &DefaultLogger{base: l}
	dl.SetDebug(debug)
	return dl
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
	if enabled {
		l.base.SetLevel(log.DebugLevel)
	} else {
		l.base.SetLevel(log.InfoLevel)
	}
}

// SetLevel accepts "debug", "info", "warn" or "error".
func (l *DefaultLogger) SetLevel(level string) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.debug = lvl <= log.DebugLevel
	l.mu.Unlock()
	l.base.SetLevel(lvl)
	return nil
}

func (l *DefaultLogger) Debugf(format string, args ...any) { l.base.Debugf(format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.base.Infof(format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.base.Warnf(format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...any) { l.base.Errorf(format, args...) }

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }

func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

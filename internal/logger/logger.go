// Package logger provides the process-wide structured logger.
//
// Messages take alternating key-value pairs, the same way the call sites
// would pass them to a structured logger:
//
//	logger.Warn("audio drift corrected", "contentId", id, "driftMs", 420)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	std = newLogger(os.Stderr, levelFromEnv())
)

func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return l
}

func levelFromEnv() logrus.Level {
	if lvl, err := ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		return lvl
	}
	return logrus.InfoLevel
}

// ParseLevel accepts debug, info, warn/warning and error.
func ParseLevel(s string) (logrus.Level, error) {
	if strings.TrimSpace(s) == "" {
		return logrus.InfoLevel, fmt.Errorf("empty log level")
	}
	return logrus.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}

// SetLevel changes the level of the global logger.
func SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	std.SetLevel(lvl)
	mu.Unlock()
	return nil
}

// SetOutput redirects the global logger, e.g. to a file while the terminal
// studio owns the screen. nil restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	std.SetOutput(w)
	mu.Unlock()
}

// Logger returns the underlying logrus logger.
func Logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

func entry(args []any) *logrus.Entry {
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			fields["!BADKEY"] = key
			break
		}
		fields[key] = args[i+1]
	}
	return Logger().WithFields(fields)
}

func Debug(msg string, args ...any) { entry(args).Debug(msg) }
func Info(msg string, args ...any)  { entry(args).Info(msg) }
func Warn(msg string, args ...any)  { entry(args).Warn(msg) }
func Error(msg string, args ...any) { entry(args).Error(msg) }

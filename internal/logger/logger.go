package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel defines severity levels for logging.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger is the logging abstraction handed to every handler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	defaultLogger Logger
	once          sync.Once
	level         LogLevel = INFO
)

// ParseLevel maps a LOG_LEVEL value to a LogLevel. Unknown values fall back to INFO.
func ParseLevel(raw string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// String returns the lower-case name of the level.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "info"
	}
}

// Init configures the package-level logger with the desired log level
// and output destination. It will only apply once; subsequent calls
// have no effect.
func Init(lvl LogLevel, out io.Writer) {
	once.Do(func() {
		level = lvl
		writer := out
		if writer == nil {
			writer = os.Stdout
		}
		defaultLogger = &stdLogger{
			logger: log.New(writer, "", log.LstdFlags|log.Lmsgprefix),
		}
	})
}

// Get returns the initialized Logger instance. If Init has not been called,
// it initializes with default INFO level writing to stdout.
func Get() Logger {
	if defaultLogger == nil {
		Init(level, os.Stdout)
	}
	return defaultLogger
}

// OrDefault returns l, or the package logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Get()
	}
	return l
}

// stdLogger wraps the standard log.Logger and respects the configured level.
type stdLogger struct {
	mu     sync.Mutex
	logger *log.Logger
}

func (l *stdLogger) write(prefix string, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetPrefix(prefix)
	l.logger.Printf(msg, args...)
}

func (l *stdLogger) Debug(msg string, args ...any) {
	if level <= DEBUG {
		l.write("DEBUG: ", msg, args...)
	}
}

func (l *stdLogger) Info(msg string, args ...any) {
	if level <= INFO {
		l.write("INFO:  ", msg, args...)
	}
}

func (l *stdLogger) Warn(msg string, args ...any) {
	if level <= WARN {
		l.write("WARN:  ", msg, args...)
	}
}

func (l *stdLogger) Error(msg string, args ...any) {
	if level <= ERROR {
		l.write("ERROR: ", msg, args...)
	}
}

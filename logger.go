package restkit

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the structured debug logging interface. Absence of a logger
// never affects correctness, only observability.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SimpleLogger writes leveled key=value lines to stderr.
type SimpleLogger struct {
	out *log.Logger
}

// NewSimpleLogger creates a console logger.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{
		out: log.New(os.Stderr, "restkit ", log.LstdFlags|log.Lmicroseconds),
	}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...any) { l.print("DEBUG", msg, keysAndValues) }
func (l *SimpleLogger) Info(msg string, keysAndValues ...any)  { l.print("INFO", msg, keysAndValues) }
func (l *SimpleLogger) Warn(msg string, keysAndValues ...any)  { l.print("WARN", msg, keysAndValues) }
func (l *SimpleLogger) Error(msg string, keysAndValues ...any) { l.print("ERROR", msg, keysAndValues) }

func (l *SimpleLogger) print(level, msg string, kvs []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kvs[i], kvs[i+1])
	}
	if len(kvs)%2 == 1 {
		fmt.Fprintf(&b, " %v=?", kvs[len(kvs)-1])
	}
	l.out.Println(b.String())
}

// DebugConfig selects which lifecycle areas emit debug logs and how request
// IDs are generated.
type DebugConfig struct {
	Enabled bool

	LogRequests bool
	LogRetries  bool
	LogCache    bool
	LogDedup    bool
	LogQueue    bool
	LogAuth     bool

	// RequestIDGen produces a correlation ID per logical call.
	RequestIDGen func() string
}

var requestIDCounter uint64

// DefaultDebugConfig enables every area with a sequential ID generator.
// Enabled stays false until WithDebug flips it.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		LogRequests: true,
		LogRetries:  true,
		LogCache:    true,
		LogDedup:    true,
		LogQueue:    true,
		LogAuth:     true,
		RequestIDGen: func() string {
			return fmt.Sprintf("req-%d", atomic.AddUint64(&requestIDCounter, 1))
		},
	}
}

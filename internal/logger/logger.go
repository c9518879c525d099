// Package logger provides the leveled logger injected into every component.
//
// Loggers are values passed through constructors; there is no package-level
// default. Derived loggers (WithPrefix, WithFields) share the parent's output
// and its lock. Messages and sensitive field values are masked before they
// are written.
package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents logging levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	levelOff
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name (debug, info, warn/warning, error).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// sink is the shared destination of a logger family.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

// Logger is a leveled logger with secret masking.
type Logger struct {
	level  Level
	sink   *sink
	prefix string
	fields map[string]interface{}
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`),                        // GitHub tokens
	regexp.MustCompile(`github_pat_[A-Za-z0-9]{22}_[A-Za-z0-9]{59}`),        // GitHub fine-grained
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),                          // Anthropic
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),                                // OpenAI style
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{16,}`),                   // Bearer tokens
	regexp.MustCompile(`sha256=[0-9a-f]{64}`),                                // Webhook signatures
	regexp.MustCompile(`(?i)(api[_-]?key|secret|token)[=:]\s*["']?[A-Za-z0-9._-]{16,}["']?`), // key=value
	regexp.MustCompile(`(?i)password[=:]\s*["']?[^\s"']{8,}["']?`),
}

var sensitiveFieldNames = map[string]bool{
	"password":       true,
	"secret":         true,
	"token":          true,
	"api_key":        true,
	"apikey":         true,
	"private_key":    true,
	"access_token":   true,
	"authorization":  true,
	"webhook_secret": true,
	"signature":      true,
	"credentials":    true,
}

// New creates a new logger.
func New(level Level, output io.Writer) *Logger {
	return &Logger{
		level:  level,
		sink:   &sink{out: output},
		fields: map[string]interface{}{},
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(levelOff, io.Discard)
}

// Open builds a logger from a level name and an optional log file. Output
// always goes to stderr; when file is set it is also appended there. The
// returned close function releases the file.
func Open(level, file string) (*Logger, func() error, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	if file == "" {
		return New(lvl, os.Stderr), func() error { return nil }, nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return New(lvl, io.MultiWriter(os.Stderr, f)), f.Close, nil
}

// Level returns the minimum level that is written.
func (l *Logger) Level() Level {
	return l.level
}

// WithField returns a new logger with the field added
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new logger with the fields added
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, sink: l.sink, prefix: l.prefix, fields: merged}
}

// WithPrefix returns a new logger with the prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{level: l.level, sink: l.sink, prefix: prefix, fields: l.fields}
}

// MaskSecrets masks all known secret patterns in a string.
func MaskSecrets(s string) string {
	for _, pattern := range secretPatterns {
		s = pattern.ReplaceAllStringFunc(s, maskString)
	}
	return s
}

// IsSensitiveKey checks if a key name is sensitive
func IsSensitiveKey(key string) bool {
	return sensitiveFieldNames[strings.ToLower(key)]
}

// maskString keeps the first and last 4 characters.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***MASKED***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}

func maskValue(key string, value interface{}) interface{} {
	if IsSensitiveKey(key) {
		if str, ok := value.(string); ok {
			return maskString(str)
		}
		return "***MASKED***"
	}
	if str, ok := value.(string); ok {
		return MaskSecrets(str)
	}
	return value
}

// formatFields renders fields sorted by key.
func (l *Logger) formatFields() string {
	if len(l.fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, maskValue(k, l.fields[k]))
	}
	return b.String()
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	msg = MaskSecrets(msg)

	prefix := ""
	if l.prefix != "" {
		prefix = "[" + l.prefix + "] "
	}

	line := fmt.Sprintf("%s %s %s%s%s\n",
		time.Now().Format("2006-01-02T15:04:05.000Z07:00"), level, prefix, msg, l.formatFields())

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = io.WriteString(l.sink.out, line)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

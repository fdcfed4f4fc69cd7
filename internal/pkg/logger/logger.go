// Package logger emits structured JSON log lines to stderr. Values in known
// PII fields are redacted before they leave the process.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes one JSON object per entry. Safe for concurrent use.
type Logger struct {
	level     Level
	redactPII bool
	mu        sync.Mutex
}

var std = &Logger{level: INFO, redactPII: true}

// SetLevel sets the minimum severity the default logger emits.
func SetLevel(l Level) { std.level = l }

// SetRedactPII toggles email masking on the default logger.
func SetRedactPII(on bool) { std.redactPII = on }

func Debug(msg string, fields ...interface{}) { std.emit(DEBUG, msg, fields) }
func Info(msg string, fields ...interface{})  { std.emit(INFO, msg, fields) }
func Warn(msg string, fields ...interface{})  { std.emit(WARN, msg, fields) }
func Error(msg string, fields ...interface{}) { std.emit(ERROR, msg, fields) }

func (l *Logger) emit(level Level, msg string, fields []interface{}) {
	if level < l.level {
		return
	}

	entry := make(map[string]interface{}, 3+len(fields)/2)
	entry["time"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level.String()
	entry["msg"] = msg

	// Fields come as alternating key, value pairs. A dangling key is dropped.
	for i := 0; i+1 < len(fields); i += 2 {
		k := fmt.Sprintf("%v", fields[i])
		v := fmt.Sprintf("%v", fields[i+1])
		if l.redactPII {
			v = scrub(k, v)
		}
		entry[k] = v
	}

	line, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(os.Stderr, string(line))
	l.mu.Unlock()
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// scrub masks email-bearing fields outright and any address embedded in
// other field values.
func scrub(key, val string) string {
	k := strings.ToLower(key)
	if strings.Contains(k, "email") || strings.Contains(k, "contact") {
		return RedactEmail(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, RedactEmail)
}

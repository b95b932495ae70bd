package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel is the severity of a message. Higher values are more severe.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// callDepth makes log.Lshortfile report the caller of Debug/Info/etc.
const callDepth = 3

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once
)

func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("unknown(%d)", int32(l))
}

func (l LogLevel) prefix() string {
	return "[" + strings.ToUpper(l.String()) + "] "
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to
// LevelInfo and ok=false.
func ParseLevel(name string) (level LogLevel, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i), true
		}
	}
	return LevelInfo, false
}

// levelFromEnv resolves the startup level. DEBUG=true wins over LOG_LEVEL.
func levelFromEnv(getenv func(string) string) LogLevel {
	switch strings.ToLower(getenv("DEBUG")) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}
	level, _ := ParseLevel(getenv("LOG_LEVEL"))
	return level
}

func initLevel() {
	levelOnce.Do(func() {
		currentLevel.Store(int32(levelFromEnv(os.Getenv)))
	})
}

// SetLevel overrides the level read from the environment.
func SetLevel(level LogLevel) {
	initLevel()
	currentLevel.Store(int32(level))
}

// GetLevel returns the current log level.
func GetLevel() LogLevel {
	initLevel()
	return LogLevel(currentLevel.Load())
}

// Enabled reports whether messages at level are written.
func Enabled(level LogLevel) bool {
	return GetLevel() <= level
}

// IsDebugEnabled is shorthand for Enabled(LevelDebug). Use it to skip
// building expensive debug arguments.
func IsDebugEnabled() bool {
	return Enabled(LevelDebug)
}

func logf(level LogLevel, format string, args []interface{}) {
	if !Enabled(level) {
		return
	}
	_ = log.Output(callDepth, level.prefix()+fmt.Sprintf(format, args...))
}

// Debug logs stream progress, cache decisions and other chatter.
func Debug(format string, args ...interface{}) { logf(LevelDebug, format, args) }

// Info logs normal operational messages.
func Info(format string, args ...interface{}) { logf(LevelInfo, format, args) }

// Warn logs recoverable problems.
func Warn(format string, args ...interface{}) { logf(LevelWarn, format, args) }

// Error logs failures.
func Error(format string, args ...interface{}) { logf(LevelError, format, args) }

// Fatal logs regardless of level and exits with status 1.
func Fatal(format string, args ...interface{}) {
	_ = log.Output(2, "[FATAL] "+fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Printf writes unconditionally, without a level prefix.
func Printf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

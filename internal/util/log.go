package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by the pterm default logger.
// All output goes to stderr by default (pterm's default).

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// DebugEnabled reports whether debug messages are currently printed. Callers
// use it to skip building expensive log arguments.
func DebugEnabled() bool {
	return pterm.DefaultLogger.CanPrint(pterm.LogLevelDebug)
}

// Scope is a logger that tags every line with a component name and attaches
// key/value pairs as structured pterm arguments.
type Scope struct {
	name string
}

// Scoped returns a logger for the named component.
func Scoped(name string) Scope {
	return Scope{name: name}
}

func (s Scope) Debug(msg string, kv ...any) {
	pterm.DefaultLogger.Debug(s.name+": "+msg, pterm.DefaultLogger.Args(kv...))
}

func (s Scope) Info(msg string, kv ...any) {
	pterm.DefaultLogger.Info(s.name+": "+msg, pterm.DefaultLogger.Args(kv...))
}

func (s Scope) Warn(msg string, kv ...any) {
	pterm.DefaultLogger.Warn(s.name+": "+msg, pterm.DefaultLogger.Args(kv...))
}

func (s Scope) Error(msg string, kv ...any) {
	pterm.DefaultLogger.Error(s.name+": "+msg, pterm.DefaultLogger.Args(kv...))
}

// Package logger provides leveled logging for corpus.
// Debug, Info and Section output appears only in verbose mode (--verbose);
// warnings and errors are always written so that degraded pipeline stages
// stay visible in long-running servers.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Level is a log severity.
type Level int

// Log levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelPrefix = map[Level]string{
	LevelDebug: "[DEBUG] ",
	LevelInfo:  "[INFO] ",
	LevelWarn:  "[WARN] ",
	LevelError: "[ERROR] ",
}

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Enabled reports whether messages at level are written.
func Enabled(level Level) bool {
	if level >= LevelWarn {
		return true
	}
	return IsVerbose()
}

// Log writes a message at level.
func Log(level Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if level < LevelWarn && !verbose {
		return
	}
	fmt.Fprintf(output, levelPrefix[level]+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	Log(LevelDebug, format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	Log(LevelInfo, format, args...)
}

// Warn prints a warning.
func Warn(format string, args ...any) {
	Log(LevelWarn, format, args...)
}

// Error prints an error.
func Error(format string, args ...any) {
	Log(LevelError, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

package logs

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// Logging levels.
const (
	LevelCritical int32 = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
)

// logLevel - global logging level.
var logLevel atomic.Int32

// SetLogLevel - set global logging level.
func SetLogLevel(n int32) {
	logLevel.Store(n)
}

// LogLevel - get global logging level.
func LogLevel() int32 {
	return logLevel.Load()
}

func write(w io.Writer, level int32, format string, a ...any) {
	if LogLevel() < level {
		return
	}

	fmt.Fprintf(w, format, a...)
}

// Debugf - print debug message.
func Debugf(format string, a ...any) {
	write(os.Stdout, LevelDebug, format, a...)
}

// Debugln - print debug message.
func Debugln(a ...any) {
	if LogLevel() >= LevelDebug {
		fmt.Fprintln(os.Stdout, a...)
	}
}

// Infof - print informational message.
func Infof(format string, a ...any) {
	write(os.Stdout, LevelInfo, format, a...)
}

// Infoln - print informational message.
func Infoln(a ...any) {
	if LogLevel() >= LevelInfo {
		fmt.Fprintln(os.Stdout, a...)
	}
}

// Warningf - print warning message.
func Warningf(format string, a ...any) {
	write(os.Stderr, LevelWarning, format, a...)
}

// Errf - print error message.
func Errf(format string, a ...any) {
	write(os.Stderr, LevelError, format, a...)
}

// Errln - print error message.
func Errln(a ...any) {
	if LogLevel() >= LevelError {
		fmt.Fprintln(os.Stderr, a...)
	}
}

// Criticf - print critical message, regardless of level.
func Criticf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
}

// Criticln - print critical message, regardless of level.
func Criticln(a ...any) {
	fmt.Fprintln(os.Stderr, a...)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

// Package logger provides the leveled, colourised diagnostic log used by
// the controller and the CLI.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level is a log severity
type Level int

// Log levels, lowest first
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	OffLevel
)

// String returns the level name
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "off"
	}
}

// ParseLevel parses a level name as accepted by --log-level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "off", "none":
		return OffLevel, nil
	}
	return OffLevel, fmt.Errorf("unknown log level %q (use debug, info, warn, error or off)", s)
}

var (
	mu     sync.Mutex
	out    = log.New(os.Stderr, "", log.LstdFlags)
	level  = InfoLevel
	colors = true

	debugColor = color.New(color.FgCyan)
	infoColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
)

// SetLevel sets the minimum level written
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// GetLevel returns the current minimum level
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// SetOutput redirects the log. Colour is only used for stdout and stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = log.New(w, "", log.LstdFlags)
	f, ok := w.(*os.File)
	colors = ok && (f == os.Stdout || f == os.Stderr) && !color.NoColor
}

func write(l Level, c *color.Color, tag, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}
	msg := tag + " " + fmt.Sprintf(format, v...)
	if colors {
		msg = c.Sprint(msg)
	}
	out.Print(msg)
}

// Debug logs protocol-level detail
func Debug(format string, v ...interface{}) {
	write(DebugLevel, debugColor, "[DEBUG]", format, v...)
}

// Info logs state changes
func Info(format string, v ...interface{}) {
	write(InfoLevel, infoColor, "[INFO]", format, v...)
}

// Warn logs recoverable faults
func Warn(format string, v ...interface{}) {
	write(WarnLevel, warnColor, "[WARN]", format, v...)
}

// Error logs failures
func Error(format string, v ...interface{}) {
	write(ErrorLevel, errorColor, "[ERROR]", format, v...)
}

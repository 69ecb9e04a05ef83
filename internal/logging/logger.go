/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package logging provides the structured, leveled logger used across the
// compilation core for phase tracing and diagnostics.
package logging

import (
	"fmt"
	"sync"

	"github.com/pterm/pterm"
)

func init() {
	pterm.Info = *pterm.Info.WithPrefix(pterm.Prefix{
		Text:  "INFO",
		Style: pterm.NewStyle(pterm.FgBlue),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Success = *pterm.Success.WithPrefix(pterm.Prefix{
		Text:  "SUCCESS",
		Style: pterm.NewStyle(pterm.FgGreen),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Warning = *pterm.Warning.WithPrefix(pterm.Prefix{
		Text:  "WARNING",
		Style: pterm.NewStyle(pterm.FgYellow),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Error = *pterm.Error.WithPrefix(pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.FgRed),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Debug = *pterm.Debug.WithPrefix(pterm.Prefix{
		Text:  "DEBUG",
		Style: pterm.NewStyle(pterm.FgCyan),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)
}

// Level is the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a leveled, pterm-backed logger. The zero value is ready to use
// (info level, not quiet); New returns exactly that.
type Logger struct {
	mu    sync.RWMutex
	debug bool
	quiet bool
}

// New constructs a Logger with default settings (info level, not quiet).
func New() *Logger {
	return &Logger{}
}

// global is the package-level logger most callers reach for, matching the
// ambient-singleton convention the rest of the compilation core expects
// (e.g. a phase can log without threading a *Logger through every call).
var global = New()

// Global returns the shared package-level logger.
func Global() *Logger { return global }

// SetDebug toggles debug-level output.
func (l *Logger) SetDebug(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = enabled
}

// SetQuiet suppresses all but error output.
func (l *Logger) SetQuiet(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quiet = enabled
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.quiet {
		return level == LevelError
	}
	if level == LevelDebug {
		return l.debug
	}
	return true
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.enabled(LevelDebug) {
		return
	}
	pterm.Debug.Println(fmt.Sprintf(format, args...))
}

// Infof logs an info-level message.
func (l *Logger) Infof(format string, args ...any) {
	if !l.enabled(LevelInfo) {
		return
	}
	pterm.Info.Println(fmt.Sprintf(format, args...))
}

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, args ...any) {
	if !l.enabled(LevelWarning) {
		return
	}
	pterm.Warning.Println(fmt.Sprintf(format, args...))
}

// Errorf logs an error-level message. Errors are never suppressed by quiet mode.
func (l *Logger) Errorf(format string, args ...any) {
	pterm.Error.Println(fmt.Sprintf(format, args...))
}

// Debugf logs at debug level on the global logger.
func Debugf(format string, args ...any) { global.Debugf(format, args...) }

// Infof logs at info level on the global logger.
func Infof(format string, args ...any) { global.Infof(format, args...) }

// Warnf logs at warning level on the global logger.
func Warnf(format string, args ...any) { global.Warnf(format, args...) }

// Errorf logs at error level on the global logger.
func Errorf(format string, args ...any) { global.Errorf(format, args...) }

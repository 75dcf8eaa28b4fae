// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	kindWidth   = 15 // Width for file kind
	statusWidth = 15 // Width for status text
)

// 🎯 FileOperation represents one mirrored file for logging
type FileOperation struct {
	Path          string // Relative file path
	Kind          string // File kind (transformable/pass-through)
	Status        string // Operation status
	IsTransformed bool   // Whether the file went through the transform call
	IsCopied      bool   // Whether the file was copied verbatim
	IsFailed      bool   // Whether the file failed
	Retries       int    // Number of retries the transform needed
}

// 📦 RunOperation represents one batch run for logging
type RunOperation struct {
	Input  string // Input root
	Output string // Output root
	Model  string // Transform model identifier
	Files  int    // Number of files scheduled
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	currentOp  *RunOperation
	operations []FileOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatFileOperation formats a file operation for display
func (l *Logger) formatFileOperation(op FileOperation) string {
	// Determine symbol and color
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case op.IsFailed:
		symbol = '✗'
		symbolColor = color.FgRed
	case op.IsTransformed:
		symbol = '✓'
		symbolColor = color.FgGreen
	case op.IsCopied:
		symbol = '•'
		symbolColor = color.FgCyan
	default:
		symbol = '-'
		symbolColor = color.FgYellow
	}

	// Format kind with color
	var kindColor color.Attribute
	switch op.Kind {
	case "transformable":
		kindColor = color.FgCyan
	case "pass-through":
		kindColor = color.FgYellow
	default:
		kindColor = color.FgBlue
	}

	// Build the line
	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(kindColor).Sprint(fmt.Sprintf("%-*s", kindWidth, op.Kind)),
		fmt.Sprintf("%-*s", statusWidth, op.Status))
}

// 📝 LogFileOperation logs a file operation
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Add to operations list
	l.operations = append(l.operations, op)

	// Format and print
	fmt.Fprintln(l.console, l.formatFileOperation(op))

	// Log to zerolog
	l.zlog.Info().
		Str("file", op.Path).
		Str("kind", op.Kind).
		Str("status", op.Status).
		Bool("is_transformed", op.IsTransformed).
		Bool("is_copied", op.IsCopied).
		Bool("is_failed", op.IsFailed).
		Int("retries", op.Retries).
		Msg("file operation")
}

// 📝 StartRun starts a new batch run
func (l *Logger) StartRun(ctx context.Context, op RunOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.operations = nil

	// Print run header
	fmt.Fprintf(l.console, "[run into %s]\n",
		color.New(color.FgCyan).Sprint(op.Output))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.Input),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(op.Model))

	// Log to zerolog
	l.zlog.Info().
		Str("input", op.Input).
		Str("output", op.Output).
		Str("model", op.Model).
		Int("files", op.Files).
		Msg("starting batch run")
}

// 📝 EndRun ends the current batch run
func (l *Logger) EndRun(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	// Log summary
	l.zlog.Info().
		Str("input", l.currentOp.Input).
		Int("files", len(l.operations)).
		Msg("batch run complete")

	l.currentOp = nil
	l.operations = nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	retextText := color.New(color.Bold, color.FgCyan).Sprint("retext")
	fmt.Fprintf(l.console, "\n%s %s\n\n", retextText, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}

// Package interfaces defines core domain contracts.
//
//nolint:revive // Package name 'interfaces' is intentional for domain layer
package interfaces

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Logger defines the interface for structured logging
type Logger interface {
	// Debug logs debug-level messages
	Debug(msg string, fields ...Field)

	// Info logs informational messages
	Info(msg string, fields ...Field)

	// Warn logs warning messages
	Warn(msg string, fields ...Field)

	// Error logs error messages
	Error(msg string, fields ...Field)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field (convenience function)
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// NoOpLogger is a logger that does nothing (useful for tests)
type NoOpLogger struct{}

// Debug does nothing (no-op implementation)
func (n *NoOpLogger) Debug(_ string, _ ...Field) {}

// Info does nothing (no-op implementation)
func (n *NoOpLogger) Info(_ string, _ ...Field) {}

// Warn does nothing (no-op implementation)
func (n *NoOpLogger) Warn(_ string, _ ...Field) {}

// Error does nothing (no-op implementation)
func (n *NoOpLogger) Error(_ string, _ ...Field) {}

// ConsoleLogger writes "LEVEL msg key=value" lines to a writer.
// Level labels are coloured unless color.NoColor is set.
type ConsoleLogger struct {
	out     io.Writer
	verbose bool
	fields  []Field
}

// NewConsoleLogger creates a console logger. Debug output is dropped unless verbose.
func NewConsoleLogger(out io.Writer, verbose bool) *ConsoleLogger {
	return &ConsoleLogger{out: out, verbose: verbose}
}

// With returns a logger that appends fields to every line
func (c *ConsoleLogger) With(fields ...Field) *ConsoleLogger {
	merged := make([]Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &ConsoleLogger{out: c.out, verbose: c.verbose, fields: merged}
}

// Debug logs debug-level messages when verbose
func (c *ConsoleLogger) Debug(msg string, fields ...Field) {
	if !c.verbose {
		return
	}
	c.log(color.New(color.FgHiBlack).Sprint("DEBUG"), msg, fields)
}

// Info logs informational messages
func (c *ConsoleLogger) Info(msg string, fields ...Field) {
	c.log(color.New(color.FgCyan).Sprint("INFO "), msg, fields)
}

// Warn logs warning messages
func (c *ConsoleLogger) Warn(msg string, fields ...Field) {
	c.log(color.New(color.FgYellow).Sprint("WARN "), msg, fields)
}

// Error logs error messages
func (c *ConsoleLogger) Error(msg string, fields ...Field) {
	c.log(color.New(color.FgRed, color.Bold).Sprint("ERROR"), msg, fields)
}

func (c *ConsoleLogger) log(level, msg string, fields []Field) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for _, set := range [][]Field{fields, c.fields} {
		for _, f := range set {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
	}
	b.WriteString("\n")
	_, _ = io.WriteString(c.out, b.String())
}

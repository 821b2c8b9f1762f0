// Package interfaces defines core domain contracts.
//
//nolint:revive // Package name 'interfaces' is intentional for domain layer
package interfaces

// Logger is the structured logger every layer writes through
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that prefixes every entry with fields
	With(fields ...Field) Logger
}

// Field is a single key/value pair attached to a log entry
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err is shorthand for F("error", err)
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// NoOpLogger discards everything (useful for tests)
type NoOpLogger struct{}

// Debug is a no-op
func (n *NoOpLogger) Debug(_ string, _ ...Field) {}

// Info is a no-op
func (n *NoOpLogger) Info(_ string, _ ...Field) {}

// Warn is a no-op
func (n *NoOpLogger) Warn(_ string, _ ...Field) {}

// Error is a no-op
func (n *NoOpLogger) Error(_ string, _ ...Field) {}

// With returns the same no-op logger
func (n *NoOpLogger) With(_ ...Field) Logger { return n }

// OrNoOp returns l, or a NoOpLogger when l is nil
func OrNoOp(l Logger) Logger {
	if l == nil {
		return &NoOpLogger{}
	}
	return l
}

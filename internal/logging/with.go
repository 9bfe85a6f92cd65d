package logging

import "github.com/arloliu/primary/types"

// fieldLogger prepends a fixed set of key-value pairs to every entry.
type fieldLogger struct {
	base   types.Logger
	fields []any
}

// With returns a logger that adds keysAndValues to every message logged
// through it. The elector uses it to tag all lines with its lock name and
// process identity.
//
// Parameters:
//   - base: Logger to delegate to
//   - keysAndValues: Fields prepended to every call
//
// Returns:
//   - types.Logger: base itself when no fields are given
func With(base types.Logger, keysAndValues ...any) types.Logger {
	if len(keysAndValues) == 0 {
		return base
	}
	if fl, ok := base.(*fieldLogger); ok {
		merged := make([]any, 0, len(fl.fields)+len(keysAndValues))
		merged = append(merged, fl.fields...)
		merged = append(merged, keysAndValues...)

		return &fieldLogger{base: fl.base, fields: merged}
	}

	return &fieldLogger{base: base, fields: keysAndValues}
}

func (l *fieldLogger) merge(keysAndValues []any) []any {
	out := make([]any, 0, len(l.fields)+len(keysAndValues))
	out = append(out, l.fields...)

	return append(out, keysAndValues...)
}

func (l *fieldLogger) Debug(msg string, keysAndValues ...any) {
	l.base.Debug(msg, l.merge(keysAndValues)...)
}

func (l *fieldLogger) Info(msg string, keysAndValues ...any) {
	l.base.Info(msg, l.merge(keysAndValues)...)
}

func (l *fieldLogger) Warn(msg string, keysAndValues ...any) {
	l.base.Warn(msg, l.merge(keysAndValues)...)
}

func (l *fieldLogger) Error(msg string, keysAndValues ...any) {
	l.base.Error(msg, l.merge(keysAndValues)...)
}

func (l *fieldLogger) Fatal(msg string, keysAndValues ...any) {
	l.base.Fatal(msg, l.merge(keysAndValues)...)
}

package log

import "context"

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

// FieldsKey is the context key for structured log fields.
const FieldsKey ContextKey = "log_fields"

// Fields is a collection of structured log fields.
type Fields map[string]any

// WithFields merges fields into the ones already stored in ctx. New values
// overwrite existing keys.
func WithFields(ctx context.Context, fields Fields) context.Context {
	existing := GetFields(ctx)
	merged := make(Fields, len(existing)+len(fields))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, FieldsKey, merged)
}

// GetFields retrieves log fields from the context.
func GetFields(ctx context.Context) Fields {
	if fields, ok := ctx.Value(FieldsKey).(Fields); ok {
		return fields
	}
	return Fields{}
}

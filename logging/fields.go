package logging

import "context"

// Field represents a log field that can be added to a log entry.
type Field interface {
	Apply(entry *LogEntry)
}

type fieldFunc func(*LogEntry)

func (f fieldFunc) Apply(entry *LogEntry) { f(entry) }

func Component(component string) Field {
	return fieldFunc(func(e *LogEntry) { e.Component = component })
}

func Exchange(exchange string) Field {
	return fieldFunc(func(e *LogEntry) { e.Exchange = exchange })
}

func Symbol(symbol string) Field {
	return fieldFunc(func(e *LogEntry) { e.Symbol = symbol })
}

func Duration(ms float64) Field {
	return fieldFunc(func(e *LogEntry) { e.Duration = ms })
}

func String(key, value string) Field {
	return fieldFunc(func(e *LogEntry) { extra(e)[key] = value })
}

func Int(key string, value int) Field {
	return fieldFunc(func(e *LogEntry) { extra(e)[key] = value })
}

func Int64(key string, value int64) Field {
	return fieldFunc(func(e *LogEntry) { extra(e)[key] = value })
}

func Bool(key string, value bool) Field {
	return fieldFunc(func(e *LogEntry) { extra(e)[key] = value })
}

func Any(key string, value interface{}) Field {
	return fieldFunc(func(e *LogEntry) { extra(e)[key] = value })
}

func extra(e *LogEntry) map[string]interface{} {
	if e.Extra == nil {
		e.Extra = make(map[string]interface{})
	}
	return e.Extra
}

// Context keys for request-scoped tracing fields (e.g. a subscription ID
// attached to a WebSocket connection's lifetime).
type contextKey string

const subscriptionIDKey contextKey = "subscription_id"

func ContextWithSubscriptionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, subscriptionIDKey, id)
}

func FieldsFromContext(ctx context.Context) []Field {
	var fields []Field
	if id, ok := ctx.Value(subscriptionIDKey).(string); ok && id != "" {
		fields = append(fields, String("subscription_id", id))
	}
	return fields
}

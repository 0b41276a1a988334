package tracing

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute key fragments that must not reach the trace backend. Credentials
// are the obvious ones; field-controller device identifiers are masked too,
// since only the rate limiter is allowed to key on X-Device-Id.
var maskedKeyFragments = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"authorization",
	"device_id",
	"device-id",
}

// SafeAttributes drops attributes whose keys carry credentials or device
// identity.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	safe := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if maskedKey(string(attr.Key)) {
			continue
		}
		safe = append(safe, attr)
	}
	return safe
}

// SafeError reduces an error to its type so driver messages with DSN or SQL
// fragments never land on a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%T", err)
}

func maskedKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, fragment := range maskedKeyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

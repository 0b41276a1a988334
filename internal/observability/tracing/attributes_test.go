package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesMasksSensitiveKeys(t *testing.T) {
	safe := SafeAttributes(
		attribute.String("http.route", "/v1/sensor/data"),
		attribute.String("x-device-id", "pump-controller-7"),
		attribute.String("authorization", "Bearer abc"),
		attribute.String("pump_id", "1234"),
	)

	require.Len(t, safe, 2)
	assert.Equal(t, attribute.Key("http.route"), safe[0].Key)
	assert.Equal(t, attribute.Key("pump_id"), safe[1].Key)
}

func TestSafeErrorTypeOnly(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	err := SafeError(errors.New("dsn=host port=5432 user=irriflow"))
	require.NotNil(t, err)
	assert.NotContains(t, err.Error(), "irriflow")
}

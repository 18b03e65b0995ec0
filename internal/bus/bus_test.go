package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTripWithResponseTopic(t *testing.T) {
	raw, err := encodeEnvelope(map[string]interface{}{"token": "abc"}, "/access_result")
	require.NoError(t, err)

	payload, responseTopic, err := decodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "/access_result", responseTopic)
	assert.Equal(t, "abc", payload["token"])
	_, hasField := payload[responseTopicField]
	assert.False(t, hasField)
}

func TestEnvelopeRoundTripWithoutResponseTopic(t *testing.T) {
	raw, err := encodeEnvelope(map[string]interface{}{"state": true}, "")
	require.NoError(t, err)

	payload, responseTopic, err := decodeEnvelope(raw)
	require.NoError(t, err)
	assert.Empty(t, responseTopic)
	assert.Equal(t, true, payload["state"])
}

func TestDecodeEnvelopeRejectsMalformedJSON(t *testing.T) {
	_, _, err := decodeEnvelope([]byte("not json"))
	require.Error(t, err)
}

func TestSubscribeFansOutMultipleHandlersForSameTopic(t *testing.T) {
	c := New(DefaultConfig("tcp://unused:1883", "test"))

	var calls []string
	require.NoError(t, c.Subscribe("/lock", 1, func(payload map[string]interface{}, responseTopic string) {
		calls = append(calls, "first")
	}))
	require.NoError(t, c.Subscribe("/lock", 1, func(payload map[string]interface{}, responseTopic string) {
		calls = append(calls, "second")
	}))

	for _, h := range c.handlersFor("/lock") {
		h(nil, "")
	}
	assert.Equal(t, []string{"first", "second"}, calls)
}

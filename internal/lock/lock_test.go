package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	topic   string
	payload map[string]interface{}
}

func (p *capturingPublisher) Publish(topic string, qos byte, payload map[string]interface{}, responseTopic string) error {
	p.topic = topic
	p.payload = payload
	return nil
}

func TestMockDriverTracksState(t *testing.T) {
	d := NewMockDriver(true)
	assert.True(t, d.Locked())
	require.NoError(t, d.SetLocked(false))
	assert.False(t, d.Locked())
}

func TestControllerHandleLockSetsDriverState(t *testing.T) {
	d := NewMockDriver(false)
	c := New(d)
	err := c.handleLock(context.Background(), map[string]interface{}{"locked": true}, "")
	require.NoError(t, err)
	assert.True(t, d.Locked())
}

func TestControllerHandleLockStateRepliesWithIntegerState(t *testing.T) {
	d := NewMockDriver(true)
	c := New(d)
	pub := &capturingPublisher{}
	c.SetPublisher(pub)

	err := c.handleLockState(context.Background(), nil, "/lock_result")
	require.NoError(t, err)
	assert.Equal(t, "/lock_result", pub.topic)
	assert.Equal(t, 1, pub.payload["state"])
}

func TestControllerHandleLockStateNoopWithoutResponseTopic(t *testing.T) {
	d := NewMockDriver(true)
	c := New(d)
	pub := &capturingPublisher{}
	c.SetPublisher(pub)

	err := c.handleLockState(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, pub.topic)
}

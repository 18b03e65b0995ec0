package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofie-iot/smaug-locker/internal/controller"
)

func TestMockCheckerParsesWellFormedToken(t *testing.T) {
	c := MockChecker{}
	expires := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	valid, allowed, exp, err := c.Check(context.Background(), "true;lock,unlock;"+expires)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, []string{"lock", "unlock"}, allowed)
	require.NotNil(t, exp)
}

func TestMockCheckerParsesAllKeyword(t *testing.T) {
	c := MockChecker{}
	expires := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	_, allowed, _, err := c.Check(context.Background(), "true;all;"+expires)
	require.NoError(t, err)
	assert.Equal(t, AllActions, allowed)
}

func TestMockCheckerFallsBackOnParseError(t *testing.T) {
	c := MockChecker{}
	valid, allowed, exp, err := c.Check(context.Background(), "garbage-token")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, AllActions, allowed)
	require.NotNil(t, exp)
	assert.True(t, exp.After(time.Now().UTC()))
}

func TestMockCheckerDeniesBareYearExpiryInThePast(t *testing.T) {
	c := MockChecker{}
	valid, _, exp, err := c.Check(context.Background(), "0;;1970")
	require.NoError(t, err)
	assert.False(t, valid)
	require.NotNil(t, exp)
	assert.Equal(t, 1970, exp.Year())
}

func TestMockCheckerGrantsBareYearExpiryInTheFuture(t *testing.T) {
	c := MockChecker{}
	valid, allowed, exp, err := c.Check(context.Background(), "1;all;9999")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, AllActions, allowed)
	require.NotNil(t, exp)
	assert.Equal(t, 9999, exp.Year())
}

func TestEvaluateDeniesOnInvalidToken(t *testing.T) {
	assert.False(t, evaluate(false, AllActions, []string{"lock"}, nil))
}

func TestEvaluateDeniesOnDisallowedAction(t *testing.T) {
	assert.False(t, evaluate(true, []string{"state"}, []string{"lock"}, nil))
}

func TestEvaluateDeniesOnExpiredGrant(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	assert.False(t, evaluate(true, AllActions, []string{"lock"}, &past))
}

func TestEvaluateGrantsWhenValidAllowedAndUnexpired(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)
	assert.True(t, evaluate(true, AllActions, []string{"lock", "state"}, &future))
}

type capturingPublisher struct {
	topic   string
	payload map[string]interface{}
}

func (p *capturingPublisher) Publish(topic string, qos byte, payload map[string]interface{}, responseTopic string) error {
	p.topic = topic
	p.payload = payload
	return nil
}

func TestControllerHandleAccessPublishesToResponseTopic(t *testing.T) {
	c := New(MockChecker{})
	pub := &capturingPublisher{}
	c.SetPublisher(pub)

	err := c.handleAccess(context.Background(), map[string]interface{}{
		"id":      "req-1",
		"token":   "true;all;" + time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		"actions": []interface{}{"lock"},
	}, "/access_result")

	require.NoError(t, err)
	assert.Equal(t, "/access_result", pub.topic)
	assert.Equal(t, true, pub.payload["allowed"])
}

func TestControllerHandleAccessDefaultsTopicWhenNoResponseTopic(t *testing.T) {
	c := New(MockChecker{})
	pub := &capturingPublisher{}
	c.SetPublisher(pub)

	err := c.handleAccess(context.Background(), map[string]interface{}{
		"id": "req-2", "token": "garbage",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "/access_result", pub.topic)
}

var _ controller.Publisher = (*capturingPublisher)(nil)

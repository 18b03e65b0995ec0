package wot

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofie-iot/smaug-locker/internal/fence"
)

type capturingPublisher struct {
	topic   string
	payload map[string]interface{}
	f       *fence.Fence
	grant   bool
}

func (p *capturingPublisher) Publish(topic string, qos byte, payload map[string]interface{}, responseTopic string) error {
	p.topic = topic
	p.payload = payload
	if topic == "/access" {
		id, _ := payload["id"].(string)
		go p.f.Complete(id, fence.Result{OK: true, Value: map[string]interface{}{"allowed": p.grant}})
	}
	return nil
}

func TestHandleIndexReturnsRouteList(t *testing.T) {
	f := New(fence.New())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleStatusReflectsLockMessage(t *testing.T) {
	f := New(fence.New())
	require.NoError(t, f.HandleLockMessage(nil, map[string]interface{}{"locked": true}, ""))

	req := httptest.NewRequest(http.MethodGet, "/api/status/locked", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"locked":1`)
}

func TestActionLockRejectsMissingToken(t *testing.T) {
	f := New(fence.New())
	req := httptest.NewRequest(http.MethodPost, "/api/action/lock", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestActionLockDeniesWhenAccessNotGranted(t *testing.T) {
	fc := fence.New()
	pub := &capturingPublisher{f: fc, grant: false}
	f := New(fc)
	f.SetPublisher(pub)

	req := httptest.NewRequest(http.MethodPost, "/api/action/lock", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	resp, err := f.app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestControllerHandlersRouteLockAndAccessResult(t *testing.T) {
	f := New(fence.New())
	c := NewController(f, ":0")

	require.NoError(t, f.HandleLockMessage(nil, map[string]interface{}{"locked": true}, ""))
	assert.Equal(t, "true", f.lockedStr)

	handlers := c.Handlers()
	topics := make(map[string]bool, len(handlers))
	for _, h := range handlers {
		topics[h.Topic] = true
	}
	assert.True(t, topics["/lock"])
	assert.True(t, topics["/access_result"])
}

func TestActionUnlockGrantsAndPublishesLockCommand(t *testing.T) {
	fc := fence.New()
	pub := &capturingPublisher{f: fc, grant: true}
	f := New(fc)
	f.SetPublisher(pub)

	req := httptest.NewRequest(http.MethodPost, "/api/action/unlock", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	resp, err := f.app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/lock", pub.topic)
	assert.Equal(t, false, pub.payload["locked"])
}

package nfcsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofie-iot/smaug-locker/internal/fence"
	"github.com/sofie-iot/smaug-locker/internal/record"
)

type fakePublisher struct {
	calls []publishCall
	f     *fence.Fence
}

type publishCall struct {
	topic   string
	payload map[string]interface{}
}

func (p *fakePublisher) Publish(topic string, qos byte, payload map[string]interface{}, responseTopic string) error {
	p.calls = append(p.calls, publishCall{topic: topic, payload: payload})
	id, _ := payload["id"].(string)

	switch topic {
	case "/access":
		go p.f.Complete(id, fence.Result{OK: true, Value: map[string]interface{}{
			"allowed": true,
			"actions": []interface{}{"lock", "unlock", "state"},
		}})
	case "/lock/state":
		go p.f.Complete(id, fence.Result{OK: true, Value: map[string]interface{}{"state": true}})
	}
	return nil
}

func TestHandleVerifyGrantsOnAccessSuccess(t *testing.T) {
	f := fence.New()
	pub := &fakePublisher{f: f}
	e := &Engine{fence: f, pub: pub}
	sess := &session{}

	reply := e.handleVerify(context.Background(), sess, &record.Verify{Token: "tok"})
	assert.IsType(t, &record.VerifySuccess{}, reply)
	assert.True(t, sess.hasAccess)
	assert.ElementsMatch(t, []string{"lock", "unlock", "state"}, sess.allowedOps)
}

func TestHandleVerifyDeniesOnTimeout(t *testing.T) {
	f := fence.New()
	e := &Engine{fence: f, pub: &noopPublisher{}}
	sess := &session{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	reply := e.handleVerify(ctx, sess, &record.Verify{Token: "tok"})
	assert.IsType(t, &record.VerifyFailure{}, reply)
	assert.False(t, sess.hasAccess)
	assert.Less(t, time.Since(start), 10*time.Second)
}

type noopPublisher struct{}

func (noopPublisher) Publish(topic string, qos byte, payload map[string]interface{}, responseTopic string) error {
	return nil
}

func TestHandleQueryDeniedWithoutAccess(t *testing.T) {
	e := &Engine{}
	sess := &session{}
	reply := e.handleQuery(context.Background(), sess)
	failure, ok := reply.(*record.QueryFailure)
	require.True(t, ok)
	assert.Equal(t, msgAuthMissing, failure.Message)
}

func TestHandleQueryDeniedWhenAccessGrantedButStateNotAllowed(t *testing.T) {
	e := &Engine{}
	sess := &session{hasAccess: true, allowedOps: []string{"lock", "unlock"}}
	reply := e.handleQuery(context.Background(), sess)
	failure, ok := reply.(*record.QueryFailure)
	require.True(t, ok)
	assert.Equal(t, msgQueryDenied, failure.Message)
}

func TestHandleOpenDummyModeSucceedsWhenAllowed(t *testing.T) {
	e := &Engine{dummyLock: true, wasOpen: true}
	sess := &session{hasAccess: true, allowedOps: []string{"unlock"}}
	reply := e.handleOpen(context.Background(), sess)
	success, ok := reply.(*record.OpenSuccess)
	require.True(t, ok)
	assert.Equal(t, record.StateOpen, success.State)
}

func TestHandleCloseDummyModeSucceedsWhenAllowed(t *testing.T) {
	e := &Engine{dummyLock: true, wasOpen: true}
	sess := &session{hasAccess: true, allowedOps: []string{"lock"}}
	reply := e.handleClose(context.Background(), sess)
	success, ok := reply.(*record.CloseSuccess)
	require.True(t, ok)
	assert.Equal(t, record.StateClosed, success.State)
}

func TestHandleOpenDeniedWithoutPermission(t *testing.T) {
	e := &Engine{dummyLock: true}
	sess := &session{hasAccess: true, allowedOps: []string{"state"}}
	reply := e.handleOpen(context.Background(), sess)
	failure, ok := reply.(*record.OpenFailure)
	require.True(t, ok)
	assert.Equal(t, msgOpenDenied, failure.Message)
}

func TestDispatchEchoRepliesWithSameMessage(t *testing.T) {
	e := &Engine{}
	sess := &session{}
	wire, err := record.Encode(&record.Echo{Message: "ping"})
	require.NoError(t, err)

	reply, err := e.dispatch(context.Background(), sess, wire)
	require.NoError(t, err)
	echo, ok := reply.(*record.EchoSuccess)
	require.True(t, ok)
	assert.Equal(t, "ping", echo.Message)
}

func TestDispatchMalformedFrameYieldsVerifyFailure(t *testing.T) {
	e := &Engine{}
	sess := &session{}
	reply, err := e.dispatch(context.Background(), sess, []byte{0xff})
	require.NoError(t, err)
	assert.IsType(t, &record.VerifyFailure{}, reply)
}

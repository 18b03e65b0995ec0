// Package nfcsession implements the NFC session engine: per-tap
// dispatch of Verify/Query/Open/Close requests against the access and
// lock controllers (reached through the correlation fabric), and the
// tap loop that drives a nfcfront.Transport end to end.
package nfcsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/fence"
	"github.com/sofie-iot/smaug-locker/internal/logger"
	"github.com/sofie-iot/smaug-locker/internal/nfcfront"
	"github.com/sofie-iot/smaug-locker/internal/record"
)

const (
	lockStateTimeout = time.Second
	accessTimeout    = 5 * time.Second
)

// Failure message strings, preserved verbatim from the reference
// controller so client tooling that matches on them keeps working.
const (
	msgAuthMissing  = "Authentication missing or invalid"
	msgQueryDenied  = "Query operation not allowed"
	msgOpenDenied   = "Open operation not allowed"
	msgCloseDenied  = "Close operation not allowed"
	msgLockOpFailed = "Failed operating the lock"
)

// session tracks the access grant and lock-state belief for a single
// tap, from Announce through teardown.
type session struct {
	hasAccess  bool
	allowedOps []string
	isOpen     *bool // nil: unknown, must refresh before trusting it
}

// allows reports whether op is among the grants from the last
// successful Verify. It does not consider hasAccess: callers must
// check that separately so an absent/expired grant and a granted-but-
// narrower-scope token produce distinct failure messages.
func (s *session) allows(op string) bool {
	for _, a := range s.allowedOps {
		if a == op {
			return true
		}
	}
	return false
}

// Engine runs the NFC session lifecycle: it owns the transport, the
// announce record, and talks to the access/lock controllers via the
// shared correlation fabric.
type Engine struct {
	transport *nfcfront.Transport
	announce  *record.Announce
	fence     *fence.Fence
	pub       controller.Publisher
	dummyLock bool

	mu      sync.Mutex
	wasOpen bool // locked==false i.e. "open" convention: last known/commanded state
}

// NewEngine builds an Engine. dummyLock, when true, skips all lock
// bus traffic and simply tracks state in memory (useful for nfc-only
// development without a lock controller attached).
func NewEngine(transport *nfcfront.Transport, announce *record.Announce, f *fence.Fence, dummyLock bool) *Engine {
	return &Engine{transport: transport, announce: announce, fence: f, dummyLock: dummyLock, wasOpen: true}
}

func (e *Engine) SetPublisher(pub controller.Publisher) { e.pub = pub }

// Run drives the tap loop until ctx is cancelled: wait for a reader to
// select this target, announce, then service requests until the
// reader tears the session down, and repeat.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := e.transport.Listen(ctx); err != nil {
			if err == nfcfront.ErrSessionClosed {
				return nil
			}
			logger.Get().Warn("nfcsession: listen error, retrying")
			continue
		}

		if err := e.communicate(ctx); err != nil && err != nfcfront.ErrSessionClosed {
			logger.Get().Warn("nfcsession: session error")
		}
	}
}

// communicate runs one tap: send Announce, then loop receiving and
// replying to requests until the session closes.
func (e *Engine) communicate(ctx context.Context) error {
	sess := &session{}

	announceWire, err := record.Encode(e.announce)
	if err != nil {
		return fmt.Errorf("nfcsession: encode announce: %w", err)
	}

	var reqWire []byte
	reqWire, err = e.transport.Send(ctx, byte(e.announce.Tag()), announceWire[1:])
	if err != nil {
		return err
	}

	for {
		var reply record.Record
		reply, err = e.dispatch(ctx, sess, reqWire)
		if err != nil {
			return err
		}

		var wire []byte
		wire, err = record.Encode(reply)
		if err != nil {
			return fmt.Errorf("nfcsession: encode reply: %w", err)
		}

		reqWire, err = e.transport.Send(ctx, byte(reply.Tag()), wire[1:])
		if err != nil {
			return err
		}
	}
}

// dispatch decodes one request frame and returns the reply record.
func (e *Engine) dispatch(ctx context.Context, sess *session, wire []byte) (record.Record, error) {
	req, err := record.Decode(wire)
	if err != nil {
		return &record.VerifyFailure{Message: msgAuthMissing}, nil
	}

	switch r := req.(type) {
	case *record.Echo:
		return &record.EchoSuccess{Message: r.Message}, nil
	case *record.Verify:
		return e.handleVerify(ctx, sess, r), nil
	case *record.Query:
		return e.handleQuery(ctx, sess), nil
	case *record.Open:
		return e.handleOpen(ctx, sess), nil
	case *record.Close:
		return e.handleClose(ctx, sess), nil
	default:
		return &record.VerifyFailure{Message: msgAuthMissing}, nil
	}
}

func (e *Engine) handleVerify(ctx context.Context, sess *session, v *record.Verify) record.Record {
	result := e.fence.Fire(ctx, accessTimeout, func(fireID string) error {
		return e.pub.Publish("/access", 1, map[string]interface{}{
			"id":      fireID,
			"token":   v.Token,
			"actions": []interface{}{},
		}, "/access_result")
	})

	if !result.Bool() {
		sess.hasAccess = false
		return &record.VerifyFailure{Message: msgAuthMissing}
	}

	payload, _ := result.Value.(map[string]interface{})
	allowed, _ := payload["allowed"].(bool)
	if !allowed {
		sess.hasAccess = false
		return &record.VerifyFailure{Message: msgAuthMissing}
	}

	sess.hasAccess = true
	sess.allowedOps = actionsFromPayload(payload)
	return &record.VerifySuccess{}
}

func actionsFromPayload(payload map[string]interface{}) []string {
	raw, _ := payload["actions"].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) handleQuery(ctx context.Context, sess *session) record.Record {
	if !sess.hasAccess {
		return &record.QueryFailure{Message: msgAuthMissing}
	}
	if !sess.allows("state") {
		return &record.QueryFailure{Message: msgQueryDenied}
	}
	if err := e.refreshLockState(ctx, sess); err != nil {
		return &record.QueryFailure{Message: msgLockOpFailed}
	}
	return &record.QuerySuccess{State: lockStateFor(*sess.isOpen)}
}

func (e *Engine) handleOpen(ctx context.Context, sess *session) record.Record {
	if !sess.hasAccess {
		return &record.OpenFailure{Message: msgAuthMissing, State: e.currentLockState(sess)}
	}
	if !sess.allows("unlock") {
		return &record.OpenFailure{Message: msgOpenDenied, State: e.currentLockState(sess)}
	}
	if err := e.setLockLocked(ctx, sess, false); err != nil {
		return &record.OpenFailure{Message: msgLockOpFailed, State: e.currentLockState(sess)}
	}
	return &record.OpenSuccess{State: lockStateFor(*sess.isOpen)}
}

func (e *Engine) handleClose(ctx context.Context, sess *session) record.Record {
	if !sess.hasAccess {
		return &record.CloseFailure{Message: msgAuthMissing, State: e.currentLockState(sess)}
	}
	if !sess.allows("lock") {
		return &record.CloseFailure{Message: msgCloseDenied, State: e.currentLockState(sess)}
	}
	if err := e.setLockLocked(ctx, sess, true); err != nil {
		return &record.CloseFailure{Message: msgLockOpFailed, State: e.currentLockState(sess)}
	}
	return &record.CloseSuccess{State: lockStateFor(*sess.isOpen)}
}

// lockStateFor maps the engine's isOpen belief to the wire enum.
func lockStateFor(open bool) record.LockState {
	if open {
		return record.StateOpen
	}
	return record.StateClosed
}

// currentLockState reports the session's last known state, defaulting
// to closed when nothing has been observed yet.
func (e *Engine) currentLockState(sess *session) record.LockState {
	if sess.isOpen == nil {
		return record.StateClosed
	}
	return lockStateFor(*sess.isOpen)
}

// refreshLockState fetches the actuator's current state from the lock
// controller unless it is already known for this session. In dummy
// mode the engine trusts its own last-commanded state (wasOpen).
//
// Locked is defined as "actuator engaged"; isOpen is the inverse.
// This is the single documented polarity convention the whole engine
// uses (see DESIGN.md).
func (e *Engine) refreshLockState(ctx context.Context, sess *session) error {
	if sess.isOpen != nil {
		return nil
	}

	e.mu.Lock()
	dummy := e.dummyLock
	wasOpen := e.wasOpen
	e.mu.Unlock()

	if dummy {
		open := wasOpen
		sess.isOpen = &open
		return nil
	}

	result := e.fence.Fire(ctx, lockStateTimeout, func(id string) error {
		return e.pub.Publish("/lock/state", 1, map[string]interface{}{"id": id}, "/lock_result")
	})
	if !result.Bool() {
		return fmt.Errorf("nfcsession: refresh lock state: %w", result.Err)
	}

	payload, _ := result.Value.(map[string]interface{})
	locked := isLockedStateValue(payload["state"])
	open := !locked
	sess.isOpen = &open
	return nil
}

func isLockedStateValue(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

// setLockLocked commands the actuator to locked/unlocked and updates
// both the session's and the engine's belief about the resulting
// state. In dummy mode no bus traffic is sent.
func (e *Engine) setLockLocked(ctx context.Context, sess *session, locked bool) error {
	e.mu.Lock()
	dummy := e.dummyLock
	e.mu.Unlock()

	if !dummy {
		if err := e.pub.Publish("/lock", 1, map[string]interface{}{"locked": locked}, ""); err != nil {
			return fmt.Errorf("nfcsession: publish lock command: %w", err)
		}
	}

	open := !locked
	sess.isOpen = &open

	e.mu.Lock()
	e.wasOpen = open
	e.mu.Unlock()
	return nil
}

// HandleAccessResult completes the fence slot named by payload["id"]
// with the access controller's response. Registered as the
// "/access_result" handler.
func (e *Engine) HandleAccessResult(ctx context.Context, payload map[string]interface{}, responseTopic string) error {
	id, _ := payload["id"].(string)
	if id == "" {
		return nil
	}
	e.fence.Complete(id, fence.Result{OK: true, Value: payload})
	return nil
}

// HandleLockResult completes the fence slot named by payload["id"]
// with the lock controller's state response. Registered as the
// "/lock_result" handler.
func (e *Engine) HandleLockResult(ctx context.Context, payload map[string]interface{}, responseTopic string) error {
	id, _ := payload["id"].(string)
	if id == "" {
		return nil
	}
	e.fence.Complete(id, fence.Result{OK: true, Value: payload})
	return nil
}

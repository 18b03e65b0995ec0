package nfcfront

import (
	"context"
	"sync"
)

// MockDevice is a portable, in-memory Device used by tests and by the
// "--mock" nfc-controller binary. A test drives it by feeding scripted
// reader frames through Script and reading emitted replies from Sent.
type MockDevice struct {
	mu      sync.Mutex
	cond    *sync.Cond
	script  [][]byte
	sent    [][]byte
	closed  bool
	waiting bool
}

// NewMockDevice creates a device that, once WaitForSelect is called,
// immediately considers itself selected (no physical handshake to
// simulate beyond what Transport itself does at the APDU level).
func NewMockDevice() *MockDevice {
	m := &MockDevice{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Script queues frames the mock device will return from Exchange, in
// order, standing in for an initiator's commands.
func (m *MockDevice) Script(frames ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, frames...)
	m.cond.Broadcast()
}

// Sent returns every reply the Transport has written so far.
func (m *MockDevice) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockDevice) WaitForSelect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSessionClosed
	}
	m.waiting = true
	return nil
}

func (m *MockDevice) Exchange(ctx context.Context, reply []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reply != nil {
		m.sent = append(m.sent, reply)
	}
	for len(m.script) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return nil, ErrSessionClosed
	}
	next := m.script[0]
	m.script = m.script[1:]
	return next, nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}

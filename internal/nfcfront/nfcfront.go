// Package nfcfront implements the half-duplex ISO-14443-A Type 4 tag
// emulation transport the locker uses to talk to a reader: SENS_RES/
// SDD_RES/SEL_RES advertisement, probe-APDU handling, SELECT DF (AID)
// matching, and the control-byte toggling I-block exchange that rides
// on top of it.
package nfcfront

import (
	"bytes"
	"context"
	"errors"
)

// ErrSessionClosed is returned by Send/Listen once the reader has torn
// down the session (control byte 0xB3) or the device has been closed.
var ErrSessionClosed = errors.New("nfcfront: session closed")

// continuationBit marks an I-block frame that has more data following.
const continuationBit = 0b00100000

// teardownControlByte is sent by the reader to end a session.
const teardownControlByte = 0xb3

// probeAPDU is the exact probe frame nfcpy-compatible readers issue
// before SELECT DF; the locker replies with a bare status-OK APDU.
var probeAPDU = []byte{0x02, 0x00, 0xb0, 0x00, 0x00, 0x01}
var probeReply = []byte{0x90, 0x00}

// selectDFPrefix is the command header of an ISO 7816-4 SELECT DF by
// name (select-by-AID), as issued before any application-level frame.
var selectDFPrefix = []byte{0x00, 0xa4, 0x04, 0x00}

// Device abstracts the low-level radio: advertising as an ISO-14443-A
// Type 4 target and exchanging raw APDU frames with an initiator
// (reader). The real driver is built on clausecker/nfc/v2 behind a
// Linux build tag; MockDevice backs portable tests.
type Device interface {
	// WaitForSelect blocks until an initiator selects this target,
	// returning once the link is established (SENS_RES/SDD_RES/SEL_RES
	// have been answered). It returns ErrSessionClosed if the device is
	// closed while waiting.
	WaitForSelect(ctx context.Context) error

	// Exchange sends reply and returns the next command frame from the
	// initiator. reply may be nil on the very first call (nothing to
	// send yet). Returns ErrSessionClosed when the link drops.
	Exchange(ctx context.Context, reply []byte) ([]byte, error)

	Close() error
}

// Transport drives a Device through the session lifecycle: advertise,
// accept the SELECT DF handshake (validating the AID), then hand off
// to application-level Send/Receive semantics.
type Transport struct {
	dev Device
	aid []byte
}

// NewTransport wraps dev, validating SELECT DF attempts against aid.
func NewTransport(dev Device, aid []byte) *Transport {
	return &Transport{dev: dev, aid: aid}
}

// Listen blocks until a reader selects this target and its SELECT DF
// names the configured AID. It transparently answers probe APDUs and
// ignores AID mismatches by continuing to wait, mirroring the
// reference tap protocol.
func (t *Transport) Listen(ctx context.Context) error {
	if err := t.dev.WaitForSelect(ctx); err != nil {
		return err
	}

	var reply []byte
	for {
		cmd, err := t.dev.Exchange(ctx, reply)
		if err != nil {
			return err
		}
		if cmd == nil {
			return ErrSessionClosed
		}

		if bytes.Equal(cmd, probeAPDU) {
			reply = probeReply
			continue
		}

		if len(cmd) >= 6 && bytes.Equal(cmd[1:5], selectDFPrefix) {
			lc := int(cmd[5])
			if len(cmd) < 6+lc || !bytes.Equal(cmd[6:6+lc], t.aid) {
				reply = nil
				continue
			}
			return nil
		}

		reply = nil
	}
}

// Send transmits msgType and data as one record's wire bytes and
// returns the command that follows. It implements the control-byte
// toggle (0x02 | last-bit), re-embeds msgType as the leading byte of
// the outgoing I-block so the reader can decode the reply's tag, and
// reassembles continuation frames into a single logical command.
func (t *Transport) Send(ctx context.Context, msgType byte, data []byte) ([]byte, error) {
	lastControl := byte(0x00)
	payload := append([]byte{msgType}, data...)
	frame := buildIBlock(lastControl, payload)

	reply, err := t.dev.Exchange(ctx, frame)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, ErrSessionClosed
	}
	if reply[0] == teardownControlByte {
		return nil, ErrSessionClosed
	}

	full := append([]byte{}, reply[1:]...)
	for len(reply) > 0 && reply[0]&continuationBit != 0 {
		lastControl = reply[0]
		ackFrame := buildIBlock(lastControl, nil)
		reply, err = t.dev.Exchange(ctx, ackFrame)
		if err != nil {
			return nil, err
		}
		if reply == nil {
			return nil, ErrSessionClosed
		}
		if reply[0] == teardownControlByte {
			return nil, ErrSessionClosed
		}
		full = append(full, reply[1:]...)
	}

	return full, nil
}

// buildIBlock frames an I-block with the control byte derived from the
// previous one: bit 1 is always set and bit 0 is copied from
// lastControl.
func buildIBlock(lastControl byte, data []byte) []byte {
	control := 0x02 | (lastControl & 0x01)
	out := make([]byte, 0, len(data)+1)
	out = append(out, control)
	out = append(out, data...)
	return out
}

// Close releases the underlying device.
func (t *Transport) Close() error {
	return t.dev.Close()
}

package nfcfront

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofie-iot/smaug-locker/internal/record"
)

var testAID = []byte{0xf0, 0x01, 0x02, 0x03}

func selectDFFrame(aid []byte) []byte {
	out := []byte{0x02, 0x00, 0xa4, 0x04, 0x00, byte(len(aid))}
	return append(out, aid...)
}

func TestTransportListenAnswersProbeThenSelectsMatchingAID(t *testing.T) {
	dev := NewMockDevice()
	dev.Script(probeAPDU, selectDFFrame(testAID))
	tr := NewTransport(dev, testAID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := tr.Listen(ctx)
	require.NoError(t, err)

	sent := dev.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, probeReply, sent[0])
}

func TestTransportListenIgnoresMismatchedAID(t *testing.T) {
	dev := NewMockDevice()
	dev.Script(selectDFFrame([]byte{0xde, 0xad}), selectDFFrame(testAID))
	tr := NewTransport(dev, testAID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := tr.Listen(ctx)
	require.NoError(t, err)
}

func TestTransportSendReassemblesContinuationFrames(t *testing.T) {
	wire, err := record.Encode(&record.Echo{Message: "hello-chunked"})
	require.NoError(t, err)
	require.Greater(t, len(wire), 2)
	split := len(wire) / 2

	dev := NewMockDevice()
	// First reply: continuation bit set, carries the first half of a
	// real encoded record's wire bytes.
	dev.Script(append([]byte{0x02 | continuationBit}, wire[:split]...))
	// Second reply, sent after our ack, carries the rest.
	dev.Script(append([]byte{0x03}, wire[split:]...))

	tr := NewTransport(dev, testAID)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := tr.Send(ctx, byte(record.TagEcho), []byte{0x99})
	require.NoError(t, err)
	require.Equal(t, wire, got)

	decoded, err := record.Decode(got)
	require.NoError(t, err)
	echo, ok := decoded.(*record.Echo)
	require.True(t, ok)
	assert.Equal(t, "hello-chunked", echo.Message)

	sent := dev.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []byte{0x02, byte(record.TagEcho), 0x99}, sent[0])
	assert.Equal(t, []byte{0x02}, sent[1]) // ack: control byte alone, no payload
}

func TestTransportSendReturnsSessionClosedOnTeardown(t *testing.T) {
	dev := NewMockDevice()
	dev.Script([]byte{teardownControlByte})

	tr := NewTransport(dev, testAID)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := tr.Send(ctx, 0x01, []byte{0x99})
	require.ErrorIs(t, err, ErrSessionClosed)
}

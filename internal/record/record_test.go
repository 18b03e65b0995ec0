package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestAnnounceRoundTrip(t *testing.T) {
	a, err := NewAnnounce("0xabc123", "locker-7", "Front Desk Locker",
		[]string{"https://example.com/a.png"}, OpenTapClose)
	require.NoError(t, err)

	wire, err := Encode(a)
	require.NoError(t, err)
	assert.Equal(t, byte(TagAnnounce), wire[0])

	decoded, err := Decode(wire)
	require.NoError(t, err)
	got, ok := decoded.(*Announce)
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestNewAnnounceRejectsInvalidOpenCloseType(t *testing.T) {
	_, err := NewAnnounce("0xabc", "locker-1", "x", nil, OpenCloseType("bogus"))
	require.Error(t, err)
}

func TestEveryRecordRoundTrips(t *testing.T) {
	cases := []Record{
		&Verify{Token: "tok-123"},
		&VerifySuccess{},
		&VerifyFailure{Message: "bad token"},
		&Echo{Message: "ping"},
		&EchoSuccess{Message: "ping"},
		&Query{},
		&QuerySuccess{State: StateClosed},
		&QueryFailure{Message: "not allowed"},
		&Open{},
		&OpenSuccess{State: StateOpen},
		&OpenFailure{Message: "failed", State: StateClosed},
		&Close{},
		&CloseSuccess{State: StateClosed},
		&CloseFailure{Message: "failed", State: StateOpen},
	}
	for _, r := range cases {
		wire, err := Encode(r)
		require.NoError(t, err)
		decoded, err := Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, r, decoded)
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := Decode([]byte{0xff})
	require.Error(t, err)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestDecodeRejectsEmptyFrame(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
}

func TestDecodeRejectsMissingRequiredField(t *testing.T) {
	wire, err := Encode(&Verify{Token: "x"})
	require.NoError(t, err)

	// Re-encode with an empty body to simulate a missing required field.
	stripped := []byte{wire[0]}
	_, err = Decode(stripped)
	require.Error(t, err)
}

func TestDecodeRejectsUnknownField(t *testing.T) {
	wire, err := Encode(&Echo{Message: "hi"})
	require.NoError(t, err)

	decoded, err := Decode(wire)
	require.NoError(t, err)
	assert.IsType(t, &Echo{}, decoded)

	// Hand-craft a body with an extra, unrecognized field.
	malformed, err := encodeRawForTest(TagEcho, map[string]interface{}{
		"message": "hi",
		"extra":   "nope",
	})
	require.NoError(t, err)
	_, err = Decode(malformed)
	require.Error(t, err)
}

func encodeRawForTest(tag Tag, fields map[string]interface{}) ([]byte, error) {
	body, err := msgpack.Marshal(fields)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(tag))
	out = append(out, body...)
	return out, nil
}

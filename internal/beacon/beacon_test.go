package beacon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadHexRightJustifiesAndZeroPads(t *testing.T) {
	out, err := padHex("0abc", 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x0a, 0xbc}, out)
}

func TestPadHexRejectsOversizedValue(t *testing.T) {
	_, err := padHex("aabbccddeeff00", 6)
	require.Error(t, err)
}

func TestPadHexRejectsInvalidHex(t *testing.T) {
	_, err := padHex("zzzz", 6)
	require.Error(t, err)
}

func TestEddystoneUIDFrameLayout(t *testing.T) {
	c := &Controller{cfg: Config{TxPower: -20}}
	copy(c.namespace[:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	copy(c.instance[:], []byte{0xa, 0xb, 0xc, 0xd, 0xe, 0xf})

	frame := c.eddystoneUIDFrame()
	require.Len(t, frame, 18)
	assert.Equal(t, byte(eddystoneFrameUID), frame[0])
	assert.Equal(t, byte(0xec), frame[1]) // -20 as byte
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, frame[2:12])
	assert.Equal(t, []byte{0xa, 0xb, 0xc, 0xd, 0xe, 0xf}, frame[12:18])
}

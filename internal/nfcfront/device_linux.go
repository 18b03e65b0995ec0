//go:build linux

package nfcfront

import (
	"context"
	"fmt"

	"github.com/clausecker/nfc/v2"
)

// sensRes/sddRes/selRes are the fixed ISO-14443-A emulation parameters
// the locker advertises as a Type 4 target.
var (
	sensRes = [2]byte{0x01, 0x01}
	sddRes  = [4]byte{0x08, 0x01, 0x02, 0x03}
	selRes  = byte(0x20)
)

// LibNFCDevice implements Device against a real reader/PN53x-class
// adapter via libnfc, operating in ISO-14443-A target emulation mode.
type LibNFCDevice struct {
	dev    nfc.Device
	target nfc.ISO14443aTarget
}

// OpenLibNFCDevice opens the libnfc device named by connstring ("" for
// the default device).
func OpenLibNFCDevice(connstring string) (*LibNFCDevice, error) {
	dev, err := nfc.Open(connstring)
	if err != nil {
		return nil, fmt.Errorf("nfcfront: open device: %w", err)
	}
	return &LibNFCDevice{
		dev: dev,
		target: nfc.ISO14443aTarget{
			Atqa: sensRes,
			Sak:  selRes,
			UID:  [10]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			ATS:  sddRes[:],
		},
	}, nil
}

func (d *LibNFCDevice) WaitForSelect(ctx context.Context) error {
	mod := nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106}
	_, err := d.dev.TargetInit(d.target, mod, 0)
	if err != nil {
		return fmt.Errorf("nfcfront: target init: %w", err)
	}
	return nil
}

func (d *LibNFCDevice) Exchange(ctx context.Context, reply []byte) ([]byte, error) {
	if reply != nil {
		if _, err := d.dev.TargetSend(reply, 0); err != nil {
			return nil, fmt.Errorf("nfcfront: target send: %w", err)
		}
	}
	var buf [264]byte
	n, err := d.dev.TargetReceive(buf[:])
	if err != nil {
		return nil, fmt.Errorf("nfcfront: target receive: %w", err)
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

func (d *LibNFCDevice) Close() error {
	return d.dev.Close()
}

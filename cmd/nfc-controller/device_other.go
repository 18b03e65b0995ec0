//go:build !linux

package main

import (
	"fmt"

	"github.com/sofie-iot/smaug-locker/internal/nfcfront"
)

func openRealDevice(connstring string) (nfcfront.Device, error) {
	return nil, fmt.Errorf("nfc-controller: real NFC hardware support requires linux; use --mock")
}

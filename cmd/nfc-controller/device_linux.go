//go:build linux

package main

import "github.com/sofie-iot/smaug-locker/internal/nfcfront"

func openRealDevice(connstring string) (nfcfront.Device, error) {
	return nfcfront.OpenLibNFCDevice(connstring)
}

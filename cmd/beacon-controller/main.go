// Command beacon-controller advertises the locker's Eddystone-UID BLE
// beacon so nearby scanners can discover it without an NFC tap.
package main

import (
	"flag"
	"os"

	"github.com/sofie-iot/smaug-locker/internal/beacon"
	"github.com/sofie-iot/smaug-locker/internal/bus"
	"github.com/sofie-iot/smaug-locker/internal/cli"
	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/logger"
)

func main() {
	hci := flag.String("hci", "hci0", "Bluetooth adapter to advertise from")
	lockerIID := flag.String("locker-iid", "", "hex instance id, zero-padded to 6 bytes")
	lockerNSID := flag.String("locker-nsid", "", "hex namespace id, zero-padded to 10 bytes")
	txPower := flag.Int("tx-power", -20, "calibrated tx power advertised in the Eddystone frame")

	f := cli.Parse("beacon-controller")

	ctrl, err := beacon.New(beacon.Config{
		HCI:        *hci,
		LockerIID:  *lockerIID,
		LockerNSID: *lockerNSID,
		TxPower:    int8(*txPower),
	})
	if err != nil {
		logger.Get().Error("beacon-controller: invalid beacon configuration")
		os.Exit(1)
	}

	client := bus.New(bus.DefaultConfig(f.MQTTServer, f.MQTTClientID))
	rt := controller.New(client, f.Prefix, ctrl)

	if err := cli.Run(rt, f); err != nil {
		logger.Get().Error("beacon-controller exited with error")
		os.Exit(1)
	}
}

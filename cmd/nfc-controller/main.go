// Command nfc-controller runs the NFC session engine: it emulates an
// ISO-14443-A Type 4 tag, announces the locker on every tap, and
// dispatches Verify/Query/Open/Close against the access and lock
// controllers reached over the bus.
package main

import (
	"encoding/hex"
	"flag"
	"os"

	"github.com/sofie-iot/smaug-locker/internal/bus"
	"github.com/sofie-iot/smaug-locker/internal/cli"
	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/fence"
	"github.com/sofie-iot/smaug-locker/internal/logger"
	"github.com/sofie-iot/smaug-locker/internal/nfcfront"
	"github.com/sofie-iot/smaug-locker/internal/nfcsession"
	"github.com/sofie-iot/smaug-locker/internal/record"
)

func main() {
	device := flag.String("device", "", "libnfc connstring (\"\" for the default reader)")
	aid := flag.String("aid", "f0010203", "hex application id to answer SELECT DF for")
	contractAddress := flag.String("contract-address", "", "locker's on-chain contract address")
	lockerID := flag.String("locker-id", "", "locker id advertised in Announce")
	lockerName := flag.String("locker-name", "", "locker display name advertised in Announce")
	openCloseType := flag.String("open-close-type", string(record.OpenTapClose), "open-tap-close|open-push-close|open-delay-push-close")
	dummyLock := flag.Bool("dummy-lock", false, "skip lock bus traffic, track lock state in memory")

	f := cli.Parse("nfc-controller")

	aidBytes, err := hex.DecodeString(*aid)
	if err != nil {
		logger.Get().Error("nfc-controller: invalid --aid hex")
		os.Exit(1)
	}

	announce, err := record.NewAnnounce(*contractAddress, *lockerID, *lockerName, nil, record.OpenCloseType(*openCloseType))
	if err != nil {
		logger.Get().Error("nfc-controller: invalid announce configuration")
		os.Exit(1)
	}

	var dev nfcfront.Device
	if f.Mock {
		dev = nfcfront.NewMockDevice()
	} else {
		dev, err = openRealDevice(*device)
		if err != nil {
			logger.Get().Error("nfc-controller: failed to open reader")
			os.Exit(1)
		}
	}

	transport := nfcfront.NewTransport(dev, aidBytes)
	fnc := fence.New()
	engine := nfcsession.NewEngine(transport, announce, fnc, *dummyLock)
	ctrl := nfcsession.NewController(engine)

	client := bus.New(bus.DefaultConfig(f.MQTTServer, f.MQTTClientID))
	rt := controller.New(client, f.Prefix, ctrl)

	if err := cli.Run(rt, f); err != nil {
		logger.Get().Error("nfc-controller exited with error")
		os.Exit(1)
	}
}

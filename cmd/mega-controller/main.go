// Command mega-controller runs every locker subsystem: access, lock,
// NFC session, BLE beacon, and the WoT façade, as one process against
// real hardware and a real IAA server, composed over a single bus
// connection.
package main

import (
	"encoding/hex"
	"os"

	"github.com/sofie-iot/smaug-locker/internal/access"
	"github.com/sofie-iot/smaug-locker/internal/beacon"
	"github.com/sofie-iot/smaug-locker/internal/bus"
	"github.com/sofie-iot/smaug-locker/internal/config"
	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/controller/multi"
	"github.com/sofie-iot/smaug-locker/internal/fence"
	"github.com/sofie-iot/smaug-locker/internal/lock"
	"github.com/sofie-iot/smaug-locker/internal/logger"
	"github.com/sofie-iot/smaug-locker/internal/nfcfront"
	"github.com/sofie-iot/smaug-locker/internal/nfcsession"
	"github.com/sofie-iot/smaug-locker/internal/record"
	"github.com/sofie-iot/smaug-locker/internal/wot"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fatalBeforeLogger("mega-controller: load config: " + err.Error())
	}

	aidBytes, err := hex.DecodeString(cfg.NFC.AID)
	if err != nil {
		fatalBeforeLogger("mega-controller: invalid nfc.aid hex")
	}

	announce, err := record.NewAnnounce(cfg.NFC.ContractAddress, cfg.NFC.LockerID, cfg.NFC.LockerName, cfg.NFC.ImageURLs, record.OpenCloseType(cfg.NFC.OpenCloseType))
	if err != nil {
		fatalBeforeLogger("mega-controller: invalid nfc announce configuration")
	}

	dev, err := openRealDevice(cfg.NFC.Device)
	if err != nil {
		fatalBeforeLogger("mega-controller: failed to open NFC reader: " + err.Error())
	}
	transport := nfcfront.NewTransport(dev, aidBytes)

	lockDriver, err := lock.NewRPIODriver(cfg.Lock.Pin, cfg.Lock.ActiveHigh, cfg.Lock.StartLocked)
	if err != nil {
		fatalBeforeLogger("mega-controller: failed to open GPIO driver: " + err.Error())
	}

	beaconCtrl, err := beacon.New(beacon.Config{
		HCI:        cfg.Beacon.HCI,
		LockerIID:  cfg.Beacon.LockerIID,
		LockerNSID: cfg.Beacon.LockerNSID,
	})
	if err != nil {
		fatalBeforeLogger("mega-controller: invalid beacon configuration: " + err.Error())
	}

	sharedFence := fence.New()
	nfcEngine := nfcsession.NewEngine(transport, announce, sharedFence, cfg.NFC.DummyLock)
	nfcCtrl := nfcsession.NewController(nfcEngine)

	wotFacade := wot.New(sharedFence)
	wotCtrl := wot.NewController(wotFacade, cfg.HTTP.Bind)

	accessCtrl := access.New(access.NewHTTPChecker(cfg.Access.IAAServer))
	lockCtrl := lock.New(lockDriver)

	combined := multi.New(accessCtrl, lockCtrl, nfcCtrl, beaconCtrl, wotCtrl)

	client := bus.New(bus.DefaultConfig(cfg.Bus.Broker, cfg.Bus.ClientID))
	rt := controller.New(client, cfg.Bus.Prefix, combined)

	if err := logger.Init(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format, LogDir: cfg.Logger.LogDir}); err != nil {
		fatalBeforeLogger("mega-controller: init logger: " + err.Error())
	}
	defer logger.Sync()

	ctx := signalContext()
	if err := rt.Run(ctx); err != nil {
		logger.Get().Error("mega-controller exited with error")
		os.Exit(1)
	}
}

func fatalBeforeLogger(msg string) {
	os.Stderr.WriteString(msg + "\n")
	os.Exit(1)
}

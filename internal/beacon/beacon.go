// Package beacon implements the BLE beacon controller: it advertises
// the locker's Eddystone-UID frame (namespace + instance id) so
// nearby scanners can discover it without tapping an NFC tag, and
// periodically re-asserts the advertisement via a cron watchdog.
package beacon

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/robfig/cron/v3"
	"tinygo.org/x/bluetooth"

	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/logger"
)

// eddystoneServiceUUID is the standard Eddystone service UUID (FEAA).
var eddystoneServiceUUID = bluetooth.New16BitUUID(0xFEAA)

const (
	eddystoneFrameUID = 0x00
	namespaceLen      = 10
	instanceLen       = 6
)

// Config configures the beacon's identity and transmit power. The
// re-advertise cadence is fixed at 30s.
type Config struct {
	// HCI names the Bluetooth adapter to advertise from (e.g. "hci0").
	// tinygo's adapter abstraction selects the platform default; HCI is
	// retained for parity with the reference controller's CLI surface
	// and appears only in the adapter-enable error message.
	HCI string

	// LockerIID/LockerNSID are hex strings, right-justified and
	// zero-padded to 6 and 10 bytes respectively.
	LockerIID  string
	LockerNSID string

	TxPower int8
}

// Controller advertises the Eddystone-UID frame built from Config and
// re-asserts it on a schedule in case the adapter silently drops it.
type Controller struct {
	cfg       Config
	adapter   *bluetooth.Adapter
	namespace [namespaceLen]byte
	instance  [instanceLen]byte
	cronJob   *cron.Cron
}

// New validates and pads the namespace/instance identifiers and binds
// to the default Bluetooth adapter.
func New(cfg Config) (*Controller, error) {
	ns, err := padHex(cfg.LockerNSID, namespaceLen)
	if err != nil {
		return nil, fmt.Errorf("beacon: locker nsid: %w", err)
	}
	iid, err := padHex(cfg.LockerIID, instanceLen)
	if err != nil {
		return nil, fmt.Errorf("beacon: locker iid: %w", err)
	}

	var namespace [namespaceLen]byte
	var instance [instanceLen]byte
	copy(namespace[:], ns)
	copy(instance[:], iid)

	return &Controller{
		cfg:       cfg,
		adapter:   bluetooth.DefaultAdapter,
		namespace: namespace,
		instance:  instance,
	}, nil
}

// padHex decodes a hex string and right-justifies/zero-pads it to n
// bytes, matching the reference controller's --locker-iid/--locker-nsid
// parsing rule.
func padHex(s string, n int) ([]byte, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	if len(raw) > n {
		return nil, fmt.Errorf("value %q exceeds %d bytes", s, n)
	}
	out := make([]byte, n)
	copy(out[n-len(raw):], raw)
	return out, nil
}

func (c *Controller) SetPublisher(controller.Publisher) {}

// Initialize enables the adapter, starts advertising, and starts the
// re-advertise watchdog.
func (c *Controller) Initialize(ctx context.Context) error {
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("beacon: enable adapter %s: %w", c.cfg.HCI, err)
	}
	if err := c.startAdvertise(); err != nil {
		return err
	}

	c.cronJob = cron.New()
	if _, err := c.cronJob.AddFunc("@every 30s", func() {
		if err := c.startAdvertise(); err != nil {
			logger.Get().Warn("beacon: re-advertise failed")
		}
	}); err != nil {
		return fmt.Errorf("beacon: schedule watchdog: %w", err)
	}
	c.cronJob.Start()

	logger.Get().Info("beacon: advertising started")
	return nil
}

func (c *Controller) startAdvertise() error {
	frame := c.eddystoneUIDFrame()
	adv := c.adapter.DefaultAdvertisement()
	err := adv.Configure(bluetooth.AdvertisementOptions{
		ServiceData: []bluetooth.ServiceDataElement{
			{UUID: eddystoneServiceUUID, Data: frame},
		},
	})
	if err != nil {
		return fmt.Errorf("beacon: configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("beacon: start advertisement: %w", err)
	}
	return nil
}

// eddystoneUIDFrame builds the 18-byte Eddystone-UID service-data
// payload: frame type, calibrated tx power, 10-byte namespace, 6-byte
// instance, 2 reserved bytes.
func (c *Controller) eddystoneUIDFrame() []byte {
	frame := make([]byte, 0, 18)
	frame = append(frame, eddystoneFrameUID)
	frame = append(frame, byte(c.cfg.TxPower))
	frame = append(frame, c.namespace[:]...)
	frame = append(frame, c.instance[:]...)
	frame = append(frame, 0x00, 0x00)
	return frame
}

func (c *Controller) Uninitialize(ctx context.Context) error {
	if c.cronJob != nil {
		c.cronJob.Stop()
	}
	return nil
}

func (c *Controller) Handlers() []controller.Registration { return nil }

// Package lock implements the lock controller: a GPIO-driven actuator
// (or a console-logging mock) exposed over the bus as "/lock" and
// "/lock/state" handlers.
package lock

import (
	"context"
	"fmt"

	rpio "github.com/stianeikeland/go-rpio/v4"

	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/logger"
)

// Driver actuates the physical (or simulated) lock.
type Driver interface {
	// SetLocked engages (true) or releases (false) the actuator.
	SetLocked(locked bool) error
	// Locked reports the actuator's current state.
	Locked() bool
	Close() error
}

// RPIODriver drives a real GPIO pin via go-rpio. ActiveHigh controls
// the polarity: when true, driving the pin High engages the lock.
type RPIODriver struct {
	pin        rpio.Pin
	activeHigh bool
	locked     bool
}

// NewRPIODriver opens go-rpio and configures pin as an output,
// starting in startLocked state.
func NewRPIODriver(pinNumber int, activeHigh, startLocked bool) (*RPIODriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("lock: open gpio: %w", err)
	}
	d := &RPIODriver{pin: rpio.Pin(pinNumber), activeHigh: activeHigh}
	d.pin.Output()
	if err := d.SetLocked(startLocked); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *RPIODriver) SetLocked(locked bool) error {
	engage := locked == d.activeHigh
	if engage {
		d.pin.High()
	} else {
		d.pin.Low()
	}
	d.locked = locked
	return nil
}

func (d *RPIODriver) Locked() bool { return d.locked }

func (d *RPIODriver) Close() error {
	rpio.Close()
	return nil
}

// MockDriver logs state transitions to the console instead of driving
// real hardware, for development without attached GPIO.
type MockDriver struct {
	locked bool
}

func NewMockDriver(startLocked bool) *MockDriver {
	return &MockDriver{locked: startLocked}
}

func (d *MockDriver) SetLocked(locked bool) error {
	d.locked = locked
	if locked {
		logger.Get().Info("lock: [MOCK] engaged\n" +
			"   ____\n" +
			"  |    |\n" +
			"  | () |  LOCKED\n" +
			"  |____|")
	} else {
		logger.Get().Info("lock: [MOCK] released\n" +
			"   ____\n" +
			"  |    |\n" +
			"  |    |  UNLOCKED\n" +
			"  |____|")
	}
	return nil
}

func (d *MockDriver) Locked() bool { return d.locked }
func (d *MockDriver) Close() error { return nil }

// Controller exposes Driver over the bus as the reference lock
// controller's "/lock" and "/lock/state" handlers.
type Controller struct {
	driver Driver
	pub    controller.Publisher
}

func New(driver Driver) *Controller {
	return &Controller{driver: driver}
}

func (c *Controller) SetPublisher(pub controller.Publisher)  { c.pub = pub }
func (c *Controller) Initialize(ctx context.Context) error   { return nil }
func (c *Controller) Uninitialize(ctx context.Context) error { return c.driver.Close() }

func (c *Controller) Handlers() []controller.Registration {
	return []controller.Registration{
		{Topic: "/lock", Handler: c.handleLock},
		{Topic: "/lock/state", Handler: c.handleLockState},
	}
}

// handleLock expects payload {"locked": bool} and sets the actuator.
func (c *Controller) handleLock(ctx context.Context, payload map[string]interface{}, responseTopic string) error {
	locked, _ := payload["locked"].(bool)
	if err := c.driver.SetLocked(locked); err != nil {
		return fmt.Errorf("lock: set locked: %w", err)
	}
	return nil
}

// handleLockState replies with the current state: 1 if locked, 0 if
// not, mirroring the reference Response(1|0) convention. The request's
// "id", when present, is echoed so the requester can correlate the reply.
func (c *Controller) handleLockState(ctx context.Context, payload map[string]interface{}, responseTopic string) error {
	if responseTopic == "" || c.pub == nil {
		return nil
	}
	state := 0
	if c.driver.Locked() {
		state = 1
	}
	reply := map[string]interface{}{"state": state}
	if id, ok := payload["id"]; ok {
		reply["id"] = id
	}
	return c.pub.Publish(responseTopic, 1, reply, "")
}

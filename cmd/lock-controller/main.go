// Command lock-controller drives the physical (or mock) lock actuator
// and answers "/lock" and "/lock/state" requests.
package main

import (
	"flag"
	"os"

	"github.com/sofie-iot/smaug-locker/internal/bus"
	"github.com/sofie-iot/smaug-locker/internal/cli"
	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/lock"
	"github.com/sofie-iot/smaug-locker/internal/logger"
)

func main() {
	pin := flag.Int("pin", 18, "GPIO pin number driving the actuator")
	activeHigh := flag.Bool("active-high", true, "actuator engages on a High signal")
	activeLow := flag.Bool("active-low", false, "actuator engages on a Low signal")
	startLocked := flag.Bool("start-locked", true, "actuator begins in the locked state")
	startUnlocked := flag.Bool("start-unlocked", false, "actuator begins in the unlocked state")

	f := cli.Parse("lock-controller")

	high := *activeHigh
	if *activeLow {
		high = false
	}
	locked := *startLocked
	if *startUnlocked {
		locked = false
	}

	var driver lock.Driver
	if f.Mock {
		driver = lock.NewMockDriver(locked)
	} else {
		d, err := lock.NewRPIODriver(*pin, high, locked)
		if err != nil {
			logger.Get().Error("lock-controller: failed to open GPIO driver")
			os.Exit(1)
		}
		driver = d
	}

	ctrl := lock.New(driver)
	client := bus.New(bus.DefaultConfig(f.MQTTServer, f.MQTTClientID))
	rt := controller.New(client, f.Prefix, ctrl)

	if err := cli.Run(rt, f); err != nil {
		logger.Get().Error("lock-controller exited with error")
		os.Exit(1)
	}
}

// Command wot-controller serves the Web of Things HTTP façade: lock
// status and lock/unlock actions, gated by a bearer token checked
// through the access controller over the bus.
package main

import (
	"flag"
	"os"

	"github.com/sofie-iot/smaug-locker/internal/bus"
	"github.com/sofie-iot/smaug-locker/internal/cli"
	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/fence"
	"github.com/sofie-iot/smaug-locker/internal/logger"
	"github.com/sofie-iot/smaug-locker/internal/wot"
)

func main() {
	bind := flag.String("bind", ":8090", "HTTP listen address")

	f := cli.Parse("wot-controller")

	facade := wot.New(fence.New())
	ctrl := wot.NewController(facade, *bind)

	client := bus.New(bus.DefaultConfig(f.MQTTServer, f.MQTTClientID))
	rt := controller.New(client, f.Prefix, ctrl)

	if err := cli.Run(rt, f); err != nil {
		logger.Get().Error("wot-controller exited with error")
		os.Exit(1)
	}
}

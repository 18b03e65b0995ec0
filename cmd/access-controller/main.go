// Command access-controller answers "/access" requests, backed by
// either the mock pseudo-token checker or a real IAA server.
package main

import (
	"os"

	"github.com/sofie-iot/smaug-locker/internal/access"
	"github.com/sofie-iot/smaug-locker/internal/bus"
	"github.com/sofie-iot/smaug-locker/internal/cli"
	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/logger"
)

func main() {
	f := cli.Parse("access-controller")

	var checker access.Checker
	if f.Mock {
		checker = access.MockChecker{}
	} else {
		checker = access.NewHTTPChecker(iaaServerFromEnv())
	}

	ctrl := access.New(checker)
	client := bus.New(bus.DefaultConfig(f.MQTTServer, f.MQTTClientID))
	rt := controller.New(client, f.Prefix, ctrl)

	if err := cli.Run(rt, f); err != nil {
		logger.Get().Error("access-controller exited with error")
		os.Exit(1)
	}
}

func iaaServerFromEnv() string {
	if v := os.Getenv("LOCKER_IAA_SERVER"); v != "" {
		return v
	}
	return "http://localhost:9000"
}

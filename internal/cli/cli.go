// Package cli provides the flag surface and run loop shared by every
// controller binary, translating the reference Main class's argparse
// options into stdlib flag, consistent with this module's use of no
// third-party command-line library.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/logger"
)

// Flags holds every option common to the controller binaries.
type Flags struct {
	MQTTServer    string
	MQTTClientID  string
	Mock          bool
	Prefix        string
	InjectTopic   string
	InjectMessage string
	Once          bool
	Debug         bool
	Quiet         bool
}

// Parse registers and parses the common flag set for a binary named
// name (used to build a default MQTT client id).
func Parse(name string) *Flags {
	f := &Flags{}

	flag.StringVar(&f.MQTTServer, "mqtt-server", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&f.MQTTServer, "s", "tcp://localhost:1883", "MQTT broker address (shorthand)")
	flag.StringVar(&f.MQTTClientID, "mqtt-client-id", name, "MQTT client id")
	var real bool
	flag.BoolVar(&f.Mock, "mock", false, "use the mock backend instead of real hardware/services")
	flag.BoolVar(&real, "real", false, "use the real backend (default, mutually exclusive with --mock)")
	flag.StringVar(&f.Prefix, "prefix", "", "topic prefix")
	flag.StringVar(&f.Prefix, "p", "", "topic prefix (shorthand)")
	flag.StringVar(&f.InjectTopic, "inject-topic", "", "topic to dispatch --inject-message against, bypassing the broker")
	flag.StringVar(&f.InjectMessage, "inject-message", "", "JSON payload to dispatch directly to --inject-topic's handler")
	flag.StringVar(&f.InjectMessage, "i", "", "JSON payload to dispatch directly (shorthand)")
	flag.BoolVar(&f.Once, "once", false, "parsed but has no effect")
	flag.BoolVar(&f.Debug, "d", false, "debug logging")
	flag.BoolVar(&f.Debug, "debug", false, "debug logging")
	flag.BoolVar(&f.Quiet, "q", false, "quiet logging")
	flag.BoolVar(&f.Quiet, "quiet", false, "quiet logging")

	flag.Parse()
	if real {
		f.Mock = false
	}
	return f
}

// LogLevel derives a zap level string from Debug/Quiet.
func (f *Flags) LogLevel() string {
	switch {
	case f.Debug:
		return "debug"
	case f.Quiet:
		return "error"
	default:
		return "info"
	}
}

// Run initializes logging, starts rt, honors --inject-message, and
// blocks until SIGINT/SIGTERM or the injected message completes.
// --once is not acted on: Run keeps serving until a signal arrives.
func Run(rt *controller.Runtime, f *Flags) error {
	if err := logger.Init(loggerConfigFor(f)); err != nil {
		return fmt.Errorf("cli: init logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if f.InjectMessage != "" {
		return runInject(ctx, rt, f)
	}

	return rt.Run(ctx)
}

func runInject(ctx context.Context, rt *controller.Runtime, f *Flags) error {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(f.InjectMessage), &payload); err != nil {
		return fmt.Errorf("cli: parse --inject-message: %w", err)
	}
	if f.InjectTopic == "" {
		return fmt.Errorf("cli: --inject-message requires --inject-topic")
	}
	return rt.Inject(ctx, f.InjectTopic, payload)
}

func loggerConfigFor(f *Flags) logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = f.LogLevel()
	return cfg
}

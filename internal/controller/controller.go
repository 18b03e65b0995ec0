// Package controller implements the pluggable controller runtime: an
// explicit (topic, handler) registration table instead of the
// reflection/decorator-based dispatch the reference controllers use,
// lifecycle management (SetPublisher/Initialize/Uninitialize), and
// concurrent dispatch of inbound bus messages to their handler.
package controller

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sofie-iot/smaug-locker/internal/bus"
	"github.com/sofie-iot/smaug-locker/internal/logger"
)

// Publisher is the subset of *bus.Client a Controller needs to emit
// messages; handlers receive it via SetPublisher before Initialize.
type Publisher interface {
	Publish(topic string, qos byte, payload map[string]interface{}, responseTopic string) error
}

// HandlerFunc processes a decoded inbound payload. responseTopic is
// non-empty when the publisher requested a reply; handlers that want
// to reply call their Publisher's Publish themselves (allowing a handler
// to reply to a topic different from responseTopic, or not at all).
type HandlerFunc func(ctx context.Context, payload map[string]interface{}, responseTopic string) error

// Registration binds a topic suffix (appended to the runtime's prefix)
// to the handler invoked for messages on it.
type Registration struct {
	Topic   string
	Handler HandlerFunc
}

// Controller is the unit of pluggable behavior every binary in this
// module wires into a Runtime. Construction happens outside this
// interface (each controller's own constructor); Controller covers
// only the lifecycle and handler-table surface the runtime drives.
type Controller interface {
	SetPublisher(pub Publisher)
	Initialize(ctx context.Context) error
	Uninitialize(ctx context.Context) error
	Handlers() []Registration
}

// Runtime wires a Controller's handler table to a bus.Client: it
// subscribes every handler under prefix+topic, decodes inbound
// envelopes, and dispatches to the matching handler on its own
// goroutine so a slow handler cannot stall the bus's message loop.
type Runtime struct {
	client     *bus.Client
	prefix     string
	controller Controller
}

// New builds a Runtime for controller, publishing and subscribing
// under the given topic prefix (e.g. "" or "/site-1").
func New(client *bus.Client, prefix string, ctrl Controller) *Runtime {
	ctrl.SetPublisher(&prefixedPublisher{client: client, prefix: prefix})
	return &Runtime{client: client, prefix: prefix, controller: ctrl}
}

// Run connects to the bus, subscribes every registered handler,
// initializes the controller, and blocks until ctx is cancelled, at
// which point it uninitializes the controller and disconnects.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.client.Connect(ctx.Done()); err != nil {
		return fmt.Errorf("controller: connect: %w", err)
	}

	for _, reg := range r.controller.Handlers() {
		reg := reg
		topic := r.prefix + reg.Topic
		if err := r.client.Subscribe(topic, 1, func(payload map[string]interface{}, responseTopic string) {
			go func() {
				if err := reg.Handler(ctx, payload, responseTopic); err != nil {
					logger.Get().Warn("controller: handler error",
						zap.String("topic", topic),
						zap.Error(err),
					)
				}
			}()
		}); err != nil {
			return fmt.Errorf("controller: subscribe %s: %w", topic, err)
		}
	}

	if err := r.controller.Initialize(ctx); err != nil {
		return fmt.Errorf("controller: initialize: %w", err)
	}

	<-ctx.Done()

	if err := r.controller.Uninitialize(context.Background()); err != nil {
		logger.Get().Warn("controller: uninitialize error")
	}
	r.client.Disconnect()
	return nil
}

// Inject dispatches an already-decoded payload directly to the first
// handler registered for topic, bypassing the broker. It neither
// connects nor initializes the controller. It backs the
// --inject-message flag for offline testing of a single controller.
func (r *Runtime) Inject(ctx context.Context, topic string, payload map[string]interface{}) error {
	for _, reg := range r.controller.Handlers() {
		if reg.Topic == topic {
			return reg.Handler(ctx, payload, "")
		}
	}
	return fmt.Errorf("controller: inject: no handler registered for topic %q", topic)
}

type prefixedPublisher struct {
	client *bus.Client
	prefix string
}

func (p *prefixedPublisher) Publish(topic string, qos byte, payload map[string]interface{}, responseTopic string) error {
	return p.client.Publish(p.prefix+topic, qos, payload, responseTopic)
}

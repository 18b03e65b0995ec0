package nfcsession

import (
	"context"

	"github.com/sofie-iot/smaug-locker/internal/controller"
)

// Controller adapts an Engine to controller.Controller: its handler
// table completes the fence for access/lock results, and Initialize
// starts the Engine's tap loop on its own goroutine.
type Controller struct {
	engine *Engine
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController wraps engine for use with controller.Runtime.
func NewController(engine *Engine) *Controller {
	return &Controller{engine: engine}
}

func (c *Controller) SetPublisher(pub controller.Publisher) { c.engine.SetPublisher(pub) }

func (c *Controller) Initialize(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.engine.Run(runCtx)
	}()
	return nil
}

func (c *Controller) Uninitialize(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	// The transport blocks on device I/O without watching ctx; closing
	// it unblocks the tap loop so it can observe the cancellation.
	c.engine.transport.Close()
	if c.done != nil {
		<-c.done
	}
	return nil
}

func (c *Controller) Handlers() []controller.Registration {
	return []controller.Registration{
		{Topic: "/access_result", Handler: c.engine.HandleAccessResult},
		{Topic: "/lock_result", Handler: c.engine.HandleLockResult},
	}
}

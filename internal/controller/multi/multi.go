// Package multi composes several controllers into one, fanning out
// lifecycle calls and concatenating their handler tables, the way the
// "mega" binaries run access+lock+nfc+beacon+wot as a single process.
package multi

import (
	"context"
	"fmt"

	"github.com/sofie-iot/smaug-locker/internal/controller"
)

// Controller composes member controllers, presenting them to a
// controller.Runtime as one.
type Controller struct {
	members []controller.Controller
}

// New composes members in the given order; SetPublisher, Initialize,
// and Uninitialize are fanned out in that order, and reversed order
// for Uninitialize so later-initialized members tear down first.
func New(members ...controller.Controller) *Controller {
	return &Controller{members: members}
}

func (c *Controller) SetPublisher(pub controller.Publisher) {
	for _, m := range c.members {
		m.SetPublisher(pub)
	}
}

func (c *Controller) Initialize(ctx context.Context) error {
	for i, m := range c.members {
		if err := m.Initialize(ctx); err != nil {
			return fmt.Errorf("multi: member %d initialize: %w", i, err)
		}
	}
	return nil
}

func (c *Controller) Uninitialize(ctx context.Context) error {
	var firstErr error
	for i := len(c.members) - 1; i >= 0; i-- {
		if err := c.members[i].Uninitialize(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("multi: member %d uninitialize: %w", i, err)
		}
	}
	return firstErr
}

func (c *Controller) Handlers() []controller.Registration {
	var all []controller.Registration
	for _, m := range c.members {
		all = append(all, m.Handlers()...)
	}
	return all
}

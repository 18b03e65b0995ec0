// Package wot implements the Web of Things façade: an HTTP surface
// over fiber exposing lock status and lock/unlock actions, gated by a
// bearer token checked through the access controller via the
// correlation fabric.
package wot

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sofie-iot/smaug-locker/internal/controller"
	"github.com/sofie-iot/smaug-locker/internal/fence"
)

const accessCheckTimeout = 60 * time.Second

// Facade wires the HTTP routes to the bus via the shared Fence, and to
// the "/lock" command traffic for mirroring current state.
type Facade struct {
	app   *fiber.App
	pub   controller.Publisher
	fence *fence.Fence

	lockedStr string // "true"/"false" last observed lock state, as text
	lockedNum int    // 1/0 mirror of the same state
}

// New builds the façade's fiber app and route table.
func New(f *fence.Fence) *Facade {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	fa := &Facade{app: app, fence: f, lockedStr: "unknown", lockedNum: -1}

	app.Get("/", fa.handleIndex)
	app.Get("/api/status", fa.handleStatus)
	app.Get("/api/status/locked", fa.handleStatusLocked)
	app.Post("/api/action/lock", fa.handleActionLock)
	app.Post("/api/action/unlock", fa.handleActionUnlock)

	return fa
}

func (f *Facade) SetPublisher(pub controller.Publisher) { f.pub = pub }

// Listen starts serving on addr. It blocks until the listener exits.
func (f *Facade) Listen(addr string) error {
	return f.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (f *Facade) Shutdown() error {
	return f.app.Shutdown()
}

// HandleLockMessage mirrors "/lock" traffic into the façade's reported
// status, the way the reference lock_message handler keeps
// locked_str/locked_num in sync with the controller's own state.
func (f *Facade) HandleLockMessage(ctx context.Context, payload map[string]interface{}, responseTopic string) error {
	locked, _ := payload["locked"].(bool)
	if locked {
		f.lockedStr, f.lockedNum = "true", 1
	} else {
		f.lockedStr, f.lockedNum = "false", 0
	}
	return nil
}

// HandleAccessResult completes the fence slot named by payload["id"]
// with the access controller's response. Registered as the
// "/access_result" handler.
func (f *Facade) HandleAccessResult(ctx context.Context, payload map[string]interface{}, responseTopic string) error {
	id, _ := payload["id"].(string)
	if id == "" {
		return nil
	}
	f.fence.Complete(id, fence.Result{OK: true, Value: payload})
	return nil
}

func (f *Facade) handleIndex(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "smaug-locker-wot",
		"routes": []string{
			"/api/status",
			"/api/status/locked",
			"/api/action/lock",
			"/api/action/unlock",
		},
	})
}

func (f *Facade) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"locked": f.lockedStr})
}

func (f *Facade) handleStatusLocked(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"locked": f.lockedNum})
}

func (f *Facade) handleActionLock(c *fiber.Ctx) error {
	return f.handleAction(c, "lock", true)
}

func (f *Facade) handleActionUnlock(c *fiber.Ctx) error {
	return f.handleAction(c, "unlock", false)
}

func (f *Facade) handleAction(c *fiber.Ctx, action string, locked bool) error {
	token, err := bearerToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or malformed bearer token"})
	}

	allowed, err := f.checkAccess(context.Background(), token, action)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "access check unavailable"})
	}
	if !allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "action not allowed"})
	}

	if err := f.pub.Publish("/lock", 1, map[string]interface{}{"locked": locked}, ""); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "lock command failed"})
	}
	return c.JSON(fiber.Map{"locked": locked})
}

// checkAccess publishes "/access" and waits up to accessCheckTimeout
// for the access controller to grant or deny action.
func (f *Facade) checkAccess(ctx context.Context, token, action string) (bool, error) {
	result := f.fence.Fire(ctx, accessCheckTimeout, func(id string) error {
		return f.pub.Publish("/access", 1, map[string]interface{}{
			"id":      id,
			"token":   token,
			"actions": []interface{}{action},
		}, "/access_result")
	})
	if !result.Bool() {
		return false, result.Err
	}
	payload, _ := result.Value.(map[string]interface{})
	allowed, _ := payload["allowed"].(bool)
	return allowed, nil
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", fiber.ErrUnauthorized
	}
	return header[len(prefix):], nil
}

// Controller adapts a Facade to controller.Controller so the HTTP
// surface can be wired into a Runtime (or composed via multi.New)
// alongside the bus-only controllers: Initialize starts the fiber
// listener on its own goroutine, and "/lock" traffic is routed to
// HandleLockMessage to keep the façade's mirrored status current.
type Controller struct {
	facade *Facade
	addr   string
	errCh  chan error
}

// NewController wraps facade, serving HTTP on addr once Initialize runs.
func NewController(facade *Facade, addr string) *Controller {
	return &Controller{facade: facade, addr: addr, errCh: make(chan error, 1)}
}

func (c *Controller) SetPublisher(pub controller.Publisher) { c.facade.SetPublisher(pub) }

func (c *Controller) Initialize(ctx context.Context) error {
	go func() {
		c.errCh <- c.facade.Listen(c.addr)
	}()
	return nil
}

func (c *Controller) Uninitialize(ctx context.Context) error {
	return c.facade.Shutdown()
}

func (c *Controller) Handlers() []controller.Registration {
	return []controller.Registration{
		{Topic: "/lock", Handler: c.facade.HandleLockMessage},
		{Topic: "/access_result", Handler: c.facade.HandleAccessResult},
	}
}

package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StreamHandler serves a file below a resolved mount. It allows injecting
// fake handlers during tests.
type StreamHandler interface {
	Handle(fiber.Ctx, *MountRoute) error
}

// StreamHandlerFunc adapts a function to the StreamHandler interface.
type StreamHandlerFunc func(fiber.Ctx, *MountRoute) error

// Handle makes StreamHandlerFunc satisfy StreamHandler.
func (f StreamHandlerFunc) Handle(c fiber.Ctx, route *MountRoute) error {
	return f(c, route)
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   *MountRegistry
	Stream     StreamHandler
	ListenPort int
}

const (
	contextKeyRoute     = "_pipestream_route"
	contextKeyRelPath   = "_pipestream_rel_path"
	contextKeyRequestID = "_pipestream_request_id"
)

// NewApp builds a Fiber application with prefix-based mount routing and
// structured error handling. Diagnostics under /-/ are left to later routes.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("mount registry is required")
	}
	if opts.Stream == nil {
		return nil, errors.New("stream handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		route, _ := getRouteFromContext(c)
		if route == nil {
			return renderMountUnmapped(c, opts.Logger, string(c.Request().URI().Path()))
		}
		return opts.Stream.Handle(c, route)
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并基于 URL 前缀查找 MountRoute。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		requestPath := string(c.Request().URI().Path())
		if isDiagnosticsPath(requestPath) {
			return c.Next()
		}

		route, rel, ok := opts.Registry.Lookup(requestPath)
		if !ok {
			return renderMountUnmapped(c, opts.Logger, requestPath)
		}

		c.Locals(contextKeyRoute, route)
		c.Locals(contextKeyRelPath, rel)
		return c.Next()
	}
}

func renderMountUnmapped(c fiber.Ctx, logger *logrus.Logger, requestPath string) error {
	logger.WithFields(logrus.Fields{
		"action": "mount_lookup",
		"path":   requestPath,
	}).Warn("mount unmapped")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "mount_unmapped",
	})
}

func getRouteFromContext(c fiber.Ctx) (*MountRoute, bool) {
	if value := c.Locals(contextKeyRoute); value != nil {
		if route, ok := value.(*MountRoute); ok {
			return route, true
		}
	}
	return nil, false
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// RelativePath returns the request path relative to the matched mount root.
func RelativePath(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRelPath); value != nil {
		if rel, ok := value.(string); ok {
			return rel
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}

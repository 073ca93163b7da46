package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/pipestream/pipestream/internal/logging"
	"github.com/pipestream/pipestream/internal/server"
)

// Handler serves mounted directories, one Piper per mount. The Pipers share
// the media type table, the transform registry and the metrics recorder.
type Handler struct {
	pipers map[string]*Piper
	logger *logrus.Logger
}

// NewHandler builds a Piper for every mount in registry. shared supplies the
// common collaborators; Fs and Sizes are taken from each mount.
func NewHandler(registry *server.MountRegistry, shared Options) (*Handler, error) {
	if registry == nil {
		return nil, errors.New("mount registry is required")
	}

	h := &Handler{
		pipers: make(map[string]*Piper),
		logger: shared.Logger,
	}
	for _, route := range registry.Routes() {
		opts := shared
		opts.Fs = route.Fs
		opts.Sizes = route.Sizes
		p, err := New(opts)
		if err != nil {
			return nil, fmt.Errorf("mount %s: %w", route.Config.Name, err)
		}
		h.pipers[route.Config.Name] = p
	}
	return h, nil
}

// Piper returns the Piper serving the named mount.
func (h *Handler) Piper(mount string) (*Piper, bool) {
	p, ok := h.pipers[mount]
	return p, ok
}

// Handle implements server.StreamHandler. The optional `type` query parameter
// is forwarded as the type hint.
func (h *Handler) Handle(c fiber.Ctx, route *server.MountRoute) error {
	p, ok := h.pipers[route.Config.Name]
	if !ok {
		return fiber.NewError(fiber.StatusInternalServerError, "mount not wired: "+route.Config.Name)
	}

	started := time.Now()
	rel := server.RelativePath(c)
	reqID := server.RequestID(c)

	served, err := p.Pipe(c, rel, PipeOptions{
		Type: c.Query("type"),
		OnComplete: func(path string) {
			h.logger.WithFields(logging.RequestFields(route.Config.Name, path, reqID)).
				WithField("elapsed_ms", time.Since(started).Milliseconds()).
				Debug("stream_complete")
		},
	})

	fields := logging.RequestFields(route.Config.Name, rel, reqID)
	fields["action"] = "pipe"
	fields["served"] = served
	fields["status"] = c.Response().StatusCode()
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Error("pipe_failed")
		return fiber.NewError(fiber.StatusInternalServerError, "pipe failed")
	}
	h.logger.WithFields(fields).Info("pipe")
	return nil
}

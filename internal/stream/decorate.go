package stream

import (
	"errors"

	"github.com/gofiber/fiber/v3"
)

// ErrNotDecorated is returned by the package level Pipe when no Piper was
// attached to the request.
var ErrNotDecorated = errors.New("request has no piper attached")

const localsKeyPiper = "_pipestream_piper"

// Decorate attaches p to every request passing through the returned
// middleware so handlers can call Pipe(c, ...).
func Decorate(p *Piper) fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Locals(localsKeyPiper, p)
		return c.Next()
	}
}

// FromCtx returns the Piper attached by Decorate.
func FromCtx(c fiber.Ctx) (*Piper, bool) {
	if value := c.Locals(localsKeyPiper); value != nil {
		if p, ok := value.(*Piper); ok {
			return p, true
		}
	}
	return nil, false
}

// Pipe streams filePath through the Piper attached to c.
func Pipe(c fiber.Ctx, filePath string, opts PipeOptions) (bool, error) {
	p, ok := FromCtx(c)
	if !ok {
		return false, ErrNotDecorated
	}
	return p.Pipe(c, filePath, opts)
}

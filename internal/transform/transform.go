package transform

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/pipestream/pipestream/internal/byterange"
)

// ErrFinished is returned by Job.Body writes once the response has been ended.
var ErrFinished = errors.New("response already finished")

// Transform consumes the raw bytes of a file and produces the response body in
// place of a direct byte-for-byte pipe.
type Transform interface {
	Transform(ctx context.Context, job *Job) error
}

// OutputTyper is implemented by transforms whose body has a different media
// type than the file they read.
type OutputTyper interface {
	OutputType() string
}

// OutputType returns the media type declared by the first handler that
// implements OutputTyper, or fallback.
func OutputType(handlers []Transform, fallback string) string {
	for _, h := range handlers {
		if ot, ok := h.(OutputTyper); ok {
			if typ := ot.OutputType(); typ != "" {
				return typ
			}
		}
	}
	return fallback
}

// Func adapts a function to the Transform interface.
type Func func(ctx context.Context, job *Job) error

// Transform makes Func satisfy Transform.
func (f Func) Transform(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// Job describes one dispatch of a transform. Every transform registered for an
// extension receives its own Job with its own Source over the same byte range;
// Body and Finish are shared by the whole chain.
type Job struct {
	Path        string
	Extension   string
	ContentType string
	Range       byterange.Range
	// Header is a snapshot of the request headers.
	Header http.Header
	// Source yields the raw bytes of the resolved range.
	Source io.Reader
	// Body writes to the response. Writes fail with ErrFinished after Finish.
	Body io.Writer

	end *Ender
}

// NewJob wires a job to a shared Ender.
func NewJob(end *Ender, source io.Reader) *Job {
	return &Job{
		Source: source,
		Body:   &guardedWriter{end: end},
		end:    end,
	}
}

// Finish ends the response. Only the first call across the chain has effect.
func (j *Job) Finish() {
	if j.end != nil {
		j.end.Finish()
	}
}

// Finished reports whether any transform in the chain has ended the response.
func (j *Job) Finished() bool {
	return j.end != nil && j.end.Finished()
}

// Ender guards the end of a response shared by a transform chain.
type Ender struct {
	w        io.Writer
	once     sync.Once
	finished atomic.Bool
	onFinish func()
}

// NewEnder returns an Ender writing to w. onFinish runs exactly once, on the
// first Finish call.
func NewEnder(w io.Writer, onFinish func()) *Ender {
	return &Ender{w: w, onFinish: onFinish}
}

// Finish marks the response ended and runs the end hook once.
func (e *Ender) Finish() {
	e.once.Do(func() {
		e.finished.Store(true)
		if e.onFinish != nil {
			e.onFinish()
		}
	})
}

// Finished reports whether Finish has been called.
func (e *Ender) Finished() bool {
	return e.finished.Load()
}

type guardedWriter struct {
	end *Ender
}

func (g *guardedWriter) Write(p []byte) (int, error) {
	if g.end.Finished() {
		return 0, ErrFinished
	}
	return g.end.w.Write(p)
}

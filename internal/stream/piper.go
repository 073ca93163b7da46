package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/valyala/fasthttp"

	"github.com/pipestream/pipestream/internal/byterange"
	"github.com/pipestream/pipestream/internal/cache"
	"github.com/pipestream/pipestream/internal/logging"
	"github.com/pipestream/pipestream/internal/mediatype"
	"github.com/pipestream/pipestream/internal/metrics"
	"github.com/pipestream/pipestream/internal/transform"
)

// ErrInvalidPath is returned by Pipe when called without a path.
var ErrInvalidPath = errors.New("path must be a non-empty string")

const corsMethods = "POST, GET, OPTIONS"

// Options wires a Piper to its collaborators.
type Options struct {
	// Fs serves the files. Required.
	Fs afero.Fs
	// Sizes memoizes file sizes. Defaults to a caching SizeCache over Fs.
	Sizes *cache.SizeCache
	// Types resolves extensions to MIME types. Required.
	Types *mediatype.Table
	// Transforms holds per-extension transforms. Defaults to an empty registry.
	Transforms *transform.Registry
	// Logger is required.
	Logger *logrus.Logger
	// Metrics is optional.
	Metrics *metrics.Recorder
	// StrictStatus answers missing files with 404 and unknown types with 415
	// instead of a 200 text body.
	StrictStatus bool
	// StreamTimeout caps how long a read stream stays open. Zero disables it.
	StreamTimeout time.Duration
}

// PipeOptions tunes a single Pipe call.
type PipeOptions struct {
	// Type is either a MIME type or an extension with a leading dot that
	// replaces the one derived from the path.
	Type string
	// OnComplete runs once with the path after a direct stream is released.
	OnComplete func(path string)
}

// Piper serves files with byte-range support and dispatches registered
// transforms.
type Piper struct {
	fs         afero.Fs
	sizes      *cache.SizeCache
	types      *mediatype.Table
	transforms *transform.Registry
	logger     *logrus.Logger
	metrics    *metrics.Recorder
	strict     bool
	timeout    time.Duration
}

// New validates opts and builds a Piper.
func New(opts Options) (*Piper, error) {
	if opts.Fs == nil {
		return nil, errors.New("filesystem is required")
	}
	if opts.Types == nil {
		return nil, errors.New("media type table is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.StreamTimeout < 0 {
		return nil, fmt.Errorf("invalid stream timeout: %s", opts.StreamTimeout)
	}

	sizes := opts.Sizes
	if sizes == nil {
		sizes = cache.NewSizeCache(opts.Fs, true)
	}
	if opts.Metrics != nil {
		sizes.Observe(opts.Metrics.ObserveSizeLookup)
	}
	transforms := opts.Transforms
	if transforms == nil {
		transforms = transform.NewRegistry()
	}

	return &Piper{
		fs:         opts.Fs,
		sizes:      sizes,
		types:      opts.Types,
		transforms: transforms,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		strict:     opts.StrictStatus,
		timeout:    opts.StreamTimeout,
	}, nil
}

// On registers t for files with extension ext.
func (p *Piper) On(ext string, t transform.Transform) *transform.Registration {
	return p.transforms.Register(ext, t)
}

// RemoveEvent unregisters a transform previously returned by On.
func (p *Piper) RemoveEvent(reg *transform.Registration) {
	p.transforms.Remove(reg)
}

// SetCaching toggles the file size cache. Disabling it is meant for
// development, where files change under a running server.
func (p *Piper) SetCaching(enabled bool) {
	p.sizes.SetEnabled(enabled)
}

// MediaTypes exposes the extension table so callers can extend it.
func (p *Piper) MediaTypes() *mediatype.Table {
	return p.types
}

// Transforms exposes the transform registry.
func (p *Piper) Transforms() *transform.Registry {
	return p.transforms
}

// Sizes exposes the file size cache.
func (p *Piper) Sizes() *cache.SizeCache {
	return p.sizes
}

// Pipe writes filePath to the response. It returns false when the file is
// missing or its type cannot be resolved; in both cases a short text body
// explains why and no file is opened.
func (p *Piper) Pipe(c fiber.Ctx, filePath string, opts PipeOptions) (bool, error) {
	if filePath == "" {
		return false, ErrInvalidPath
	}

	total, err := p.sizes.Lookup(filePath)
	if errors.Is(err, cache.ErrNotFound) {
		return false, p.notFound(c, filePath)
	}
	if err != nil {
		return false, err
	}

	rng := byterange.Resolve(c.Get(fiber.HeaderRange), total)

	ext, contentType := p.resolveType(filePath, opts.Type)
	if contentType == "" {
		p.metrics.ObserveStream(metrics.OutcomeUnsupported)
		status := fiber.StatusOK
		if p.strict {
			status = fiber.StatusUnsupportedMediaType
		}
		return false, c.Status(status).SendString("Media format not found for " + filepath.Base(filePath))
	}

	file, err := p.fs.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, p.notFound(c, filePath)
		}
		return false, fmt.Errorf("open %s: %w", filePath, err)
	}

	if handlers := p.transforms.HandlersFor(ext); len(handlers) > 0 {
		if strings.TrimSpace(opts.Type) == "" {
			contentType = transform.OutputType(handlers, contentType)
		}
		p.pipeTransforms(c, file, filePath, ext, contentType, rng, total, handlers)
		return true, nil
	}

	p.pipeDirect(c, file, filePath, ext, contentType, rng, total, opts.OnComplete)
	return true, nil
}

func (p *Piper) notFound(c fiber.Ctx, filePath string) error {
	p.metrics.ObserveStream(metrics.OutcomeNotFound)
	status := fiber.StatusOK
	if p.strict {
		status = fiber.StatusNotFound
	}
	return c.Status(status).SendString(filePath + " not found")
}

// resolveType derives the extension and MIME type. A hint with a leading dot
// replaces the extension; any other hint is used as the type.
func (p *Piper) resolveType(filePath, hint string) (string, string) {
	ext := strings.ToLower(filepath.Ext(filePath))
	typ := strings.TrimSpace(hint)

	if typ == "" && ext != "" {
		typ, _ = p.types.Lookup(ext)
	}
	if strings.HasPrefix(typ, ".") {
		ext = strings.ToLower(typ)
		typ, _ = p.types.Lookup(ext)
	}
	return ext, typ
}

func (p *Piper) pipeDirect(
	c fiber.Ctx,
	file afero.File,
	filePath string,
	ext string,
	contentType string,
	rng byterange.Range,
	total int64,
	onComplete func(string),
) {
	status := fiber.StatusOK
	outcome := metrics.OutcomeFull
	length := rng.Length(total)

	setCommonHeaders(c, contentType)
	if rng.Partial && rng.Total > 0 {
		status = fiber.StatusPartialContent
		outcome = metrics.OutcomePartial
		c.Set(fiber.HeaderAcceptRanges, "bytes")
		c.Set(fiber.HeaderContentRange, rng.ContentRange())
	}

	p.metrics.ObserveStream(outcome)
	p.metrics.StreamOpened()
	src := newReadStream(file, rng.Start, length, func(read int64) {
		p.metrics.StreamClosed()
		p.metrics.AddBytes(read)
		p.logger.WithFields(logrus.Fields{
			"action": "stream_closed",
			"path":   filePath,
			"bytes":  read,
		}).Debug("read stream released")
		if onComplete != nil {
			onComplete(filePath)
		}
	})
	src.closeAfter(p.timeout)

	p.logger.WithFields(logging.StreamFields(filePath, ext, contentType, status)).Debug("pipe_direct")

	c.Status(status)
	c.Response().SetBodyStream(src, int(length))
}

func (p *Piper) pipeTransforms(
	c fiber.Ctx,
	file afero.File,
	filePath string,
	ext string,
	contentType string,
	rng byterange.Range,
	total int64,
	handlers []transform.Transform,
) {
	setCommonHeaders(c, contentType)
	c.Status(fiber.StatusOK)

	header := requestHeader(c)
	ctx, cancel := context.WithCancel(context.Background())

	p.metrics.ObserveStream(metrics.OutcomeTransformed)
	p.metrics.StreamOpened()
	src := newReadStream(file, rng.Start, rng.Length(total), func(read int64) {
		cancel()
		p.metrics.StreamClosed()
		p.metrics.AddBytes(read)
	})
	src.closeAfter(p.timeout)

	fields := logging.StreamFields(filePath, ext, contentType, fiber.StatusOK)
	fields["transforms"] = len(handlers)
	p.logger.WithFields(fields).Debug("pipe_transform")

	c.Response().SetBodyStreamWriter(p.chainWriter(ctx, src, handlers, transform.Job{
		Path:        filePath,
		Extension:   ext,
		ContentType: contentType,
		Range:       rng,
		Header:      header,
	}))
}

// chainWriter runs handlers in registration order against the chunked body.
// Each handler gets its own reader over the window; the response ends when
// the first handler finishes it, or after the last one returns.
func (p *Piper) chainWriter(ctx context.Context, src *readStream, handlers []transform.Transform, base transform.Job) fasthttp.StreamWriter {
	return func(w *bufio.Writer) {
		defer src.Close()

		end := transform.NewEnder(w, func() { _ = w.Flush() })
		for i, handler := range handlers {
			job := transform.NewJob(end, src.section())
			job.Path = base.Path
			job.Extension = base.Extension
			job.ContentType = base.ContentType
			job.Range = base.Range
			job.Header = base.Header

			if err := handler.Transform(ctx, job); err != nil {
				p.logger.WithError(err).WithFields(logrus.Fields{
					"action": "transform",
					"path":   base.Path,
					"ext":    base.Extension,
					"index":  i,
				}).Warn("transform_failed")
			}
		}
		end.Finish()
	}
}

func setCommonHeaders(c fiber.Ctx, contentType string) {
	origin := c.Get(fiber.HeaderOrigin)
	if origin == "" {
		origin = "*"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
	c.Set(fiber.HeaderAccessControlAllowMethods, corsMethods)
	c.Set(fiber.HeaderAccessControlAllowHeaders, corsMethods)
}

func requestHeader(c fiber.Ctx) http.Header {
	out := make(http.Header)
	for key, values := range c.GetReqHeaders() {
		for _, value := range values {
			out.Add(key, value)
		}
	}
	return out
}

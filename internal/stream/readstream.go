package stream

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
)

// readStream is a byte-range reader over an open file. Every terminal event
// (body written, peer gone, response reset, timeout) ends in Close, and only
// the first call releases the file and runs onClose.
type readStream struct {
	file   afero.File
	start  int64
	length int64
	body   io.Reader

	read    atomic.Int64
	once    sync.Once
	timer   atomic.Pointer[time.Timer]
	onClose func(read int64)
}

func newReadStream(file afero.File, start, length int64, onClose func(read int64)) *readStream {
	s := &readStream{
		file:    file,
		start:   start,
		length:  length,
		onClose: onClose,
	}
	s.body = s.section()
	return s
}

// closeAfter closes the stream once d elapses. Zero disables the deadline.
func (s *readStream) closeAfter(d time.Duration) {
	if d <= 0 {
		return
	}
	s.timer.Store(time.AfterFunc(d, func() { _ = s.Close() }))
}

// section returns an independent reader over the same byte range.
func (s *readStream) section() io.Reader {
	return &countingReader{r: io.NewSectionReader(s.file, s.start, s.length), n: &s.read}
}

func (s *readStream) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

func (s *readStream) Close() error {
	var err error
	s.once.Do(func() {
		if timer := s.timer.Load(); timer != nil {
			timer.Stop()
		}
		err = s.file.Close()
		if s.onClose != nil {
			s.onClose(s.read.Load())
		}
	})
	return err
}

type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

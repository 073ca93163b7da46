// Package subtitle converts SubRip (.srt) subtitles to WebVTT while they are
// streamed, so browsers can load them through a <track> element.
package subtitle

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pipestream/pipestream/internal/transform"
)

// Kind is the configuration name of the SRT → WebVTT transform.
const Kind = "srt-vtt"

// ContentType is the media type of the converted body.
const ContentType = "text/vtt"

const (
	vttHeader   = "WEBVTT\n\n"
	cueArrow    = "-->"
	maxLineSize = 1 << 20
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func init() {
	transform.MustRegisterKind(Kind, func() transform.Transform { return SRTToVTT{} })
}

// SRTToVTT rewrites SubRip cues into WebVTT.
type SRTToVTT struct{}

// OutputType reports the WebVTT media type of the converted body.
func (SRTToVTT) OutputType() string {
	return ContentType
}

// Transform streams job.Source into job.Body as WebVTT and finishes the response.
func (SRTToVTT) Transform(ctx context.Context, job *transform.Job) error {
	if job.Finished() {
		return nil
	}
	defer job.Finish()

	w := bufio.NewWriter(job.Body)
	if err := Convert(ctx, w, job.Source); err != nil {
		return err
	}
	return w.Flush()
}

// Convert writes the WebVTT form of the SubRip document read from src.
func Convert(ctx context.Context, dst io.Writer, src io.Reader) error {
	if _, err := io.WriteString(dst, vttHeader); err != nil {
		return err
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	first := true
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if first {
			line = bytes.TrimPrefix(line, utf8BOM)
			first = false
		}
		if _, err := io.WriteString(dst, convertLine(string(line))+"\n"); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read subtitles: %w", err)
	}
	return nil
}

// convertLine fixes the decimal separator of cue timing lines; other lines
// pass through.
func convertLine(line string) string {
	line = strings.TrimRight(line, "\r")
	if !strings.Contains(line, cueArrow) {
		return line
	}
	parts := strings.SplitN(line, cueArrow, 2)
	return strings.TrimSpace(timestamp(parts[0])) + " " + cueArrow + " " + strings.TrimSpace(timestamp(parts[1]))
}

func timestamp(part string) string {
	return strings.Replace(part, ",", ".", 1)
}

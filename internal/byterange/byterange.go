// Package byterange turns an HTTP Range header and a resource size into the
// concrete byte window to serve. Malformed headers never produce an error; they
// fall back to best-effort defaults so range-tolerant players keep working.
package byterange

import (
	"fmt"
	"math"
	"strings"
)

const (
	unitPrefix = "bytes="

	// MinEnd is the smallest explicit upper bound honored. Players that ask
	// for a zero or one byte window get at least this much back.
	MinEnd int64 = 16
)

// Range is the resolved byte window for one request.
type Range struct {
	// Start is the first byte to read. When StartValid is false the header
	// carried an empty, negative or non-numeric start and Start is 0.
	Start      int64
	StartValid bool
	// End is the last byte to read (inclusive). It may point past the end of
	// the resource when the client asked for more than exists.
	End int64
	// Partial reports that a Range header was present.
	Partial bool
	// Total is the resource size when Partial is set, zero otherwise.
	Total int64
}

// Resolve parses header against a resource of total bytes.
func Resolve(header string, total int64) Range {
	r := Range{StartValid: true, End: total}
	if header == "" {
		return r
	}

	if idx := strings.Index(header, unitPrefix); idx >= 0 {
		parts := strings.Split(header[idx+len(unitPrefix):], "-")

		if start, ok := parseLeadingInt(parts[0]); ok && start >= 0 {
			r.Start = start
		} else {
			r.StartValid = false
		}

		if len(parts) > 1 && parts[1] != "" {
			if end, ok := parseLeadingInt(parts[1]); ok {
				if end < MinEnd {
					end = MinEnd
				}
				r.End = end
			}
		}
	}

	if r.End == total {
		r.End--
	}

	r.Total = total
	r.Partial = true
	return r
}

// Length returns how many bytes a read of [Start, End] yields from a resource
// of total bytes.
func (r Range) Length(total int64) int64 {
	end := r.End
	if end > total-1 {
		end = total - 1
	}
	if end < r.Start {
		return 0
	}
	return end - r.Start + 1
}

// ContentRange renders the Content-Range header value.
func (r Range) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// parseLeadingInt reads an optionally signed decimal integer from the start of
// s, ignoring leading whitespace and anything after the digits.
func parseLeadingInt(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	if s == "" {
		return 0, false
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	var (
		value  int64
		digits int
	)
	for digits < len(s) {
		ch := s[digits]
		if ch < '0' || ch > '9' {
			break
		}
		d := int64(ch - '0')
		if value > (math.MaxInt64-d)/10 {
			return 0, false
		}
		value = value*10 + d
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

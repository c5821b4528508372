// Package fcs reads the fixed-width header of Flow Cytometry Standard files.
//
// Only the header is inspected: the 6-byte version tag followed by four
// spaces and the ASCII byte offsets of the TEXT, DATA and ANALYSIS segments.
package fcs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// HeaderSize is the length of the FCS header that holds the version and
// the primary segment offsets.
const HeaderSize = 58

// ErrNotFCS is returned when the stream does not start with a FCS version tag.
var ErrNotFCS = errors.New("not an FCS file")

// Segment is an inclusive byte range inside the file. Zero offsets mean the
// segment is absent or its position is recorded in the TEXT segment instead.
type Segment struct {
	Start int64
	End   int64
}

// Header is the parsed fixed-width header.
type Header struct {
	Version  string
	Text     Segment
	Data     Segment
	Analysis Segment
}

// ReadHeader parses the header at the start of r.
// Files shorter than the header but carrying a valid version tag return the
// version with zero segments, since offsets are informational here.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read fcs header: %w", err)
	}
	buf = buf[:n]

	version, ok := parseVersion(buf)
	if !ok {
		return nil, ErrNotFCS
	}

	h := &Header{Version: version}
	if n < HeaderSize {
		return h, nil
	}

	offsets := make([]int64, 6)
	for i := range offsets {
		field := buf[10+i*8 : 18+i*8]
		v, err := strconv.ParseInt(string(bytes.TrimSpace(field)), 10, 64)
		if err != nil {
			// Blank or garbled offsets do not invalidate the version tag.
			v = 0
		}
		offsets[i] = v
	}
	h.Text = Segment{Start: offsets[0], End: offsets[1]}
	h.Data = Segment{Start: offsets[2], End: offsets[3]}
	h.Analysis = Segment{Start: offsets[4], End: offsets[5]}
	return h, nil
}

// Version returns the FCS version recorded in the header of r, or nil when
// the header is missing or garbled. It never fails.
func Version(r io.Reader) *string {
	h, err := ReadHeader(r)
	if err != nil {
		return nil
	}
	return &h.Version
}

// parseVersion accepts "FCS<d>.<d>" optionally followed by the four-space pad.
func parseVersion(b []byte) (string, bool) {
	if len(b) < 6 || !bytes.HasPrefix(b, []byte("FCS")) {
		return "", false
	}
	if !isDigit(b[3]) || b[4] != '.' || !isDigit(b[5]) {
		return "", false
	}
	if len(b) >= 10 && !bytes.Equal(b[6:10], []byte("    ")) {
		return "", false
	}
	return string(b[3:6]), true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

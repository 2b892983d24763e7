// Package frame reads link-layer and EAPOL-Key fields out of captured frames.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned by View accessors reading past the end of the frame.
var ErrShortBuffer = errors.New("frame: short buffer")

// View is a read-only window over captured bytes. Accessors never panic on
// out-of-range offsets; they return ErrShortBuffer instead.
type View []byte

func (v View) Len() int { return len(v) }

// Has reports whether n bytes starting at off are inside the view.
func (v View) Has(off, n int) bool {
	return off >= 0 && n >= 0 && off <= len(v) && n <= len(v)-off
}

func (v View) Slice(off, n int) ([]byte, error) {
	if !v.Has(off, n) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d, have %d", ErrShortBuffer, n, off, len(v))
	}
	return v[off : off+n], nil
}

func (v View) Uint8(off int) (uint8, error) {
	b, err := v.Slice(off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (v View) Uint16BE(off int) (uint16, error) {
	b, err := v.Slice(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (v View) Uint16LE(off int) (uint16, error) {
	b, err := v.Slice(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

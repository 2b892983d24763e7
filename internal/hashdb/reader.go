package hashdb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/benzammour/wpacrack/internal/attack"
	"github.com/benzammour/wpacrack/internal/wpa"
)

// Reader streams the records of a hash file as precomputed candidates.
type Reader struct {
	r      *bufio.Reader
	hdr    header
	record uint64
	buf    [wpa.PassphraseMaxLen + wpa.PMKLen]byte
}

// NewReader reads and validates the header of r. The file must have been
// generated for exactly ssid.
func NewReader(r io.Reader, ssid string) (*Reader, error) {
	hr := &Reader{r: bufio.NewReader(r)}
	if err := binary.Read(hr.r, binary.LittleEndian, &hr.hdr); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short header", ErrBadMagic)
		}
		return nil, fmt.Errorf("hashdb: reading header: %w", err)
	}
	if hr.hdr.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %#08x", ErrBadMagic, hr.hdr.Magic)
	}
	if hr.hdr.SSIDLen == 0 || hr.hdr.SSIDLen > MaxSSID {
		return nil, fmt.Errorf("%w: header SSID length %d", ErrInvalidSSID, hr.hdr.SSIDLen)
	}
	if got := hr.hdr.ssid(); got != ssid {
		return nil, fmt.Errorf("%w: file is for %q, attacking %q", ErrSSIDMismatch, got, ssid)
	}
	log.WithField("ssid", ssid).Debug("hash file header ok")
	return hr, nil
}

// SSID returns the network name stored in the header.
func (r *Reader) SSID() string { return r.hdr.ssid() }

// Precomputed marks every candidate of a Reader as carrying its PMK.
func (r *Reader) Precomputed() bool { return true }

// Next returns the next record. It returns io.EOF at a record boundary at
// the end of the file and ErrMalformed for anything else that cannot be read.
func (r *Reader) Next() (attack.Candidate, error) {
	size, err := r.r.ReadByte()
	if errors.Is(err, io.EOF) {
		return attack.Candidate{}, io.EOF
	}
	if err != nil {
		return attack.Candidate{}, err
	}
	r.record++

	n := int(int8(size))
	if n < 0 {
		n = -n
	}
	wordLen := n - recOverhead
	if wordLen < wpa.PassphraseMinLen || wordLen > wpa.PassphraseMaxLen {
		return attack.Candidate{}, fmt.Errorf("%w: record %d has word length %d", ErrMalformed, r.record, wordLen)
	}

	rec := r.buf[:wordLen+wpa.PMKLen]
	if _, err := io.ReadFull(r.r, rec); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return attack.Candidate{}, fmt.Errorf("%w: record %d truncated", ErrMalformed, r.record)
		}
		return attack.Candidate{}, err
	}

	var pmk wpa.PMK
	copy(pmk[:], rec[wordLen:])
	return attack.Precomputed(string(rec[:wordLen]), pmk), nil
}

// Package hashdb reads and writes precomputed PMK files in the genpmk
// format: a fixed header naming the SSID, followed by variable length
// records of passphrase and PMK.
//
//	header  magic u32le | reserved [3]byte | ssid_len u8 | ssid [32]byte
//	record  rec_size i8 | word [rec_size-33]byte | pmk [32]byte
package hashdb

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/benzammour/wpacrack/internal/wpa"
)

var log = logrus.WithField("component", "hashdb")

const (
	Magic     = 0x43575041
	MaxSSID   = 32
	HeaderLen = 4 + 3 + 1 + MaxSSID

	// rec_size counts itself, the word and the PMK.
	recSizeLen  = 1
	recOverhead = recSizeLen + wpa.PMKLen
)

var (
	ErrBadMagic     = errors.New("hashdb: not a precomputed hash file")
	ErrInvalidSSID  = errors.New("hashdb: invalid SSID")
	ErrSSIDMismatch = errors.New("hashdb: SSID does not match hash file")
	ErrMalformed    = errors.New("hashdb: malformed record")
	ErrInvalidWord  = errors.New("hashdb: word must be 8 to 63 printable ASCII characters")
)

// header is the on-disk layout, read and written with encoding/binary.
type header struct {
	Magic    uint32
	Reserved [3]byte
	SSIDLen  uint8
	SSID     [MaxSSID]byte
}

func (h *header) ssid() string { return string(h.SSID[:h.SSIDLen]) }

func newHeader(ssid string) (header, error) {
	if len(ssid) == 0 || len(ssid) > MaxSSID {
		return header{}, ErrInvalidSSID
	}
	h := header{Magic: Magic, SSIDLen: uint8(len(ssid))}
	copy(h.SSID[:], ssid)
	return h, nil
}

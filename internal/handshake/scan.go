package handshake

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"

	"github.com/benzammour/wpacrack/internal/frame"
)

// ErrIncomplete matches any *IncompleteError.
var ErrIncomplete = errors.New("handshake: incomplete")

// IncompleteError is returned by Scan when the capture ends before every
// field was collected.
type IncompleteError struct {
	Missing []Field
}

func (e *IncompleteError) Error() string {
	var f Field
	for _, m := range e.Missing {
		f |= m
	}
	return fmt.Sprintf("handshake: capture ended without %s", f)
}

func (e *IncompleteError) Is(target error) bool { return target == ErrIncomplete }

// Source is a stream of captured frames. pcapgo.Reader and pcapgo.NgReader
// satisfy it.
type Source interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Stats counts what a scan looked at.
type Stats struct {
	Packets  int
	EAPOL    int
	Used     int
	Skipped  int
	Messages [5]int
}

// Minimum bytes after the ethertype for a frame to hold an EAPOL-Key body.
const minEAPOLAfterType = 95

// Scan reads src until a complete handshake has been assembled or the
// capture ends. A capture that ends early yields the partial record and an
// *IncompleteError.
func Scan(src Source, mode Mode, opts ...Option) (*Handshake, Stats, error) {
	var st Stats
	lt := src.LinkType()
	if err := frame.CheckLinkType(lt); err != nil {
		return nil, st, err
	}
	log.WithFields(logrus.Fields{"linktype": lt, "mode": mode}).Debug("scanning capture")

	a := NewAssembler(mode, opts...)
	for !a.Complete() {
		data, _, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return a.Handshake(), st, fmt.Errorf("handshake: reading capture: %w", err)
		}
		st.Packets++

		off, err := frame.Locate(lt, data)
		if err != nil {
			if frame.IsSkippable(err) {
				st.Skipped++
				continue
			}
			return a.Handshake(), st, err
		}
		if !isEAPOL(data, off) {
			continue
		}
		st.EAPOL++

		if m := a.Add(data, off); m != MessageNone {
			st.Used++
			st.Messages[m]++
		}
	}

	hs := a.Handshake()
	if !hs.Complete() {
		return hs, st, &IncompleteError{Missing: hs.Missing()}
	}
	log.WithField("handshake", hs).Debug("handshake complete")
	return hs, st, nil
}

func isEAPOL(data []byte, off frame.Offsets) bool {
	if len(data) <= off.L2Type+minEAPOLAfterType {
		return false
	}
	return layers.EthernetType(binary.BigEndian.Uint16(data[off.L2Type:])) == layers.EthernetTypeEAPOL
}

// Package capture opens offline packet captures in libpcap or pcapng format.
package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "capture")

// ErrFormat is returned for input that is neither pcap nor pcapng.
var ErrFormat = errors.New("capture: unrecognised capture format")

const ngSectionHeader = 0x0a0d0d0a

// Reader is a stream of captured frames with a single datalink type.
type Reader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// NewReader detects the capture format of r and returns a reader for it.
// Gzip compressed libpcap files are accepted too.
func NewReader(r io.Reader) (Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	if binary.LittleEndian.Uint32(magic) == ngSectionHeader {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: pcapng: %v", ErrFormat, err)
		}
		log.WithField("linktype", ng.LinkType()).Debug("opened pcapng capture")
		return ng, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	log.WithFields(logrus.Fields{
		"linktype": pr.LinkType(),
		"snaplen":  pr.Snaplen(),
	}).Debug("opened pcap capture")
	return pr, nil
}

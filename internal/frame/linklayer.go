package frame

import (
	"errors"
	"fmt"

	"github.com/google/gopacket/layers"
)

var (
	ErrUnsupportedLinkType = errors.New("frame: unsupported datalink type")
	// ErrNotRelevant marks a well-formed frame that cannot carry EAPOL, such
	// as an 802.11 management or control frame.
	ErrNotRelevant       = errors.New("frame: not a data frame")
	ErrMalformedRadiotap = errors.New("frame: malformed radiotap header")
	ErrTooShort          = errors.New("frame: too short for link-layer header")
)

const (
	ethernetHeaderLen = 14

	// AVS / Prism capture header, fixed size.
	prismHeaderLen = 144

	dot11HeaderLen    = 24
	dot11QoSHeaderLen = 26
	llcSnapLen        = 8

	// Smallest 802.11 frame the radiotap length is checked against.
	dot11MinLen = 10

	radiotapMinLen    = 8
	radiotapLenOffset = 2

	dot11TypeData       = 2
	dot11SubtypeData    = 0
	dot11SubtypeQoSData = 8
)

// Offsets locates the interesting fields of one captured frame. All values
// are byte offsets from the start of the captured data.
type Offsets struct {
	EAPOL  int // 802.1X header
	L2Type int // ethertype in the Ethernet header or the LLC/SNAP header
	Dst    int
	Src    int
}

// CheckLinkType reports whether lt is a datalink type Locate understands.
func CheckLinkType(lt layers.LinkType) error {
	switch lt {
	case layers.LinkTypeNull, layers.LinkTypeEthernet, layers.LinkTypeIEEE802_11,
		layers.LinkTypePrismHeader, layers.LinkTypeIEEE80211Radio:
		return nil
	}
	return fmt.Errorf("%w: %s (%d)", ErrUnsupportedLinkType, lt, uint8(lt))
}

// IsSkippable reports whether err only concerns the current frame, so a scan
// over a capture may continue with the next one.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrNotRelevant) ||
		errors.Is(err, ErrMalformedRadiotap) ||
		errors.Is(err, ErrTooShort)
}

// Locate computes the offsets to the 802.1X payload and to the MAC addresses
// of data, which was captured with datalink type lt.
func Locate(lt layers.LinkType, data []byte) (Offsets, error) {
	v := View(data)

	switch lt {
	case layers.LinkTypeNull, layers.LinkTypeEthernet:
		if v.Len() < ethernetHeaderLen {
			return Offsets{}, fmt.Errorf("%w: %d bytes", ErrTooShort, v.Len())
		}
		return Offsets{EAPOL: 14, L2Type: 12, Dst: 0, Src: 6}, nil

	case layers.LinkTypeIEEE802_11:
		return locateDot11(v, 0)

	case layers.LinkTypePrismHeader:
		return locateDot11(v, prismHeaderLen)

	case layers.LinkTypeIEEE80211Radio:
		// The radiotap length comes from the capture itself and is checked
		// before it is used as an offset.
		rtlen, err := v.Uint16LE(radiotapLenOffset)
		if err != nil {
			return Offsets{}, fmt.Errorf("%w: %v", ErrTooShort, err)
		}
		if int(rtlen) < radiotapMinLen || int(rtlen) > v.Len()-dot11MinLen {
			return Offsets{}, fmt.Errorf("%w: length %d in %d byte frame", ErrMalformedRadiotap, rtlen, v.Len())
		}
		return locateDot11(v, int(rtlen))
	}

	return Offsets{}, CheckLinkType(lt)
}

func locateDot11(v View, prefix int) (Offsets, error) {
	fc, err := v.Uint8(prefix)
	if err != nil {
		return Offsets{}, fmt.Errorf("%w: %v", ErrTooShort, err)
	}

	ftype := (fc >> 2) & 0x03
	subtype := fc >> 4
	if ftype != dot11TypeData {
		return Offsets{}, fmt.Errorf("%w: type %d", ErrNotRelevant, ftype)
	}

	var hdrlen int
	switch subtype {
	case dot11SubtypeData:
		hdrlen = dot11HeaderLen
	case dot11SubtypeQoSData:
		hdrlen = dot11QoSHeaderLen
	default:
		return Offsets{}, fmt.Errorf("%w: data subtype %d", ErrNotRelevant, subtype)
	}

	off := Offsets{
		EAPOL:  prefix + hdrlen + llcSnapLen,
		L2Type: prefix + hdrlen + llcSnapLen - 2,
		Dst:    prefix + 4,
		Src:    prefix + 10,
	}
	if v.Len() < off.EAPOL {
		return Offsets{}, fmt.Errorf("%w: %d bytes, header ends at %d", ErrTooShort, v.Len(), off.EAPOL)
	}
	return off, nil
}

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket/layers"
)

// ErrShortKeyFrame is returned by ParseKey for buffers that cannot hold the
// fixed part of an EAPOL-Key frame.
var ErrShortKeyFrame = errors.New("frame: EAPOL-Key frame too short")

// Layout of an EAPOL-Key frame, measured from the start of the 802.1X header.
const (
	Dot1XHeaderLen = 4
	// KeyBodyMinLen is the EAPOL-Key body up to and including key data length.
	KeyBodyMinLen = 95
	// KeyFrameMinLen is the 802.1X header plus KeyBodyMinLen.
	KeyFrameMinLen = Dot1XHeaderLen + KeyBodyMinLen

	offVersion       = 0
	offPacketType    = 1
	offBodyLength    = 2
	offDescriptor    = 4
	offKeyInfo       = 5
	offReplayCounter = 9
	offNonce         = 17

	// OffMIC and OffKeyDataLength are exported because the MIC template is
	// built by zeroing them in a copy of the frame.
	OffMIC           = 81
	OffKeyDataLength = 97

	NonceLen         = 32
	MICLen           = 16
	ReplayCounterLen = 8
)

// Key information bits (IEEE 802.11i 8.5.2).
const (
	KeyInfoVersionMask      = 0x0007
	KeyInfoPairwise         = 0x0008
	KeyInfoIndexMask        = 0x0030
	KeyInfoInstall          = 0x0040
	KeyInfoAck              = 0x0080
	KeyInfoMIC              = 0x0100
	KeyInfoSecure           = 0x0200
	KeyInfoError            = 0x0400
	KeyInfoRequest          = 0x0800
	KeyInfoEncryptedKeyData = 0x1000
)

// KeyFrame is a typed view over an 802.1X EAPOL-Key frame. It aliases the
// buffer it was parsed from.
type KeyFrame struct {
	raw  View
	info uint16
}

// ParseKey parses b, which starts at the 802.1X header.
func ParseKey(b []byte) (*KeyFrame, error) {
	v := View(b)
	if v.Len() < KeyFrameMinLen {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrShortKeyFrame, v.Len(), KeyFrameMinLen)
	}
	info, err := v.Uint16BE(offKeyInfo)
	if err != nil {
		return nil, err
	}
	return &KeyFrame{raw: v, info: info}, nil
}

func (k *KeyFrame) Version() uint8 { return k.raw[offVersion] }

func (k *KeyFrame) PacketType() layers.EAPOLType { return layers.EAPOLType(k.raw[offPacketType]) }

// BodyLength is the length announced by the 802.1X header, excluding the header.
func (k *KeyFrame) BodyLength() int {
	return int(binary.BigEndian.Uint16(k.raw[offBodyLength:]))
}

func (k *KeyFrame) DescriptorType() layers.EAPOLKeyDescriptorType {
	return layers.EAPOLKeyDescriptorType(k.raw[offDescriptor])
}

func (k *KeyFrame) KeyInfo() uint16 { return k.info }

func (k *KeyFrame) DescriptorVersion() layers.EAPOLKeyDescriptorVersion {
	return layers.EAPOLKeyDescriptorVersion(k.info & KeyInfoVersionMask)
}

func (k *KeyFrame) IsPairwise() bool       { return k.info&KeyInfoPairwise != 0 }
func (k *KeyFrame) Install() bool          { return k.info&KeyInfoInstall != 0 }
func (k *KeyFrame) Ack() bool              { return k.info&KeyInfoAck != 0 }
func (k *KeyFrame) HasMIC() bool           { return k.info&KeyInfoMIC != 0 }
func (k *KeyFrame) Secure() bool           { return k.info&KeyInfoSecure != 0 }
func (k *KeyFrame) MICError() bool         { return k.info&KeyInfoError != 0 }
func (k *KeyFrame) Request() bool          { return k.info&KeyInfoRequest != 0 }
func (k *KeyFrame) EncryptedKeyData() bool { return k.info&KeyInfoEncryptedKeyData != 0 }

func (k *KeyFrame) Nonce() []byte { return k.raw[offNonce : offNonce+NonceLen] }

func (k *KeyFrame) MIC() []byte { return k.raw[OffMIC : OffMIC+MICLen] }

func (k *KeyFrame) ReplayCounter() []byte {
	return k.raw[offReplayCounter : offReplayCounter+ReplayCounterLen]
}

func (k *KeyFrame) KeyDataLength() int {
	return int(binary.BigEndian.Uint16(k.raw[OffKeyDataLength:]))
}

// Bytes returns the whole buffer the frame was parsed from.
func (k *KeyFrame) Bytes() []byte { return k.raw }

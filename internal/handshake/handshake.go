// Package handshake assembles the fields of a WPA/WPA2-PSK four-way handshake
// from captured EAPOL-Key frames.
package handshake

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/gopacket/layers"

	"github.com/benzammour/wpacrack/internal/frame"
	"github.com/benzammour/wpacrack/internal/wpa"
)

// Mode selects which messages of the exchange are used.
type Mode int

const (
	// Strict takes SNonce from message 2, addresses and ANonce from message 3
	// and the MIC from message 4.
	Strict Mode = iota
	// NonStrict takes ANonce from message 1 and everything else from
	// message 2. It accepts any 802.1X version.
	NonStrict
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case NonStrict:
		return "nonstrict"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Field names one piece of the collected handshake.
type Field uint8

const (
	FieldAA Field = 1 << iota
	FieldSPA
	FieldANonce
	FieldSNonce
	FieldMIC
	FieldEAPOL

	AllFields = FieldAA | FieldSPA | FieldANonce | FieldSNonce | FieldMIC | FieldEAPOL
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldAA, "AA"},
	{FieldSPA, "SPA"},
	{FieldANonce, "ANonce"},
	{FieldSNonce, "SNonce"},
	{FieldMIC, "MIC"},
	{FieldEAPOL, "EAPOL frame"},
}

func (f Field) String() string {
	var names []string
	for _, fn := range fieldNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// Handshake is the record collected from a capture. Each field is written
// at most once; Has reports which ones are present.
type Handshake struct {
	AA     wpa.MAC
	SPA    wpa.MAC
	ANonce wpa.Nonce
	SNonce wpa.Nonce
	MIC    wpa.MIC
	// EAPOL is the 802.1X frame the MIC was computed over, MIC still in place.
	EAPOL []byte
	// Version is the key descriptor version of the frame in EAPOL.
	Version       layers.EAPOLKeyDescriptorVersion
	ReplayCounter [frame.ReplayCounterLen]byte
	Mode          Mode

	set        Field
	replaySet  bool
	anonceLink link
	snonceLink link
}

// link is the sender and receiver of a frame.
type link struct {
	src, dst wpa.MAC
}

func newLink(src, dst []byte) link {
	var l link
	copy(l.src[:], src)
	copy(l.dst[:], dst)
	return l
}

func (h *Handshake) Has(f Field) bool { return h.set&f == f }

// Complete reports whether every field needed to test a passphrase is present.
func (h *Handshake) Complete() bool { return h.Has(AllFields) }

// Missing lists the absent fields in a fixed order.
func (h *Handshake) Missing() []Field {
	var out []Field
	for _, fn := range fieldNames {
		if h.set&fn.f == 0 {
			out = append(out, fn.f)
		}
	}
	return out
}

func (h *Handshake) setAA(mac []byte) bool {
	if h.Has(FieldAA) {
		return false
	}
	copy(h.AA[:], mac)
	h.set |= FieldAA
	return true
}

func (h *Handshake) setSPA(mac []byte) bool {
	if h.Has(FieldSPA) {
		return false
	}
	copy(h.SPA[:], mac)
	h.set |= FieldSPA
	return true
}

func (h *Handshake) setANonce(nonce []byte, from link) bool {
	if h.Has(FieldANonce) {
		return false
	}
	copy(h.ANonce[:], nonce)
	h.anonceLink = from
	h.set |= FieldANonce
	return true
}

func (h *Handshake) setSNonce(nonce []byte, from link) bool {
	if h.Has(FieldSNonce) {
		return false
	}
	copy(h.SNonce[:], nonce)
	h.snonceLink = from
	h.set |= FieldSNonce
	return true
}

// setMICFrame records the MIC together with the frame it covers, so the two
// always come from the same message.
func (h *Handshake) setMICFrame(mic, eapol []byte, ver layers.EAPOLKeyDescriptorVersion) bool {
	if h.Has(FieldMIC) || h.Has(FieldEAPOL) {
		return false
	}
	copy(h.MIC[:], mic)
	h.EAPOL = append([]byte(nil), eapol...)
	h.Version = ver
	h.set |= FieldMIC | FieldEAPOL
	return true
}

func (h *Handshake) setReplayCounter(rc []byte) bool {
	if h.replaySet {
		return false
	}
	copy(h.ReplayCounter[:], rc)
	h.replaySet = true
	return true
}

func (h *Handshake) clear(f Field) { h.set &^= f }

// Template returns a copy of EAPOL prepared for MIC recomputation: the MIC
// is zeroed, and in strict mode so is the key data length.
func (h *Handshake) Template() []byte {
	if !h.Has(FieldEAPOL) {
		return nil
	}
	t := append([]byte(nil), h.EAPOL...)
	for i := frame.OffMIC; i < frame.OffMIC+frame.MICLen && i < len(t); i++ {
		t[i] = 0
	}
	if h.Mode == Strict && len(t) >= frame.OffKeyDataLength+2 {
		t[frame.OffKeyDataLength] = 0
		t[frame.OffKeyDataLength+1] = 0
	}
	return t
}

// Protocol names the key hierarchy in use, WPA (TKIP, HMAC-MD5) or WPA2
// (CCMP, HMAC-SHA1).
func (h *Handshake) Protocol() string {
	switch h.Version {
	case layers.EAPOLKeyDescriptorVersionRC4HMACMD5:
		return "WPA"
	case layers.EAPOLKeyDescriptorVersionAESHMACSHA1:
		return "WPA2"
	}
	return "unknown"
}

func (h *Handshake) String() string {
	if h.Complete() {
		return fmt.Sprintf("%s handshake AA=%s SPA=%s (%s)", h.Protocol(), h.AA, h.SPA, h.Mode)
	}
	return fmt.Sprintf("incomplete handshake, missing %s (%s)", h.set^AllFields, h.Mode)
}

// Fields returns the collected values as name/hex pairs for display.
func (h *Handshake) Fields() [][2]string {
	return [][2]string{
		{"AA", hex.EncodeToString(h.AA[:])},
		{"SPA", hex.EncodeToString(h.SPA[:])},
		{"SNonce", hex.EncodeToString(h.SNonce[:])},
		{"ANonce", hex.EncodeToString(h.ANonce[:])},
		{"MIC", hex.EncodeToString(h.MIC[:])},
		{"EAPOL frame", hex.EncodeToString(h.EAPOL)},
	}
}

package frametest

import (
	"bytes"
	"net"

	"github.com/google/gopacket/layers"

	"github.com/benzammour/wpacrack/internal/wpa"
)

var (
	DefaultAA  = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	DefaultSPA = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}

	// RSNIE is the CCMP/PSK RSN element a station puts in message 2.
	RSNIE = []byte{
		0x30, 0x14, 0x01, 0x00,
		0x00, 0x0f, 0xac, 0x04, 0x01, 0x00, 0x00, 0x0f, 0xac, 0x04,
		0x01, 0x00, 0x00, 0x0f, 0xac, 0x02, 0x00, 0x00,
	}
)

// Handshake generates the four EAPOL-Key messages of one PSK exchange with
// MICs that verify under Passphrase and SSID.
type Handshake struct {
	Passphrase    string
	SSID          string
	Version       layers.EAPOLKeyDescriptorVersion
	Dot1XVersion  uint8
	AA, SPA       net.HardwareAddr
	ANonce        []byte
	SNonce        []byte
	ReplayCounter uint64 // of message 1; message 3 uses the next value
}

// NewHandshake returns a WPA2 handshake between DefaultAA and DefaultSPA
// with fixed nonces.
func NewHandshake(passphrase, ssid string) *Handshake {
	anonce := make([]byte, 32)
	snonce := make([]byte, 32)
	for i := range anonce {
		anonce[i] = byte(i)
		snonce[i] = byte(0x80 + i)
	}
	return &Handshake{
		Passphrase:    passphrase,
		SSID:          ssid,
		Version:       layers.EAPOLKeyDescriptorVersionAESHMACSHA1,
		Dot1XVersion:  1,
		AA:            DefaultAA,
		SPA:           DefaultSPA,
		ANonce:        anonce,
		SNonce:        snonce,
		ReplayCounter: 1,
	}
}

func (h *Handshake) wpa2() bool {
	return h.Version == layers.EAPOLKeyDescriptorVersionAESHMACSHA1
}

func (h *Handshake) kck() []byte {
	var aa, spa wpa.MAC
	var anonce, snonce wpa.Nonce
	copy(aa[:], h.AA)
	copy(spa[:], h.SPA)
	copy(anonce[:], h.ANonce)
	copy(snonce[:], h.SNonce)
	pmk := wpa.DerivePMK([]byte(h.Passphrase), []byte(h.SSID))
	return wpa.DerivePTK(pmk, aa, spa, anonce, snonce, wpa.PTKLen)[:wpa.KCKLen]
}

// sign fills the MIC field of eapol, which must still be zero.
func (h *Handshake) sign(eapol []byte) []byte {
	mic, err := wpa.ComputeMIC(h.Version, h.kck(), eapol)
	if err != nil {
		panic(err)
	}
	copy(eapol[81:97], mic[:])
	return eapol
}

func (h *Handshake) M1() []byte {
	return EAPOL(Key{
		Dot1XVersion:  h.Dot1XVersion,
		DescVersion:   h.Version,
		Ack:           true,
		ReplayCounter: h.ReplayCounter,
		Nonce:         h.ANonce,
	})
}

func (h *Handshake) M2() []byte {
	return h.sign(EAPOL(Key{
		Dot1XVersion:  h.Dot1XVersion,
		DescVersion:   h.Version,
		MIC:           true,
		ReplayCounter: h.ReplayCounter,
		Nonce:         h.SNonce,
		KeyData:       RSNIE,
	}))
}

func (h *Handshake) M3() []byte {
	return h.sign(EAPOL(Key{
		Dot1XVersion:  h.Dot1XVersion,
		DescVersion:   h.Version,
		Install:       true,
		Ack:           true,
		MIC:           true,
		Secure:        h.wpa2(),
		ReplayCounter: h.ReplayCounter + 1,
		Nonce:         h.ANonce,
		KeyData:       bytes.Repeat([]byte{0x5a}, 56),
	}))
}

func (h *Handshake) M4() []byte {
	return h.sign(EAPOL(Key{
		Dot1XVersion:  h.Dot1XVersion,
		DescVersion:   h.Version,
		MIC:           true,
		Secure:        h.wpa2(),
		ReplayCounter: h.ReplayCounter + 1,
	}))
}

// Frames returns messages 1 to 4 encapsulated for lt, each addressed in the
// direction it travels.
func (h *Handshake) Frames(lt layers.LinkType) [][]byte {
	return [][]byte{
		h.FromAA(lt, h.M1()),
		h.FromSPA(lt, h.M2()),
		h.FromAA(lt, h.M3()),
		h.FromSPA(lt, h.M4()),
	}
}

func (h *Handshake) FromAA(lt layers.LinkType, eapol []byte) []byte {
	return Encapsulate(lt, h.SPA, h.AA, h.AA, eapol)
}

func (h *Handshake) FromSPA(lt layers.LinkType, eapol []byte) []byte {
	return Encapsulate(lt, h.AA, h.SPA, h.AA, eapol)
}

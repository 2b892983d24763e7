package wpa

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/gopacket/layers"
)

const MICLen = 16

var ErrUnsupportedVersion = errors.New("wpa: unsupported key descriptor version")

type MIC [MICLen]byte

// ComputeMIC returns the EAPOL-Key MIC of frame under kck. frame must already
// have its MIC field zeroed; ComputeMIC does not modify it.
//
// Version 1 (WPA, TKIP) uses HMAC-MD5. Version 2 (WPA2, CCMP) uses HMAC-SHA1
// truncated to 16 bytes.
func ComputeMIC(ver layers.EAPOLKeyDescriptorVersion, kck, frame []byte) (MIC, error) {
	var mic MIC
	switch ver {
	case layers.EAPOLKeyDescriptorVersionRC4HMACMD5:
		h := hmac.New(md5.New, kck)
		h.Write(frame)
		copy(mic[:], h.Sum(nil))
	case layers.EAPOLKeyDescriptorVersionAESHMACSHA1:
		h := hmac.New(sha1.New, kck)
		h.Write(frame)
		copy(mic[:], h.Sum(nil))
	default:
		return mic, fmt.Errorf("%w: %s", ErrUnsupportedVersion, ver)
	}
	return mic, nil
}

// VerifyMIC derives the PTK for pmk and checks the MIC of frame against want.
func VerifyMIC(ver layers.EAPOLKeyDescriptorVersion, pmk PMK, aa, spa MAC, anonce, snonce Nonce, frame []byte, want MIC) (bool, error) {
	ptk := DerivePTK(pmk, aa, spa, anonce, snonce, PTKLen)
	got, err := ComputeMIC(ver, ptk[:KCKLen], frame)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1, nil
}

// Package wpa implements the WPA/WPA2-PSK key hierarchy: passphrase to PMK,
// PMK to PTK, and the EAPOL-Key MIC computed with the PTK.
package wpa

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is fixed by IEEE 802.11i. Any other value yields PMKs no
	// access point will agree with.
	Iterations = 4096

	PMKLen = 32
	PTKLen = 64
	KCKLen = 16

	PassphraseMinLen = 8
	PassphraseMaxLen = 63
)

const pairwiseLabel = "Pairwise key expansion"

type (
	MAC   [6]byte
	Nonce [32]byte
	PMK   [PMKLen]byte
)

func (m MAC) String() string {
	return hex.EncodeToString(m[:])
}

// DerivePMK computes PBKDF2-HMAC-SHA1(passphrase, ssid, 4096, 32).
func DerivePMK(passphrase, ssid []byte) PMK {
	var pmk PMK
	copy(pmk[:], pbkdf2.Key(passphrase, ssid, Iterations, PMKLen, sha1.New))
	return pmk
}

// PRF is the 802.11i pseudo random function: HMAC-SHA1(key, label || 0 || data || i)
// for i = 0, 1, ... concatenated and truncated to n bytes.
func PRF(key []byte, label string, data []byte, n int) []byte {
	mac := hmac.New(sha1.New, key)
	out := make([]byte, 0, n+sha1.Size)
	msg := make([]byte, 0, len(label)+1+len(data)+1)
	msg = append(msg, label...)
	msg = append(msg, 0)
	msg = append(msg, data...)
	msg = append(msg, 0)
	counter := len(msg) - 1

	for i := 0; len(out) < n; i++ {
		msg[counter] = byte(i)
		mac.Reset()
		mac.Write(msg)
		out = mac.Sum(out)
	}
	return out[:n]
}

// keyExpansionData builds Min(AA,SPA) || Max(AA,SPA) || Min(ANonce,SNonce) || Max(ANonce,SNonce).
// Ordering is bytewise, never numeric.
func keyExpansionData(aa, spa MAC, anonce, snonce Nonce) []byte {
	data := make([]byte, 0, 2*len(aa)+2*len(anonce))
	lo, hi := byteMinMax(aa[:], spa[:])
	data = append(data, lo...)
	data = append(data, hi...)
	lo, hi = byteMinMax(anonce[:], snonce[:])
	data = append(data, lo...)
	data = append(data, hi...)
	return data
}

func byteMinMax(u, v []byte) ([]byte, []byte) {
	if bytes.Compare(u, v) < 0 {
		return u, v
	}
	return v, u
}

// DerivePTK expands pmk into n bytes of pairwise transient key. The result
// does not depend on which address or nonce is passed first.
func DerivePTK(pmk PMK, aa, spa MAC, anonce, snonce Nonce, n int) []byte {
	return PRF(pmk[:], pairwiseLabel, keyExpansionData(aa, spa, anonce, snonce), n)
}

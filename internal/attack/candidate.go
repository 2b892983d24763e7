// Package attack tests candidate passphrases, or precomputed PMKs, against a
// captured handshake.
package attack

import (
	"github.com/benzammour/wpacrack/internal/wpa"
)

// Candidate is one guess. PMK is set when the source already derived it for
// the target SSID.
type Candidate struct {
	Passphrase string
	PMK        *wpa.PMK
}

func Passphrase(s string) Candidate { return Candidate{Passphrase: s} }

func Precomputed(s string, pmk wpa.PMK) Candidate {
	return Candidate{Passphrase: s, PMK: &pmk}
}

// ValidPassphrase reports whether s can be a WPA passphrase: 8 to 63
// printable ASCII characters.
func ValidPassphrase(s string) bool {
	if len(s) < wpa.PassphraseMinLen || len(s) > wpa.PassphraseMaxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// Source yields candidates until it returns io.EOF. Any other error aborts
// the attack.
type Source interface {
	Next() (Candidate, error)
}

// precomputedSource is implemented by sources whose candidates all carry a
// PMK.
type precomputedSource interface {
	Precomputed() bool
}

func isPrecomputed(src Source) bool {
	p, ok := src.(precomputedSource)
	return ok && p.Precomputed()
}

package handshake

import (
	"bytes"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benzammour/wpacrack/internal/frame"
)

func TestCompleteOverAllSubsets(t *testing.T) {
	for mask := 0; mask <= int(AllFields); mask++ {
		h := &Handshake{set: Field(mask)}
		assert.Equal(t, Field(mask) == AllFields, h.Complete(), "mask %06b", mask)
		assert.Len(t, h.Missing(), 6-bits.OnesCount(uint(mask)), "mask %06b", mask)
		for _, f := range h.Missing() {
			assert.False(t, h.Has(f))
		}
	}
}

func TestSettersFirstWriterWins(t *testing.T) {
	h := &Handshake{}
	first := bytes.Repeat([]byte{1}, frame.KeyFrameMinLen)
	second := bytes.Repeat([]byte{2}, frame.KeyFrameMinLen)
	firstLink := newLink(first[:6], second[:6])
	secondLink := newLink(second[:6], first[:6])

	assert.True(t, h.setAA(first[:6]))
	assert.False(t, h.setAA(second[:6]))
	assert.Equal(t, first[:6], h.AA[:])

	assert.True(t, h.setSPA(first[:6]))
	assert.False(t, h.setSPA(second[:6]))
	assert.Equal(t, first[:6], h.SPA[:])

	assert.True(t, h.setANonce(first[:32], firstLink))
	assert.False(t, h.setANonce(second[:32], secondLink))
	assert.Equal(t, first[:32], h.ANonce[:])
	assert.Equal(t, firstLink, h.anonceLink)

	assert.True(t, h.setSNonce(first[:32], secondLink))
	assert.False(t, h.setSNonce(second[:32], firstLink))
	assert.Equal(t, first[:32], h.SNonce[:])
	assert.Equal(t, secondLink, h.snonceLink)

	assert.True(t, h.setMICFrame(first[:16], first[:99], 2))
	assert.False(t, h.setMICFrame(second[:16], second[:99], 1))
	assert.Equal(t, first[:16], h.MIC[:])
	assert.Equal(t, first[:99], h.EAPOL)

	assert.True(t, h.setReplayCounter(first[:8]))
	assert.False(t, h.setReplayCounter(second[:8]))
	assert.Equal(t, first[:8], h.ReplayCounter[:])

	assert.True(t, h.Complete())
	assert.Empty(t, h.Missing())
}

func TestSetMICFrameCopies(t *testing.T) {
	h := &Handshake{}
	buf := bytes.Repeat([]byte{7}, 99)
	h.setMICFrame(buf[81:97], buf, 2)
	buf[0] = 0
	assert.Equal(t, byte(7), h.EAPOL[0])
}

func TestTemplate(t *testing.T) {
	eapol := bytes.Repeat([]byte{0xee}, 121)

	tests := []struct {
		name       string
		mode       Mode
		zeroKeyLen bool
	}{
		{"strict zeroes key data length", Strict, true},
		{"nonstrict keeps key data length", NonStrict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handshake{Mode: tt.mode}
			h.setMICFrame(eapol[frame.OffMIC:frame.OffMIC+frame.MICLen], eapol, 2)

			tmpl := h.Template()
			require.Len(t, tmpl, len(eapol))
			assert.Equal(t, make([]byte, frame.MICLen), tmpl[frame.OffMIC:frame.OffMIC+frame.MICLen])
			if tt.zeroKeyLen {
				assert.Equal(t, []byte{0, 0}, tmpl[frame.OffKeyDataLength:frame.OffKeyDataLength+2])
			} else {
				assert.Equal(t, []byte{0xee, 0xee}, tmpl[frame.OffKeyDataLength:frame.OffKeyDataLength+2])
			}
			assert.Equal(t, eapol[:frame.OffMIC], tmpl[:frame.OffMIC])
			assert.Equal(t, eapol[frame.OffKeyDataLength+2:], tmpl[frame.OffKeyDataLength+2:])

			// The stored frame keeps its MIC.
			assert.Equal(t, byte(0xee), h.EAPOL[frame.OffMIC])
		})
	}

	assert.Nil(t, (&Handshake{}).Template())
}

func TestFieldString(t *testing.T) {
	assert.Equal(t, "none", Field(0).String())
	assert.Equal(t, "AA", FieldAA.String())
	assert.Equal(t, "MIC, EAPOL frame", (FieldMIC | FieldEAPOL).String())
	assert.Equal(t, "AA, SPA, ANonce, SNonce, MIC, EAPOL frame", AllFields.String())
}

func TestHandshakeString(t *testing.T) {
	h := &Handshake{Mode: Strict}
	h.setAA([]byte{0, 0x11, 0x22, 0x33, 0x44, 0x55})
	assert.Equal(t, "incomplete handshake, missing SPA, ANonce, SNonce, MIC, EAPOL frame (strict)", h.String())

	h.setSPA([]byte{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb})
	h.setANonce(make([]byte, 32), link{src: h.AA, dst: h.SPA})
	h.setSNonce(make([]byte, 32), link{src: h.SPA, dst: h.AA})
	h.setMICFrame(make([]byte, 16), make([]byte, 99), 2)
	assert.Equal(t, "WPA2 handshake AA=001122334455 SPA=66778899aabb (strict)", h.String())
	assert.Equal(t, "WPA2", h.Protocol())
	assert.Len(t, h.Fields(), 6)
}

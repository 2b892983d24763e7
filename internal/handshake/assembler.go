package handshake

import (
	"bytes"
	"net"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"

	"github.com/benzammour/wpacrack/internal/frame"
	"github.com/benzammour/wpacrack/internal/wpa"
)

var log = logrus.WithField("component", "handshake")

// Message is the position of a frame in the four-way handshake.
type Message int

const (
	MessageNone Message = iota
	Message1
	Message2
	Message3
	Message4
)

func (m Message) String() string {
	switch m {
	case Message1:
		return "message 1"
	case Message2:
		return "message 2"
	case Message3:
		return "message 3"
	case Message4:
		return "message 4"
	}
	return "none"
}

type Option func(*Assembler)

// WithoutCorrelation disables the address checks between messages. Every
// frame that classifies contributes to the record regardless of which
// station pair sent it.
func WithoutCorrelation() Option {
	return func(a *Assembler) { a.correlate = false }
}

// Assembler classifies EAPOL-Key frames and merges their fields into one
// Handshake.
type Assembler struct {
	mode      Mode
	correlate bool
	hs        *Handshake
	// counters holds every replay counter seen in message 3, so a message 4
	// answering a retransmitted message 3 still matches.
	counters [][]byte
	// First nonce seen on each sender and receiver pair, kept until the
	// session addresses are known.
	anonces map[link]wpa.Nonce
	snonces map[link]wpa.Nonce
}

func NewAssembler(mode Mode, opts ...Option) *Assembler {
	a := &Assembler{
		mode:      mode,
		correlate: true,
		hs:        &Handshake{Mode: mode},
		anonces:   make(map[link]wpa.Nonce),
		snonces:   make(map[link]wpa.Nonce),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assembler) Handshake() *Handshake { return a.hs }

func (a *Assembler) Complete() bool { return a.hs.Complete() }

// Add examines one captured frame whose link-layer offsets are off. It
// returns the message the frame was used as, or MessageNone when the frame
// was ignored.
func (a *Assembler) Add(data []byte, off frame.Offsets) Message {
	v := frame.View(data)
	dst, err := v.Slice(off.Dst, 6)
	if err != nil {
		return MessageNone
	}
	src, err := v.Slice(off.Src, 6)
	if err != nil {
		return MessageNone
	}
	if off.EAPOL < 0 || off.EAPOL > len(data) {
		return MessageNone
	}
	k, err := frame.ParseKey(data[off.EAPOL:])
	if err != nil {
		log.WithError(err).Trace("skipping frame")
		return MessageNone
	}
	if !a.accepts(k) {
		return MessageNone
	}

	if a.mode == Strict {
		return a.addStrict(k, src, dst)
	}
	return a.addNonStrict(k, src, dst)
}

// accepts applies the header and descriptor checks common to both modes.
func (a *Assembler) accepts(k *frame.KeyFrame) bool {
	if k.PacketType() != layers.EAPOLTypeKey {
		return false
	}
	if a.mode == Strict && k.Version() != 1 {
		return false
	}
	if !k.IsPairwise() {
		return false
	}
	switch k.DescriptorVersion() {
	case layers.EAPOLKeyDescriptorVersionRC4HMACMD5:
		return k.DescriptorType() == layers.EAPOLKeyDescriptorTypeWPA
	case layers.EAPOLKeyDescriptorVersionAESHMACSHA1:
		return k.DescriptorType() == layers.EAPOLKeyDescriptorTypeDot11
	}
	return false
}

// fromAuthenticator reports whether a frame sent from src to dst may belong
// to the session already identified, for a message the AP sends.
func (a *Assembler) fromAuthenticator(src, dst []byte) bool {
	h := a.hs
	if !a.correlate {
		return true
	}
	if h.Has(FieldAA) && !bytes.Equal(src, h.AA[:]) {
		return false
	}
	if h.Has(FieldSPA) && !bytes.Equal(dst, h.SPA[:]) {
		return false
	}
	return true
}

func (a *Assembler) fromSupplicant(src, dst []byte) bool {
	h := a.hs
	if !a.correlate {
		return true
	}
	if h.Has(FieldSPA) && !bytes.Equal(src, h.SPA[:]) {
		return false
	}
	if h.Has(FieldAA) && !bytes.Equal(dst, h.AA[:]) {
		return false
	}
	return true
}

// pruneNonces replaces nonces recorded before the session addresses were
// known whose frame travelled between a different pair of stations.
func (a *Assembler) pruneNonces() {
	h := a.hs
	if !a.correlate || !h.Has(FieldAA|FieldSPA) {
		return
	}
	toSPA := link{src: h.AA, dst: h.SPA}
	toAA := link{src: h.SPA, dst: h.AA}

	if h.Has(FieldANonce) && h.anonceLink != toSPA {
		log.WithFields(logrus.Fields{
			"src": h.anonceLink.src,
			"dst": h.anonceLink.dst,
		}).Debug("discarding ANonce from another session")
		h.clear(FieldANonce)
	}
	if n, ok := a.anonces[toSPA]; ok && !h.Has(FieldANonce) {
		h.setANonce(n[:], toSPA)
	}
	if h.Has(FieldSNonce) && h.snonceLink != toAA {
		log.WithFields(logrus.Fields{
			"src": h.snonceLink.src,
			"dst": h.snonceLink.dst,
		}).Debug("discarding SNonce from another session")
		h.clear(FieldSNonce)
	}
	if n, ok := a.snonces[toAA]; ok && !h.Has(FieldSNonce) {
		h.setSNonce(n[:], toAA)
	}
}

// remember keeps the first nonce seen on l.
func remember(m map[link]wpa.Nonce, l link, nonce []byte) {
	if _, ok := m[l]; ok {
		return
	}
	var n wpa.Nonce
	copy(n[:], nonce)
	m[l] = n
}

func (a *Assembler) addANonce(nonce, src, dst []byte) {
	l := newLink(src, dst)
	if a.correlate {
		remember(a.anonces, l, nonce)
	}
	a.hs.setANonce(nonce, l)
}

func (a *Assembler) addSNonce(nonce, src, dst []byte) {
	l := newLink(src, dst)
	if a.correlate {
		remember(a.snonces, l, nonce)
	}
	a.hs.setSNonce(nonce, l)
}

func (a *Assembler) addStrict(k *frame.KeyFrame, src, dst []byte) Message {
	h := a.hs
	switch {
	case k.HasMIC() && !k.Ack() && !k.Install() && k.KeyDataLength() > 0:
		if !a.fromSupplicant(src, dst) {
			return a.foreign(Message2, src, dst)
		}
		a.addSNonce(k.Nonce(), src, dst)
		return a.classified(Message2, src, dst)

	case k.HasMIC() && k.Install() && k.Ack():
		if !a.fromAuthenticator(src, dst) {
			return a.foreign(Message3, src, dst)
		}
		h.setSPA(dst)
		h.setAA(src)
		a.addANonce(k.Nonce(), src, dst)
		h.setReplayCounter(k.ReplayCounter())
		a.rememberCounter(k.ReplayCounter())
		a.pruneNonces()
		return a.classified(Message3, src, dst)

	case k.HasMIC() && !k.Ack() && !k.Install() && a.knownCounter(k.ReplayCounter()):
		if !a.fromSupplicant(src, dst) {
			return a.foreign(Message4, src, dst)
		}
		h.setMICFrame(k.MIC(), k.Bytes()[:frame.KeyFrameMinLen], k.DescriptorVersion())
		return a.classified(Message4, src, dst)
	}
	return MessageNone
}

func (a *Assembler) addNonStrict(k *frame.KeyFrame, src, dst []byte) Message {
	h := a.hs
	switch {
	case !k.HasMIC() && k.Ack() && !k.Install():
		if !a.fromAuthenticator(src, dst) {
			return a.foreign(Message1, src, dst)
		}
		a.addANonce(k.Nonce(), src, dst)
		return a.classified(Message1, src, dst)

	case k.HasMIC() && !k.Install() && !k.Ack() && k.KeyDataLength() > 0:
		if !a.fromSupplicant(src, dst) {
			return a.foreign(Message2, src, dst)
		}
		size := k.BodyLength() + frame.Dot1XHeaderLen
		eapol, err := frame.View(k.Bytes()).Slice(0, size)
		if err == nil && size < frame.KeyFrameMinLen {
			err = frame.ErrShortKeyFrame
		}
		if err != nil {
			log.WithError(err).WithField("announced", size).Debug("message 2 shorter than its 802.1X length")
			return MessageNone
		}
		h.setSPA(src)
		h.setAA(dst)
		a.addSNonce(k.Nonce(), src, dst)
		h.setMICFrame(k.MIC(), eapol, k.DescriptorVersion())
		a.pruneNonces()
		return a.classified(Message2, src, dst)

	case k.HasMIC() && k.Ack() && k.Install():
		if !a.fromAuthenticator(src, dst) {
			return a.foreign(Message3, src, dst)
		}
		a.addANonce(k.Nonce(), src, dst)
		return a.classified(Message3, src, dst)
	}
	return MessageNone
}

func (a *Assembler) rememberCounter(rc []byte) {
	for _, c := range a.counters {
		if bytes.Equal(c, rc) {
			return
		}
	}
	a.counters = append(a.counters, append([]byte(nil), rc...))
}

func (a *Assembler) knownCounter(rc []byte) bool {
	for _, c := range a.counters {
		if bytes.Equal(c, rc) {
			return true
		}
	}
	return false
}

func (a *Assembler) classified(m Message, src, dst []byte) Message {
	log.WithFields(logrus.Fields{
		"message": m,
		"src":     net.HardwareAddr(src),
		"dst":     net.HardwareAddr(dst),
	}).Debug("EAPOL-Key frame")
	return m
}

func (a *Assembler) foreign(m Message, src, dst []byte) Message {
	log.WithFields(logrus.Fields{
		"message": m,
		"src":     net.HardwareAddr(src),
		"dst":     net.HardwareAddr(dst),
	}).Debug("skipping frame from another session")
	return MessageNone
}

// Package frametest builds synthetic EAPOL-Key frames and four-way handshakes
// for tests, in every link-layer encapsulation the scanner understands.
package frametest

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Key describes one EAPOL-Key frame.
type Key struct {
	Dot1XVersion   uint8
	DescVersion    layers.EAPOLKeyDescriptorVersion
	DescType       layers.EAPOLKeyDescriptorType // derived from DescVersion when zero
	Group          bool
	Install        bool
	Ack            bool
	MIC            bool
	Secure         bool
	ReplayCounter  uint64
	Nonce          []byte
	MICValue       []byte
	KeyData        []byte
	KeyDataLenHack int // overrides the key data length field when non-zero
}

// EAPOL serialises k as an 802.1X header followed by the EAPOL-Key body.
func EAPOL(k Key) []byte {
	descType := k.DescType
	if descType == 0 {
		descType = layers.EAPOLKeyDescriptorTypeDot11
		if k.DescVersion == layers.EAPOLKeyDescriptorVersionRC4HMACMD5 {
			descType = layers.EAPOLKeyDescriptorTypeWPA
		}
	}
	keyType := layers.EAPOLKeyTypePairwise
	if k.Group {
		keyType = layers.EAPOLKeyTypeGroupSMK
	}
	dataLen := uint16(len(k.KeyData))
	if k.KeyDataLenHack != 0 {
		dataLen = uint16(k.KeyDataLenHack)
	}

	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&layers.EAPOL{
			Version: k.Dot1XVersion,
			Type:    layers.EAPOLTypeKey,
			Length:  uint16(95 + len(k.KeyData)),
		},
		&layers.EAPOLKey{
			KeyDescriptorType:    descType,
			KeyDescriptorVersion: k.DescVersion,
			KeyType:              keyType,
			Install:              k.Install,
			KeyACK:               k.Ack,
			KeyMIC:               k.MIC,
			Secure:               k.Secure,
			KeyLength:            16,
			ReplayCounter:        k.ReplayCounter,
			Nonce:                k.Nonce,
			MIC:                  k.MICValue,
			KeyDataLength:        dataLen,
			EncryptedKeyData:     k.KeyData,
		})
	if err != nil {
		panic(err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

func serialize(ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, ls...); err != nil {
		panic(err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

// Ethernet wraps eapol in an Ethernet II header.
func Ethernet(dst, src net.HardwareAddr, eapol []byte) []byte {
	return serialize(
		&layers.Ethernet{DstMAC: dst, SrcMAC: src, EthernetType: layers.EthernetTypeEAPOL},
		gopacket.Payload(eapol))
}

// Dot11 wraps eapol in an 802.11 data (or QoS data) header and LLC/SNAP.
func Dot11(dst, src, bssid net.HardwareAddr, eapol []byte, qos bool) []byte {
	ls := []gopacket.SerializableLayer{&layers.Dot11{
		Type:     layers.Dot11TypeData,
		Address1: dst,
		Address2: src,
		Address3: bssid,
	}}
	if qos {
		ls[0].(*layers.Dot11).Type = layers.Dot11TypeDataQOSData
		ls = append(ls, gopacket.Payload{0x00, 0x00})
	}
	ls = append(ls,
		&layers.LLC{DSAP: 0xaa, SSAP: 0xaa, Control: 0x03},
		&layers.SNAP{OrganizationalCode: []byte{0, 0, 0}, Type: layers.EthernetTypeEAPOL},
		gopacket.Payload(eapol))
	return serialize(ls...)
}

// Beacon is a minimal 802.11 management frame, never relevant to a scan.
func Beacon(bssid net.HardwareAddr) []byte {
	return serialize(&layers.Dot11{
		Type:     layers.Dot11TypeMgmtBeacon,
		Address1: layers.EthernetBroadcast,
		Address2: bssid,
		Address3: bssid,
	}, gopacket.Payload(make([]byte, 36)))
}

// Prism prepends a zeroed 144 byte AVS/Prism capture header.
func Prism(dot11 []byte) []byte {
	return append(make([]byte, 144), dot11...)
}

// Radiotap prepends a radiotap header of the given total length (at least 8).
func Radiotap(dot11 []byte, length int) []byte {
	hdr := make([]byte, length)
	hdr[2] = byte(length)
	hdr[3] = byte(length >> 8)
	return append(hdr, dot11...)
}

// Encapsulate wraps eapol for datalink type lt, sent from src to dst.
func Encapsulate(lt layers.LinkType, dst, src, bssid net.HardwareAddr, eapol []byte) []byte {
	switch lt {
	case layers.LinkTypeNull, layers.LinkTypeEthernet:
		return Ethernet(dst, src, eapol)
	case layers.LinkTypeIEEE802_11:
		return Dot11(dst, src, bssid, eapol, false)
	case layers.LinkTypePrismHeader:
		return Prism(Dot11(dst, src, bssid, eapol, true))
	case layers.LinkTypeIEEE80211Radio:
		return Radiotap(Dot11(dst, src, bssid, eapol, true), 18)
	}
	panic(fmt.Sprintf("frametest: no encapsulation for %s", lt))
}

// Packets is an in-memory capture. It satisfies the packet source contract
// of pcapgo.Reader.
type Packets struct {
	Type   layers.LinkType
	Frames [][]byte
	next   int
}

func (p *Packets) LinkType() layers.LinkType { return p.Type }

func (p *Packets) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if p.next >= len(p.Frames) {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	data := p.Frames[p.next]
	p.next++
	return data, gopacket.CaptureInfo{
		Timestamp:     time.Unix(int64(p.next), 0),
		CaptureLength: len(data),
		Length:        len(data),
	}, nil
}

// Pcap renders frames as a libpcap capture file.
func Pcap(lt layers.LinkType, frames ...[]byte) []byte {
	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	if err := w.WriteFileHeader(65536, lt); err != nil {
		panic(err)
	}
	for i, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(int64(i+1), 0),
			CaptureLength: len(f),
			Length:        len(f),
		}
		if err := w.WritePacket(ci, f); err != nil {
			panic(err)
		}
	}
	return out.Bytes()
}

// PcapNG renders frames as a single-interface pcapng capture.
func PcapNG(lt layers.LinkType, frames ...[]byte) []byte {
	var out bytes.Buffer
	w, err := pcapgo.NewNgWriter(&out, lt)
	if err != nil {
		panic(err)
	}
	for i, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(int64(i+1), 0),
			CaptureLength: len(f),
			Length:        len(f),
		}
		if err := w.WritePacket(ci, f); err != nil {
			panic(err)
		}
	}
	if err := w.Flush(); err != nil {
		panic(err)
	}
	return out.Bytes()
}

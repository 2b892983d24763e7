package hashdb

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/benzammour/wpacrack/internal/attack"
	"github.com/benzammour/wpacrack/internal/wpa"
)

// Writer appends records to a hash file. Call Flush when done.
type Writer struct {
	w     *bufio.Writer
	count uint64
}

// NewWriter writes the header for ssid to w.
func NewWriter(w io.Writer, ssid string) (*Writer, error) {
	hdr, err := newHeader(ssid)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes", err, len(ssid))
	}
	hw := &Writer{w: bufio.NewWriter(w)}
	if err := binary.Write(hw.w, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("hashdb: writing header: %w", err)
	}
	return hw, nil
}

func (w *Writer) Write(word string, pmk wpa.PMK) error {
	if !attack.ValidPassphrase(word) {
		return fmt.Errorf("%w: got %d", ErrInvalidWord, len(word))
	}
	if err := w.w.WriteByte(byte(recOverhead + len(word))); err != nil {
		return err
	}
	if _, err := w.w.WriteString(word); err != nil {
		return err
	}
	if _, err := w.w.Write(pmk[:]); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count is the number of records written.
func (w *Writer) Count() uint64 { return w.count }

func (w *Writer) Flush() error { return w.w.Flush() }

// GenerateResult summarises a Generate run.
type GenerateResult struct {
	Written   uint64
	Skipped   uint64
	Cancelled bool
}

// Generate derives the PMK of every candidate from src for ssid and writes
// them to w. Words of invalid length are skipped. progress is called every
// attack.DefaultInterval words and ctx is checked at the same points.
func Generate(ctx context.Context, src attack.Source, ssid string, w io.Writer, progress func(written uint64)) (GenerateResult, error) {
	var res GenerateResult
	hw, err := NewWriter(w, ssid)
	if err != nil {
		return res, err
	}
	if progress == nil {
		progress = func(uint64) {}
	}

	for n := uint64(1); ; n++ {
		if n%attack.DefaultInterval == 0 {
			progress(hw.Count())
			if ctx.Err() != nil {
				res.Cancelled = true
				break
			}
		}

		cand, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		if !attack.ValidPassphrase(cand.Passphrase) {
			res.Skipped++
			continue
		}

		pmk := wpa.DerivePMK([]byte(cand.Passphrase), []byte(ssid))
		if err := hw.Write(cand.Passphrase, pmk); err != nil {
			return res, err
		}
		res.Written = hw.Count()
	}

	if err := hw.Flush(); err != nil {
		return res, err
	}
	progress(hw.Count())
	log.WithFields(logrus.Fields{
		"ssid":    ssid,
		"written": res.Written,
		"skipped": res.Skipped,
	}).Debug("hash file generated")
	return res, nil
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/benzammour/wpacrack/internal/attack"
	"github.com/benzammour/wpacrack/internal/handshake"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
)

// dumpFields prints every value collected from the capture.
func dumpFields(w io.Writer, hs *handshake.Handshake) {
	tbl := table.New("Field", "Value").
		WithWriter(w).
		WithHeaderFormatter(color.New(color.FgYellow, color.Underline).SprintfFunc()).
		WithFirstColumnFormatter(infoColor.SprintfFunc())
	tbl.AddRow("Protocol", hs.Protocol())
	tbl.AddRow("Mode", hs.Mode)
	for _, f := range hs.Fields() {
		tbl.AddRow(f[0], f[1])
	}
	tbl.Print()
}

func printStats(w io.Writer, res attack.Result) {
	fmt.Fprintf(w, "\n%d passphrases tested in %.2f seconds:  %.2f passphrases/second\n",
		res.Tested, res.Elapsed.Seconds(), res.Rate())
}

// progressBar renders attack progress on the terminal. Its methods are
// no-ops on a nil receiver.
type progressBar struct {
	bar *pb.ProgressBar
}

func newProgressBar(w io.Writer, unit string) *progressBar {
	bar := pb.New64(0).
		SetTemplateString(`{{counters . }} ` + unit + ` {{speed . "%s/s" }} {{etime . }}`).
		SetWriter(w).
		SetRefreshRate(500 * time.Millisecond)
	bar.Start()
	return &progressBar{bar: bar}
}

func (p *progressBar) set(n uint64) {
	if p == nil {
		return
	}
	p.bar.SetCurrent(int64(n))
}

// update is an attack.ProgressFunc.
func (p *progressBar) update(tested uint64, status attack.Status) {
	if p == nil {
		return
	}
	p.set(tested)
	if status == attack.StatusError {
		p.bar.SetErr(fmt.Errorf("aborted after %d", tested))
	}
}

func (p *progressBar) finish() {
	if p == nil {
		return
	}
	p.bar.Finish()
}

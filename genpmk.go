package main

import (
	"io"
	"os"
	"time"

	"github.com/benzammour/wpacrack/internal/hashdb"
	"github.com/benzammour/wpacrack/internal/wordlist"
)

type genpmkCommand struct {
	app *app

	Dictionary string `short:"f" long:"dictionary" value-name:"FILE" required:"true" description:"Dictionary of passphrases, one per line (- for stdin)"`
	Output     string `short:"d" long:"hashfile" value-name:"FILE" required:"true" description:"Hash file to write (- for stdout)"`
	SSID       string `short:"s" long:"ssid" required:"true" description:"Network name"`
	Quiet      bool   `short:"q" long:"quiet" description:"Do not show a progress bar"`
}

func (c *genpmkCommand) Execute(args []string) error {
	switch {
	case len(args) > 0:
		return usageError("unexpected argument %q", args[0])
	case len(c.SSID) == 0 || len(c.SSID) > hashdb.MaxSSID:
		return usageError("SSID (-s) must be 1 to %d bytes", hashdb.MaxSSID)
	}

	in := c.app.stdin
	if c.Dictionary != stdinName {
		f, err := os.Open(c.Dictionary)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	// The summary moves to stderr when the hash file is written to stdout.
	report := c.app.stdout
	var out io.Writer = c.app.stdout
	var file *os.File
	if c.Output != stdinName {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out, file = f, f
	} else {
		report = c.app.stderr
	}

	var bar *progressBar
	if !c.Quiet {
		bar = newProgressBar(c.app.stderr, "PMKs")
	}
	start := time.Now()
	res, err := hashdb.Generate(c.app.ctx, wordlist.NewReader(in), c.SSID, out, bar.set)
	bar.finish()
	if err != nil {
		return err
	}
	if file != nil {
		if err := file.Close(); err != nil {
			return err
		}
	}

	elapsed := time.Since(start)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(res.Written) / elapsed.Seconds()
	}
	infoColor.Fprintf(report, "%d PMKs written for SSID %q in %.2f seconds (%.2f/second), %d words skipped.\n",
		res.Written, c.SSID, elapsed.Seconds(), rate, res.Skipped)
	if res.Cancelled {
		failColor.Fprintln(report, "Interrupted, the hash file holds the words processed so far.")
		return &exitError{code: exitFailure}
	}
	return nil
}

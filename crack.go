package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/benzammour/wpacrack/internal/attack"
	"github.com/benzammour/wpacrack/internal/capture"
	"github.com/benzammour/wpacrack/internal/handshake"
	"github.com/benzammour/wpacrack/internal/hashdb"
	"github.com/benzammour/wpacrack/internal/wordlist"
)

const stdinName = "-"

type crackCommand struct {
	app *app

	Capture     string `short:"r" long:"capture" value-name:"FILE" required:"true" description:"Packet capture (pcap, pcap.gz or pcapng) holding the four-way handshake"`
	Dictionary  string `short:"f" long:"dictionary" value-name:"FILE" description:"Dictionary of passphrases, one per line (- for stdin)"`
	HashFile    string `short:"d" long:"hashfile" value-name:"FILE" description:"Precomputed PMK file written by genpmk (- for stdin)"`
	SSID        string `short:"s" long:"ssid" description:"Network name"`
	NonStrict   bool   `short:"2" long:"nonstrict" description:"Use frames 1 and 2 of the handshake instead of 3 and 4"`
	CheckOnly   bool   `short:"c" long:"check" description:"Only check the capture for a usable handshake"`
	NoCorrelate bool   `long:"no-correlate" description:"Accept handshake messages from any station pair"`
	Workers     int    `short:"j" long:"workers" value-name:"N" default:"1" description:"Number of workers, 0 for one per CPU"`
	Quiet       bool   `short:"q" long:"quiet" description:"Do not show a progress bar"`
}

func (c *crackCommand) validate(args []string) error {
	switch {
	case len(args) > 0:
		return usageError("unexpected argument %q", args[0])
	case c.Capture == stdinName:
		return usageError("the capture cannot be read from stdin")
	case c.CheckOnly:
		return nil
	case c.Dictionary == "" && c.HashFile == "":
		return usageError("a dictionary (-f) or a hash file (-d) is required")
	case c.Dictionary != "" && c.HashFile != "":
		return usageError("-f and -d are mutually exclusive")
	case len(c.SSID) == 0 || len(c.SSID) > attack.MaxSSIDLen:
		return usageError("SSID (-s) must be 1 to %d bytes", attack.MaxSSIDLen)
	case c.Workers < 0:
		return usageError("workers (-j) must not be negative")
	}
	return nil
}

func (c *crackCommand) mode() handshake.Mode {
	if c.NonStrict {
		return handshake.NonStrict
	}
	return handshake.Strict
}

func (c *crackCommand) readHandshake() (*handshake.Handshake, error) {
	f, err := os.Open(c.Capture)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Capture, err)
	}

	var opts []handshake.Option
	if c.NoCorrelate {
		opts = append(opts, handshake.WithoutCorrelation())
	}
	hs, st, err := handshake.Scan(r, c.mode(), opts...)
	logrus.WithFields(logrus.Fields{
		"packets": st.Packets,
		"eapol":   st.EAPOL,
		"used":    st.Used,
		"skipped": st.Skipped,
	}).Debug("capture scanned")
	return hs, err
}

// source opens the candidate stream. The returned closer is never nil.
func (c *crackCommand) source() (attack.Source, io.Closer, error) {
	name := c.Dictionary
	if name == "" {
		name = c.HashFile
	}

	var rc io.ReadCloser = io.NopCloser(c.app.stdin)
	if name != stdinName {
		f, err := os.Open(name)
		if err != nil {
			return nil, nil, err
		}
		rc = f
	}

	if c.Dictionary != "" {
		return wordlist.NewReader(rc), rc, nil
	}
	r, err := hashdb.NewReader(rc, c.SSID)
	if err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return r, rc, nil
}

func (c *crackCommand) Execute(args []string) error {
	if err := c.validate(args); err != nil {
		return err
	}
	out := c.app.stdout

	hs, err := c.readHandshake()
	if errors.Is(err, handshake.ErrIncomplete) {
		failColor.Fprintf(out, "End of capture reached without a complete handshake (%s mode).\n", c.mode())
		fmt.Fprintln(out, hs)
		if !c.NonStrict {
			fmt.Fprintln(out, "Try again with -2 to use frames 1 and 2 of the exchange.")
		}
		return &exitError{code: exitFailure}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Collected all necessary data to mount crack against %s/PSK passphrase.\n", hs.Protocol())
	if c.CheckOnly || len(c.app.opts.Verbose) > 1 {
		dumpFields(out, hs)
	}
	if c.CheckOnly {
		okColor.Fprintln(out, "Capture contains a valid handshake.")
		return nil
	}

	src, closer, err := c.source()
	if err != nil {
		return err
	}
	defer closer.Close()

	var bar *progressBar
	if !c.Quiet {
		bar = newProgressBar(c.app.stderr, "passphrases")
	}
	opts := []attack.Option{attack.WithProgress(bar.update)}
	if c.Workers > 0 {
		opts = append(opts, attack.WithWorkers(c.Workers))
	}
	cr, err := attack.New(hs, c.SSID, opts...)
	if err != nil {
		bar.finish()
		return err
	}

	var res attack.Result
	if c.Workers == 1 {
		res, err = cr.Run(c.app.ctx, src)
	} else {
		res, err = cr.RunParallel(c.app.ctx, src)
	}
	bar.finish()
	if err != nil {
		return err
	}

	if res.Skipped > 0 {
		logrus.WithField("skipped", res.Skipped).Info("skipped words that are not 8 to 63 printable ASCII characters")
	}
	printStats(out, res)

	switch res.Outcome {
	case attack.Found:
		okColor.Fprintf(out, "\nThe PSK is \"%s\".\n", res.Passphrase)
		return nil
	case attack.Cancelled:
		failColor.Fprintln(out, "\nInterrupted before the list was exhausted.")
	default:
		failColor.Fprintln(out, "\nUnable to identify the PSK from the candidate list.")
		fmt.Fprintln(out, "Try expanding your passphrase list, and double-check the SSID.")
	}
	return &exitError{code: exitFailure}
}

// Command wpacrack recovers the passphrase of a WPA or WPA2 pre-shared key
// network from a captured four-way handshake, using a dictionary or a file
// of precomputed PMKs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

// version is overridden at link time.
var version = "dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError ends a command with a specific exit status. A nil err means the
// user has already been told why.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...interface{}) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

type globalOptions struct {
	Verbose []bool `short:"v" long:"verbose" description:"Increase verbosity, repeat for per-candidate output"`
	NoColor bool   `long:"no-color" description:"Disable colored output"`
}

type app struct {
	opts   globalOptions
	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newParser(a *app) *flags.Parser {
	p := flags.NewParser(&a.opts, flags.HelpFlag|flags.PassDoubleDash)
	p.Name = "wpacrack"
	p.CommandHandler = func(cmd flags.Commander, args []string) error {
		a.configure()
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

	mustAddCommand(p, "crack", "Attack a captured handshake",
		"Extracts a WPA/WPA2 four-way handshake from a capture file and tests a dictionary or precomputed hash file against it.",
		&crackCommand{app: a})
	mustAddCommand(p, "genpmk", "Precompute PMKs for an SSID",
		"Derives the PMK of every dictionary word for one SSID and writes them to a hash file usable with crack -d.",
		&genpmkCommand{app: a})
	mustAddCommand(p, "version", "Print the version", "", &versionCommand{app: a})
	return p
}

func mustAddCommand(p *flags.Parser, name, short, long string, data interface{}) {
	if _, err := p.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}

// configure applies the global options once the command line is parsed.
func (a *app) configure() {
	logrus.SetOutput(a.stderr)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch len(a.opts.Verbose) {
	case 0:
		logrus.SetLevel(logrus.InfoLevel)
	case 1:
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.SetLevel(logrus.TraceLevel)
	}
	if a.opts.NoColor {
		color.NoColor = true
	}
}

func (a *app) run(ctx context.Context, args []string) int {
	a.ctx = ctx
	_, err := newParser(a).ParseArgs(args)
	if err == nil {
		return exitOK
	}

	var ferr *flags.Error
	if errors.As(err, &ferr) {
		if ferr.Type == flags.ErrHelp {
			fmt.Fprintln(a.stdout, ferr.Message)
			return exitOK
		}
		fmt.Fprintln(a.stderr, ferr.Message)
		return exitUsage
	}

	var eerr *exitError
	if errors.As(err, &eerr) {
		if eerr.err != nil {
			logrus.Error(eerr.err)
		}
		return eerr.code
	}
	logrus.Error(err)
	return exitUsage
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{stdin: os.Stdin, stdout: color.Output, stderr: color.Error}
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

type versionCommand struct {
	app *app
}

func (c *versionCommand) Execute([]string) error {
	fmt.Fprintf(c.app.stdout, "wpacrack %s\n", version)
	return nil
}

package attack

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/benzammour/wpacrack/internal/handshake"
	"github.com/benzammour/wpacrack/internal/wpa"
)

var log = logrus.WithField("component", "attack")

var (
	ErrIncompleteHandshake = errors.New("attack: handshake is incomplete")
	ErrInvalidSSID         = errors.New("attack: SSID must be 1 to 32 bytes")
)

const (
	MaxSSIDLen = 32

	// Candidates between progress reports and cancellation checks.
	DefaultInterval            = 1000
	DefaultPrecomputedInterval = 10000
)

// Outcome says how an attack ended.
type Outcome int

const (
	Exhausted Outcome = iota
	Found
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Exhausted:
		return "exhausted"
	case Found:
		return "found"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Status is reported to the progress sink.
type Status int

const (
	StatusRunning Status = iota
	StatusSuccess
	StatusError
)

// ProgressFunc receives the number of candidates tested so far. It is never
// called concurrently.
type ProgressFunc func(tested uint64, status Status)

// Result of an attack. Passphrase and PMK are valid when Outcome is Found.
type Result struct {
	Outcome    Outcome
	Passphrase string
	PMK        wpa.PMK
	Tested     uint64
	Skipped    uint64
	Elapsed    time.Duration
}

// Rate is the number of candidates tested per second.
func (r Result) Rate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Tested) / r.Elapsed.Seconds()
}

type Option func(*Cracker)

// WithInterval sets how many candidates pass between progress reports and
// cancellation checks.
func WithInterval(n int) Option {
	return func(c *Cracker) { c.interval = n }
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *Cracker) { c.progress = fn }
}

// WithWorkers sets the pool size of RunParallel.
func WithWorkers(n int) Option {
	return func(c *Cracker) { c.workers = n }
}

// Cracker holds a handshake prepared for repeated MIC verification.
type Cracker struct {
	hs       *handshake.Handshake
	ssid     []byte
	template []byte
	interval int
	workers  int
	progress ProgressFunc
}

// New prepares hs for an attack on the network named ssid.
func New(hs *handshake.Handshake, ssid string, opts ...Option) (*Cracker, error) {
	if hs == nil || !hs.Complete() {
		return nil, ErrIncompleteHandshake
	}
	if len(ssid) == 0 || len(ssid) > MaxSSIDLen {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSSID, len(ssid))
	}
	switch hs.Version {
	case layers.EAPOLKeyDescriptorVersionRC4HMACMD5, layers.EAPOLKeyDescriptorVersionAESHMACSHA1:
	default:
		return nil, fmt.Errorf("attack: %w: %s", wpa.ErrUnsupportedVersion, hs.Version)
	}

	c := &Cracker{
		hs:       hs,
		ssid:     []byte(ssid),
		template: hs.Template(),
		workers:  runtime.NumCPU(),
		progress: func(uint64, Status) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	return c, nil
}

func (c *Cracker) intervalFor(src Source) uint64 {
	switch {
	case c.interval > 0:
		return uint64(c.interval)
	case isPrecomputed(src):
		return DefaultPrecomputedInterval
	}
	return DefaultInterval
}

// test reports whether cand produces the captured MIC. frame is the caller's
// private copy of the template.
func (c *Cracker) test(cand Candidate, frame []byte) (bool, wpa.PMK, error) {
	var pmk wpa.PMK
	if cand.PMK != nil {
		pmk = *cand.PMK
	} else {
		pmk = wpa.DerivePMK([]byte(cand.Passphrase), c.ssid)
	}
	hs := c.hs
	ok, err := wpa.VerifyMIC(hs.Version, pmk, hs.AA, hs.SPA, hs.ANonce, hs.SNonce, frame, hs.MIC)
	if err != nil {
		return false, pmk, err
	}
	if log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithFields(logrus.Fields{
			"passphrase": cand.Passphrase,
			"pmk":        hex.EncodeToString(pmk[:]),
			"match":      ok,
		}).Trace("candidate")
	}
	return ok, pmk, nil
}

// Run tests candidates from src in order until one matches, src is
// exhausted or ctx is cancelled. ctx is polled every interval candidates.
func (c *Cracker) Run(ctx context.Context, src Source) (Result, error) {
	start := time.Now()
	interval := c.intervalFor(src)
	frame := append([]byte(nil), c.template...)

	var res Result
	var n uint64
	for {
		n++
		if n%interval == 0 {
			c.progress(res.Tested, StatusRunning)
			if ctx.Err() != nil {
				res.Outcome = Cancelled
				break
			}
		}

		cand, err := src.Next()
		if errors.Is(err, io.EOF) {
			res.Outcome = Exhausted
			break
		}
		if err != nil {
			res.Elapsed = time.Since(start)
			c.progress(res.Tested, StatusError)
			return res, err
		}

		if !ValidPassphrase(cand.Passphrase) {
			res.Skipped++
			log.WithField("length", len(cand.Passphrase)).Debug("skipping candidate of invalid length")
			continue
		}

		ok, pmk, err := c.test(cand, frame)
		if err != nil {
			res.Elapsed = time.Since(start)
			c.progress(res.Tested, StatusError)
			return res, err
		}
		res.Tested++
		if ok {
			res.Outcome = Found
			res.Passphrase = cand.Passphrase
			res.PMK = pmk
			break
		}
	}

	res.Elapsed = time.Since(start)
	c.finish(res)
	return res, nil
}

func (c *Cracker) finish(res Result) {
	if res.Outcome == Found {
		c.progress(res.Tested, StatusSuccess)
	} else {
		c.progress(res.Tested, StatusRunning)
	}
	log.WithFields(logrus.Fields{
		"outcome": res.Outcome,
		"tested":  res.Tested,
		"skipped": res.Skipped,
		"elapsed": res.Elapsed,
	}).Debug("attack finished")
}

type job struct {
	index uint64
	cand  Candidate
}

// RunParallel is Run spread over a pool of workers. Candidates are numbered
// in source order and the lowest numbered match wins, so it reports the
// passphrase a sequential run would.
func (c *Cracker) RunParallel(ctx context.Context, src Source) (Result, error) {
	start := time.Now()
	interval := c.intervalFor(src)

	var (
		tested, skipped atomic.Uint64
		found           atomic.Bool
		mu              sync.Mutex
		best            = uint64(math.MaxUint64)
		match           Candidate
		matchPMK        wpa.PMK
		cancelled       bool
	)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job, 2*c.workers)

	g.Go(func() error {
		defer close(jobs)
		for i := uint64(0); ; i++ {
			if (i+1)%interval == 0 {
				c.progress(tested.Load(), StatusRunning)
				if ctx.Err() != nil {
					cancelled = true
					return nil
				}
			}
			if found.Load() {
				return nil
			}

			cand, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if !ValidPassphrase(cand.Passphrase) {
				skipped.Add(1)
				continue
			}

			select {
			case jobs <- job{index: i, cand: cand}:
			case <-gctx.Done():
				return nil
			}
		}
	})

	for w := 0; w < c.workers; w++ {
		g.Go(func() error {
			frame := append([]byte(nil), c.template...)
			for j := range jobs {
				if found.Load() {
					mu.Lock()
					later := j.index > best
					mu.Unlock()
					if later {
						continue
					}
				}
				ok, pmk, err := c.test(j.cand, frame)
				if err != nil {
					return err
				}
				tested.Add(1)
				if ok {
					mu.Lock()
					if j.index < best {
						best, match, matchPMK = j.index, j.cand, pmk
					}
					mu.Unlock()
					found.Store(true)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	res := Result{
		Tested:  tested.Load(),
		Skipped: skipped.Load(),
		Elapsed: time.Since(start),
	}
	if err != nil {
		c.progress(res.Tested, StatusError)
		return res, err
	}

	switch {
	case found.Load():
		res.Outcome = Found
		res.Passphrase = match.Passphrase
		res.PMK = matchPMK
	case cancelled || ctx.Err() != nil:
		res.Outcome = Cancelled
	default:
		res.Outcome = Exhausted
	}
	c.finish(res)
	return res, nil
}

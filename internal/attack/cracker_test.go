package attack

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benzammour/wpacrack/internal/frametest"
	"github.com/benzammour/wpacrack/internal/handshake"
	"github.com/benzammour/wpacrack/internal/wpa"
)

const (
	testSSID       = "testnet"
	testPassphrase = "dictionary1"
	// PBKDF2-HMAC-SHA1("dictionary1", "testnet", 4096, 32)
	testPMK = "b2c17fff112e36615156b44e289de394e237efad7eb03b9945b3eee172e86626"
)

type sliceSource struct {
	cands       []Candidate
	next        int
	err         error
	precomputed bool
}

func (s *sliceSource) Next() (Candidate, error) {
	if s.next >= len(s.cands) {
		if s.err != nil {
			return Candidate{}, s.err
		}
		return Candidate{}, io.EOF
	}
	c := s.cands[s.next]
	s.next++
	return c, nil
}

func (s *sliceSource) Precomputed() bool { return s.precomputed }

func words(ws ...string) *sliceSource {
	src := &sliceSource{}
	for _, w := range ws {
		src.cands = append(src.cands, Passphrase(w))
	}
	return src
}

func pmkFromHex(t *testing.T, s string) wpa.PMK {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	var pmk wpa.PMK
	copy(pmk[:], b)
	return pmk
}

func captured(t *testing.T, gen *frametest.Handshake, mode handshake.Mode) *handshake.Handshake {
	t.Helper()
	lt := layers.LinkTypeIEEE802_11
	h, _, err := handshake.Scan(&frametest.Packets{Type: lt, Frames: gen.Frames(lt)}, mode)
	require.NoError(t, err)
	return h
}

func TestRunFindsPassphrase(t *testing.T) {
	tests := []struct {
		name    string
		version layers.EAPOLKeyDescriptorVersion
		mode    handshake.Mode
		mic     string
	}{
		{"WPA2 strict", layers.EAPOLKeyDescriptorVersionAESHMACSHA1, handshake.Strict, "b8733dfac48d2aeae3a320f119e68f7d"},
		{"WPA2 nonstrict", layers.EAPOLKeyDescriptorVersionAESHMACSHA1, handshake.NonStrict, "ce270a7b515d7d4a2adea51ac69a3002"},
		{"WPA strict", layers.EAPOLKeyDescriptorVersionRC4HMACMD5, handshake.Strict, "bd06211b8f6f52e4ce1b212871f89bc9"},
		{"WPA nonstrict", layers.EAPOLKeyDescriptorVersionRC4HMACMD5, handshake.NonStrict, "08f7faa4a7cc950ebd985eca4df5f4a1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := frametest.NewHandshake(testPassphrase, testSSID)
			gen.Version = tt.version
			hs := captured(t, gen, tt.mode)
			assert.Equal(t, tt.mic, hex.EncodeToString(hs.MIC[:]))

			c, err := New(hs, testSSID)
			require.NoError(t, err)

			res, err := c.Run(context.Background(), words("wrongpass1", testPassphrase, "neverread1"))
			require.NoError(t, err)
			assert.Equal(t, Found, res.Outcome)
			assert.Equal(t, testPassphrase, res.Passphrase)
			assert.Equal(t, uint64(2), res.Tested)
			assert.Equal(t, pmkFromHex(t, testPMK), res.PMK)
		})
	}
}

func TestRunExhausted(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	c, err := New(hs, testSSID)
	require.NoError(t, err)

	res, err := c.Run(context.Background(), words("wrongpass1", "Dictionary1", "dictionary"))
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.Outcome)
	assert.Empty(t, res.Passphrase)
	assert.Equal(t, uint64(3), res.Tested)
}

func TestRunWrongSSID(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	c, err := New(hs, "testnet2")
	require.NoError(t, err)

	res, err := c.Run(context.Background(), words(testPassphrase))
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.Outcome)
}

func TestRunLengthGate(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	c, err := New(hs, testSSID)
	require.NoError(t, err)

	src := words(
		strings.Repeat("a", 7),
		strings.Repeat("b", 8),
		strings.Repeat("c", 63),
		strings.Repeat("d", 64),
		"",
	)
	res, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, uint64(2), res.Tested)
	assert.Equal(t, uint64(3), res.Skipped)
}

func TestValidPassphrase(t *testing.T) {
	for n, want := range map[int]bool{0: false, 7: false, 8: true, 30: true, 63: true, 64: false} {
		assert.Equal(t, want, ValidPassphrase(strings.Repeat("x", n)), "length %d", n)
	}

	for s, want := range map[string]bool{
		"with spaces ~ and symbols!": true,
		"tab\tinside":                false,
		"newline\n1":                 false,
		"delete\x7fchar":             false,
		"caf\u00e9latte":             false,
	} {
		assert.Equal(t, want, ValidPassphrase(s), "%q", s)
	}
}

func TestRunPrecomputed(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	c, err := New(hs, testSSID)
	require.NoError(t, err)
	good := pmkFromHex(t, testPMK)

	t.Run("matching PMK", func(t *testing.T) {
		src := &sliceSource{precomputed: true, cands: []Candidate{
			Precomputed("wrongpass1", wpa.PMK{}),
			Precomputed(testPassphrase, good),
		}}
		res, err := c.Run(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, Found, res.Outcome)
		assert.Equal(t, testPassphrase, res.Passphrase)
	})

	t.Run("stored PMK is trusted over the word", func(t *testing.T) {
		src := &sliceSource{precomputed: true, cands: []Candidate{
			Precomputed(testPassphrase, wpa.PMK{1}),
		}}
		res, err := c.Run(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, Exhausted, res.Outcome)
	})
}

func TestRunSourceError(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	var statuses []Status
	c, err := New(hs, testSSID, WithProgress(func(_ uint64, s Status) { statuses = append(statuses, s) }))
	require.NoError(t, err)

	boom := errors.New("boom")
	src := words("wrongpass1")
	src.err = boom

	res, err := c.Run(context.Background(), src)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), res.Tested)
	assert.Equal(t, []Status{StatusError}, statuses)
}

func TestRunCancelled(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)

	src := &sliceSource{precomputed: true}
	for i := 0; i < 50; i++ {
		src.cands = append(src.cands, Precomputed(fmt.Sprintf("candidate%02d", i), wpa.PMK{}))
	}

	var calls []uint64
	c, err := New(hs, testSSID, WithInterval(10), WithProgress(func(n uint64, _ Status) { calls = append(calls, n) }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Outcome)
	assert.Equal(t, uint64(9), res.Tested)
	assert.Equal(t, []uint64{9, 9}, calls)
}

// endlessSource never runs dry. It calls cancel once it has handed out
// cancelAfter candidates.
type endlessSource struct {
	n           int
	cancelAfter int
	cancel      context.CancelFunc
}

func (s *endlessSource) Next() (Candidate, error) {
	s.n++
	if s.n == s.cancelAfter {
		s.cancel()
	}
	return Precomputed(fmt.Sprintf("candidate%06d", s.n), wpa.PMK{}), nil
}

func TestCancelMidRun(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)

	const (
		interval    = 10
		cancelAfter = 25
	)

	runners := map[string]func(*Cracker, context.Context, Source) (Result, error){
		"sequential": (*Cracker).Run,
		"parallel":   (*Cracker).RunParallel,
	}

	for name, run := range runners {
		t.Run(name, func(t *testing.T) {
			c, err := New(hs, testSSID, WithInterval(interval), WithWorkers(4))
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			src := &endlessSource{cancelAfter: cancelAfter, cancel: cancel}

			res, err := run(c, ctx, src)
			require.NoError(t, err)
			assert.Equal(t, Cancelled, res.Outcome)
			assert.Less(t, res.Tested, uint64(cancelAfter+interval))
			assert.Less(t, src.n, cancelAfter+interval)
		})
	}
}

func TestRunProgress(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	good := pmkFromHex(t, testPMK)

	type call struct {
		Tested uint64
		Status Status
	}

	tests := []struct {
		name     string
		cands    func() []Candidate
		expected []call
	}{
		{
			name: "exhausted",
			cands: func() []Candidate {
				var cs []Candidate
				for i := 0; i < 25; i++ {
					cs = append(cs, Precomputed(fmt.Sprintf("candidate%02d", i), wpa.PMK{}))
				}
				return cs
			},
			expected: []call{{9, StatusRunning}, {19, StatusRunning}, {25, StatusRunning}},
		},
		{
			name: "found",
			cands: func() []Candidate {
				var cs []Candidate
				for i := 0; i < 12; i++ {
					cs = append(cs, Precomputed(fmt.Sprintf("candidate%02d", i), wpa.PMK{}))
				}
				return append(cs, Precomputed(testPassphrase, good))
			},
			expected: []call{{9, StatusRunning}, {13, StatusSuccess}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []call
			c, err := New(hs, testSSID, WithInterval(10), WithProgress(func(n uint64, s Status) {
				got = append(got, call{n, s})
			}))
			require.NoError(t, err)

			_, err = c.Run(context.Background(), &sliceSource{precomputed: true, cands: tt.cands()})
			require.NoError(t, err)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Fatalf("progress mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIntervalFor(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)

	c, err := New(hs, testSSID)
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultInterval), c.intervalFor(words()))
	assert.Equal(t, uint64(DefaultPrecomputedInterval), c.intervalFor(&sliceSource{precomputed: true}))

	c, err = New(hs, testSSID, WithInterval(7))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), c.intervalFor(&sliceSource{precomputed: true}))
}

func TestNewErrors(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)

	_, err := New(&handshake.Handshake{}, testSSID)
	assert.ErrorIs(t, err, ErrIncompleteHandshake)

	_, err = New(nil, testSSID)
	assert.ErrorIs(t, err, ErrIncompleteHandshake)

	_, err = New(hs, "")
	assert.ErrorIs(t, err, ErrInvalidSSID)

	_, err = New(hs, strings.Repeat("s", MaxSSIDLen+1))
	assert.ErrorIs(t, err, ErrInvalidSSID)

	_, err = New(hs, strings.Repeat("s", MaxSSIDLen))
	assert.NoError(t, err)

	unsupported := *hs
	unsupported.Version = layers.EAPOLKeyDescriptorVersionAES128CMAC
	_, err = New(&unsupported, testSSID)
	assert.ErrorIs(t, err, wpa.ErrUnsupportedVersion)
}

func TestRunParallelDeterministic(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	good := pmkFromHex(t, testPMK)

	cands := func() *sliceSource {
		src := &sliceSource{precomputed: true}
		for i := 0; i < 40; i++ {
			switch i {
			case 5:
				src.cands = append(src.cands, Precomputed("firstmatch", good))
			case 12, 30:
				src.cands = append(src.cands, Precomputed("latermatch", good))
			default:
				src.cands = append(src.cands, Precomputed(fmt.Sprintf("candidate%02d", i), wpa.PMK{}))
			}
		}
		return src
	}

	seq, err := New(hs, testSSID)
	require.NoError(t, err)
	want, err := seq.Run(context.Background(), cands())
	require.NoError(t, err)
	require.Equal(t, "firstmatch", want.Passphrase)

	for _, workers := range []int{1, 2, 4, 8} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			c, err := New(hs, testSSID, WithWorkers(workers), WithInterval(3))
			require.NoError(t, err)
			for i := 0; i < 20; i++ {
				res, err := c.RunParallel(context.Background(), cands())
				require.NoError(t, err)
				assert.Equal(t, Found, res.Outcome)
				assert.Equal(t, want.Passphrase, res.Passphrase)
				assert.Equal(t, want.PMK, res.PMK)
				assert.GreaterOrEqual(t, res.Tested, uint64(6))
			}
		})
	}
}

func TestRunParallelExhausted(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	c, err := New(hs, testSSID, WithWorkers(3))
	require.NoError(t, err)

	res, err := c.RunParallel(context.Background(), words("wrongpass1", "short", "wrongpass2", "wrongpass3"))
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, uint64(3), res.Tested)
	assert.Equal(t, uint64(1), res.Skipped)
}

func TestRunParallelFinds(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.NonStrict)
	c, err := New(hs, testSSID, WithWorkers(4))
	require.NoError(t, err)

	res, err := c.RunParallel(context.Background(), words("wrongpass1", "wrongpass2", testPassphrase))
	require.NoError(t, err)
	assert.Equal(t, Found, res.Outcome)
	assert.Equal(t, testPassphrase, res.Passphrase)
}

func TestRunParallelSourceError(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	c, err := New(hs, testSSID, WithWorkers(2))
	require.NoError(t, err)

	boom := errors.New("boom")
	src := &sliceSource{precomputed: true, err: boom, cands: []Candidate{Precomputed("wrongpass1", wpa.PMK{})}}
	_, err = c.RunParallel(context.Background(), src)
	assert.ErrorIs(t, err, boom)
}

func TestRunParallelCancelled(t *testing.T) {
	hs := captured(t, frametest.NewHandshake(testPassphrase, testSSID), handshake.Strict)
	c, err := New(hs, testSSID, WithWorkers(2), WithInterval(10))
	require.NoError(t, err)

	src := &sliceSource{precomputed: true}
	for i := 0; i < 100; i++ {
		src.cands = append(src.cands, Precomputed(fmt.Sprintf("candidate%02d", i), wpa.PMK{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := c.RunParallel(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Outcome)
	assert.Less(t, res.Tested, uint64(10))
}

func TestResultRate(t *testing.T) {
	assert.Equal(t, 0.0, Result{Tested: 10}.Rate())
	assert.InDelta(t, 5.0, Result{Tested: 10, Elapsed: 2 * time.Second}.Rate(), 1e-9)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "cancelled", Cancelled.String())
}

// Package wordlist reads newline separated dictionary files.
package wordlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/benzammour/wpacrack/internal/attack"
)

// MaxLineLen bounds a single dictionary line. Longer lines abort the read.
const MaxLineLen = 1 << 20

// Reader yields one candidate per line. Trailing CR is stripped so files
// with DOS line endings work; no other whitespace is touched.
type Reader struct {
	sc   *bufio.Scanner
	line uint64
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), MaxLineLen)
	return &Reader{sc: sc}
}

func (r *Reader) Next() (attack.Candidate, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return attack.Candidate{}, fmt.Errorf("wordlist: line %d: %w", r.line+1, err)
		}
		return attack.Candidate{}, io.EOF
	}
	r.line++
	return attack.Passphrase(strings.TrimSuffix(r.sc.Text(), "\r")), nil
}

// Line is the number of lines read so far.
func (r *Reader) Line() uint64 { return r.line }

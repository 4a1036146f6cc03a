// Package remodel rebuilds a chain segment to a requested secondary
// structure and verifies that the result closes the junction.
package remodel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMotif reports a malformed motif string. It is returned before
// any structural change is made.
var ErrInvalidMotif = errors.New("invalid motif")

// Segment is one motif element: Length residues of one secondary structure
// type and backbone class.
type Segment struct {
	Length int
	SS     byte
	ABEGO  byte
}

func (s Segment) String() string {
	return fmt.Sprintf("%d%c%c", s.Length, s.SS, s.ABEGO)
}

// ParseMotif reads segments of the form <len><SS><ABEGO> joined by '-'.
// Colons inside a segment are ignored, so "3:LX" equals "3LX". SS must be
// one of E, H or L and ABEGO an uppercase letter.
func ParseMotif(motif string) ([]Segment, error) {
	if strings.TrimSpace(motif) == "" {
		return nil, fmt.Errorf("%w: empty motif", ErrInvalidMotif)
	}
	parts := strings.Split(motif, "-")
	out := make([]Segment, 0, len(parts))
	for _, raw := range parts {
		part := strings.ReplaceAll(strings.TrimSpace(raw), ":", "")
		if len(part) < 3 {
			return nil, fmt.Errorf("%w: segment %q too short", ErrInvalidMotif, raw)
		}
		ss := part[len(part)-2]
		abego := part[len(part)-1]
		if ss != 'E' && ss != 'H' && ss != 'L' {
			return nil, fmt.Errorf("%w: ss type %q in %q", ErrInvalidMotif, ss, raw)
		}
		if abego < 'A' || abego > 'Z' {
			return nil, fmt.Errorf("%w: abego type %q in %q", ErrInvalidMotif, abego, raw)
		}
		n, err := strconv.Atoi(part[:len(part)-2])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: length in %q", ErrInvalidMotif, raw)
		}
		out = append(out, Segment{Length: n, SS: ss, ABEGO: abego})
	}
	return out, nil
}

// MotifLength is the number of residues the motif inserts.
func MotifLength(segments []Segment) int {
	n := 0
	for _, s := range segments {
		n += s.Length
	}
	return n
}

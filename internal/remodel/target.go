package remodel

import (
	"fmt"
	"strings"

	"confsearch/internal/pose"
)

// InsertedResidue is the residue type placed at every motif position.
const InsertedResidue = "V"

// Target describes the segment to build over [Left, Right] of the input
// pose. SS, AA and ABEGO have one entry per residue of the rebuilt segment.
type Target struct {
	SS    string `json:"ss"`
	AA    string `json:"aa"`
	ABEGO string `json:"abego"`
	Left  int    `json:"left"`
	Right int    `json:"right"`
	// Start and End are the junction residues the segment connects.
	Start int `json:"start"`
	End   int `json:"end"`
}

// Key returns the cache key of the target.
func (t Target) Key() Key {
	return Key{SS: t.SS, AA: t.AA, Left: t.Left, Right: t.Right}
}

// Len is the length of the rebuilt segment.
func (t Target) Len() int { return len(t.SS) }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BuildTarget spans [start-overlap, end+overlap] clamped to the pose. The
// overlap residues keep their type and current secondary structure and get
// the wildcard backbone class X; motif residues become InsertedResidue.
func BuildTarget(p *pose.Pose, segments []Segment, start, end, overlap int) (Target, error) {
	n := p.Size()
	if start < 1 || start > n || end < 1 || end > n {
		return Target{}, fmt.Errorf("bridge junction %d-%d: %w", start, end, pose.ErrResidueIndex)
	}
	if start >= end {
		return Target{}, fmt.Errorf("bridge junction: start %d must precede end %d", start, end)
	}
	if overlap < 0 {
		return Target{}, fmt.Errorf("bridge overlap must be >= 0, got %d", overlap)
	}
	left := clamp(start-overlap, 1, n)
	right := clamp(end+overlap, 1, n)
	if left >= right {
		return Target{}, fmt.Errorf("bridge span [%d, %d] is empty", left, right)
	}

	current := p.Secstruct()
	var ss, aa, abego strings.Builder
	for i := left; i <= start; i++ {
		ss.WriteByte(current[i-1])
		aa.WriteString(p.Name1(i))
		abego.WriteByte('X')
	}
	for _, seg := range segments {
		for k := 0; k < seg.Length; k++ {
			ss.WriteByte(seg.SS)
			aa.WriteString(InsertedResidue)
			abego.WriteByte(seg.ABEGO)
		}
	}
	for i := end; i <= right; i++ {
		ss.WriteByte(current[i-1])
		aa.WriteString(p.Name1(i))
		abego.WriteByte('X')
	}
	return Target{
		SS:    ss.String(),
		AA:    aa.String(),
		ABEGO: abego.String(),
		Left:  left,
		Right: right,
		Start: start,
		End:   end,
	}, nil
}

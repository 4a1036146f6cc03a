package rotamer

import "errors"

// ErrExhausted is returned by Next once every rotamer has been handed out.
var ErrExhausted = errors.New("rotamer ensemble exhausted")

// Cursor walks an ensemble in order. It is finite and cannot be rewound;
// build a fresh cursor to start over.
type Cursor struct {
	residue  int
	rotamers []Rotamer
	pos      int
}

// NewCursor copies the ensemble so later edits by the caller are not seen.
func NewCursor(residue int, rotamers []Rotamer) *Cursor {
	own := make([]Rotamer, len(rotamers))
	for i, r := range rotamers {
		own[i] = r.clone()
	}
	return &Cursor{residue: residue, rotamers: own}
}

// Residue returns the residue index the ensemble was built for.
func (c *Cursor) Residue() int { return c.residue }

func (c *Cursor) Len() int { return len(c.rotamers) }

// Position is the number of rotamers already returned.
func (c *Cursor) Position() int { return c.pos }

func (c *Cursor) Done() bool { return c.pos >= len(c.rotamers) }

// Next returns the next rotamer and advances.
func (c *Cursor) Next() (Rotamer, error) {
	if c.Done() {
		return Rotamer{}, ErrExhausted
	}
	r := c.rotamers[c.pos].clone()
	c.pos++
	return r, nil
}

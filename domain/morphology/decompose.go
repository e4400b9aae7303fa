package morphology

import (
	"fmt"
	"strings"
	"unicode"

	"glyphstat/domain/core"
	"glyphstat/domain/corpus"
)

// Kind distinguishes parsed tokens from those no affix matched.
type Kind string

const (
	KindParsed Kind = "PARSED"
	KindAtomic Kind = "ATOMIC"
)

// EmptySlot marks an absent component in a signature.
const EmptySlot = "_"

// Decomposition is the structural split of one token.
type Decomposition struct {
	Prefix      string `json:"prefix,omitempty"`
	Articulator string `json:"articulator,omitempty"`
	Middle      string `json:"middle"`
	Suffix      string `json:"suffix,omitempty"`
	Kind        Kind   `json:"kind"`
}

// Reconstruct concatenates the components back into the token.
func (d Decomposition) Reconstruct() string {
	return d.Prefix + d.Articulator + d.Middle + d.Suffix
}

// Signature is the prefix+suffix pattern used to group tokens into classes.
func (d Decomposition) Signature() string {
	return slot(d.Prefix) + "+" + slot(d.Suffix)
}

func slot(s string) string {
	if s == "" {
		return EmptySlot
	}
	return s
}

// InvalidTokenError reports malformed token text.
type InvalidTokenError struct {
	Token  string
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid token %q: %s", e.Token, e.Reason)
}

func (e *InvalidTokenError) Unwrap() error { return core.ErrInvalidToken }

// ValidateToken accepts non-empty strings made only of letters.
func ValidateToken(token string) error {
	if token == "" {
		return &InvalidTokenError{Token: token, Reason: "empty"}
	}
	for i, r := range token {
		if !unicode.IsLetter(r) {
			return &InvalidTokenError{Token: token, Reason: fmt.Sprintf("non-letter %q at byte %d", r, i)}
		}
	}
	return nil
}

// Decomposer splits tokens against one inventory revision.
type Decomposer struct {
	inventory *Inventory
}

// NewDecomposer binds a decomposer to an inventory.
func NewDecomposer(inventory *Inventory) *Decomposer {
	return &Decomposer{inventory: inventory}
}

// Inventory returns the bound inventory.
func (d *Decomposer) Inventory() *Inventory { return d.inventory }

// Decompose applies longest-match prefix, then suffix on the remainder, then an
// optional articulator. Every split keeps the middle non-empty. A token whose
// middle would be consumed by an articulator is atomic.
func (d *Decomposer) Decompose(token string) (Decomposition, error) {
	if err := ValidateToken(token); err != nil {
		return Decomposition{}, err
	}

	rest := token
	var out Decomposition

	for _, p := range d.inventory.byKind[KindPrefix] {
		if len(p) < len(rest) && strings.HasPrefix(rest, p) {
			out.Prefix = p
			rest = rest[len(p):]
			break
		}
	}
	for _, s := range d.inventory.byKind[KindSuffix] {
		if len(s) < len(rest) && strings.HasSuffix(rest, s) {
			out.Suffix = s
			rest = rest[:len(rest)-len(s)]
			break
		}
	}

	if out.Prefix == "" && out.Suffix == "" {
		return Decomposition{Middle: token, Kind: KindAtomic}, nil
	}

	for _, a := range d.inventory.byKind[KindArticulator] {
		if len(a) < len(rest) && strings.HasPrefix(rest, a) {
			out.Articulator = a
			rest = rest[len(a):]
			break
		}
	}
	// a middle that is itself only an articulator is too short to split
	if out.Articulator == "" && d.inventory.Has(KindArticulator, rest) {
		return Decomposition{Middle: token, Kind: KindAtomic}, nil
	}

	out.Middle = rest
	out.Kind = KindParsed
	return out, nil
}

// DecomposeAll decomposes every token of a corpus in order. The first invalid
// token aborts the run.
func (d *Decomposer) DecomposeAll(c *corpus.Corpus) ([]Decomposition, error) {
	out := make([]Decomposition, c.Len())
	for i := 0; i < c.Len(); i++ {
		dec, err := d.Decompose(c.Token(i).Text)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		out[i] = dec
	}
	return out, nil
}

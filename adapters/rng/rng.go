package rng

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"glyphstat/domain/core"
)

// Streams derives independent generators from a master seed by hashing.
type Streams struct{}

// New returns a stream factory.
func New() *Streams { return &Streams{} }

// SeededStream creates a deterministic random number generator for a named operation
func (s *Streams) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(DeriveSeed(seed, name))), nil
}

// Stream creates the generator for one sample of a named operation.
func (s *Streams) Stream(ctx context.Context, name string, index int, masterSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, core.NewValidationError("rng", "negative stream index")
	}
	return rand.New(rand.NewSource(DeriveSeed(masterSeed, name, fmt.Sprint(index)))), nil
}

// ValidateSeed draws len(expected) floats from the named stream and compares
// them bit for bit.
func (s *Streams) ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error {
	r, err := s.SeededStream(ctx, name, seed)
	if err != nil {
		return err
	}
	for i, want := range expected {
		got := r.Float64()
		if math.Float64bits(got) != math.Float64bits(want) {
			return fmt.Errorf("%w: stream %q draw %d = %v, expected %v", core.ErrSeedMismatch, name, i, got, want)
		}
	}
	return nil
}

// DeriveSeed hashes a master seed with labels into a 63-bit seed.
func DeriveSeed(master int64, labels ...string) int64 {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(master))
	h.Write(buf[:])
	for _, l := range labels {
		binary.BigEndian.PutUint64(buf[:], uint64(len(l)))
		h.Write(buf[:])
		h.Write([]byte(l))
	}
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}

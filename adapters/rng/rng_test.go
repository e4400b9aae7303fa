package rng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glyphstat/domain/core"
	"glyphstat/ports"
)

var _ ports.RNGPort = (*Streams)(nil)

func TestStream_Deterministic(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.Stream(ctx, "shuffle", 17, 42)
	require.NoError(t, err)
	b, err := s.Stream(ctx, "shuffle", 17, 42)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Int63(), b.Int63())
	}
}

func TestDeriveSeed_Separates(t *testing.T) {
	base := DeriveSeed(42, "shuffle", "0")
	assert.NotEqual(t, base, DeriveSeed(42, "shuffle", "1"))
	assert.NotEqual(t, base, DeriveSeed(43, "shuffle", "0"))
	assert.NotEqual(t, base, DeriveSeed(42, "frequency_matched", "0"))
	assert.NotEqual(t, DeriveSeed(1, "ab", "c"), DeriveSeed(1, "a", "bc"))
	assert.GreaterOrEqual(t, base, int64(0))
}

func TestValidateSeed(t *testing.T) {
	ctx := context.Background()
	s := New()

	r, err := s.SeededStream(ctx, "audit", 7)
	require.NoError(t, err)
	expected := []float64{r.Float64(), r.Float64(), r.Float64()}

	assert.NoError(t, s.ValidateSeed(ctx, "audit", 7, expected))
	err = s.ValidateSeed(ctx, "audit", 8, expected)
	assert.ErrorIs(t, err, core.ErrSeedMismatch)
}

func TestStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Stream(ctx, "shuffle", 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

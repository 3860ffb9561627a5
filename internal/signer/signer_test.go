package signer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/config"
)

// testKey is a small, valid-range secp256k1 scalar used only for unit
// tests — never a real signing key.
var testKey = func() []byte {
	k := make([]byte, 32)
	k[31] = 0x07
	return k
}()

func mustNewState(t *testing.T) *State {
	t.Helper()
	s, err := New(testKey, "test-chain", "unls", 1, 0, config.GasFeeConfig{
		GasAdjustment: config.Ratio{Numerator: 3, Denominator: 2},
		GasPrice:      config.Ratio{Numerator: 1, Denominator: 100},
		FeeAdjustment: config.Ratio{Numerator: 1, Denominator: 1},
	})
	require.NoError(t, err)
	return s
}

// TestIncrementSequenceMonotonic covers the core of spec.md §8 property 2:
// the sequence number strictly increases by exactly one per call and never
// decreases on its own.
func TestIncrementSequenceMonotonic(t *testing.T) {
	s := mustNewState(t)
	require.Equal(t, uint64(0), s.Sequence())

	for i := uint64(1); i <= 5; i++ {
		s.IncrementSequence()
		require.Equal(t, i, s.Sequence())
	}
}

func TestSetSequenceOverwrites(t *testing.T) {
	s := mustNewState(t)
	s.IncrementSequence()
	s.SetSequence(42)
	require.Equal(t, uint64(42), s.Sequence())
}

func TestAdjustGasClampsToHardLimit(t *testing.T) {
	s := mustNewState(t)
	got := s.AdjustGas(100_000, 120_000)
	require.Equal(t, uint64(120_000), got) // 100000 * 3/2 = 150000, clamped
}

func TestAdjustGasBelowLimit(t *testing.T) {
	s := mustNewState(t)
	got := s.AdjustGas(100_000, 1_000_000)
	require.Equal(t, uint64(150_000), got)
}

func TestNewRejectsWrongKeyLength(t *testing.T) {
	_, err := New(testKey[:16], "chain", "denom", 0, 0, config.GasFeeConfig{})
	require.Error(t, err)
}

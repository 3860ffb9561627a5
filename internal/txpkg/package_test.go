package txpkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoExpirationNeverExpires(t *testing.T) {
	e := NoExpiration()
	require.False(t, e.Expired(time.Now()))
	require.False(t, e.Expired(time.Now().Add(100*time.Hour)))
}

// TestDeadlineExpired covers the expiration half of spec.md §8 property 6:
// a Deadline set in the past is already expired.
func TestDeadlineExpired(t *testing.T) {
	e := Deadline(time.Now().Add(-time.Millisecond))
	require.True(t, e.Expired(time.Now()))
}

func TestDeadlineNotYetExpired(t *testing.T) {
	e := Deadline(time.Now().Add(time.Hour))
	require.False(t, e.Expired(time.Now()))
}

func TestNewClampsFallbackGasToHardLimit(t *testing.T) {
	pkg, _, err := New("src", []byte("body"), 100, 500, NoExpiration())
	require.NoError(t, err)
	require.Equal(t, uint64(100), pkg.FallbackGas)
}

func TestNewRejectsZeroHardGasLimit(t *testing.T) {
	_, _, err := New("src", []byte("body"), 0, 0, NoExpiration())
	require.Error(t, err)
}

package taskset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestJoinNextFairRoundRobin covers spec.md §8 property 1: with several
// tasks finished simultaneously, successive JoinNext calls return them in
// ascending key order, then the cursor wraps.
func TestJoinNextFairRoundRobin(t *testing.T) {
	s := New[int, int]()

	ready := make(chan struct{})
	spawnBlocked := func(key int) {
		s.Spawn(func() (int, error) {
			<-ready
			return key, nil
		}, key)
	}

	// i < j < k, all finish only once ready is closed, so JoinNext sees
	// them simultaneously done on its first poll.
	spawnBlocked(1)
	spawnBlocked(2)
	spawnBlocked(3)
	close(ready)

	var order []int
	for i := 0; i < 3; i++ {
		k, _, err, ok := s.JoinNext(context.Background())
		require.True(t, ok)
		require.NoError(t, err)
		order = append(order, k)
	}
	require.Equal(t, []int{1, 2, 3}, order)

	// The set is now empty; cursor wrapped back to the start.
	require.Equal(t, 0, s.Len())
}

func TestJoinNextEmptySet(t *testing.T) {
	s := New[int, int]()
	_, _, _, ok := s.JoinNext(context.Background())
	require.False(t, ok)
}

func TestRemoveDropsWithoutWaiting(t *testing.T) {
	s := New[string, int]()
	block := make(chan struct{})
	s.Spawn(func() (int, error) {
		<-block
		return 0, nil
	}, "a")
	require.Equal(t, 1, s.Len())

	s.Remove("a")
	require.Equal(t, 0, s.Len())
	close(block)
}

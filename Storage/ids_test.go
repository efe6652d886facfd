package Storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIDGenerator_StrictlyIncreasingWithinOneMillisecond(t *testing.T) {
	fixed := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)
	g := &IDGenerator{now: func() time.Time { return fixed }}

	first := g.Next()
	second := g.Next()

	assert.Equal(t, fixed.UnixMilli(), first)
	assert.Equal(t, first+1, second)
}

func TestIDGenerator_ConcurrentIDsAreUnique(t *testing.T) {
	g := NewIDGenerator()

	const n = 500
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.Next()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("EMP_007")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Zero(t, k.size())
}

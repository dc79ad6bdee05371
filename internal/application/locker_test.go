package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_SerializesAndCleansUp(t *testing.T) {
	k := newKeyedLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("s")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
	require.Empty(t, k.locks)
}

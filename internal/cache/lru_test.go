package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a"

	_, ok := c.Get("a")
	assert.False(t, ok)

	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestLRUGetOrComputeCallsOnceOnMiss(t *testing.T) {
	c := NewLRU[string, int](4)
	calls := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrCompute("key", func() (int, error) {
				calls++
				return 42, nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	v, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestNamedLockSerializes(t *testing.T) {
	nl := NewNamedLock()
	var counter int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nl.WithLock("configuration", func() {
				local := counter
				local++
				counter = local
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

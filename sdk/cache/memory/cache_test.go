package cache_memory

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	c := New[string](100)
	defer c.Close()
	key := [32]byte{1}

	c.Set(key, "hello")
	c.Wait()
	val, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, "hello", val)

	c.Delete(key)
	_, ok = c.Get(key)
	require.False(t, ok)
}

func TestTTL(t *testing.T) {
	c := New[string](100)
	defer c.Close()
	key := [32]byte{2}

	c.SetWithTTL(key, "hello", 100*time.Millisecond)
	c.Wait()
	val, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, "hello", val)

	require.Eventually(t, func() bool {
		_, ok := c.Get(key)
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEviction(t *testing.T) {
	max := int64(100)
	c := New[int](max)
	defer c.Close()

	for i := 0; i < 200; i++ {
		k := [32]byte{}
		binary.BigEndian.PutUint64(k[24:], uint64(i))
		c.Set(k, i)
	}
	c.Wait()

	count := 0
	for i := 0; i < 200; i++ {
		k := [32]byte{}
		binary.BigEndian.PutUint64(k[24:], uint64(i))
		if _, ok := c.Get(k); ok {
			count++
		}
	}

	require.LessOrEqual(t, count, int(max)+10)
	require.NotZero(t, count)
}

package modelcache

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingLoader(loads *int32) Loader {
	return func(path string, properties map[string]string) (interface{}, error) {
		atomic.AddInt32(loads, 1)
		return "handle:" + path, nil
	}
}

func TestAcquireLoadsOnceAndReusesOnRelease(t *testing.T) {
	var loads int32
	c := New(2)
	loader := countingLoader(&loads)

	lease1, err := c.Acquire("/models/a", nil, loader)
	require.NoError(t, err)
	assert.Equal(t, "handle:/models/a", lease1.Handle())
	assert.Equal(t, int32(1), loads)

	lease1.Release()

	lease2, err := c.Acquire("/models/a", nil, loader)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads, "reused the released entry instead of reloading")
	lease2.Release()
}

func TestAcquireFailsWhenCacheFullAndNoneFree(t *testing.T) {
	var loads int32
	c := New(1)
	loader := countingLoader(&loads)

	lease1, err := c.Acquire("/models/a", nil, loader)
	require.NoError(t, err)

	_, err = c.Acquire("/models/b", nil, loader)
	assert.ErrorIs(t, err, ErrCacheFull)

	lease1.Release()
	_, err = c.Acquire("/models/b", nil, loader)
	assert.ErrorIs(t, err, ErrCacheFull, "a free entry for another path is not evicted")
}

func TestReleaseIsIdempotent(t *testing.T) {
	c := New(1)
	lease, err := c.Acquire("/models/a", nil, countingLoader(new(int32)))
	require.NoError(t, err)

	lease.Release()
	lease.Release()

	_, err = c.Acquire("/models/a", nil, countingLoader(new(int32)))
	assert.NoError(t, err, "double release must not double-free the slot")
}

func TestAcquirePropagatesLoaderError(t *testing.T) {
	c := New(1)
	_, err := c.Acquire("/models/a", nil, func(path string, properties map[string]string) (interface{}, error) {
		return nil, fmt.Errorf("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, 0, c.Size())
}

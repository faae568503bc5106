package linear

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/shadercache/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	key   string
	value string
}

func collect(out *[]record) Reader {
	return func(key, value []byte) {
		*out = append(*out, record{string(key), string(value)})
	}
}

func TestOpenEmptyCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "vulkan-vs.cache")

	c := NewDiskCache(1)
	n, err := c.OpenAndRead(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, c.IsOpen())
	require.NoError(t, c.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cache")

	c := NewDiskCache(1)
	_, err := c.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.True(t, c.Append([]byte("a"), []byte("alpha")))
	require.True(t, c.Append([]byte("b"), []byte("beta")))
	require.True(t, c.Append([]byte("empty"), nil))
	require.NoError(t, c.Close())

	var got []record
	c = NewDiskCache(1)
	n, err := c.OpenAndRead(path, collect(&got))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 3, n)
	assert.Equal(t, []record{{"a", "alpha"}, {"b", "beta"}, {"empty", ""}}, got)
}

func TestAppendAfterReopenContinuesLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cache")

	c := NewDiskCache(1)
	_, err := c.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.True(t, c.Append([]byte("a"), []byte("1")))
	require.NoError(t, c.Close())

	_, err = c.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.True(t, c.Append([]byte("a"), []byte("2")))
	require.NoError(t, c.Close())

	// Duplicates are replayed in order; readers keep the last one.
	latest := map[string]string{}
	n, err := c.OpenAndRead(path, func(key, value []byte) {
		latest[string(key)] = string(value)
	})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, 2, n)
	assert.Equal(t, "2", latest["a"])
}

func TestTornTailIsSkippedAndTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cache")

	c := NewDiskCache(1)
	_, err := c.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.True(t, c.Append([]byte("a"), []byte("alpha")))
	require.True(t, c.Append([]byte("b"), []byte("beta")))
	require.NoError(t, c.Close())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, fi.Size()-3))

	var got []record
	n, err := c.OpenAndRead(path, collect(&got))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []record{{"a", "alpha"}}, got)

	require.True(t, c.Append([]byte("c"), []byte("gamma")))
	require.NoError(t, c.Close())

	got = nil
	n, err = c.OpenAndRead(path, collect(&got))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, 2, n)
	assert.Equal(t, []record{{"a", "alpha"}, {"c", "gamma"}}, got)
}

func TestChecksumMismatchEndsReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cache")

	c := NewDiskCache(1)
	_, err := c.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.True(t, c.Append([]byte("a"), []byte("alpha")))
	require.True(t, c.Append([]byte("b"), []byte("beta")))
	require.NoError(t, c.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// flip a byte of the last value
	raw[len(raw)-checksumSize-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0644))

	var got []record
	n, err := c.OpenAndRead(path, collect(&got))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, 1, n)
	assert.Equal(t, []record{{"a", "alpha"}}, got)
}

func TestVersionMismatchDiscardsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cache")

	c := NewDiskCache(1)
	_, err := c.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.True(t, c.Append([]byte("a"), []byte("alpha")))
	require.NoError(t, c.Close())

	v, err := ReadVersion(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	c = NewDiskCache(2)
	var got []record
	n, err := c.OpenAndRead(path, collect(&got))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, 0, n)
	assert.Empty(t, got)

	v, err = ReadVersion(path)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
}

func TestForeignFileIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cache")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a cache file"), 0644))

	c := NewDiskCache(1)
	n, err := c.OpenAndRead(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.True(t, c.Append([]byte("a"), []byte("alpha")))
	require.NoError(t, c.Close())

	n, err = c.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, 1, n)
}

func TestSecondOwnerIsReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cache")

	owner := NewDiskCache(1)
	_, err := owner.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.True(t, owner.Append([]byte("a"), []byte("alpha")))
	require.NoError(t, owner.Sync())

	other := NewDiskCache(1)
	var got []record
	n, err := other.OpenAndRead(path, collect(&got))
	require.NoError(t, err)
	assert.True(t, other.ReadOnly())
	assert.Equal(t, 1, n)
	assert.False(t, other.Append([]byte("b"), []byte("beta")))
	require.NoError(t, other.Close())

	require.NoError(t, owner.Close())
}

func TestUnopenablePathReportsSentinel(t *testing.T) {
	dir := t.TempDir()

	c := NewDiskCache(1)
	n, err := c.OpenAndRead(dir, nil)
	require.Error(t, err)
	assert.Equal(t, RecordsUnavailable, n)
	assert.False(t, c.IsOpen())
	assert.False(t, c.Append([]byte("a"), []byte("alpha")))
	assert.NoError(t, c.Close())
}

func TestCompactKeepsLastRecordPerKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cache")

	c := NewDiskCache(3)
	_, err := c.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.True(t, c.Append([]byte("a"), []byte("1")))
	require.True(t, c.Append([]byte("b"), []byte("1")))
	require.True(t, c.Append([]byte("a"), []byte("2")))
	require.NoError(t, c.Close())

	calls := 0
	stats, err := Compact(path, 3, func(current, total int) {
		calls++
		assert.Equal(t, 2, total)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 1, stats.Dropped)
	assert.Less(t, stats.After, stats.Before)
	assert.Equal(t, 2, calls)

	var got []record
	n, err := ReadAll(path, 3, collect(&got))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []record{{"a", "2"}, {"b", "1"}}, got)
}

func TestRemoveMissingFile(t *testing.T) {
	assert.NoError(t, Remove(filepath.Join(t.TempDir(), "missing.cache")))
}

func TestClosedCacheRefusesWork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cache")

	c := NewDiskCache(1)
	assert.ErrorIs(t, c.Sync(), core.ErrCacheClosed)

	_, err := c.OpenAndRead(path, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.False(t, c.IsOpen())
	assert.False(t, c.Append([]byte("a"), []byte("alpha")))
	assert.ErrorIs(t, c.Sync(), core.ErrCacheClosed)
	assert.NoError(t, c.Close())
}

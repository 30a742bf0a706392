package cache

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndGetNextBeaconChunk_ActionBeforeEventOnTies(t *testing.T) {
	c := New(Config{HighWaterBytes: 1 << 20, LowWaterBytes: 1 << 19})
	c.AddEventData(1, 100, "evt=1")
	c.AddActionData(1, 100, "act=1")

	chunk := c.GetNextBeaconChunk(1, "pfx&", 1000, "&")
	assert.Equal(t, "pfx&act=1&evt=1", chunk)
}

func TestGetNextBeaconChunk_EmptyWhenNoData(t *testing.T) {
	c := New(Config{HighWaterBytes: 1000, LowWaterBytes: 500})
	assert.Equal(t, "", c.GetNextBeaconChunk(1, "pfx", 1000, "&"))
}

func TestGetNextBeaconChunk_MaxSizeSmallerThanRecordYieldsEmpty(t *testing.T) {
	c := New(Config{HighWaterBytes: 1000, LowWaterBytes: 500})
	c.AddActionData(1, 1, "this-is-a-long-record-payload")

	chunk := c.GetNextBeaconChunk(1, "", 5, "&")
	assert.Empty(t, chunk)
	// record must not have moved in-transit
	assert.False(t, c.HasPendingInTransit(1))
}

func TestRemoveChunkedData_ReducesCacheSizeByPayloadOnly(t *testing.T) {
	c := New(Config{HighWaterBytes: 1 << 20, LowWaterBytes: 1 << 19})
	c.AddActionData(1, 1, "abcde") // 5 bytes

	before := c.TotalBytes()
	chunk := c.GetNextBeaconChunk(1, "prefix-", 1000, "&")
	require.NotEmpty(t, chunk)

	c.RemoveChunkedData(1)
	assert.Equal(t, before-5, c.TotalBytes())
}

func TestResetChunkedData_RestoresByteExact(t *testing.T) {
	c := New(Config{HighWaterBytes: 1 << 20, LowWaterBytes: 1 << 19})
	c.AddActionData(1, 1, "aaa")
	c.AddActionData(1, 2, "bb")
	before := c.TotalBytes()

	_ = c.GetNextBeaconChunk(1, "", 1000, "&")
	c.ResetChunkedData(1)

	assert.Equal(t, before, c.TotalBytes())
	assert.False(t, c.HasPendingInTransit(1))

	// order preserved: next chunk must reproduce the same concatenation
	chunk := c.GetNextBeaconChunk(1, "", 1000, "&")
	assert.Equal(t, "aaa&bb", chunk)
}

func TestDeleteCacheEntry_Idempotent(t *testing.T) {
	c := New(Config{HighWaterBytes: 1000, LowWaterBytes: 500})
	c.AddActionData(1, 1, "x")
	c.DeleteCacheEntry(1)
	assert.Equal(t, int64(0), c.TotalBytes())
	// second call is a no-op, not an error
	c.DeleteCacheEntry(1)
	assert.Equal(t, int64(0), c.TotalBytes())
}

func TestEvictRecordsByAge_ZeroMinAgeEvictsEverythingOlderThanNow(t *testing.T) {
	c := New(Config{HighWaterBytes: 1000, LowWaterBytes: 500})
	c.AddActionData(1, 10, "a")
	c.AddActionData(1, 20, "b")

	evicted := c.EvictRecordsByAge(1, 30, 0)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, int64(0), c.TotalBytes())
}

func TestEvictRecordsByNumber_OldestFirst(t *testing.T) {
	c := New(Config{HighWaterBytes: 1000, LowWaterBytes: 500})
	c.AddActionData(1, 1, "a")
	c.AddActionData(1, 2, "b")
	c.AddActionData(1, 3, "c")

	evicted := c.EvictRecordsByNumber(1, 2)
	assert.Equal(t, 2, evicted)

	chunk := c.GetNextBeaconChunk(1, "", 1000, "&")
	assert.Equal(t, "c", chunk)
}

func TestRunEvictionPass_LowerBoundAcrossPartitions(t *testing.T) {
	// High-water 1000 B, low-water 800 B, 1200 B across 3 partitions.
	c := New(Config{HighWaterBytes: 1000, LowWaterBytes: 800, MaxRecordAgeMs: 0})

	payload := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = 'x'
		}
		return string(b)
	}

	c.AddActionData(1, 1, payload(400))
	c.AddActionData(2, 1, payload(400))
	c.AddActionData(3, 1, payload(400))
	require.Equal(t, int64(1200), c.TotalBytes())

	// RunEvictionPass applies the age strategy only when MaxRecordAgeMs > 0,
	// so this pass exercises the space strategy's oldest-first batching alone.
	c.cfg.MaxRecordAgeMs = -1 // disable the age strategy for this test
	evicted, freed := c.RunEvictionPass(1000)

	assert.LessOrEqual(t, c.TotalBytes(), int64(800))
	assert.Greater(t, evicted, 0)
	assert.Greater(t, freed, int64(0))
	for _, sid := range []int32{1, 2, 3} {
		assert.False(t, c.HasPendingInTransit(sid), "eviction must never touch in-transit records")
	}
}

func TestGetNextBeaconChunk_UnknownSessionReturnsEmpty(t *testing.T) {
	c := New(Config{HighWaterBytes: 1000, LowWaterBytes: 500})
	assert.Equal(t, "", c.GetNextBeaconChunk(99, "", 100, "&"))
}

func TestSessionOrder_PreservesInsertionOrderAcrossDeletes(t *testing.T) {
	c := New(Config{HighWaterBytes: 1000, LowWaterBytes: 500})
	c.AddActionData(3, 1, "c")
	c.AddActionData(1, 1, "a")
	c.AddActionData(2, 1, "b")

	if diff := cmp.Diff([]int32{3, 1, 2}, c.sessionOrder()); diff != "" {
		t.Fatalf("session order mismatch (-want +got):\n%s", diff)
	}

	c.DeleteCacheEntry(1)
	if diff := cmp.Diff([]int32{3, 2}, c.sessionOrder()); diff != "" {
		t.Fatalf("session order mismatch after delete (-want +got):\n%s", diff)
	}
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agen/paramgw/internal/valuecodec"
)

func TestSetThenGetReturnsSameValue(t *testing.T) {
	c := New(Config{})
	c.Set("Device.A", "1", valuecodec.TypeInt, 0)
	v, ty, ok := c.Get("Device.A")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, valuecodec.TypeInt, ty)
}

func TestDeleteThenGetIsMiss(t *testing.T) {
	c := New(Config{})
	c.Set("Device.A", "1", valuecodec.TypeInt, 0)
	c.Delete("Device.A")
	_, _, ok := c.Get("Device.A")
	assert.False(t, ok)
}

func TestExpiredEntryCountsAsMiss(t *testing.T) {
	c := New(Config{})
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("Device.A", "1", valuecodec.TypeInt, 1)

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	_, _, ok := c.Get("Device.A")
	assert.False(t, ok)

	hits, misses, timeouts := c.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(1), timeouts, "expired-on-access counts as both a timeout and a miss")
}

func TestInvalidateWildcardRemovesPrefixOnly(t *testing.T) {
	c := New(Config{})
	c.Set("Device.WiFi.Radio.1.Enable", "true", valuecodec.TypeBool, 0)
	c.Set("Device.WiFi.Radio.2.Enable", "true", valuecodec.TypeBool, 0)
	c.Set("Device.Other", "x", valuecodec.TypeString, 0)

	removed := c.InvalidateWildcard("Device.WiFi.")
	assert.Equal(t, 2, removed)

	_, _, ok := c.Get("Device.Other")
	assert.True(t, ok)
}

func TestEvictionRemovesCeilOneTenthAtCapacity(t *testing.T) {
	c := New(Config{MaxEntries: 10})
	for i := 0; i < 10; i++ {
		c.Set(keyFor(i), "v", valuecodec.TypeString, 0)
	}
	require.Equal(t, 10, c.Len())

	c.Set("Device.Eleventh", "v", valuecodec.TypeString, 0)
	assert.Equal(t, 10, c.Len(), "eviction of ceil(10/10)=1 should make room for the new insert")
}

func TestEvictionPrefersLowerAccessCount(t *testing.T) {
	c := New(Config{MaxEntries: 10})
	now := time.Now()
	c.now = func() time.Time { return now }
	for i := 0; i < 9; i++ {
		c.Set(keyFor(i), "v", valuecodec.TypeString, 0)
	}
	// Access key 0 many times so its priority is high (evict-last).
	for i := 0; i < 5; i++ {
		c.Get(keyFor(0))
	}
	c.Set(keyFor(9), "v", valuecodec.TypeString, 0)
	require.Equal(t, 10, c.Len())

	c.Set("Device.Eleventh", "v", valuecodec.TypeString, 0)
	_, _, ok := c.Get(keyFor(0))
	assert.True(t, ok, "frequently accessed key should survive eviction")
}

func TestExpireSweepRespectsInterval(t *testing.T) {
	c := New(Config{CleanupIntervalSeconds: 60, DefaultTTLSeconds: 1})
	now := time.Now()
	c.now = func() time.Time { return now }
	c.lastCleanup = now
	c.Set("Device.A", "1", valuecodec.TypeString, 1)

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	assert.Equal(t, 0, c.ExpireSweep(), "sweep before cleanup interval elapses is a no-op")

	c.now = func() time.Time { return now.Add(61 * time.Second) }
	assert.Equal(t, 1, c.ExpireSweep())
}

func keyFor(i int) string {
	return "Device.Key." + string(rune('A'+i))
}

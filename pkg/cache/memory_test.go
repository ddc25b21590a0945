package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Country string    `json:"country"`
	Values  []float64 `json:"values"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "series:india", entry{Country: "India", Values: []float64{1, 2}}, time.Minute))
	var got entry
	require.NoError(t, mc.Get(ctx, "series:india", &got))
	assert.Equal(t, "India", got.Country)
	assert.Equal(t, []float64{1, 2}, got.Values)

	require.NoError(t, mc.Set(ctx, "raw", "text", time.Minute))
	var s string
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "text", s)

	err := mc.Get(ctx, "missing", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryCacheExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Nanosecond))
	time.Sleep(time.Millisecond)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "a", &v), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Get(ctx, "b", &v))
	require.NoError(t, mc.Set(ctx, "d", 4, time.Minute))

	assert.Equal(t, 2, mc.Len())
	ok, err := mc.Exists(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok, "least recently used entry should be evicted")
	ok, _ = mc.Exists(ctx, "b", "d")
	assert.True(t, ok)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	for _, k := range []string{"series:a", "series:b", "countries:covid-19"} {
		require.NoError(t, mc.Set(ctx, k, k, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("series:")))
	assert.Equal(t, 1, mc.Len())
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryCleanup(0))
	defer mc.Close()

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"India", "Brazil"}, nil
	}
	for i := 0; i < 3; i++ {
		got, err := GetOrLoad(ctx, mc, "countries", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"India", "Brazil"}, got)
	}
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err := GetOrLoad(ctx, mc, "other", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "series:owid:United_States:COVID-19", GenerateKeyWithParams("series", "owid", "United States", "COVID-19"))
	assert.NotEqual(t, GenerateKeyWithParams("series", "India"), GenerateKeyWithParams("series", "india"))
	assert.Equal(t, "list:a_b_", GenerateKeyWithParams("list", "a:b*"))
}

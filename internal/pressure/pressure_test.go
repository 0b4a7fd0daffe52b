package pressure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

func TestReadParsesScoresAndClassifiesLevels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pressure.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"long_score": 85, "short_score": 20}`), 0o644))

	r := New(path, 10*time.Second)
	now := time.Now()

	p := r.Read(now, time.Minute)
	assert.True(t, p.Available)
	assert.Equal(t, models.PressureExtreme, p.LongLevel)
	assert.Equal(t, models.PressureLow, p.ShortLevel)
}

func TestReadReturnsCachedValueWhileThrottled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pressure.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"long_score": 50, "short_score": 50}`), 0o644))

	r := New(path, time.Minute)
	now := time.Now()
	first := r.Read(now, time.Minute)
	require.True(t, first.Available)

	// Rewrite the file with garbage; a throttled reread must not see it.
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	second := r.Read(now.Add(time.Second), time.Minute)
	assert.Equal(t, first, second)
}

func TestReadReturnsUnavailableOnceCacheGoesStale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pressure.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"long_score": 50, "short_score": 50}`), 0o644))

	r := New(path, time.Millisecond)
	now := time.Now()

	p := r.Read(now, 5*time.Second)
	assert.True(t, p.Available)

	// With the file gone, only the cached value is left, and it is an
	// hour old against a 5s staleness bound.
	require.NoError(t, os.Remove(path))
	stale := r.Read(now.Add(time.Hour), 5*time.Second)
	assert.False(t, stale.Available)
}

func TestReadToleratesMalformedJSONByReturningCachedOrEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pressure.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	r := New(path, time.Millisecond)
	p := r.Read(time.Now(), time.Minute)
	assert.False(t, p.Available)
}

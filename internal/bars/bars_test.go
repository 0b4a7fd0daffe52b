package bars

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBarHighLowComeOnlyFromMidSamples(t *testing.T) {
	a := New()
	start := time.Now().Truncate(BarInterval)

	a.OnSample(start, 100, 1)
	a.OnSample(start.Add(time.Second), 105, 1)
	a.OnSample(start.Add(2*time.Second), 98, 1)

	cur, ok := a.Current()
	assert.True(t, ok)
	assert.Equal(t, 100.0, cur.Open)
	assert.Equal(t, 105.0, cur.High)
	assert.Equal(t, 98.0, cur.Low)
	assert.Equal(t, 98.0, cur.Close)
	assert.Equal(t, 3.0, cur.Volume)
}

func TestBarRollsOverOnIntervalBoundary(t *testing.T) {
	a := New()
	start := time.Now().Truncate(BarInterval)

	a.OnSample(start, 100, 1)
	a.OnSample(start.Add(BarInterval), 110, 1)

	closed := a.Closed(0)
	if assert.Len(t, closed, 1) {
		assert.Equal(t, 100.0, closed[0].Open)
		assert.Equal(t, 100.0, closed[0].Close)
	}

	cur, ok := a.Current()
	assert.True(t, ok)
	assert.Equal(t, 110.0, cur.Open)
}

func TestOnSampleIgnoresNonPositiveMid(t *testing.T) {
	a := New()
	a.OnSample(time.Now(), 0, 5)

	_, ok := a.Current()
	assert.False(t, ok)
}

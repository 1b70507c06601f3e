package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterRefills(t *testing.T) {
	l := New()
	t0 := time.Unix(1_700_000_000, 0)

	assert.True(t, l.AllowAt("LTCUSDT", 2, 2, t0))
	assert.True(t, l.AllowAt("LTCUSDT", 2, 2, t0))
	assert.False(t, l.AllowAt("LTCUSDT", 2, 2, t0))

	// other keys have their own bucket
	assert.True(t, l.AllowAt("BTCUSDT", 2, 2, t0))

	assert.True(t, l.AllowAt("LTCUSDT", 2, 2, t0.Add(500*time.Millisecond)))
	assert.False(t, l.AllowAt("LTCUSDT", 2, 2, t0.Add(500*time.Millisecond)))

	l.Reset("LTCUSDT")
	assert.True(t, l.AllowAt("LTCUSDT", 2, 2, t0.Add(500*time.Millisecond)))
}

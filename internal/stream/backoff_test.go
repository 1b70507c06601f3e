package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoubles(t *testing.T) {
	b := Backoff{Base: time.Second}
	assert.Equal(t, 1*time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 4*time.Second, b.Delay(3))
	assert.Equal(t, 8*time.Second, b.Delay(4))
}

func TestBackoffCapAndBounds(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second}
	assert.Equal(t, 4*time.Second, b.Delay(3))
	assert.Equal(t, 5*time.Second, b.Delay(4))
	assert.Equal(t, 5*time.Second, b.Delay(200))

	uncapped := Backoff{Base: time.Second}
	assert.Equal(t, time.Second, uncapped.Delay(0))
	assert.Positive(t, uncapped.Delay(200))
}

package stream

import (
	"math"
	"time"
)

// Backoff computes reconnect delays: Base * 2^(retry-1), optionally capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration // 0 = uncapped
}

// Delay returns the wait before the given retry (1-based).
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	base := b.Base
	if base <= 0 {
		base = time.Second
	}

	shift := uint(retry - 1)
	var d time.Duration
	if shift >= 63 || int64(base) > math.MaxInt64>>shift {
		d = time.Duration(math.MaxInt64)
	} else {
		d = base << shift
	}

	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

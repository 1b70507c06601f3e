package queue

import (
	"errors"
	"fmt"
	"strings"
)

// OverflowPolicy defines mailbox behavior when a bounded mailbox is full.
type OverflowPolicy uint8

const (
	// OverflowBlock blocks the producer until space is available.
	OverflowBlock OverflowPolicy = iota
	// OverflowDropNewest rejects the incoming item.
	OverflowDropNewest
	// OverflowDropOldest evicts the oldest queued item to make room.
	OverflowDropOldest
)

var (
	// ErrClosed is returned by Push after Close.
	ErrClosed = errors.New("queue: mailbox closed")
	// ErrFull is returned by Push when the item was dropped under OverflowDropNewest.
	ErrFull = errors.New("queue: mailbox full")
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowBlock:
		return "block"
	case OverflowDropNewest:
		return "drop_newest"
	case OverflowDropOldest:
		return "drop_oldest"
	default:
		return fmt.Sprintf("overflow(%d)", uint8(p))
	}
}

// ParseOverflowPolicy maps a config value onto a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return OverflowBlock, nil
	case "drop_newest":
		return OverflowDropNewest, nil
	case "drop_oldest":
		return OverflowDropOldest, nil
	default:
		return OverflowBlock, fmt.Errorf("unknown overflow policy %q", s)
	}
}

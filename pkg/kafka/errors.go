package kafka

import (
	"errors"
	"fmt"
)

// ErrPermanent marks a handler failure that retrying cannot fix.
var ErrPermanent = errors.New("kafka: permanent failure")

// Permanent wraps err so the consumer skips its retries and moves the
// message straight to the DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

package timerreg

import "errors"

var (
	ErrInvalidInterval = errors.New("timer interval must be positive")
	errCancelTimeout   = errors.New("timer goroutine did not exit before deadline")
)

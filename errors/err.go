package errors

import (
	"fmt"
)

var (
	ErrInvalidConfig     = fmt.Errorf("aix: invalid config")
	ErrNotFound          = fmt.Errorf("aix: not found")
	ErrInvalidParams     = fmt.Errorf("aix: invalid params")
	ErrStoreUnavailable  = fmt.Errorf("aix: store unavailable")
	ErrDimensionMismatch = fmt.Errorf("aix: embedding dimension mismatch")
	ErrInternal          = fmt.Errorf("aix: internal error")
)

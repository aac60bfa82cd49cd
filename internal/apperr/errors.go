package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrIndexNotReady = errors.New("metadata index not built yet")
	ErrInvalidQuery  = errors.New("invalid query")
)

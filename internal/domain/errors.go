package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrTerminalStatus = errors.New("job already finished")
)

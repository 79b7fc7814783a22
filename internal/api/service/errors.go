package service

import "errors"

var (
	// ErrInvalidRequest marks errors caused by the caller's input. Handlers map it to 400.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStatusConflict is returned when the transaction's status does not allow the notification asked for
	ErrStatusConflict = errors.New("transaction status does not allow this notification")
)

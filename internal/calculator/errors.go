package calculator

import "errors"

var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrDivideByZero     = errors.New("cannot divide by zero")
	ErrUnknownUser      = errors.New("account no longer exists")
)

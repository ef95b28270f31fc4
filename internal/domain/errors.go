package domain

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserInactive      = errors.New("user inactive")
	ErrNodeNotFound      = errors.New("node not found")
	ErrPlacementConflict = errors.New("placement conflict")
	ErrInvalidTier       = errors.New("invalid tier")
	ErrInvalidCurrency   = errors.New("invalid currency")
)

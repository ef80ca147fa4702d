package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInsufficientAmount    = errors.New("insufficient amount")
	ErrAlreadyApproved       = errors.New("already approved")
	ErrAlreadyFinalized      = errors.New("already finalized")
	ErrInsufficientApprovals = errors.New("insufficient approvals")
	ErrInsufficientFunds     = errors.New("insufficient funds")
)

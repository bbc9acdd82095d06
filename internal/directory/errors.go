package directory

import "errors"

var (
	ErrNotFound           = errors.New("directory: not found")
	ErrDuplicateIdentity  = errors.New("directory: identity already registered")
	ErrAlreadyResolved    = errors.New("directory: entry already resolved")
	ErrPendingApproval    = errors.New("directory: approval already pending")
	ErrCredentialMismatch = errors.New("directory: credential mismatch")
	ErrCredentialTooShort = errors.New("directory: credential too short")
	ErrValidation         = errors.New("directory: validation failed")
	ErrUnauthorized       = errors.New("directory: unauthorized")
)

package billing

import "errors"

// Sentinel errors raised below the HTTP boundary. Controllers map them to
// status codes; nothing in this package knows about HTTP.
var (
	ErrTierNotFound         = errors.New("subscription tier not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrBadPayload           = errors.New("malformed callback payload")
	ErrConflict             = errors.New("payment state conflict")
	ErrGateway              = errors.New("payment network error")
)

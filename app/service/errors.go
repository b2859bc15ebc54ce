package service

import "errors"

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrSessionNotFound  = errors.New("Session not found")
	ErrCustomerNotFound = errors.New("Stripe customer not found")
	ErrEventNotFound    = errors.New("webhook event not found")
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	ErrDuplicateEvent   = errors.New("webhook event already recorded")
	ErrProviderFailure  = errors.New("payment provider failure")
)

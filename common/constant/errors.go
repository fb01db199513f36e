package constant

import "errors"

// Generic HTTP-adjacent sentinels, reused across every service's error boundary.
var (
	ErrBadRequest                   = errors.New("0001")
	ErrUnexpectedFieldsInTheRequest = errors.New("0002")
	ErrInternalServer               = errors.New("0003")
	ErrEntityNotFound                = errors.New("0004")
	ErrUnauthorized                  = errors.New("0005")
	ErrForbidden                     = errors.New("0006")
	ErrInvalidPathParameter          = errors.New("0007")
)

// Saga (C6) sentinels.
var (
	ErrSagaNotFound          = errors.New("1001")
	ErrSagaTransitionInvalid = errors.New("1002")
	ErrSagaAlreadyTerminal   = errors.New("1003")
	ErrSagaWatchdogExpired   = errors.New("1004")
)

// Outbox (C3/C4) sentinels.
var (
	ErrOutboxEntityIDEmpty     = errors.New("2001")
	ErrOutboxEntityIDTooLong   = errors.New("2002")
	ErrOutboxInvalidEntityType = errors.New("2003")
	ErrOutboxMetadataNil       = errors.New("2004")
	ErrOutboxMetadataTooLarge  = errors.New("2005")
	ErrOutboxLeaseConflict     = errors.New("2006")
	ErrOutboxRowNotFound       = errors.New("2007")
	ErrOutboxAttemptsExceeded  = errors.New("2008")
)

// Idempotency ledger (C7) sentinels.
var (
	ErrIdempotencyConflict = errors.New("3001")
)

// Auth / JWT / JWKS (C1/C2) sentinels.
var (
	ErrInvalidCredentials    = errors.New("4001")
	ErrTokenInvalid          = errors.New("4002")
	ErrTokenExpired          = errors.New("4003")
	ErrInsufficientAuthority = errors.New("4004")
	ErrUnknownSigningKey     = errors.New("4005")
	ErrKeyRotationFatal      = errors.New("4006")
)

// Domain aggregate sentinels (order/payment/inventory/shipping).
var (
	ErrOrderNotFound           = errors.New("5001")
	ErrOrderInvalidLineItems   = errors.New("5002")
	ErrPaymentNotFound         = errors.New("5003")
	ErrPaymentAlreadyCaptured  = errors.New("5004")
	ErrReservationNotFound     = errors.New("5005")
	ErrReservationInsufficient = errors.New("5006")
	ErrCaptureNotFound         = errors.New("5007")
	ErrTenantMismatch          = errors.New("5008")
	ErrUpstreamUnavailable     = errors.New("5009")
)

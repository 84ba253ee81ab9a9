package model

import "errors"

// Error taxonomy. Transports map these to status codes; the settlement
// processor uses them to decide what is retryable.
var (
	// ErrValidation: bad checkout input (bounds, missing user id). Not retried.
	ErrValidation = errors.New("validation error")

	// ErrAuthentication: webhook signature mismatch. Request fully rejected.
	ErrAuthentication = errors.New("authentication error")

	// ErrMetadata: verified event is missing required metadata. The gateway
	// authored the metadata and will not resend different values, so this is
	// terminal for the event.
	ErrMetadata = errors.New("metadata error")

	// ErrTransientStore: contention or timeout on the ledger store. Retryable.
	ErrTransientStore = errors.New("transient store error")

	// ErrGateway: checkout creation call failed. No local state was written.
	ErrGateway = errors.New("gateway error")
)

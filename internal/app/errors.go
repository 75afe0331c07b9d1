package app

import "errors"

// Sentinel errors for the submission flow. Handlers map these onto HTTP
// statuses; everything not in this taxonomy surfaces as a 500.
var (
	ErrInvalidCoordinates   = errors.New("guess coordinates must lie within [0,1]")
	ErrEmptyBatch           = errors.New("batch must contain at least one entry")
	ErrCompetitionNotActive = errors.New("competition is not accepting entries")
	ErrNoPaymentMethod      = errors.New("no default payment method on file")
	ErrPaymentFailed        = errors.New("payment failed")
	ErrPersistenceFailure   = errors.New("failed to persist submission records")
)

package errs

// Registry / gateway errors.
var (
	ErrAuthRequired   = NewCodeError(1101, "auth required")
	ErrUnknownSession = NewCodeError(1102, "unknown session")
)

// Fan-out / dispatch errors. Delivery and email failures are logged
// where they occur and never surfaced to request handlers; persistence
// failure is the one fatal dispatch outcome.
var (
	ErrDeliveryFailed    = NewCodeError(1201, "delivery failed")
	ErrPersistenceFailed = NewCodeError(1301, "persistence failed")
	ErrEmailFailed       = NewCodeError(1302, "email failed")
)

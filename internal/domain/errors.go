package domain

import "errors"

// Kind groups errors by how callers are expected to react.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindInvariant
	KindExternal
	KindNotFound
	KindForbidden
)

// Error is a classified business error. Sentinels below are compared with errors.Is.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	ErrInvalidAmount       = newError(KindValidation, "invalid_amount", "amount must be positive")
	ErrInvalidMethod       = newError(KindValidation, "invalid_method", "unknown payment method")
	ErrInvalidLedger       = newError(KindValidation, "invalid_ledger", "invalid ledger reference")
	ErrMissingEvidence     = newError(KindValidation, "missing_evidence", "proof images are required before confirmation")
	ErrMissingPaymentProof = newError(KindValidation, "missing_payment_proof", "payment proof image is required before approval")
	ErrTooManyImages       = newError(KindValidation, "too_many_images", "too many images")
	ErrInvalidFileType     = newError(KindValidation, "invalid_file_type", "file type not allowed")
	ErrFileTooLarge        = newError(KindValidation, "file_too_large", "file exceeds size limit")
	ErrReasonRequired      = newError(KindValidation, "reason_required", "a reason is required")
	ErrInvalidCampaign     = newError(KindValidation, "invalid_campaign", "invalid campaign parameters")
	ErrMissingActor        = newError(KindValidation, "missing_actor", "an acting member id is required")

	ErrAlreadyFinal      = newError(KindConflict, "already_final", "record is already in a terminal state")
	ErrInvalidState      = newError(KindConflict, "invalid_state", "operation not allowed in the current state")
	ErrCampaignNotActive = newError(KindConflict, "campaign_not_active", "campaign is not accepting this operation")
	ErrConcurrentUpdate  = newError(KindConflict, "concurrent_update", "ledger was modified concurrently")

	ErrIdempotencyConflict = newError(KindConflict, "idempotency_in_progress", "a request with this idempotency key is in progress")
	ErrIdempotencyMismatch = newError(KindValidation, "idempotency_mismatch", "idempotency key reused with a different payload")

	ErrInsufficientBalance = newError(KindInvariant, "insufficient_balance", "insufficient ledger balance")

	ErrInvalidSignature = newError(KindExternal, "invalid_signature", "invalid webhook signature")
	ErrRetryable        = newError(KindExternal, "retryable", "temporary failure, retry later")

	ErrNotFound      = newError(KindNotFound, "not_found", "record not found")
	ErrNotManager    = newError(KindForbidden, "not_manager", "actor is not a manager of this ledger")
	ErrReservedActor = newError(KindForbidden, "reserved_actor", "actor id is reserved for the payment gateway")
)

// KindOf classifies err; unknown errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable error code, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

package domain

import "context"

const (
	IdempotencyInProgress = "in_progress"
	IdempotencyCompleted  = "completed"
)

// IdempotencyRecord remembers the response to a client-keyed create request.
type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	Status         string
	ResponseStatus int
	ResponseBody   []byte
}

type IdempotencyRepository interface {
	// ReserveKey claims key for a new request. A known key is not reserved again;
	// its stored record is returned instead.
	ReserveKey(ctx context.Context, key, requestHash string) (rec *IdempotencyRecord, reserved bool, err error)
	CompleteKey(ctx context.Context, key string, status int, body []byte) error
	// ReleaseKey drops an in-progress reservation so the client may retry.
	ReleaseKey(ctx context.Context, key string) error
}

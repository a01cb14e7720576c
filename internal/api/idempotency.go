package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"

	"github.com/punchamoorthee/fundledger/internal/domain"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	maxIdempotencyKey = 255
)

// responseCapture tees the response so it can be stored for replay.
type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// idempotent makes a create endpoint safe to retry. A request carrying an
// Idempotency-Key runs once; later requests with the same key and body get the
// stored response, and a different body under the same key is refused.
// Only successful responses are stored.
func (h *Handler) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" || h.keys == nil {
			next(w, r)
			return
		}
		if len(key) > maxIdempotencyKey {
			respondWithError(w, http.StatusBadRequest, "Idempotency-Key too long")
			return
		}

		limit := int64(maxJSONBody)
		if isMultipart(r) {
			limit = maxUploadBody
		}
		bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Stream read error")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		hash := sha256.Sum256(bodyBytes)
		reqHash := hex.EncodeToString(hash[:])
		// Keys are scoped per actor so members cannot replay each other's responses.
		scoped := r.Header.Get(ActorHeader) + ":" + key

		rec, reserved, err := h.keys.ReserveKey(r.Context(), scoped, reqHash)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		if !reserved {
			switch {
			case rec.RequestHash != reqHash:
				respondWithServiceError(w, domain.ErrIdempotencyMismatch)
			case rec.Status != domain.IdempotencyCompleted:
				respondWithServiceError(w, domain.ErrIdempotencyConflict)
			default:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(rec.ResponseStatus)
				w.Write(rec.ResponseBody)
			}
			return
		}

		capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
		next(capture, r)

		// Detached from the request so a client hang-up cannot strand the key.
		ctx := context.WithoutCancel(r.Context())
		if capture.status >= 300 {
			if err := h.keys.ReleaseKey(ctx, scoped); err != nil {
				log.Printf("[IDEMPOTENCY] release key=%s failed: %v", key, err)
			}
			return
		}
		if err := h.keys.CompleteKey(ctx, scoped, capture.status, capture.body.Bytes()); err != nil {
			log.Printf("[IDEMPOTENCY] complete key=%s failed: %v", key, err)
		}
	}
}

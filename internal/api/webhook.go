package api

import (
	"io"
	"log"
	"net/http"
)

// PayOSWebhookHandler always acknowledges with the same generic body so an
// unauthenticated caller learns nothing about the ledger. Only failures that
// the gateway should retry are answered with 503.
func (h *Handler) PayOSWebhookHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		log.Printf("[WEBHOOK] unreadable body: %v", err)
		respondWithJSON(w, http.StatusOK, webhookAck)
		return
	}

	if _, err := h.svc.HandlePayOSWebhook(r.Context(), raw, r.Header.Get(SignatureHeader)); err != nil {
		log.Printf("[WEBHOOK] delivery failed, asking for retry: %v", err)
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"success": false})
		return
	}
	respondWithJSON(w, http.StatusOK, webhookAck)
}

var webhookAck = map[string]interface{}{"success": true}

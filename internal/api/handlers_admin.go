/**
 * @description
 * HTTP handlers for the operator endpoints over the delivery pipeline.
 * All of them resolve the caller from the auth context and let the admin
 * service decide whether that caller holds operator access.
 */

package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/john67k/zelle-style/internal/app"
	"github.com/john67k/zelle-style/internal/store"
)

const defaultLogLimit = 100

// DeliveryLogsHandler returns recent terminal delivery logs.
func (h *Handlers) DeliveryLogsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetUserEmail(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	logs, err := h.admin.Logs(r.Context(), caller, limit)
	if err != nil {
		h.writeAdminError(w, "delivery_logs", caller, err)
		return
	}
	h.writeJSON(w, http.StatusOK, logs)
}

// DeliveryPendingHandler returns payloads parked for manual replay.
func (h *Handlers) DeliveryPendingHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetUserEmail(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	pending, err := h.admin.Pending(r.Context(), caller)
	if err != nil {
		h.writeAdminError(w, "delivery_pending", caller, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pending)
}

// DeliveryStatsHandler returns aggregate delivery outcomes.
func (h *Handlers) DeliveryStatsHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetUserEmail(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	stats, err := h.admin.Stats(r.Context(), caller)
	if err != nil {
		h.writeAdminError(w, "delivery_stats", caller, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// DeliveryRetryHandler replays a parked payload as a fresh delivery cycle.
func (h *Handlers) DeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetUserEmail(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}

	deliveryID := chi.URLParam(r, "id")
	receipt, err := h.admin.Retry(r.Context(), caller, deliveryID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNotAuthorized):
			h.writeError(w, http.StatusForbidden, "Operator access required")
		case errors.Is(err, store.ErrPendingRetryNotFound):
			h.writeError(w, http.StatusNotFound, "No pending delivery with this id")
		default:
			// The replay itself failed; the payload is parked again under a
			// new id, which the error carries back to the operator.
			h.writeJSON(w, http.StatusBadGateway, map[string]string{
				"error":  "Replay failed; payload parked again",
				"detail": err.Error(),
			})
		}
		return
	}

	h.writeJSON(w, http.StatusOK, receipt)
}

func (h *Handlers) writeAdminError(w http.ResponseWriter, endpoint, caller string, err error) {
	if errors.Is(err, app.ErrNotAuthorized) {
		h.writeError(w, http.StatusForbidden, "Operator access required")
		return
	}
	log.Printf("level=error component=api endpoint=%s caller=%s err=%v", endpoint, caller, err)
	h.writeError(w, http.StatusInternalServerError, "Could not load delivery data")
}

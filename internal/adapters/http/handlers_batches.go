package http

import (
	"net/http"

	"github.com/viralforge/treasury/internal/application"
)

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req application.CreateBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_batch", err)
		return
	}

	batch, err := h.service.CreateBatch(r.Context(), claims, req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_batch", err)
		return
	}
	writeSuccess(w, http.StatusCreated, batch)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := uuidParam(r, "batch_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_batch", err)
		return
	}
	batch, members, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_batch", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"batch":   batch,
		"members": members,
	})
}

func (h *Handler) appendBatchMembers(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	batchID, err := uuidParam(r, "batch_id")
	if err != nil {
		writeValidationError(r.Context(), w, "append_batch_members", err)
		return
	}
	var req struct {
		Members []application.BatchMemberInput `json:"members"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "append_batch_members", err)
		return
	}

	batch, err := h.service.AppendBatchMembers(r.Context(), claims, batchID, req.Members)
	if err != nil {
		writeMappedError(r.Context(), w, "append_batch_members", err)
		return
	}
	writeSuccess(w, http.StatusOK, batch)
}

func (h *Handler) chargeBatch(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	batchID, err := uuidParam(r, "batch_id")
	if err != nil {
		writeValidationError(r.Context(), w, "charge_batch", err)
		return
	}
	var req application.ChargeBatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "charge_batch", err)
		return
	}

	batch, err := h.service.ChargeBatch(r.Context(), claims, batchID, req)
	if err != nil {
		writeMappedError(r.Context(), w, "charge_batch", err)
		return
	}
	writeSuccess(w, http.StatusAccepted, batch)
}

func (h *Handler) cancelBatch(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	batchID, err := uuidParam(r, "batch_id")
	if err != nil {
		writeValidationError(r.Context(), w, "cancel_batch", err)
		return
	}

	batch, err := h.service.CancelBatch(r.Context(), claims, batchID)
	if err != nil {
		writeMappedError(r.Context(), w, "cancel_batch", err)
		return
	}
	writeSuccess(w, http.StatusOK, batch)
}

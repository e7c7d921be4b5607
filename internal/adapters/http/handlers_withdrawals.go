package http

import (
	"net/http"

	"github.com/viralforge/treasury/internal/application"
	"github.com/viralforge/treasury/internal/domain"
)

func (h *Handler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req application.RequestWithdrawalInput
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "request_withdrawal", err)
		return
	}

	request, err := h.service.RequestWithdrawal(r.Context(), claims, req)
	if err != nil {
		writeMappedError(r.Context(), w, "request_withdrawal", err)
		return
	}
	writeSuccess(w, http.StatusCreated, request)
}

func (h *Handler) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	status := domain.WithdrawalStatus(r.URL.Query().Get("status"))
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	requests, total, err := h.service.ListWithdrawals(r.Context(), status, limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "list_withdrawals", err)
		return
	}
	writeCollection(w, "withdrawals", requests, total)
}

func (h *Handler) getWithdrawal(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuidParam(r, "request_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_withdrawal", err)
		return
	}
	request, approvals, err := h.service.GetWithdrawal(r.Context(), requestID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_withdrawal", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"request":   request,
		"approvals": approvals,
	})
}

func (h *Handler) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	requestID, err := uuidParam(r, "request_id")
	if err != nil {
		writeValidationError(r.Context(), w, "approve_withdrawal", err)
		return
	}
	var req application.ApproveWithdrawalInput
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "approve_withdrawal", err)
		return
	}

	request, err := h.service.ApproveWithdrawal(r.Context(), claims, requestID, req)
	if err != nil {
		writeMappedError(r.Context(), w, "approve_withdrawal", err)
		return
	}
	writeSuccess(w, http.StatusOK, request)
}

func (h *Handler) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	requestID, err := uuidParam(r, "request_id")
	if err != nil {
		writeValidationError(r.Context(), w, "reject_withdrawal", err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "reject_withdrawal", err)
		return
	}

	if err := h.service.RejectWithdrawal(r.Context(), claims, requestID, req.Reason); err != nil {
		writeMappedError(r.Context(), w, "reject_withdrawal", err)
		return
	}
	writeMessage(w, http.StatusOK, "withdrawal rejected")
}

func (h *Handler) cancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	requestID, err := uuidParam(r, "request_id")
	if err != nil {
		writeValidationError(r.Context(), w, "cancel_withdrawal", err)
		return
	}

	if err := h.service.CancelWithdrawal(r.Context(), claims, requestID); err != nil {
		writeMappedError(r.Context(), w, "cancel_withdrawal", err)
		return
	}
	writeMessage(w, http.StatusOK, "withdrawal cancelled")
}

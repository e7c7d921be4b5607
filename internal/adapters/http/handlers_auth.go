package http

import (
	"net/http"

	"github.com/viralforge/treasury/internal/application"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}

	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) createApprover(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req application.CreateApproverRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_approver", err)
		return
	}

	approver, err := h.service.CreateApprover(r.Context(), claims, req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_approver", err)
		return
	}
	writeSuccess(w, http.StatusCreated, approver)
}

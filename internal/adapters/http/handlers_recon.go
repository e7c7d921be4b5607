package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/viralforge/treasury/internal/domain"
)

func (h *Handler) importBankFeed(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	if !claims.Role.CanOperate() {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "operation not allowed for this role")
		return
	}
	var req struct {
		From time.Time `json:"from"`
		To   time.Time `json:"to"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "import_bank_feed", err)
		return
	}
	if req.From.IsZero() || req.To.IsZero() {
		writeValidationError(r.Context(), w, "import_bank_feed", fmt.Errorf("from and to are required"))
		return
	}

	report, err := h.service.ImportBankFeed(r.Context(), req.From, req.To)
	if err != nil {
		writeMappedError(r.Context(), w, "import_bank_feed", err)
		return
	}
	writeSuccess(w, http.StatusOK, report)
}

func (h *Handler) autoLink(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	if !claims.Role.CanOperate() {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "operation not allowed for this role")
		return
	}

	report, err := h.service.AutoLink(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "auto_link", err)
		return
	}
	writeSuccess(w, http.StatusOK, report)
}

func (h *Handler) listSyncs(w http.ResponseWriter, r *http.Request) {
	status := domain.SyncStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.SyncStatusUnlinked
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	records, total, err := h.service.ListSyncs(r.Context(), status, limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "list_syncs", err)
		return
	}
	writeCollection(w, "syncs", records, total)
}

func (h *Handler) manualLink(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	syncID, err := uuidParam(r, "sync_id")
	if err != nil {
		writeValidationError(r.Context(), w, "manual_link", err)
		return
	}
	var req struct {
		PaymentID string `json:"payment_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "manual_link", err)
		return
	}
	paymentID, err := parseUUID(req.PaymentID, "payment_id")
	if err != nil {
		writeValidationError(r.Context(), w, "manual_link", err)
		return
	}

	rec, err := h.service.ManualLink(r.Context(), claims, syncID, paymentID)
	if err != nil {
		writeMappedError(r.Context(), w, "manual_link", err)
		return
	}
	writeSuccess(w, http.StatusOK, rec)
}

func (h *Handler) ignoreSync(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	syncID, err := uuidParam(r, "sync_id")
	if err != nil {
		writeValidationError(r.Context(), w, "ignore_sync", err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "ignore_sync", err)
		return
	}

	if err := h.service.IgnoreSync(r.Context(), claims, syncID, req.Reason); err != nil {
		writeMappedError(r.Context(), w, "ignore_sync", err)
		return
	}
	writeMessage(w, http.StatusOK, "sync record ignored")
}

func (h *Handler) unlinkSync(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	syncID, err := uuidParam(r, "sync_id")
	if err != nil {
		writeValidationError(r.Context(), w, "unlink_sync", err)
		return
	}

	if err := h.service.UnlinkSync(r.Context(), claims, syncID); err != nil {
		writeMappedError(r.Context(), w, "unlink_sync", err)
		return
	}
	writeMessage(w, http.StatusOK, "sync record unlinked")
}

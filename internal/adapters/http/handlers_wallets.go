package http

import (
	"net/http"

	"github.com/viralforge/treasury/internal/application"
)

func (h *Handler) createWallet(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req application.CreateWalletRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_wallet", err)
		return
	}

	wallet, err := h.service.CreateWallet(r.Context(), claims, req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_wallet", err)
		return
	}
	writeSuccess(w, http.StatusCreated, wallet)
}

func (h *Handler) listWallets(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") == "true"
	summary, err := h.service.ListWallets(r.Context(), activeOnly)
	if err != nil {
		writeMappedError(r.Context(), w, "list_wallets", err)
		return
	}
	writeSuccess(w, http.StatusOK, summary)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuidParam(r, "wallet_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_wallet", err)
		return
	}
	wallet, err := h.service.GetWallet(r.Context(), walletID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_wallet", err)
		return
	}
	writeSuccess(w, http.StatusOK, wallet)
}

func (h *Handler) deactivateWallet(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	walletID, err := uuidParam(r, "wallet_id")
	if err != nil {
		writeValidationError(r.Context(), w, "deactivate_wallet", err)
		return
	}
	if err := h.service.DeactivateWallet(r.Context(), claims, walletID); err != nil {
		writeMappedError(r.Context(), w, "deactivate_wallet", err)
		return
	}
	writeMessage(w, http.StatusOK, "wallet deactivated")
}

func (h *Handler) verifyLedger(w http.ResponseWriter, r *http.Request) {
	if err := h.service.VerifyLedger(r.Context()); err != nil {
		writeMappedError(r.Context(), w, "verify_ledger", err)
		return
	}
	writeMessage(w, http.StatusOK, "ledger consistent")
}

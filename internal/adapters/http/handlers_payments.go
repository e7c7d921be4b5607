package http

import (
	"net/http"

	"github.com/viralforge/treasury/internal/application"
	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req application.InitiatePaymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "initiate_payment", err)
		return
	}

	payment, err := h.service.InitiatePayment(r.Context(), claims, req)
	if err != nil {
		writeMappedError(r.Context(), w, "initiate_payment", err)
		return
	}
	writeSuccess(w, http.StatusAccepted, payment)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuidParam(r, "payment_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_payment", err)
		return
	}
	payment, err := h.service.GetPayment(r.Context(), paymentID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_payment", err)
		return
	}
	writeSuccess(w, http.StatusOK, payment)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	query := ports.PaymentListQuery{
		PayerID: r.URL.Query().Get("payer_id"),
		Status:  domain.PaymentStatus(r.URL.Query().Get("status")),
		Limit:   parseIntDefault(r.URL.Query().Get("limit"), 50),
		Offset:  parseIntDefault(r.URL.Query().Get("offset"), 0),
	}
	payments, total, err := h.service.ListPayments(r.Context(), query)
	if err != nil {
		writeMappedError(r.Context(), w, "list_payments", err)
		return
	}
	writeCollection(w, "payments", payments, total)
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viralforge/treasury/internal/application"
	"github.com/viralforge/treasury/internal/ports"
)

// Handler is the HTTP adapter entrypoint for treasury use-cases.
// Keeping only application dependencies here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
	signer  ports.TokenSigner
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service, signer ports.TokenSigner) *Handler {
	return &Handler{service: service, signer: signer}
}

// NewRouter registers the treasury HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/treasury/v1", func(r chi.Router) {
		r.Post("/auth/login", handler.login)

		// Gateway completion callbacks authenticate by knowing the
		// provider-issued request id, not by bearer token.
		r.Post("/callbacks/{provider}", handler.gatewayCallback)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)

			r.Post("/approvers", handler.createApprover)

			r.Post("/wallets", handler.createWallet)
			r.Get("/wallets", handler.listWallets)
			r.Get("/wallets/verify", handler.verifyLedger)
			r.Get("/wallets/{wallet_id}", handler.getWallet)
			r.Delete("/wallets/{wallet_id}", handler.deactivateWallet)

			r.Post("/payments", handler.initiatePayment)
			r.Get("/payments", handler.listPayments)
			r.Get("/payments/{payment_id}", handler.getPayment)

			r.Post("/batches", handler.createBatch)
			r.Get("/batches/{batch_id}", handler.getBatch)
			r.Post("/batches/{batch_id}/members", handler.appendBatchMembers)
			r.Post("/batches/{batch_id}/charge", handler.chargeBatch)
			r.Post("/batches/{batch_id}/cancel", handler.cancelBatch)

			r.Post("/withdrawals", handler.requestWithdrawal)
			r.Get("/withdrawals", handler.listWithdrawals)
			r.Get("/withdrawals/{request_id}", handler.getWithdrawal)
			r.Post("/withdrawals/{request_id}/approve", handler.approveWithdrawal)
			r.Post("/withdrawals/{request_id}/reject", handler.rejectWithdrawal)
			r.Post("/withdrawals/{request_id}/cancel", handler.cancelWithdrawal)

			r.Post("/reconciliation/import", handler.importBankFeed)
			r.Post("/reconciliation/auto-link", handler.autoLink)
			r.Get("/reconciliation/syncs", handler.listSyncs)
			r.Post("/reconciliation/syncs/{sync_id}/link", handler.manualLink)
			r.Post("/reconciliation/syncs/{sync_id}/ignore", handler.ignoreSync)
			r.Post("/reconciliation/syncs/{sync_id}/unlink", handler.unlinkSync)
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.VerifyLedger(r.Context()); err != nil {
		writeMappedError(r.Context(), w, "readyz", err)
		return
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		claims, err := h.signer.ParseAndValidate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}
		ctx := r.Context()
		ctx = contextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

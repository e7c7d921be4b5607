package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

// InitiatePayment creates a pending contribution and asks the gateway to
// charge it. The payment completes later through the gateway callback; a
// failed or timed-out charge leaves it pending for retry.
func (s *Service) InitiatePayment(ctx context.Context, actor ports.AuthClaims, req InitiatePaymentRequest) (domain.Payment, error) {
	if !actor.Role.CanOperate() {
		return domain.Payment{}, domain.ErrUnauthorized
	}
	if err := domain.ValidateCreatePaymentInput(req.PayerID, req.Provider, req.Amount, req.Category); err != nil {
		return domain.Payment{}, err
	}
	if err := domain.ValidateDistribution(req.Amount, req.Distribution, s.cfg.DistributionTolerance); err != nil {
		return domain.Payment{}, err
	}
	if strings.TrimSpace(req.PhoneOrAccount) == "" {
		return domain.Payment{}, fmt.Errorf("%w: phone or account is required", domain.ErrInvalidInput)
	}
	gateway, ok := s.gateways[req.Provider]
	if !ok {
		return domain.Payment{}, fmt.Errorf("%w: no gateway configured for %q", domain.ErrInvalidInput, req.Provider)
	}
	// Reject an inactive target before persisting anything.
	if wallet, err := s.wallets.GetByCategory(ctx, req.Category, req.SubCategory); err == nil && !wallet.IsActive {
		return domain.Payment{}, fmt.Errorf("%w: (%s, %s)", domain.ErrWalletInactive, req.Category, req.SubCategory)
	}

	now := s.nowFn()
	payment := domain.Payment{
		PaymentID:    uuid.New(),
		PayerID:      strings.TrimSpace(req.PayerID),
		Type:         domain.PaymentTypeContribution,
		Amount:       req.Amount,
		Category:     req.Category,
		SubCategory:  req.SubCategory,
		Distribution: req.Distribution,
		Provider:     req.Provider,
		Status:       domain.PaymentStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return domain.Payment{}, err
	}

	resp, err := gateway.Charge(ctx, ports.ChargeRequest{
		Reference:      payment.PaymentID.String(),
		Amount:         payment.Amount,
		PhoneOrAccount: strings.TrimSpace(req.PhoneOrAccount),
		Description:    req.Description,
		CallbackURL:    s.cfg.CallbackBaseURL + "/callbacks/" + string(req.Provider),
	})
	if err != nil {
		// The payment stays pending; the charge is retryable.
		return payment, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	if err := s.payments.SetProviderRef(ctx, payment.PaymentID, resp.ProviderRequestID, s.nowFn()); err != nil {
		return domain.Payment{}, err
	}
	payment.ProviderRef = resp.ProviderRequestID
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error) {
	return s.payments.GetByID(ctx, paymentID)
}

func (s *Service) ListPayments(ctx context.Context, query ports.PaymentListQuery) ([]domain.Payment, int, error) {
	return s.payments.List(ctx, query)
}

// HandleGatewayCallback is the single entry point for completion callbacks
// from either provider. Its only side effect is the atomic transition of the
// matching pending payment (or batch); a callback that matches nothing still
// acknowledges so the gateway stops retrying.
func (s *Service) HandleGatewayCallback(ctx context.Context, cb domain.GatewayCallback) (CallbackAck, error) {
	if err := domain.ValidateGatewayCallback(cb); err != nil {
		return CallbackAck{}, err
	}

	// Fast-path replay short-circuit. Best effort: the binding guard is the
	// pending-status compare-and-swap inside the completion transaction.
	if s.dedup != nil {
		if seen, err := s.dedup.Seen(ctx, cb.ProviderRequestID); err == nil && seen {
			return CallbackAck{Duplicate: true}, nil
		}
	}

	payment, err := s.payments.GetByProviderRef(ctx, cb.ProviderRequestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.handleBatchCallback(ctx, cb)
		}
		return CallbackAck{}, err
	}
	if payment.Terminal() {
		return CallbackAck{Duplicate: true, PaymentID: &payment.PaymentID}, nil
	}

	if !cb.Success() {
		reason := fmt.Sprintf("gateway result %d: %s", cb.ResultCode, cb.ResultDescription)
		failed, err := s.failPendingPayment(ctx, payment, reason)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return CallbackAck{Duplicate: true, PaymentID: &payment.PaymentID}, nil
			}
			return CallbackAck{}, err
		}
		s.markCallbackSeen(ctx, cb.ProviderRequestID)
		return CallbackAck{PaymentID: &failed.PaymentID}, nil
	}

	completed, err := s.completePendingPayment(ctx, payment, cb.ReceiptNumber)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return CallbackAck{Duplicate: true, PaymentID: &payment.PaymentID}, nil
		}
		return CallbackAck{}, err
	}
	s.markCallbackSeen(ctx, cb.ProviderRequestID)
	return CallbackAck{PaymentID: &completed.PaymentID}, nil
}

// completePendingPayment drives one pending payment through the success path:
// credit deltas, receipt, status flip and outbox event, all in one
// transaction. A replay loses the compare-and-swap and returns ErrConflict.
func (s *Service) completePendingPayment(ctx context.Context, payment domain.Payment, providerTxnID string) (domain.Payment, error) {
	deltas, err := s.creditPlan(ctx, payment)
	if err != nil {
		return domain.Payment{}, err
	}

	now := s.nowFn()
	payload, _ := json.Marshal(map[string]any{
		"payment_id": payment.PaymentID,
		"payer_id":   payment.PayerID,
		"amount":     payment.Amount,
		"provider":   payment.Provider,
		"settled_at": now,
	})
	return s.payments.CompletePendingTx(ctx, ports.CompletePaymentTxParams{
		PaymentID:             payment.PaymentID,
		ProviderTransactionID: providerTxnID,
		CompletedAt:           now,
		Deltas:                deltas,
		Event:                 s.newOutboxEvent("payment.completed", payment.PaymentID.String(), payload),
	})
}

func (s *Service) failPendingPayment(ctx context.Context, payment domain.Payment, reason string) (domain.Payment, error) {
	now := s.nowFn()
	payload, _ := json.Marshal(map[string]any{
		"payment_id": payment.PaymentID,
		"payer_id":   payment.PayerID,
		"reason":     reason,
	})
	return s.payments.FailPendingTx(ctx, ports.FailPaymentTxParams{
		PaymentID: payment.PaymentID,
		Reason:    reason,
		FailedAt:  now,
		Event:     s.newOutboxEvent("payment.failed", payment.PaymentID.String(), payload),
	})
}

func (s *Service) markCallbackSeen(ctx context.Context, callbackID string) {
	if s.dedup == nil {
		return
	}
	_ = s.dedup.MarkSeen(ctx, callbackID, s.cfg.CallbackDedupTTL)
}

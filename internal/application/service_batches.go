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

// CreateBatch validates every member before any persistence and rejects the
// whole batch on the first invalid one.
func (s *Service) CreateBatch(ctx context.Context, actor ports.AuthClaims, req CreateBatchRequest) (domain.BatchPayment, error) {
	if !actor.Role.CanOperate() {
		return domain.BatchPayment{}, domain.ErrUnauthorized
	}
	if err := domain.ValidateCreateBatchInput(req.Name, len(req.Members)); err != nil {
		return domain.BatchPayment{}, err
	}
	switch req.Provider {
	case domain.ProviderMpesa, domain.ProviderCard:
	default:
		return domain.BatchPayment{}, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, req.Provider)
	}
	if err := s.validateMembers(ctx, req.Members); err != nil {
		return domain.BatchPayment{}, err
	}

	now := s.nowFn()
	batch := domain.BatchPayment{
		BatchID:   uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Status:    domain.BatchStatusPending,
		Provider:  req.Provider,
		CreatedBy: actor.Username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	members := s.buildMembers(batch, req.Members)
	if err := s.batches.CreateWithMembersTx(ctx, batch, members); err != nil {
		return domain.BatchPayment{}, err
	}
	return s.batches.GetByID(ctx, batch.BatchID)
}

// AppendBatchMembers adds members to a pending batch; the aggregate is
// recomputed in the same transaction as the inserts.
func (s *Service) AppendBatchMembers(ctx context.Context, actor ports.AuthClaims, batchID uuid.UUID, inputs []BatchMemberInput) (domain.BatchPayment, error) {
	if !actor.Role.CanOperate() {
		return domain.BatchPayment{}, domain.ErrUnauthorized
	}
	if len(inputs) == 0 {
		return domain.BatchPayment{}, fmt.Errorf("%w: no members to append", domain.ErrInvalidInput)
	}
	if err := s.validateMembers(ctx, inputs); err != nil {
		return domain.BatchPayment{}, err
	}
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return domain.BatchPayment{}, err
	}
	members := s.buildMembers(batch, inputs)
	return s.batches.AppendMembersTx(ctx, batchID, members, s.nowFn())
}

// ChargeBatch issues one external charge sized to the current aggregate. On
// acceptance the batch moves to deposited with the gateway reference stored.
func (s *Service) ChargeBatch(ctx context.Context, actor ports.AuthClaims, batchID uuid.UUID, req ChargeBatchRequest) (domain.BatchPayment, error) {
	if !actor.Role.CanOperate() {
		return domain.BatchPayment{}, domain.ErrUnauthorized
	}
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return domain.BatchPayment{}, err
	}
	if batch.Status != domain.BatchStatusPending {
		return domain.BatchPayment{}, fmt.Errorf("%w: batch is %s, expected pending", domain.ErrConflict, batch.Status)
	}
	if strings.TrimSpace(req.PhoneOrAccount) == "" {
		return domain.BatchPayment{}, fmt.Errorf("%w: phone or account is required", domain.ErrInvalidInput)
	}
	gateway, ok := s.gateways[batch.Provider]
	if !ok {
		return domain.BatchPayment{}, fmt.Errorf("%w: no gateway configured for %q", domain.ErrInvalidInput, batch.Provider)
	}

	resp, err := gateway.Charge(ctx, ports.ChargeRequest{
		Reference:      batch.BatchID.String(),
		Amount:         batch.Amount,
		PhoneOrAccount: strings.TrimSpace(req.PhoneOrAccount),
		Description:    req.Description,
		CallbackURL:    s.cfg.CallbackBaseURL + "/callbacks/" + string(batch.Provider),
	})
	if err != nil {
		return batch, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	if err := s.batches.MarkDeposited(ctx, batch.BatchID, resp.ProviderRequestID, s.nowFn()); err != nil {
		return domain.BatchPayment{}, err
	}
	return s.batches.GetByID(ctx, batch.BatchID)
}

// CompleteBatch drives every member through the completion pipeline. Member
// failures are collected, never propagated to siblings; the batch reaches
// completed only once every member is terminal.
func (s *Service) CompleteBatch(ctx context.Context, batchID uuid.UUID, providerTxnID string) (domain.BatchCompletionReport, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return domain.BatchCompletionReport{}, err
	}
	if batch.Status != domain.BatchStatusDeposited {
		return domain.BatchCompletionReport{}, fmt.Errorf("%w: batch is %s, expected deposited", domain.ErrConflict, batch.Status)
	}

	members, err := s.payments.ListByBatch(ctx, batchID)
	if err != nil {
		return domain.BatchCompletionReport{}, err
	}

	report := domain.BatchCompletionReport{BatchID: batchID}
	allTerminal := true
	for _, member := range members {
		if member.Terminal() {
			report.AlreadyTerminal++
			report.Members = append(report.Members, domain.BatchMemberResult{
				PaymentID: member.PaymentID,
				Status:    member.Status,
			})
			continue
		}

		completed, err := s.completePendingPayment(ctx, member, providerTxnID)
		if err != nil {
			// Partial failure is data: the member stays pending for a
			// later resolution pass and siblings continue.
			allTerminal = false
			report.Failed++
			report.Members = append(report.Members, domain.BatchMemberResult{
				PaymentID: member.PaymentID,
				Status:    member.Status,
				Error:     err.Error(),
			})
			continue
		}
		report.Completed++
		report.Members = append(report.Members, domain.BatchMemberResult{
			PaymentID: completed.PaymentID,
			Status:    completed.Status,
		})
	}

	if allTerminal {
		if err := s.batches.MarkCompleted(ctx, batchID, s.nowFn()); err != nil && !errors.Is(err, domain.ErrConflict) {
			return report, err
		}
		report.BatchCompleted = true

		payload, _ := json.Marshal(map[string]any{
			"batch_id":  batchID,
			"amount":    batch.Amount,
			"completed": report.Completed,
		})
		_ = s.outbox.Enqueue(ctx, s.newOutboxEvent("batch.completed", batchID.String(), payload))
	}
	return report, nil
}

// CancelBatch cancels a pending or deposited batch together with its
// still-pending members. Completed members are never reversed.
func (s *Service) CancelBatch(ctx context.Context, actor ports.AuthClaims, batchID uuid.UUID) (domain.BatchPayment, error) {
	if !actor.Role.CanOperate() {
		return domain.BatchPayment{}, domain.ErrUnauthorized
	}
	return s.batches.CancelTx(ctx, batchID, s.nowFn())
}

func (s *Service) GetBatch(ctx context.Context, batchID uuid.UUID) (domain.BatchPayment, []domain.Payment, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return domain.BatchPayment{}, nil, err
	}
	members, err := s.payments.ListByBatch(ctx, batchID)
	if err != nil {
		return domain.BatchPayment{}, nil, err
	}
	return batch, members, nil
}

// handleBatchCallback resolves a callback whose reference matches a batch
// rather than a single payment.
func (s *Service) handleBatchCallback(ctx context.Context, cb domain.GatewayCallback) (CallbackAck, error) {
	batch, err := s.batches.GetByProviderRef(ctx, cb.ProviderRequestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Nothing matches: acknowledge without side effects.
			return CallbackAck{Duplicate: true}, nil
		}
		return CallbackAck{}, err
	}

	if !cb.Success() {
		// The external charge failed; the batch stays deposited for an
		// operator decision (retry the charge or cancel).
		return CallbackAck{BatchID: &batch.BatchID}, nil
	}

	if _, err := s.CompleteBatch(ctx, batch.BatchID, cb.ReceiptNumber); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return CallbackAck{Duplicate: true, BatchID: &batch.BatchID}, nil
		}
		return CallbackAck{}, err
	}
	s.markCallbackSeen(ctx, cb.ProviderRequestID)
	return CallbackAck{BatchID: &batch.BatchID}, nil
}

func (s *Service) validateMembers(ctx context.Context, inputs []BatchMemberInput) error {
	for i, m := range inputs {
		if strings.TrimSpace(m.PayerID) == "" {
			return fmt.Errorf("member %d: %w: payer is required", i, domain.ErrInvalidInput)
		}
		if !m.Amount.IsPositive() {
			return fmt.Errorf("member %d: %w: amount must be positive", i, domain.ErrInvalidInput)
		}
		if m.Amount.Exponent() < -2 {
			return fmt.Errorf("member %d: %w: amount has more than two fractional digits", i, domain.ErrInvalidInput)
		}
		if !domain.ValidDesignation(m.Category) {
			return fmt.Errorf("member %d: %w: unknown designation %q", i, domain.ErrInvalidInput, m.Category)
		}
		if wallet, err := s.wallets.GetByCategory(ctx, m.Category, m.SubCategory); err == nil && !wallet.IsActive {
			return fmt.Errorf("member %d: %w: (%s, %s)", i, domain.ErrWalletInactive, m.Category, m.SubCategory)
		}
	}
	return nil
}

func (s *Service) buildMembers(batch domain.BatchPayment, inputs []BatchMemberInput) []domain.Payment {
	now := s.nowFn()
	members := make([]domain.Payment, 0, len(inputs))
	for _, m := range inputs {
		batchID := batch.BatchID
		members = append(members, domain.Payment{
			PaymentID:   uuid.New(),
			PayerID:     strings.TrimSpace(m.PayerID),
			Type:        domain.PaymentTypeContribution,
			Amount:      m.Amount,
			Category:    m.Category,
			SubCategory: m.SubCategory,
			Provider:    batch.Provider,
			Status:      domain.PaymentStatusPending,
			BatchID:     &batchID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return members
}

package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

// ImportBankFeed pulls the external feed for a range and persists unseen
// records as unlinked. Records whose bank transaction id already exists are
// skipped, so re-importing a range is a no-op.
func (s *Service) ImportBankFeed(ctx context.Context, from, to time.Time) (ImportFeedReport, error) {
	if !from.Before(to) {
		return ImportFeedReport{}, fmt.Errorf("%w: from must precede to", domain.ErrInvalidInput)
	}
	records, err := s.bankFeed.FetchTransactions(ctx, from, to)
	if err != nil {
		return ImportFeedReport{}, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}

	report := ImportFeedReport{Fetched: len(records)}
	now := s.nowFn()
	for _, rec := range records {
		if err := domain.ValidateFeedRecord(rec); err != nil {
			report.Invalid++
			continue
		}
		rec.SyncID = uuid.New()
		rec.Status = domain.SyncStatusUnlinked
		rec.ImportedAt = now
		rec.UpdatedAt = now
		created, err := s.syncs.CreateIfAbsent(ctx, rec)
		if err != nil {
			return report, err
		}
		if created {
			report.Imported++
		} else {
			report.Skipped++
		}
	}
	return report, nil
}

// AutoLink scans unlinked sync records and links each to the unique internal
// payment matching by amount and completion time within the window. Zero or
// multiple candidates leave the record unlinked; ambiguity is never resolved
// automatically. Candidate selection is read-only and happens outside the
// linking transaction.
func (s *Service) AutoLink(ctx context.Context) (AutoLinkReport, error) {
	report := AutoLinkReport{}
	offset := 0
	const pageSize = 200
	for {
		records, _, err := s.syncs.ListByStatus(ctx, domain.SyncStatusUnlinked, pageSize, offset)
		if err != nil {
			return report, err
		}
		if len(records) == 0 {
			return report, nil
		}
		// Every link removes a record from the unlinked set being paged, so
		// later records slide into earlier positions. Advance the offset only
		// past the records that stayed unlinked.
		stayed := 0
		for _, rec := range records {
			report.Examined++
			if rec.Direction != domain.DirectionCredit {
				report.NoMatch++
				stayed++
				continue
			}
			from := rec.TransactionDate.Add(-s.cfg.ReconciliationWindow)
			to := rec.TransactionDate.Add(s.cfg.ReconciliationWindow)
			payments, err := s.payments.ListCompletedUnlinked(ctx, rec.Amount, from, to)
			if err != nil {
				return report, err
			}
			candidates := domain.MatchCandidates(rec, payments, s.cfg.ReconciliationWindow)
			switch len(candidates) {
			case 0:
				report.NoMatch++
				stayed++
			case 1:
				if err := s.linkSync(ctx, rec, candidates[0]); err != nil {
					if errors.Is(err, domain.ErrConflict) {
						// Raced with a manual link; the record left the
						// unlinked set either way.
						continue
					}
					return report, err
				}
				report.Linked++
			default:
				report.Ambiguous++
				stayed++
			}
		}
		if len(records) < pageSize {
			return report, nil
		}
		offset += stayed
	}
}

// ManualLink commits an operator-chosen link after re-validating the amount.
func (s *Service) ManualLink(ctx context.Context, actor ports.AuthClaims, syncID, paymentID uuid.UUID) (domain.BankTransactionSync, error) {
	if !actor.Role.CanOperate() {
		return domain.BankTransactionSync{}, domain.ErrUnauthorized
	}
	rec, err := s.syncs.GetByID(ctx, syncID)
	if err != nil {
		return domain.BankTransactionSync{}, err
	}
	if rec.Status != domain.SyncStatusUnlinked {
		return domain.BankTransactionSync{}, fmt.Errorf("%w: sync record is %s", domain.ErrConflict, rec.Status)
	}
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return domain.BankTransactionSync{}, err
	}
	if payment.Status != domain.PaymentStatusCompleted {
		return domain.BankTransactionSync{}, fmt.Errorf("%w: payment is %s, expected completed", domain.ErrConflict, payment.Status)
	}
	if payment.SyncID != nil {
		return domain.BankTransactionSync{}, fmt.Errorf("%w: payment already linked", domain.ErrConflict)
	}
	if !domain.WithinTolerance(rec.Amount, payment.Amount, s.cfg.DistributionTolerance) {
		return domain.BankTransactionSync{}, fmt.Errorf("%w: bank amount %s, payment amount %s", domain.ErrReconciliationMismatch, rec.Amount, payment.Amount)
	}

	if err := s.linkSync(ctx, rec, payment); err != nil {
		return domain.BankTransactionSync{}, err
	}
	return s.syncs.GetByID(ctx, syncID)
}

// IgnoreSync is the terminal manual disposition for an unlinked record.
func (s *Service) IgnoreSync(ctx context.Context, actor ports.AuthClaims, syncID uuid.UUID, reason string) error {
	if !actor.Role.CanOperate() {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: ignore reason is required", domain.ErrInvalidInput)
	}
	return s.syncs.Ignore(ctx, syncID, strings.TrimSpace(reason), s.nowFn())
}

// UnlinkSync explicitly reopens a linked record, clearing the payment stamp.
func (s *Service) UnlinkSync(ctx context.Context, actor ports.AuthClaims, syncID uuid.UUID) error {
	if !actor.Role.CanOperate() {
		return domain.ErrUnauthorized
	}
	return s.syncs.Unlink(ctx, syncID, s.nowFn())
}

func (s *Service) ListSyncs(ctx context.Context, status domain.SyncStatus, limit, offset int) ([]domain.BankTransactionSync, int, error) {
	return s.syncs.ListByStatus(ctx, status, limit, offset)
}

func (s *Service) linkSync(ctx context.Context, rec domain.BankTransactionSync, payment domain.Payment) error {
	payload, _ := json.Marshal(map[string]any{
		"sync_id":             rec.SyncID,
		"bank_transaction_id": rec.BankTransactionID,
		"payment_id":          payment.PaymentID,
		"amount":              rec.Amount,
	})
	_, err := s.syncs.LinkTx(ctx, ports.LinkSyncTxParams{
		SyncID:    rec.SyncID,
		PaymentID: payment.PaymentID,
		LinkedAt:  s.nowFn(),
		Event:     s.newOutboxEvent("reconciliation.linked", rec.SyncID.String(), payload),
	})
	return err
}

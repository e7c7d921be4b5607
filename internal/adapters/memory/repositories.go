// Package memory provides in-memory repository implementations used by unit
// tests and local development. All repositories share one store guarded by a
// single mutex, so the compound transactional methods are atomic exactly like
// their Postgres counterparts.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type store struct {
	mu              sync.Mutex
	wallets         map[uuid.UUID]domain.Wallet
	walletOrder     []uuid.UUID
	ledger          []domain.LedgerEntry
	payments        map[uuid.UUID]domain.Payment
	paymentOrder    []uuid.UUID
	batches         map[uuid.UUID]domain.BatchPayment
	batchOrder      []uuid.UUID
	withdrawals     map[uuid.UUID]domain.WithdrawalRequest
	withdrawalOrder []uuid.UUID
	approvals       map[uuid.UUID][]domain.WithdrawalApproval
	approvers       map[uuid.UUID]domain.Approver
	syncs           map[uuid.UUID]domain.BankTransactionSync
	syncOrder       []uuid.UUID
	syncByTxnID     map[string]uuid.UUID
	outbox          []ports.OutboxRecord
	receiptSeq      int64
}

type Repositories struct {
	Wallets     *WalletRepository
	Payments    *PaymentRepository
	Batches     *BatchRepository
	Withdrawals *WithdrawalRepository
	Syncs       *SyncRepository
	Approvers   *ApproverRepository
	Outbox      *OutboxRepository
}

func NewRepositories() *Repositories {
	s := &store{
		wallets:     make(map[uuid.UUID]domain.Wallet),
		payments:    make(map[uuid.UUID]domain.Payment),
		batches:     make(map[uuid.UUID]domain.BatchPayment),
		withdrawals: make(map[uuid.UUID]domain.WithdrawalRequest),
		approvals:   make(map[uuid.UUID][]domain.WithdrawalApproval),
		approvers:   make(map[uuid.UUID]domain.Approver),
		syncs:       make(map[uuid.UUID]domain.BankTransactionSync),
		syncByTxnID: make(map[string]uuid.UUID),
	}
	return &Repositories{
		Wallets:     &WalletRepository{store: s},
		Payments:    &PaymentRepository{store: s},
		Batches:     &BatchRepository{store: s},
		Withdrawals: &WithdrawalRepository{store: s},
		Syncs:       &SyncRepository{store: s},
		Approvers:   &ApproverRepository{store: s},
		Outbox:      &OutboxRepository{store: s},
	}
}

// applyDeltas validates every delta before mutating anything, so a failing
// delta leaves the store untouched and the caller can treat it as a rolled
// back transaction.
func (s *store) applyDeltas(deltas []ports.LedgerDelta, at time.Time) error {
	for _, d := range deltas {
		w, ok := s.wallets[d.WalletID]
		if !ok {
			return fmt.Errorf("%w: wallet %s", domain.ErrNotFound, d.WalletID)
		}
		if !w.IsActive {
			return fmt.Errorf("%w: wallet %s", domain.ErrWalletInactive, d.WalletID)
		}
		if d.Direction == domain.DirectionDebit && w.Balance.LessThan(d.Amount) {
			return fmt.Errorf("%w: wallet %s", domain.ErrInsufficientFunds, d.WalletID)
		}
	}
	for _, d := range deltas {
		w := s.wallets[d.WalletID]
		switch d.Direction {
		case domain.DirectionCredit:
			w.Balance = w.Balance.Add(d.Amount)
			w.TotalDeposits = w.TotalDeposits.Add(d.Amount)
		case domain.DirectionDebit:
			w.Balance = w.Balance.Sub(d.Amount)
			w.TotalWithdrawals = w.TotalWithdrawals.Add(d.Amount)
		}
		w.UpdatedAt = at
		s.wallets[d.WalletID] = w
		s.ledger = append(s.ledger, domain.LedgerEntry{
			EntryID:   uuid.New(),
			WalletID:  d.WalletID,
			Amount:    d.Amount,
			Direction: d.Direction,
			CauseType: d.CauseType,
			CauseID:   d.CauseID,
			CreatedAt: at,
		})
	}
	return nil
}

func (s *store) enqueueOutbox(event ports.OutboxEvent) {
	s.outbox = append(s.outbox, ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      event.Payload,
		CreatedAt:    event.OccurredAt,
	})
}

type WalletRepository struct {
	store *store
}

func (r *WalletRepository) Create(_ context.Context, wallet domain.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, w := range r.store.wallets {
		if w.Category == wallet.Category && w.SubCategory == wallet.SubCategory {
			return fmt.Errorf("%w: wallet (%s, %s) already exists",
				domain.ErrConflict, wallet.Category, wallet.SubCategory)
		}
	}
	r.store.wallets[wallet.WalletID] = wallet
	r.store.walletOrder = append(r.store.walletOrder, wallet.WalletID)
	return nil
}

func (r *WalletRepository) GetByID(_ context.Context, walletID uuid.UUID) (domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[walletID]
	if !ok {
		return domain.Wallet{}, fmt.Errorf("%w: wallet %s", domain.ErrNotFound, walletID)
	}
	return w, nil
}

func (r *WalletRepository) GetByCategory(_ context.Context, category domain.Designation, subCategory string) (domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.walletOrder {
		w := r.store.wallets[id]
		if w.Category == category && w.SubCategory == subCategory {
			return w, nil
		}
	}
	return domain.Wallet{}, fmt.Errorf("%w: wallet (%s, %s)", domain.ErrNotFound, category, subCategory)
}

func (r *WalletRepository) List(_ context.Context, activeOnly bool) ([]domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.Wallet, 0, len(r.store.walletOrder))
	for _, id := range r.store.walletOrder {
		w := r.store.wallets[id]
		if activeOnly && !w.IsActive {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *WalletRepository) Deactivate(_ context.Context, walletID uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[walletID]
	if !ok || !w.IsActive {
		return fmt.Errorf("%w: wallet %s not found or already inactive", domain.ErrNotFound, walletID)
	}
	w.IsActive = false
	w.UpdatedAt = at
	r.store.wallets[walletID] = w
	return nil
}

// LedgerEntries exposes the recorded entries for test assertions.
func (r *WalletRepository) LedgerEntries() []domain.LedgerEntry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.LedgerEntry, len(r.store.ledger))
	copy(out, r.store.ledger)
	return out
}

type ApproverRepository struct {
	store *store
}

func (r *ApproverRepository) Create(_ context.Context, approver domain.Approver) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range r.store.approvers {
		if a.Username == approver.Username {
			return fmt.Errorf("%w: username %q already taken", domain.ErrConflict, approver.Username)
		}
	}
	r.store.approvers[approver.ApproverID] = approver
	return nil
}

func (r *ApproverRepository) GetByID(_ context.Context, approverID uuid.UUID) (domain.Approver, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.approvers[approverID]
	if !ok {
		return domain.Approver{}, fmt.Errorf("%w: approver %s", domain.ErrNotFound, approverID)
	}
	return a, nil
}

func (r *ApproverRepository) GetByUsername(_ context.Context, username string) (domain.Approver, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range r.store.approvers {
		if a.Username == username {
			return a, nil
		}
	}
	return domain.Approver{}, fmt.Errorf("%w: approver %q", domain.ErrNotFound, username)
}

type OutboxRepository struct {
	store *store
}

func (r *OutboxRepository) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.enqueueOutbox(event)
	return nil
}

func (r *OutboxRepository) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]ports.OutboxRecord, 0, limit)
	for _, rec := range r.store.outbox {
		if rec.PublishedAt != nil {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, outboxID uuid.UUID, _ string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.outbox {
		if r.store.outbox[i].OutboxID == outboxID {
			publishedAt := at
			r.store.outbox[i].PublishedAt = &publishedAt
			return nil
		}
	}
	return fmt.Errorf("%w: outbox %s", domain.ErrNotFound, outboxID)
}

func (r *OutboxRepository) MarkFailed(_ context.Context, outboxID uuid.UUID, _ string, _ string, _ time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.outbox {
		if r.store.outbox[i].OutboxID == outboxID {
			r.store.outbox[i].RetryCount++
			return nil
		}
	}
	return fmt.Errorf("%w: outbox %s", domain.ErrNotFound, outboxID)
}

func (r *OutboxRepository) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, _ string, _ string, _ time.Time) error {
	return r.MarkFailed(context.Background(), outboxID, "", "", time.Time{})
}

// Events returns all enqueued records, published or not, for assertions.
func (r *OutboxRepository) Events() []ports.OutboxRecord {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]ports.OutboxRecord, len(r.store.outbox))
	copy(out, r.store.outbox)
	return out
}

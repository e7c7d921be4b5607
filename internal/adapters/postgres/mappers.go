package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/viralforge/treasury/internal/domain"
)

func toDomainWallet(row walletModel) domain.Wallet {
	return domain.Wallet{
		WalletID:         row.WalletID,
		Category:         domain.Designation(row.Category),
		SubCategory:      row.SubCategory,
		Balance:          row.Balance,
		TotalDeposits:    row.TotalDeposits,
		TotalWithdrawals: row.TotalWithdrawals,
		IsActive:         row.IsActive,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func toDomainPayment(row paymentModel) (domain.Payment, error) {
	var distribution []domain.DistributionLine
	if row.Distribution != nil && *row.Distribution != "" {
		// A row whose distribution column no longer decodes must surface as
		// an error, not as a payment that silently lost its split.
		if err := json.Unmarshal([]byte(*row.Distribution), &distribution); err != nil {
			return domain.Payment{}, fmt.Errorf("payment %s: decode distribution: %w", row.PaymentID, err)
		}
	}
	return domain.Payment{
		PaymentID:             row.PaymentID,
		PayerID:               row.PayerID,
		Type:                  domain.PaymentType(row.Type),
		Amount:                row.Amount,
		Category:              domain.Designation(row.Category),
		SubCategory:           row.SubCategory,
		Distribution:          distribution,
		Provider:              domain.PaymentProvider(row.Provider),
		ProviderRef:           deref(row.ProviderRef),
		ProviderTransactionID: deref(row.ProviderTransactionID),
		ReceiptNumber:         deref(row.ReceiptNumber),
		Status:                domain.PaymentStatus(row.Status),
		FailureReason:         deref(row.FailureReason),
		BatchID:               row.BatchID,
		SyncID:                row.SyncID,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
		CompletedAt:           row.CompletedAt,
	}, nil
}

func toModelPayment(p domain.Payment) paymentModel {
	var distribution *string
	if len(p.Distribution) > 0 {
		raw, _ := json.Marshal(p.Distribution)
		s := string(raw)
		distribution = &s
	}
	return paymentModel{
		PaymentID:             p.PaymentID,
		PayerID:               p.PayerID,
		Type:                  string(p.Type),
		Amount:                p.Amount,
		Category:              string(p.Category),
		SubCategory:           p.SubCategory,
		Distribution:          distribution,
		Provider:              string(p.Provider),
		ProviderRef:           nullableString(p.ProviderRef),
		ProviderTransactionID: nullableString(p.ProviderTransactionID),
		ReceiptNumber:         nullableString(p.ReceiptNumber),
		Status:                string(p.Status),
		FailureReason:         nullableString(p.FailureReason),
		BatchID:               p.BatchID,
		SyncID:                p.SyncID,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
		CompletedAt:           p.CompletedAt,
	}
}

func toDomainBatch(row batchModel) domain.BatchPayment {
	return domain.BatchPayment{
		BatchID:     row.BatchID,
		Name:        row.Name,
		Amount:      row.Amount,
		MemberCount: row.MemberCount,
		Status:      domain.BatchStatus(row.Status),
		Provider:    domain.PaymentProvider(row.Provider),
		ProviderRef: deref(row.ProviderRef),
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func toDomainWithdrawal(row withdrawalModel) domain.WithdrawalRequest {
	return domain.WithdrawalRequest{
		RequestID:         row.RequestID,
		WalletID:          row.WalletID,
		Amount:            row.Amount,
		Purpose:           row.Purpose,
		Description:       row.Description,
		Method:            domain.WithdrawalMethod(row.Method),
		Destination:       row.Destination,
		RequiredApprovals: row.RequiredApprovals,
		ApprovalCount:     row.ApprovalCount,
		Status:            domain.WithdrawalStatus(row.Status),
		RejectionReason:   deref(row.RejectionReason),
		RequestedBy:       row.RequestedBy,
		PaymentID:         row.PaymentID,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
		ProcessedAt:       row.ProcessedAt,
	}
}

func toDomainApproval(row approvalModel) domain.WithdrawalApproval {
	return domain.WithdrawalApproval{
		ApprovalID: row.ApprovalID,
		RequestID:  row.RequestID,
		ApproverID: row.ApproverID,
		Comment:    row.Comment,
		ApprovedAt: row.ApprovedAt,
	}
}

func toDomainApprover(row approverModel) domain.Approver {
	return domain.Approver{
		ApproverID:         row.ApproverID,
		Username:           row.Username,
		FullName:           row.FullName,
		Role:               domain.Role(row.Role),
		PasswordHash:       row.PasswordHash,
		ApprovalSecretHash: deref(row.ApprovalSecretHash),
		IsActive:           row.IsActive,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toDomainSync(row syncModel) domain.BankTransactionSync {
	return domain.BankTransactionSync{
		SyncID:            row.SyncID,
		BankTransactionID: row.BankTransactionID,
		BankReference:     row.BankReference,
		Amount:            row.Amount,
		TransactionDate:   row.TransactionDate,
		Description:       row.Description,
		Direction:         domain.EntryDirection(row.Direction),
		Status:            domain.SyncStatus(row.Status),
		LinkedPaymentID:   row.LinkedPaymentID,
		IgnoreReason:      deref(row.IgnoreReason),
		ImportedAt:        row.ImportedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

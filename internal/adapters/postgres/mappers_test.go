package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/domain"
)

func TestPaymentMapperRoundTripsDistribution(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	p := domain.Payment{
		PaymentID: uuid.New(),
		PayerID:   "member-1",
		Type:      domain.PaymentTypeContribution,
		Amount:    decimal.RequireFromString("3000.00"),
		Category:  domain.DesignationTithe,
		Provider:  domain.ProviderMpesa,
		Status:    domain.PaymentStatusPending,
		Distribution: []domain.DistributionLine{
			{Designation: domain.DesignationTithe, Amount: decimal.RequireFromString("1000.00")},
			{Designation: domain.DesignationOffering, Amount: decimal.RequireFromString("2000.00")},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	back, err := toDomainPayment(toModelPayment(p))
	if err != nil {
		t.Fatalf("map back: %v", err)
	}
	if len(back.Distribution) != 2 {
		t.Fatalf("distribution lost: %+v", back.Distribution)
	}
	if back.Distribution[0].Designation != domain.DesignationTithe ||
		!back.Distribution[0].Amount.Equal(decimal.RequireFromString("1000.00")) {
		t.Fatalf("first line mangled: %+v", back.Distribution[0])
	}
}

func TestPaymentMapperRejectsCorruptDistribution(t *testing.T) {
	t.Parallel()

	row := toModelPayment(domain.Payment{
		PaymentID: uuid.New(),
		Type:      domain.PaymentTypeContribution,
		Amount:    decimal.NewFromInt(100),
		Category:  domain.DesignationTithe,
		Provider:  domain.ProviderMpesa,
		Status:    domain.PaymentStatusPending,
	})
	corrupt := `{"not":"a list"`
	row.Distribution = &corrupt

	if _, err := toDomainPayment(row); err == nil || !strings.Contains(err.Error(), "distribution") {
		t.Fatalf("expected a decode error naming the distribution column, got %v", err)
	}
}

package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateDistribution(t *testing.T) {
	t.Parallel()

	tolerance := decimal.New(1, -2)
	amount := decimal.NewFromInt(3000)

	lines := []DistributionLine{
		{Designation: DesignationTithe, Amount: decimal.NewFromInt(1000)},
		{Designation: DesignationOffering, Amount: decimal.NewFromInt(500)},
		{Designation: DesignationWelfare, Amount: decimal.NewFromInt(500)},
		{Designation: DesignationDevelopment, Amount: decimal.NewFromInt(700)},
		{Designation: DesignationMediaMinistry, Amount: decimal.NewFromInt(300)},
	}
	if err := ValidateDistribution(amount, lines, tolerance); err != nil {
		t.Fatalf("exact split rejected: %v", err)
	}

	// A one-cent drift stays within tolerance.
	drifted := append([]DistributionLine(nil), lines...)
	drifted[4].Amount = decimal.RequireFromString("300.01")
	if err := ValidateDistribution(amount, drifted, tolerance); err != nil {
		t.Fatalf("within-tolerance split rejected: %v", err)
	}

	drifted[4].Amount = decimal.RequireFromString("300.02")
	if err := ValidateDistribution(amount, drifted, tolerance); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for over-tolerance split, got %v", err)
	}

	bad := []DistributionLine{{Designation: "lunch_money", Amount: amount}}
	if err := ValidateDistribution(amount, bad, tolerance); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown designation, got %v", err)
	}

	negative := []DistributionLine{
		{Designation: DesignationTithe, Amount: decimal.NewFromInt(3500)},
		{Designation: DesignationOffering, Amount: decimal.NewFromInt(-500)},
	}
	if err := ValidateDistribution(amount, negative, tolerance); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative line, got %v", err)
	}

	if err := ValidateDistribution(amount, nil, tolerance); err != nil {
		t.Fatalf("empty distribution should pass: %v", err)
	}
}

func TestValidateCreatePaymentInput(t *testing.T) {
	t.Parallel()

	amount := decimal.RequireFromString("250.50")
	if err := ValidateCreatePaymentInput("member-7", ProviderMpesa, amount, DesignationTithe); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	cases := []struct {
		name     string
		payer    string
		provider PaymentProvider
		amount   decimal.Decimal
		category Designation
	}{
		{"missing payer", " ", ProviderMpesa, amount, DesignationTithe},
		{"zero amount", "member-7", ProviderMpesa, decimal.Zero, DesignationTithe},
		{"sub-cent amount", "member-7", ProviderMpesa, decimal.RequireFromString("10.005"), DesignationTithe},
		{"internal provider", "member-7", ProviderInternal, amount, DesignationTithe},
		{"unknown designation", "member-7", ProviderCard, amount, "parking"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateCreatePaymentInput(tc.payer, tc.provider, tc.amount, tc.category)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestPaymentTerminal(t *testing.T) {
	t.Parallel()

	for _, status := range []PaymentStatus{PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled} {
		if !(Payment{Status: status}).Terminal() {
			t.Fatalf("status %s should be terminal", status)
		}
	}
	if (Payment{Status: PaymentStatusPending}).Terminal() {
		t.Fatal("pending should not be terminal")
	}
}

package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/domain"
)

// ChargeRequest is an outbound charge against a payment gateway.
type ChargeRequest struct {
	Reference      string
	Amount         decimal.Decimal
	PhoneOrAccount string
	Description    string
	CallbackURL    string
}

type ChargeResponse struct {
	Reference         string
	ProviderRequestID string
	Message           string
}

// PaymentGateway initiates charges with a bounded timeout. A timeout or
// transport failure surfaces as domain.ErrGateway; the initiating payment
// stays pending and the call may be retried.
type PaymentGateway interface {
	Provider() domain.PaymentProvider
	Charge(ctx context.Context, req ChargeRequest) (ChargeResponse, error)
}

// PayoutRequest is an outbound disbursement for a processed withdrawal.
type PayoutRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Destination string
	Method      domain.WithdrawalMethod
	Description string
}

type PayoutResponse struct {
	Reference         string
	ProviderRequestID string
	Message           string
}

type PayoutGateway interface {
	Payout(ctx context.Context, req PayoutRequest) (PayoutResponse, error)
}

// BankFeed fetches the external bank transaction feed for a date range.
type BankFeed interface {
	FetchTransactions(ctx context.Context, from, to time.Time) ([]domain.BankTransactionSync, error)
}

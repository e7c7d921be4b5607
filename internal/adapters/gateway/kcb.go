package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/viralforge/treasury/internal/domain"
)

type KCBConfig struct {
	BaseURL       string
	APIKey        string
	AccountNumber string
	HTTPClient    *http.Client
}

// KCBFeed pulls account transactions from the bank's statement API for
// reconciliation. Records come back raw; validation and dedup happen in the
// import pipeline.
type KCBFeed struct {
	cfg        KCBConfig
	httpClient *http.Client
}

func NewKCBFeed(cfg KCBConfig) *KCBFeed {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &KCBFeed{cfg: cfg, httpClient: httpClient}
}

type kcbTransaction struct {
	TransactionID   string `json:"transactionId"`
	Reference       string `json:"transactionReference"`
	Amount          string `json:"amount"`
	TransactionDate string `json:"transactionDate"`
	Narration       string `json:"narration"`
	DebitCredit     string `json:"debitOrCredit"`
}

type kcbStatementResponse struct {
	Transactions []kcbTransaction `json:"transactions"`
}

func (f *KCBFeed) FetchTransactions(ctx context.Context, from, to time.Time) ([]domain.BankTransactionSync, error) {
	query := url.Values{}
	query.Set("fromDate", from.UTC().Format("2006-01-02"))
	query.Set("toDate", to.UTC().Format("2006-01-02"))

	endpoint := fmt.Sprintf("%s/accounts/%s/transactions?%s",
		f.cfg.BaseURL, url.PathEscape(f.cfg.AccountNumber), query.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)

	httpResp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("kcb statement: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kcb statement: status %d", httpResp.StatusCode)
	}

	var resp kcbStatementResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 8<<20)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("kcb statement decode: %w", err)
	}

	out := make([]domain.BankTransactionSync, 0, len(resp.Transactions))
	for _, t := range resp.Transactions {
		amount, err := decimal.NewFromString(t.Amount)
		if err != nil {
			// Leave the record invalid; the importer counts and skips it.
			amount = decimal.Zero
		}
		txnDate, err := time.Parse("2006-01-02T15:04:05Z07:00", t.TransactionDate)
		if err != nil {
			if d, dayErr := time.Parse("2006-01-02", t.TransactionDate); dayErr == nil {
				txnDate = d
			}
		}
		direction := domain.DirectionCredit
		if strings.EqualFold(t.DebitCredit, "D") || strings.EqualFold(t.DebitCredit, "debit") {
			direction = domain.DirectionDebit
		}
		out = append(out, domain.BankTransactionSync{
			BankTransactionID: t.TransactionID,
			BankReference:     t.Reference,
			Amount:            amount,
			TransactionDate:   txnDate.UTC(),
			Description:       t.Narration,
			Direction:         direction,
		})
	}
	return out, nil
}

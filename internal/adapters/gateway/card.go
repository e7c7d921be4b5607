package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type CardConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// CardGateway charges card accounts through the processor's REST API. The
// charge is asynchronous like the mobile one: acceptance here only means the
// processor took the request, settlement arrives on the callback.
type CardGateway struct {
	cfg        CardConfig
	httpClient *http.Client
}

func NewCardGateway(cfg CardConfig) *CardGateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CardGateway{cfg: cfg, httpClient: httpClient}
}

func (g *CardGateway) Provider() domain.PaymentProvider { return domain.ProviderCard }

type cardChargeRequest struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Account     string `json:"account"`
	Description string `json:"description,omitempty"`
	CallbackURL string `json:"callback_url"`
}

type cardChargeResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (g *CardGateway) Charge(ctx context.Context, req ports.ChargeRequest) (ports.ChargeResponse, error) {
	body := cardChargeRequest{
		Reference:   req.Reference,
		Amount:      req.Amount.StringFixed(2),
		Currency:    "KES",
		Account:     req.PhoneOrAccount,
		Description: req.Description,
		CallbackURL: req.CallbackURL,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return ports.ChargeResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/charges", bytes.NewReader(raw))
	if err != nil {
		return ports.ChargeResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return ports.ChargeResponse{}, fmt.Errorf("card charge: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return ports.ChargeResponse{}, fmt.Errorf("card charge: status %d", httpResp.StatusCode)
	}

	var resp cardChargeResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 1<<20)).Decode(&resp); err != nil {
		return ports.ChargeResponse{}, fmt.Errorf("card charge decode: %w", err)
	}
	if resp.ID == "" {
		return ports.ChargeResponse{}, fmt.Errorf("card charge: missing charge id")
	}
	return ports.ChargeResponse{
		Reference:         req.Reference,
		ProviderRequestID: resp.ID,
		Message:           resp.Message,
	}, nil
}

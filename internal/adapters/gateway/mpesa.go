// Package gateway contains outbound clients for the payment providers and
// the bank transaction feed. Every call is bounded by the injected HTTP
// client's timeout; transport failures surface to the application layer,
// which keeps the initiating record pending and retryable.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/viralforge/treasury/internal/domain"
	"github.com/viralforge/treasury/internal/ports"
)

type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	InitiatorName  string
	HTTPClient     *http.Client
}

// MpesaGateway drives STK push charges and B2C payouts against the Daraja
// API. The OAuth token is cached until shortly before expiry.
type MpesaGateway struct {
	cfg        MpesaConfig
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewMpesaGateway(cfg MpesaConfig) *MpesaGateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MpesaGateway{cfg: cfg, httpClient: httpClient}
}

func (g *MpesaGateway) Provider() domain.PaymentProvider { return domain.ProviderMpesa }

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

func (g *MpesaGateway) Charge(ctx context.Context, req ports.ChargeRequest) (ports.ChargeResponse, error) {
	token, err := g.accessTokenFor(ctx)
	if err != nil {
		return ports.ChargeResponse{}, err
	}

	now := time.Now().UTC()
	timestamp := now.Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(g.cfg.ShortCode + g.cfg.Passkey + timestamp))

	desc := req.Description
	if desc == "" {
		desc = req.Reference
	}
	body := stkPushRequest{
		BusinessShortCode: g.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount.StringFixed(0),
		PartyA:            req.PhoneOrAccount,
		PartyB:            g.cfg.ShortCode,
		PhoneNumber:       req.PhoneOrAccount,
		CallBackURL:       req.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   desc,
	}

	var resp stkPushResponse
	if err := g.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, body, &resp); err != nil {
		return ports.ChargeResponse{}, err
	}
	if resp.ResponseCode != "0" {
		return ports.ChargeResponse{}, fmt.Errorf("stk push rejected: code %s: %s", resp.ResponseCode, resp.ResponseDescription)
	}
	return ports.ChargeResponse{
		Reference:         req.Reference,
		ProviderRequestID: resp.CheckoutRequestID,
		Message:           resp.CustomerMessage,
	}, nil
}

type b2cRequest struct {
	InitiatorName   string `json:"InitiatorName"`
	CommandID       string `json:"CommandID"`
	Amount          string `json:"Amount"`
	PartyA          string `json:"PartyA"`
	PartyB          string `json:"PartyB"`
	Remarks         string `json:"Remarks"`
	Occasion        string `json:"Occasion"`
	OriginatorConID string `json:"OriginatorConversationID"`
}

type b2cResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

func (g *MpesaGateway) Payout(ctx context.Context, req ports.PayoutRequest) (ports.PayoutResponse, error) {
	token, err := g.accessTokenFor(ctx)
	if err != nil {
		return ports.PayoutResponse{}, err
	}

	body := b2cRequest{
		InitiatorName:   g.cfg.InitiatorName,
		CommandID:       "BusinessPayment",
		Amount:          req.Amount.StringFixed(0),
		PartyA:          g.cfg.ShortCode,
		PartyB:          req.Destination,
		Remarks:         req.Description,
		Occasion:        req.Reference,
		OriginatorConID: req.Reference,
	}

	var resp b2cResponse
	if err := g.postJSON(ctx, "/mpesa/b2c/v1/paymentrequest", token, body, &resp); err != nil {
		return ports.PayoutResponse{}, err
	}
	if resp.ResponseCode != "0" {
		return ports.PayoutResponse{}, fmt.Errorf("b2c rejected: code %s: %s", resp.ResponseCode, resp.ResponseDescription)
	}
	return ports.PayoutResponse{
		Reference:         req.Reference,
		ProviderRequestID: resp.ConversationID,
		Message:           resp.ResponseDescription,
	}, nil
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (g *MpesaGateway) accessTokenFor(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accessToken != "" && time.Now().UTC().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("mpesa oauth: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa oauth: status %d", httpResp.StatusCode)
	}

	var resp oauthResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 1<<20)).Decode(&resp); err != nil {
		return "", fmt.Errorf("mpesa oauth decode: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("mpesa oauth: empty access token")
	}

	// Tokens nominally last an hour; refresh a minute early.
	g.accessToken = resp.AccessToken
	g.tokenExpiry = time.Now().UTC().Add(59 * time.Minute)
	return g.accessToken, nil
}

func (g *MpesaGateway) postJSON(ctx context.Context, path, token string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("mpesa %s: %w", path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return fmt.Errorf("mpesa %s: status %d", path, httpResp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(httpResp.Body, 1<<20)).Decode(out)
}

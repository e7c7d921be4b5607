package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viralforge/treasury/internal/domain"
)

// gatewayCallback accepts completion callbacks from either provider,
// normalizes the provider-specific shape and hands it to the application
// layer. The response is always an acknowledgement; replays and unmatched
// callbacks must not make the gateway retry.
func (h *Handler) gatewayCallback(w http.ResponseWriter, r *http.Request) {
	provider := domain.PaymentProvider(chi.URLParam(r, "provider"))

	var (
		cb  domain.GatewayCallback
		err error
	)
	switch provider {
	case domain.ProviderMpesa:
		cb, err = decodeMpesaCallback(r)
	case domain.ProviderCard:
		cb, err = decodeCardCallback(r)
	default:
		writeValidationError(r.Context(), w, "gateway_callback", fmt.Errorf("unknown provider %q", provider))
		return
	}
	if err != nil {
		writeValidationError(r.Context(), w, "gateway_callback", err)
		return
	}

	ack, err := h.service.HandleGatewayCallback(r.Context(), cb)
	if err != nil {
		writeMappedError(r.Context(), w, "gateway_callback", err)
		return
	}
	writeSuccess(w, http.StatusOK, ack)
}

type mpesaCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func decodeMpesaCallback(r *http.Request) (domain.GatewayCallback, error) {
	var envelope mpesaCallbackEnvelope
	if err := decodeBody(r, &envelope); err != nil {
		return domain.GatewayCallback{}, err
	}
	stk := envelope.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		return domain.GatewayCallback{}, errors.New("callback missing CheckoutRequestID")
	}

	receipt := ""
	for _, item := range stk.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				receipt = s
			}
		}
	}
	return domain.GatewayCallback{
		ProviderRequestID: stk.CheckoutRequestID,
		CheckoutID:        stk.MerchantRequestID,
		ResultCode:        stk.ResultCode,
		ResultDescription: stk.ResultDesc,
		ReceiptNumber:     receipt,
	}, nil
}

type cardCallbackEnvelope struct {
	ID         string `json:"id"`
	Reference  string `json:"reference"`
	ResultCode int    `json:"result_code"`
	Message    string `json:"message"`
	Receipt    string `json:"receipt"`
}

func decodeCardCallback(r *http.Request) (domain.GatewayCallback, error) {
	var envelope cardCallbackEnvelope
	if err := decodeBody(r, &envelope); err != nil {
		return domain.GatewayCallback{}, err
	}
	if envelope.ID == "" {
		return domain.GatewayCallback{}, errors.New("callback missing charge id")
	}
	return domain.GatewayCallback{
		ProviderRequestID: envelope.ID,
		CheckoutID:        envelope.Reference,
		ResultCode:        envelope.ResultCode,
		ResultDescription: envelope.Message,
		ReceiptNumber:     envelope.Receipt,
	}, nil
}

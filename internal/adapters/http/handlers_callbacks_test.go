package http

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeMpesaCallback(t *testing.T) {
	t.Parallel()

	body := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1500.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
						{"Name": "PhoneNumber", "Value": 254708374149}
					]
				}
			}
		}
	}`
	req := httptest.NewRequest("POST", "/treasury/v1/callbacks/mpesa", strings.NewReader(body))

	cb, err := decodeMpesaCallback(req)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cb.ProviderRequestID != "ws_CO_191220191020363925" {
		t.Fatalf("provider request id: %q", cb.ProviderRequestID)
	}
	if cb.ReceiptNumber != "NLJ7RT61SV" {
		t.Fatalf("receipt number: %q", cb.ReceiptNumber)
	}
	if !cb.Success() {
		t.Fatal("result code 0 should be success")
	}
}

func TestDecodeMpesaCallbackFailureHasNoMetadata(t *testing.T) {
	t.Parallel()

	body := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-2",
				"CheckoutRequestID": "ws_CO_191220191020363926",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user."
			}
		}
	}`
	req := httptest.NewRequest("POST", "/treasury/v1/callbacks/mpesa", strings.NewReader(body))

	cb, err := decodeMpesaCallback(req)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cb.Success() {
		t.Fatal("result code 1032 should not be success")
	}
	if cb.ReceiptNumber != "" {
		t.Fatalf("failure callback should carry no receipt, got %q", cb.ReceiptNumber)
	}
}

func TestDecodeMpesaCallbackRejectsMissingCheckoutID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/treasury/v1/callbacks/mpesa",
		strings.NewReader(`{"Body":{"stkCallback":{"ResultCode":0}}}`))
	if _, err := decodeMpesaCallback(req); err == nil {
		t.Fatal("expected error for missing CheckoutRequestID")
	}
}

func TestDecodeCardCallback(t *testing.T) {
	t.Parallel()

	body := `{
		"id": "ch_9f2b1a",
		"reference": "0b84e1a2-55b2-41a0-9a55-111111111111",
		"result_code": 0,
		"message": "approved",
		"receipt": "AUTH-778812"
	}`
	req := httptest.NewRequest("POST", "/treasury/v1/callbacks/card", strings.NewReader(body))

	cb, err := decodeCardCallback(req)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cb.ProviderRequestID != "ch_9f2b1a" || cb.ReceiptNumber != "AUTH-778812" {
		t.Fatalf("unexpected callback: %+v", cb)
	}

	empty := httptest.NewRequest("POST", "/treasury/v1/callbacks/card", strings.NewReader(`{"result_code":0}`))
	if _, err := decodeCardCallback(empty); err == nil {
		t.Fatal("expected error for missing charge id")
	}
}

package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWriteCollectionEnvelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeCollection(rec, "payments", []string{"a", "b"}, 17)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Payments []string `json:"payments"`
			Total    int      `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "success" {
		t.Fatalf("status: %q", body.Status)
	}
	if len(body.Data.Payments) != 2 || body.Data.Total != 17 {
		t.Fatalf("unexpected collection body: %+v", body.Data)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeError(rec, 404, "NOT_FOUND", "wallet not found")

	var body apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "error" || body.Code != "NOT_FOUND" {
		t.Fatalf("unexpected error body: %+v", body)
	}
	if rec.Code != 404 {
		t.Fatalf("status code: %d", rec.Code)
	}
}

package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, http.StatusCreated, map[string]int{"credit": 10})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type: got %q", ct)
	}
	var body struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
		Error   *string        `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Data["credit"] != 10 || body.Error != nil {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestFail(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, http.StatusPaymentRequired, "NOT_ENOUGH_CREDITS")

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != false || body["error"] != "NOT_ENOUGH_CREDITS" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if _, ok := body["data"]; ok {
		t.Error("data should be omitted on failure")
	}
}

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lancerhub/backend/internal/config"
)

func TestHTTPGateway_GenerateQR(t *testing.T) {
	var got QRRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate-bcel-qr" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"qrCode":"QR","transactionId":"gw-1","link":"https://pay/1"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(config.GatewayConfig{BaseURL: srv.URL + "/", APIKey: "k", Timeout: time.Second})
	out, err := g.GenerateQR(context.Background(), QRRequest{Amount: 500, Description: "d", Tag1: "a", Tag2: "b", Tag3: "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.QRCode != "QR" || out.TransactionID != "gw-1" || out.Link != "https://pay/1" {
		t.Errorf("unexpected response: %+v", out)
	}
	if got.Amount != 500 || got.Tag1 != "a" || got.Tag3 != "c" {
		t.Errorf("unexpected request body: %+v", got)
	}
}

func TestHTTPGateway_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"invalid json", http.StatusOK, `not json`},
		{"missing transaction id", http.StatusOK, `{"qrCode":"QR"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			g := NewHTTPGateway(config.GatewayConfig{BaseURL: srv.URL})
			if _, err := g.GenerateQR(context.Background(), QRRequest{Amount: 1}); !errors.Is(err, ErrGateway) {
				t.Errorf("expected ErrGateway, got %v", err)
			}
		})
	}
}

func TestHTTPGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	g := NewHTTPGateway(config.GatewayConfig{BaseURL: url, Timeout: time.Second})
	if _, err := g.GenerateQR(context.Background(), QRRequest{Amount: 1}); !errors.Is(err, ErrGateway) {
		t.Errorf("expected ErrGateway, got %v", err)
	}
}

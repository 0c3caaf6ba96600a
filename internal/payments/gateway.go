package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lancerhub/backend/internal/config"
)

// ErrGateway is returned when the QR gateway fails or answers with an unusable body.
var ErrGateway = errors.New("payment gateway error")

type QRRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Tag1        string `json:"tag1"`
	Tag2        string `json:"tag2"`
	Tag3        string `json:"tag3"`
}

type QRResponse struct {
	QRCode        string `json:"qrCode"`
	TransactionID string `json:"transactionId"`
	Link          string `json:"link"`
}

type Gateway interface {
	GenerateQR(ctx context.Context, req QRRequest) (*QRResponse, error)
}

// HTTPGateway calls the gateway's generate-bcel-qr endpoint.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPGateway(cfg config.GatewayConfig) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) GenerateQR(ctx context.Context, in QRRequest) (*QRResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode qr request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate-bcel-qr", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build qr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out QRResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrGateway, err)
	}
	if out.TransactionID == "" || out.QRCode == "" {
		return nil, fmt.Errorf("%w: response missing transactionId or qrCode", ErrGateway)
	}
	return &out, nil
}

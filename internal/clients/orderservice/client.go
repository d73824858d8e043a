// Package orderservice is an HTTP client for a remote Order Service.
package orderservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"partsmarket/internal/domain"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateOrder posts payload to the Order Service. Every failure is reported
// as a *domain.OrderServiceError.
func (c *Client) CreateOrder(ctx context.Context, payload domain.OrderPayload) (*domain.OrderConfirmation, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.OrderServiceError{Kind: domain.OrderServiceValidation, Message: "encode order payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.OrderServiceError{Kind: domain.OrderServiceTransport, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", payload.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.OrderServiceError{Kind: domain.OrderServiceTransport, Message: "call order service", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var conf domain.OrderConfirmation
		if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
			return nil, &domain.OrderServiceError{Kind: domain.OrderServiceRemote, Status: resp.StatusCode, Message: "decode confirmation", Err: err}
		}
		if conf.OrderNumber == "" {
			return nil, &domain.OrderServiceError{Kind: domain.OrderServiceRemote, Status: resp.StatusCode, Message: "confirmation without order number"}
		}
		return &conf, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, &domain.OrderServiceError{Kind: domain.OrderServiceValidation, Status: resp.StatusCode, Message: readMessage(resp.Body)}
	default:
		return nil, &domain.OrderServiceError{Kind: domain.OrderServiceRemote, Status: resp.StatusCode, Message: readMessage(resp.Body)}
	}
}

// Ping checks that the Order Service answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("order service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("order service health status %d", resp.StatusCode)
	}
	return nil
}

func readMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "unreadable response body"
	}
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil {
		if er.Message != "" {
			return er.Message
		}
		if er.Error != "" {
			return er.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/magabrotheeeer/subscription-licensing/internal/config"
)

// Client клиент платежного шлюза.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient создаёт новый клиент шлюза с таймаутом из конфига.
func NewClient(cfg config.PaymentGateway) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.New("unexpected status: " + resp.Status)
	}
	return raw, nil
}

// CreateOrder отправляет запрос на создание заказа в шлюзе.
func (c *Client) CreateOrder(ctx context.Context, reqParams CreateOrderRequest) (*CreateOrderResponse, error) {
	const op = "paymentgateway.CreateOrder"
	req, err := c.newRequest(ctx, "/create-order", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var orderResp CreateOrderResponse
	if err := json.Unmarshal(raw, &orderResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	orderResp.Raw = raw
	return &orderResp, nil
}

// CheckOrderStatus запрашивает у шлюза состояние заказа по его номеру.
func (c *Client) CheckOrderStatus(ctx context.Context, orderID string) (*OrderStatusResponse, error) {
	const op = "paymentgateway.CheckOrderStatus"
	req, err := c.newRequest(ctx, "/check-order-status", map[string]string{"order_id": orderID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var statusResp OrderStatusResponse
	if err := json.Unmarshal(raw, &statusResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	statusResp.Raw = raw
	return &statusResp, nil
}

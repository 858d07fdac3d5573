package paymentgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/magabrotheeeer/subscription-licensing/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.PaymentGateway{
		BaseURL:  baseURL,
		APIToken: "test-token",
		Timeout:  2 * time.Second,
	})
}

func TestClient_CreateOrder(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantErr     bool
		wantPayURL  string
		wantOrderID string
	}{
		{
			name: "successful order creation",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/create-order", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

				var req CreateOrderRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, int64(600), req.Amount)
				assert.Equal(t, "INV-20250101-ABCD1234", req.OrderID)

				_ = json.NewEncoder(w).Encode(map[string]string{
					"payment_url": "https://pay.example.com/p/42",
					"order_id":    req.OrderID,
				})
			},
			wantErr:     false,
			wantPayURL:  "https://pay.example.com/p/42",
			wantOrderID: "INV-20250101-ABCD1234",
		},
		{
			name: "non-2xx response",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := newTestClient(srv.URL)
			resp, err := client.CreateOrder(context.Background(), CreateOrderRequest{
				Amount:      600,
				OrderID:     "INV-20250101-ABCD1234",
				RedirectURL: "https://app.example.com/payments/redirect",
			})

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, resp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPayURL, resp.PaymentURL)
			assert.Equal(t, tt.wantOrderID, resp.OrderID)
			assert.NotEmpty(t, resp.Raw)
		})
	}
}

func TestClient_CheckOrderStatus(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErr    bool
		wantStatus string
		wantTxnID  string
	}{
		{
			name: "completed transaction",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/check-order-status", r.URL.Path)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"txn_status": TxnCompleted,
					"txn_id":     "TXN-777",
					"amount":     600,
				})
			},
			wantStatus: TxnCompleted,
			wantTxnID:  "TXN-777",
		},
		{
			name: "pending transaction",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"txn_status": TxnPending,
				})
			},
			wantStatus: TxnPending,
		},
		{
			name: "transport failure",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := newTestClient(srv.URL)
			resp, err := client.CheckOrderStatus(context.Background(), "INV-1")

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, resp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.TxnStatus)
			assert.Equal(t, tt.wantTxnID, resp.TxnID)
		})
	}
}

// Package paymentgateway реализует тонкий клиент платежного шлюза:
// создание заказа и проверку его статуса. Клиент не повторяет запросы
// и не интерпретирует бизнес-смысл ответов — это задача вызывающего.
package paymentgateway

import "encoding/json"

// Статусы транзакции, которые возвращает шлюз в check-order-status.
const (
	TxnCompleted = "COMPLETED"
	TxnPending   = "PENDING"
)

// CreateOrderRequest параметры создания заказа.
type CreateOrderRequest struct {
	Amount         int64  `json:"amount"`
	CustomerMobile string `json:"customer_mobile"`
	OrderID        string `json:"order_id"`
	RedirectURL    string `json:"redirect_url"`
	Remarks        string `json:"remarks"`
}

// CreateOrderResponse ответ шлюза на создание заказа.
// Raw хранит исходное тело ответа для персистенции на счете.
type CreateOrderResponse struct {
	PaymentURL string          `json:"payment_url"`
	OrderID    string          `json:"order_id"`
	Raw        json.RawMessage `json:"-"`
}

// OrderStatusResponse ответ шлюза на проверку статуса заказа.
type OrderStatusResponse struct {
	TxnStatus string          `json:"txn_status"`
	TxnID     string          `json:"txn_id"`
	Amount    int64           `json:"amount"`
	Raw       json.RawMessage `json:"-"`
}

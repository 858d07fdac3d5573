// Package status реализует HTTP-обработчик запроса статуса счета по номеру.
// Ответ кешируется на короткий срок, чтобы переживать частый опрос
// платежной страницей.
package status

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-licensing/internal/http/response"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-licensing/internal/models"
)

// Service описывает интерфейс чтения счета.
type Service interface {
	Status(ctx context.Context, invoiceNumber string) (*models.Invoice, error)
}

// Cache кеширует статусы счетов.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// view публичное представление счета: сырой ответ шлюза наружу не отдается.
type view struct {
	InvoiceNumber string     `json:"invoice_number"`
	Purpose       string     `json:"purpose"`
	Amount        int64      `json:"amount"`
	Status        string     `json:"status"`
	PaymentURL    string     `json:"payment_url,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// Handler обрабатывает запросы статуса счета.
type Handler struct {
	log     *slog.Logger
	service Service
	cache   Cache
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, cache Cache) *Handler {
	return &Handler{
		log:     log,
		service: service,
		cache:   cache,
	}
}

// ServeHTTP godoc
// @Summary Статус счета
// @Description Возвращает статус счета по его номеру.
// @Tags Invoice
// @Produce  json
// @Param number path string true "Номер счета"
// @Success 200 {object} map[string]any "Данные счета"
// @Failure 404 {object} response.ErrorResponse "Счет не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /invoices/{number} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.invoice.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	number := chi.URLParam(r, "number")

	cacheKey := "invoice-status:" + number
	var cached view
	if found, err := h.cache.Get(cacheKey, &cached); err == nil && found {
		render.JSON(w, r, response.StatusOKWithData(map[string]any{"invoice": cached}))
		return
	}

	inv, err := h.service.Status(r.Context(), number)
	if err != nil {
		log.Error("failed to read invoice", sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("invoice not found"))
		return
	}

	v := view{
		InvoiceNumber: inv.InvoiceNumber,
		Purpose:       inv.Purpose,
		Amount:        inv.Amount,
		Status:        inv.Status,
		PaymentURL:    inv.PaymentURL,
		PaidAt:        inv.PaidAt,
	}
	if err := h.cache.Set(cacheKey, v, 30*time.Second); err != nil {
		log.Warn("failed to cache invoice status", sl.Err(err))
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{"invoice": v}))
}

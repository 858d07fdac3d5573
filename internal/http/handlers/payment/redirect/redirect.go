// Package redirect реализует HTTP-обработчик возврата со страницы оплаты.
//
// Шлюз возвращает покупателя по redirect-URL с номером счета в query-параметре.
// Параметрам редиректа не доверяем: обработчик запускает закрытие счета,
// которое само сверяется с платежным шлюзом.
package redirect

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-licensing/internal/http/response"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-licensing/internal/models"
	invoicesvc "github.com/magabrotheeeer/subscription-licensing/internal/services/invoice"
)

// Service описывает интерфейс закрытия счета.
type Service interface {
	Settle(ctx context.Context, invoiceNumber string) (*invoicesvc.SettlementResult, error)
}

// Handler обрабатывает возврат с платежной страницы.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Возврат со страницы оплаты
// @Description Принимает редирект платежного шлюза, сверяет статус платежа
// @Description с шлюзом и закрывает счет. Повторный вызов безопасен.
// @Tags Payment
// @Produce  json
// @Param invoice query string true "Номер счета"
// @Success 200 {object} map[string]any "Результат закрытия счета"
// @Failure 400 {object} response.ErrorResponse "Не передан номер счета"
// @Failure 404 {object} response.ErrorResponse "Счет не найден"
// @Failure 409 {object} response.ErrorResponse "Счет уже закрыт и оплате не подлежит"
// @Failure 502 {object} response.ErrorResponse "Платежный шлюз недоступен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /payments/redirect [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.redirect"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	invoiceNumber := r.URL.Query().Get("invoice")
	if invoiceNumber == "" {
		log.Error("missing invoice query parameter")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing invoice number"))
		return
	}

	res, err := h.service.Settle(r.Context(), invoiceNumber)
	switch {
	case errors.Is(err, models.ErrInvoiceNotFound):
		log.Info("invoice not found", slog.String("invoice_number", invoiceNumber))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("invoice not found"))
		return
	case errors.Is(err, models.ErrInvoiceNotPending):
		// Шлюз подтвердил оплату счета, который уже отменен или провален
		log.Warn("invoice is not payable", slog.String("invoice_number", invoiceNumber))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("invoice is not payable"))
		return
	case errors.Is(err, models.ErrPaymentProvider):
		log.Error("gateway unavailable during settlement", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment gateway unavailable, try again later"))
		return
	case err != nil:
		log.Error("settlement failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("settlement failed"))
		return
	}

	log.Info("settlement processed",
		slog.String("invoice_number", invoiceNumber), slog.String("state", res.State))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"invoice_number": res.InvoiceNumber,
		"state":          res.State,
	}))
}

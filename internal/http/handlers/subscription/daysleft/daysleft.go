// Package daysleft реализует HTTP-обработчик запроса остатка оплаченных дней.
// Идентификатор пользователя берется из JWT, положенного в контекст middleware.
package daysleft

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-licensing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-licensing/internal/http/response"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
)

// Service описывает интерфейс подписочного шлюза для остатка дней.
type Service interface {
	DaysLeft(ctx context.Context, userID int64) (int, error)
}

// Handler обрабатывает запросы остатка оплаченных дней.
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
// @Summary Остаток оплаченных дней
// @Description Возвращает число оставшихся оплаченных дней подписки:
// @Description 0 для истекшей, -1 для бессрочной.
// @Tags Subscription
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Остаток дней"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscription/days-left [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.daysleft"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := r.Context().Value(middlewarectx.UserID).(int64)
	if !ok {
		log.Error("user id missing in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	days, err := h.service.DaysLeft(r.Context(), userID)
	if err != nil {
		log.Error("failed to compute days left", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not compute days left"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"days_left": days,
	}))
}

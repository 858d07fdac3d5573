// Package login реализует HTTP-обработчик входа через подписочный шлюз.
//
// Вход возвращает JWT только при действующей подписке. Истекшая подписка
// или неактивированная заявка дают 402 Payment Required со свежей ссылкой
// на оплату.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-licensing/internal/http/response"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-licensing/internal/models"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/gate"
)

// Request — структура входных данных для входа.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Service описывает интерфейс подписочного шлюза для входа.
type Service interface {
	LoginOrInvoice(ctx context.Context, email, rawPassword string) (*gate.LoginResult, error)
}

// Handler обрабатывает HTTP-запросы входа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход владельца сайта
// @Description Аутентифицирует по email и паролю. При действующей подписке возвращает JWT,
// @Description при истекшей или неоплаченной — счет на оплату со статусом 402.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} map[string]any "Успешный вход"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 402 {object} map[string]any "Требуется оплата"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.LoginOrInvoice(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		log.Info("invalid credentials", slog.String("email", req.Email))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid credentials"))
		return
	case errors.Is(err, models.ErrPaymentProvider):
		log.Error("payment provider unavailable", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment provider unavailable, try again later"))
		return
	case err != nil:
		log.Error("login failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("login failed"))
		return
	}

	if res.PaymentRequired {
		log.Info("payment required", slog.String("email", req.Email),
			slog.String("invoice_number", res.InvoiceNumber))
		w.WriteHeader(http.StatusPaymentRequired)
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"payment_required": true,
			"invoice_number":   res.InvoiceNumber,
			"payment_url":      res.PaymentURL,
		}))
		return
	}

	log.Info("login success", slog.String("email", req.Email))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token": res.Token,
	}))
}

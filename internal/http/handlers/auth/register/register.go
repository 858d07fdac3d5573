// Package register реализует HTTP-обработчик регистрации владельца сайта.
//
// В нём определяется структура Request для входных данных, выполняется декодирование JSON,
// проверка и валидация полей, а также делегирование операции подписочному шлюзу.
// Регистрация не создает пользователя: создается заявка и выписывается счет,
// ссылка на оплату возвращается в ответе.
package register

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

// Request — структура входных данных для регистрации.
type Request struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=6"`
	Phone             string `json:"phone" validate:"required,min=10,max=15"`
	WebsiteURL        string `json:"website_url" validate:"required,url"`
	WebsiteName       string `json:"website_name" validate:"required,min=2,max=100"`
	WebsiteLicenseKey string `json:"website_license_key" validate:"required"`
}

// Service описывает интерфейс подписочного шлюза для регистрации.
type Service interface {
	RegisterApplicant(ctx context.Context, req gate.RegisterRequest) (*gate.RegistrationResult, error)
}

// Handler обрабатывает HTTP-запросы регистрации.
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
// @Summary Регистрация владельца сайта
// @Description Создает заявку на регистрацию и выписывает счет на оплату подписки.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные владельца и сайта"
// @Success 200 {object} map[string]any "Заявка создана, ожидается оплата"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или отозванная лицензия сайта"
// @Failure 409 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	res, err := h.service.RegisterApplicant(r.Context(), gate.RegisterRequest{
		Email:             req.Email,
		Password:          req.Password,
		Phone:             req.Phone,
		WebsiteURL:        req.WebsiteURL,
		WebsiteName:       req.WebsiteName,
		WebsiteLicenseKey: req.WebsiteLicenseKey,
	})
	switch {
	case errors.Is(err, models.ErrDuplicateOwner):
		log.Info("duplicate registration attempt", slog.String("email", req.Email))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("email already registered"))
		return
	case errors.Is(err, models.ErrWebsiteLicenseInvalid):
		log.Info("website license rejected", slog.String("website_url", req.WebsiteURL))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("website license is invalid"))
		return
	case errors.Is(err, models.ErrPaymentProvider):
		log.Error("payment provider unavailable", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment provider unavailable, try again later"))
		return
	case err != nil:
		log.Error("registration failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("registration failed"))
		return
	}

	log.Info("registration accepted", slog.String("email", req.Email),
		slog.String("invoice_number", res.InvoiceNumber))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"invoice_number": res.InvoiceNumber,
		"payment_url":    res.PaymentURL,
	}))
}

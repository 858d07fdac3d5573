// Package health реализует HTTP-обработчик проверки готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-licensing/internal/http/response"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
)

// Checker проверяет готовность хранилища.
type Checker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Handler обрабатывает запросы проверки готовности.
type Handler struct {
	log     *slog.Logger
	checker Checker
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, checker Checker) *Handler {
	return &Handler{
		log:     log,
		checker: checker,
	}
}

// ServeHTTP godoc
// @Summary Проверка готовности
// @Description Проверяет доступность базы данных и применённость миграций.
// @Tags Health
// @Produce  json
// @Success 200 {object} map[string]any "Сервис готов"
// @Failure 503 {object} response.ErrorResponse "Сервис не готов"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.CheckDatabaseReady(r.Context()); err != nil {
		h.log.Error("health check failed", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not ready"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"healthy": true}))
}

package licensing

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/subscription-licensing/internal/config"
	gateservice "github.com/magabrotheeeer/subscription-licensing/internal/services/gate"
	invoiceservice "github.com/magabrotheeeer/subscription-licensing/internal/services/invoice"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRegisterRoutes_RateLimitsAuthEndpoints(t *testing.T) {
	logger := newNoopLogger()
	gateService := gateservice.New(nil, nil, nil, nil, nil, nil, nil, config.Billing{}, logger)
	invoiceService := invoiceservice.New(nil, nil, nil, nil, "", 0, logger)

	r := chi.NewRouter()
	RegisterRoutes(r, logger, gateService, invoiceService, nil, nil, nil)

	// Шквал регистраций исчерпывает burst лимитера
	limited := false
	for range 100 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/register", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "register endpoint must be rate limited")

	// Возврат со страницы оплаты лимитом не затронут
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/redirect", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

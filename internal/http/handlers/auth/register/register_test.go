package register_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-licensing/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/subscription-licensing/internal/models"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/gate"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) RegisterApplicant(ctx context.Context, req gate.RegisterRequest) (*gate.RegistrationResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gate.RegistrationResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func validBody() string {
	return `{
		"email": "owner@example.com",
		"password": "secret123",
		"phone": "+79990001122",
		"website_url": "https://shop.example.com",
		"website_name": "Example Shop",
		"website_license_key": "WS-KEY-1234"
	}`
}

func TestHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMocks func(s *ServiceMock)
		wantStatus int
		checkBody  func(t *testing.T, body map[string]any)
	}{
		{
			name: "successful registration returns payment link",
			body: validBody(),
			setupMocks: func(s *ServiceMock) {
				s.On("RegisterApplicant", mock.Anything, mock.MatchedBy(func(req gate.RegisterRequest) bool {
					return req.Email == "owner@example.com" && req.WebsiteURL == "https://shop.example.com"
				})).Return(&gate.RegistrationResult{
					PendingUserID: 11,
					InvoiceNumber: "INV-1",
					PaymentURL:    "https://pay.example.com/1",
				}, nil).Once()
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]any) {
				data := body["data"].(map[string]any)
				assert.Equal(t, "INV-1", data["invoice_number"])
				assert.Equal(t, "https://pay.example.com/1", data["payment_url"])
			},
		},
		{
			name: "duplicate email",
			body: validBody(),
			setupMocks: func(s *ServiceMock) {
				s.On("RegisterApplicant", mock.Anything, mock.Anything).
					Return(nil, models.ErrDuplicateOwner).Once()
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "invalid website license",
			body: validBody(),
			setupMocks: func(s *ServiceMock) {
				s.On("RegisterApplicant", mock.Anything, mock.Anything).
					Return(nil, models.ErrWebsiteLicenseInvalid).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "payment provider down",
			body: validBody(),
			setupMocks: func(s *ServiceMock) {
				s.On("RegisterApplicant", mock.Anything, mock.Anything).
					Return(nil, models.ErrPaymentProvider).Once()
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "validation error",
			body:       `{"email":"owner@example.com"}`,
			setupMocks: func(_ *ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid json",
			body:       `not json`,
			setupMocks: func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMocks(svc)
			handler := register.New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/register", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.checkBody != nil {
				var body map[string]any
				assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				tt.checkBody(t, body)
			}
			svc.AssertExpectations(t)
		})
	}
}

package gate_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-licensing/internal/config"
	"github.com/magabrotheeeer/subscription-licensing/internal/licenseauthority"
	customjwt "github.com/magabrotheeeer/subscription-licensing/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/password"
	"github.com/magabrotheeeer/subscription-licensing/internal/models"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/gate"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/invoice"
)

type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) SetLicenseStatus(ctx context.Context, userID int64, status string) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

type PendingRepoMock struct {
	mock.Mock
}

func (m *PendingRepoMock) UpsertPendingUser(ctx context.Context, pu models.PendingUser) (int64, error) {
	args := m.Called(ctx, pu)
	return args.Get(0).(int64), args.Error(1)
}

func (m *PendingRepoMock) GetPendingUserByEmail(ctx context.Context, email string) (*models.PendingUser, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingUser), args.Error(1)
}

type WebsiteRepoMock struct {
	mock.Mock
}

func (m *WebsiteRepoMock) GetWebsiteByURL(ctx context.Context, url string) (*models.Website, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Website), args.Error(1)
}

func (m *WebsiteRepoMock) CreateWebsite(ctx context.Context, website models.Website) (int64, error) {
	args := m.Called(ctx, website)
	return args.Get(0).(int64), args.Error(1)
}

func (m *WebsiteRepoMock) UpdateWebsiteStatus(ctx context.Context, id int64, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type InvoiceCreatorMock struct {
	mock.Mock
}

func (m *InvoiceCreatorMock) Create(ctx context.Context, owner invoice.Owner, purpose string, amount int64, customerMobile string) (*models.Invoice, error) {
	args := m.Called(ctx, owner, purpose, amount, customerMobile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

type CheckerMock struct {
	mock.Mock
}

func (m *CheckerMock) CheckWebsiteLicense(ctx context.Context, key, siteURL, clientName string) (licenseauthority.WebsiteLicenseResult, error) {
	args := m.Called(ctx, key, siteURL, clientName)
	return args.Get(0).(licenseauthority.WebsiteLicenseResult), args.Error(1)
}

type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(email string, userID int64) (string, error) {
	args := m.Called(email, userID)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*customjwt.CustomClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.CustomClaims), args.Error(1)
}

type mocks struct {
	users    *UserRepoMock
	pending  *PendingRepoMock
	websites *WebsiteRepoMock
	invoices *InvoiceCreatorMock
	checker  *CheckerMock
	cache    *CacheMock
	jwt      *JwtMakerMock
}

func newMocks() *mocks {
	return &mocks{
		users:    new(UserRepoMock),
		pending:  new(PendingRepoMock),
		websites: new(WebsiteRepoMock),
		invoices: new(InvoiceCreatorMock),
		checker:  new(CheckerMock),
		cache:    new(CacheMock),
		jwt:      new(JwtMakerMock),
	}
}

func (m *mocks) service() *gate.Service {
	billing := config.Billing{InitialAmount: 600, RenewalAmount: 600, DurationDays: 30}
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	return gate.New(m.users, m.pending, m.websites, m.invoices, m.checker, m.cache, m.jwt, billing, log)
}

func (m *mocks) assertAll(t *testing.T) {
	m.users.AssertExpectations(t)
	m.pending.AssertExpectations(t)
	m.websites.AssertExpectations(t)
	m.invoices.AssertExpectations(t)
	m.checker.AssertExpectations(t)
	m.cache.AssertExpectations(t)
	m.jwt.AssertExpectations(t)
}

func TestService_RegisterApplicant(t *testing.T) {
	req := gate.RegisterRequest{
		Email:             "owner@example.com",
		Password:          "secret123",
		Phone:             "+79990001122",
		WebsiteURL:        "https://shop.example.com",
		WebsiteName:       "Example Shop",
		WebsiteLicenseKey: "WS-KEY-1234",
	}
	freshInvoice := &models.Invoice{InvoiceNumber: "INV-1", PaymentURL: "https://pay.example.com/1"}

	tests := []struct {
		name       string
		setupMocks func(m *mocks)
		wantErr    error
	}{
		{
			name: "new website approved, pending user and invoice created",
			setupMocks: func(m *mocks) {
				m.users.On("GetUserByEmail", mock.Anything, req.Email).Return(nil, nil).Once()
				m.websites.On("GetWebsiteByURL", mock.Anything, req.WebsiteURL).Return(nil, nil).Once()
				m.cache.On("Get", "website-license:"+req.WebsiteURL, mock.Anything).Return(false, nil).Once()
				m.checker.On("CheckWebsiteLicense", mock.Anything, req.WebsiteLicenseKey, req.WebsiteURL, req.WebsiteName).
					Return(licenseauthority.WebsiteLicenseResult{IsValid: true}, nil).Once()
				m.cache.On("Set", "website-license:"+req.WebsiteURL, mock.Anything, 10*time.Minute).Return(nil).Once()
				m.websites.On("CreateWebsite", mock.Anything, mock.MatchedBy(func(w models.Website) bool {
					return w.URL == req.WebsiteURL && w.Status == models.WebsiteApproved
				})).Return(int64(3), nil).Once()
				m.pending.On("UpsertPendingUser", mock.Anything, mock.MatchedBy(func(pu models.PendingUser) bool {
					return pu.Email == req.Email && pu.PasswordHash != "" && pu.WebsiteID != nil && *pu.WebsiteID == 3
				})).Return(int64(11), nil).Once()
				m.invoices.On("Create", mock.Anything, mock.MatchedBy(func(o invoice.Owner) bool {
					return o.PendingUserID != nil && *o.PendingUserID == 11 && o.UserID == nil
				}), models.PurposeInitial, int64(600), req.Phone).Return(freshInvoice, nil).Once()
			},
		},
		{
			name: "duplicate email rejected",
			setupMocks: func(m *mocks) {
				m.users.On("GetUserByEmail", mock.Anything, req.Email).
					Return(&models.User{ID: 1, Email: req.Email}, nil).Once()
			},
			wantErr: models.ErrDuplicateOwner,
		},
		{
			name: "invalid website license rejected",
			setupMocks: func(m *mocks) {
				m.users.On("GetUserByEmail", mock.Anything, req.Email).Return(nil, nil).Once()
				m.websites.On("GetWebsiteByURL", mock.Anything, req.WebsiteURL).Return(nil, nil).Once()
				m.cache.On("Get", "website-license:"+req.WebsiteURL, mock.Anything).Return(false, nil).Once()
				m.checker.On("CheckWebsiteLicense", mock.Anything, req.WebsiteLicenseKey, req.WebsiteURL, req.WebsiteName).
					Return(licenseauthority.WebsiteLicenseResult{IsValid: false, Message: "revoked"}, nil).Once()
				m.cache.On("Set", "website-license:"+req.WebsiteURL, mock.Anything, 10*time.Minute).Return(nil).Once()
			},
			wantErr: models.ErrWebsiteLicenseInvalid,
		},
		{
			name: "authority unavailable does not block registration",
			setupMocks: func(m *mocks) {
				m.users.On("GetUserByEmail", mock.Anything, req.Email).Return(nil, nil).Once()
				m.websites.On("GetWebsiteByURL", mock.Anything, req.WebsiteURL).Return(nil, nil).Once()
				m.cache.On("Get", "website-license:"+req.WebsiteURL, mock.Anything).Return(false, nil).Once()
				m.checker.On("CheckWebsiteLicense", mock.Anything, req.WebsiteLicenseKey, req.WebsiteURL, req.WebsiteName).
					Return(licenseauthority.WebsiteLicenseResult{IsValid: false}, licenseauthority.ErrUnavailable).Once()
				m.websites.On("CreateWebsite", mock.Anything, mock.MatchedBy(func(w models.Website) bool {
					return w.Status == models.WebsitePending
				})).Return(int64(4), nil).Once()
				m.pending.On("UpsertPendingUser", mock.Anything, mock.Anything).Return(int64(12), nil).Once()
				m.invoices.On("Create", mock.Anything, mock.Anything,
					models.PurposeInitial, int64(600), req.Phone).Return(freshInvoice, nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			tt.setupMocks(m)

			res, err := m.service().RegisterApplicant(context.Background(), req)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "INV-1", res.InvoiceNumber)
				assert.Equal(t, "https://pay.example.com/1", res.PaymentURL)
			}
			m.assertAll(t)
		})
	}
}

func TestService_LoginOrInvoice(t *testing.T) {
	rawPassword := "correctpassword"
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	future := time.Now().UTC().Add(10 * 24 * time.Hour)
	past := time.Now().UTC().Add(-24 * time.Hour)
	renewalInvoice := &models.Invoice{InvoiceNumber: "INV-R1", PaymentURL: "https://pay.example.com/r1"}

	activeUser := func() *models.User {
		return &models.User{ID: 7, Email: "owner@example.com", PasswordHash: hashed,
			Phone: "+79990001122", LicenseStatus: models.LicenseActive, SubscriptionUntil: &future}
	}

	tests := []struct {
		name        string
		password    string
		setupMocks  func(m *mocks)
		wantToken   string
		wantPayment bool
		wantErr     error
	}{
		{
			name:     "active user gets token",
			password: rawPassword,
			setupMocks: func(m *mocks) {
				m.users.On("GetUserByEmail", mock.Anything, "owner@example.com").Return(activeUser(), nil).Once()
				m.jwt.On("GenerateToken", "owner@example.com", int64(7)).Return("jwt-token", nil).Once()
			},
			wantToken: "jwt-token",
		},
		{
			name:     "wrong password",
			password: "wrongpassword",
			setupMocks: func(m *mocks) {
				m.users.On("GetUserByEmail", mock.Anything, "owner@example.com").Return(activeUser(), nil).Once()
			},
			wantErr: models.ErrInvalidCredentials,
		},
		{
			name:     "stale suspended status self-heals to active",
			password: rawPassword,
			setupMocks: func(m *mocks) {
				stale := activeUser()
				stale.LicenseStatus = models.LicenseSuspended
				m.users.On("GetUserByEmail", mock.Anything, "owner@example.com").Return(stale, nil).Once()
				m.users.On("SetLicenseStatus", mock.Anything, int64(7), models.LicenseActive).Return(nil).Once()
				m.jwt.On("GenerateToken", "owner@example.com", int64(7)).Return("jwt-token", nil).Once()
			},
			wantToken: "jwt-token",
		},
		{
			name:     "expired subscription gets renewal invoice instead of token",
			password: rawPassword,
			setupMocks: func(m *mocks) {
				expired := activeUser()
				expired.SubscriptionUntil = &past
				m.users.On("GetUserByEmail", mock.Anything, "owner@example.com").Return(expired, nil).Once()
				m.users.On("SetLicenseStatus", mock.Anything, int64(7), models.LicenseExpired).Return(nil).Once()
				m.invoices.On("Create", mock.Anything, mock.MatchedBy(func(o invoice.Owner) bool {
					return o.UserID != nil && *o.UserID == 7 && o.PendingUserID == nil
				}), models.PurposeRenewal, int64(600), "+79990001122").Return(renewalInvoice, nil).Once()
				// GenerateToken не ожидаем: токен не выдается
			},
			wantPayment: true,
		},
		{
			name:     "pending user gets fresh initial invoice",
			password: rawPassword,
			setupMocks: func(m *mocks) {
				m.users.On("GetUserByEmail", mock.Anything, "owner@example.com").Return(nil, nil).Once()
				m.pending.On("GetPendingUserByEmail", mock.Anything, "owner@example.com").
					Return(&models.PendingUser{ID: 11, Email: "owner@example.com",
						PasswordHash: hashed, Phone: "+79990001122"}, nil).Once()
				m.invoices.On("Create", mock.Anything, mock.MatchedBy(func(o invoice.Owner) bool {
					return o.PendingUserID != nil && *o.PendingUserID == 11
				}), models.PurposeInitial, int64(600), "+79990001122").Return(renewalInvoice, nil).Once()
			},
			wantPayment: true,
		},
		{
			name:     "unknown email",
			password: rawPassword,
			setupMocks: func(m *mocks) {
				m.users.On("GetUserByEmail", mock.Anything, "owner@example.com").Return(nil, nil).Once()
				m.pending.On("GetPendingUserByEmail", mock.Anything, "owner@example.com").Return(nil, nil).Once()
			},
			wantErr: models.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			tt.setupMocks(m)

			res, err := m.service().LoginOrInvoice(context.Background(), "owner@example.com", tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantToken, res.Token)
				assert.Equal(t, tt.wantPayment, res.PaymentRequired)
				if tt.wantPayment {
					assert.NotEmpty(t, res.InvoiceNumber)
					assert.NotEmpty(t, res.PaymentURL)
				}
			}
			m.assertAll(t)
		})
	}
}

func TestService_DaysLeft(t *testing.T) {
	future := time.Now().UTC().Add(10*24*time.Hour + time.Hour)
	past := time.Now().UTC().Add(-time.Hour)

	tests := []struct {
		name  string
		until *time.Time
		want  int
	}{
		{"ten full days plus partial counts as eleven", &future, 11},
		{"expired subscription", &past, 0},
		{"no end date", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			m.users.On("GetUser", mock.Anything, int64(7)).
				Return(&models.User{ID: 7, SubscriptionUntil: tt.until}, nil).Once()

			got, err := m.service().DaysLeft(context.Background(), 7)

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			m.assertAll(t)
		})
	}
}

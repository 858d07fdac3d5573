package activation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-licensing/internal/services/activation"
	"github.com/magabrotheeeer/subscription-licensing/internal/storage/repository"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) ActivateUser(ctx context.Context, params repository.ActivateParams) (*repository.ActivationRow, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ActivationRow), args.Error(1)
}

func (m *RepoMock) ExtendSubscription(ctx context.Context, userID int64, durationDays int, candidateKey string) (*repository.ActivationRow, error) {
	args := m.Called(ctx, userID, durationDays, candidateKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ActivationRow), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestService_Activate(t *testing.T) {
	until := time.Now().UTC().Add(30 * 24 * time.Hour)

	t.Run("successful promotion", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("ActivateUser", mock.Anything, mock.MatchedBy(func(p repository.ActivateParams) bool {
			// Ключ выпускается сервисом до транзакции и непустой
			return p.PendingUserID == 11 && p.InvoiceID == 42 &&
				p.DurationDays == 30 && len(p.LicenseKey) == 39
		})).Return(&repository.ActivationRow{
			UserID:            7,
			LicenseKey:        "AAAA-BBBB-CCCC-DDDD-EEEE-FFFF-GGGG-HHHH",
			SubscriptionUntil: until,
		}, nil).Once()

		svc := activation.New(repo, newNoopLogger())
		res, err := svc.Activate(context.Background(), 11, 42, 30)

		assert.NoError(t, err)
		assert.Equal(t, int64(7), res.UserID)
		assert.NotEmpty(t, res.LicenseKey)
		assert.Equal(t, until, res.SubscriptionUntil)
		repo.AssertExpectations(t)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("ActivateUser", mock.Anything, mock.Anything).
			Return(nil, errors.New("pending user not found")).Once()

		svc := activation.New(repo, newNoopLogger())
		_, err := svc.Activate(context.Background(), 11, 42, 30)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "pending user not found")
		repo.AssertExpectations(t)
	})
}

func TestService_Extend(t *testing.T) {
	until := time.Now().UTC().Add(60 * 24 * time.Hour)

	repo := new(RepoMock)
	repo.On("ExtendSubscription", mock.Anything, int64(7), 30, mock.MatchedBy(func(key string) bool {
		return len(key) == 39
	})).Return(&repository.ActivationRow{
		UserID:            7,
		LicenseKey:        "AAAA-BBBB-CCCC-DDDD-EEEE-FFFF-GGGG-HHHH",
		SubscriptionUntil: until,
	}, nil).Once()

	svc := activation.New(repo, newNoopLogger())
	res, err := svc.Extend(context.Background(), 7, 30)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), res.UserID)
	assert.Equal(t, until, res.SubscriptionUntil)
	repo.AssertExpectations(t)
}

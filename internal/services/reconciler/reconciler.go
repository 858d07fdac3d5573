package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/magabrotheeeer/subscription-licensing/internal/licenseauthority"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-licensing/internal/models"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/notifier"
	"github.com/magabrotheeeer/subscription-licensing/internal/storage/repository"
)

// ReconcilerRepository описывает выборки и записи хранилища для сверки.
type ReconcilerRepository interface {
	// ListUsersForLicenseCheck возвращает пользователей со значимыми статусами.
	ListUsersForLicenseCheck(ctx context.Context) ([]*repository.UserLicenseRow, error)
	// SetLicenseStatus выставляет пользователю новый статус.
	SetLicenseStatus(ctx context.Context, userID int64, status string) error
	// ListWebsitesForLicenseCheck возвращает сайты, подлежащие сверке:
	// approved, suspended и pending, ожидающие отложенного вердикта.
	ListWebsitesForLicenseCheck(ctx context.Context) ([]*models.Website, error)
	// UpdateWebsiteStatus выставляет сайту новый статус.
	UpdateWebsiteStatus(ctx context.Context, id int64, status string) error
}

// Authority описывает клиент центров лицензирования.
type Authority interface {
	CheckUserLicense(ctx context.Context, key, domain, fallbackIP string) (licenseauthority.UserLicenseResult, error)
	CheckWebsiteLicense(ctx context.Context, key, siteURL, clientName string) (licenseauthority.WebsiteLicenseResult, error)
}

// Notifier сообщает о приостановках лицензий.
type Notifier interface {
	LicenseSuspended(event notifier.LicenseSuspendedEvent)
}

var (
	sweepChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_sweep_checked_total",
		Help: "Number of license checks performed by the reconciliation sweep.",
	}, []string{"kind"})
	sweepUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_sweep_updated_total",
		Help: "Number of local status corrections written by the sweep.",
	}, []string{"kind"})
	sweepSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_sweep_skipped_total",
		Help: "Number of rows skipped because the authority was unavailable.",
	}, []string{"kind"})
)

// Sweeper периодически перепроверяет все аккаунты и сайты у внешних
// центров и исправляет дрейф локальных статусов. Проверки независимы:
// сбой одной строки не прерывает проход, сам проход никогда не паникует
// и не возвращает ошибок наружу.
type Sweeper struct {
	repo      ReconcilerRepository
	authority Authority
	notifier  Notifier
	interval  time.Duration
	log       *slog.Logger
}

// NewSweeper создает новый экземпляр Sweeper.
func NewSweeper(repo ReconcilerRepository, authority Authority, notif Notifier,
	interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		authority: authority,
		notifier:  notif,
		interval:  interval,
		log:       log,
	}
}

// Run запускает цикл сверки до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) {
	s.runSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("license sweep stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Sweeper) runSweep(ctx context.Context) {
	s.log.Info("starting license reconciliation sweep")
	s.sweepUsers(ctx)
	s.sweepWebsites(ctx)
	s.log.Info("license reconciliation sweep finished")
}

func (s *Sweeper) sweepUsers(ctx context.Context) {
	rows, err := s.repo.ListUsersForLicenseCheck(ctx)
	if err != nil {
		s.log.Error("failed to list users for license check", sl.Err(err))
		return
	}
	for _, row := range rows {
		s.checkUser(ctx, row)
	}
}

func (s *Sweeper) checkUser(ctx context.Context, row *repository.UserLicenseRow) {
	sweepChecked.WithLabelValues("user").Inc()

	res, err := s.authority.CheckUserLicense(ctx, row.LicenseKey, hostOf(row.WebsiteURL), "")
	if errors.Is(err, licenseauthority.ErrUnavailable) {
		// Центр недоступен: информации нет, строку не трогаем
		sweepSkipped.WithLabelValues("user").Inc()
		s.log.Warn("authority unavailable, user skipped", slog.Int64("user_id", row.UserID))
		return
	}
	if err != nil {
		sweepSkipped.WithLabelValues("user").Inc()
		s.log.Error("user license check failed", slog.Int64("user_id", row.UserID), sl.Err(err))
		return
	}

	newStatus := ReconcileUserStatus(row.LicenseStatus, res.Status)
	if newStatus == row.LicenseStatus {
		return
	}
	if err := s.repo.SetLicenseStatus(ctx, row.UserID, newStatus); err != nil {
		s.log.Error("failed to update user license status",
			slog.Int64("user_id", row.UserID), sl.Err(err))
		return
	}
	sweepUpdated.WithLabelValues("user").Inc()
	s.log.Info("user license status corrected",
		slog.Int64("user_id", row.UserID),
		slog.String("old", row.LicenseStatus), slog.String("new", newStatus))

	if newStatus == models.LicenseSuspended {
		s.notifier.LicenseSuspended(notifier.LicenseSuspendedEvent{
			UserID:    row.UserID,
			OldStatus: row.LicenseStatus,
		})
	}
}

func (s *Sweeper) sweepWebsites(ctx context.Context) {
	websites, err := s.repo.ListWebsitesForLicenseCheck(ctx)
	if err != nil {
		s.log.Error("failed to list websites for license check", sl.Err(err))
		return
	}
	for _, w := range websites {
		s.checkWebsite(ctx, w)
	}
}

func (s *Sweeper) checkWebsite(ctx context.Context, w *models.Website) {
	sweepChecked.WithLabelValues("website").Inc()

	res, err := s.authority.CheckWebsiteLicense(ctx, w.LicenseKey, w.URL, w.Name)
	if err != nil {
		sweepSkipped.WithLabelValues("website").Inc()
		s.log.Warn("authority unavailable, website skipped", slog.Int64("website_id", w.ID))
		return
	}

	newStatus := ReconcileWebsiteStatus(res.IsValid)
	if newStatus == w.Status {
		return
	}
	if err := s.repo.UpdateWebsiteStatus(ctx, w.ID, newStatus); err != nil {
		s.log.Error("failed to update website status",
			slog.Int64("website_id", w.ID), sl.Err(err))
		return
	}
	sweepUpdated.WithLabelValues("website").Inc()
	s.log.Info("website status corrected",
		slog.Int64("website_id", w.ID),
		slog.String("old", w.Status), slog.String("new", newStatus))
}

// hostOf вычленяет хост из URL сайта для запроса к центру.
func hostOf(siteURL string) string {
	s := siteURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return s
}

package licenseauthority

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-licensing/internal/config"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/licensekey"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-licensing/internal/models"
)

// Client клиент двух центров проверки лицензий.
type Client struct {
	userCheckURL    string
	websiteCheckURL string
	apiKey          string
	productID       string
	sharedSecret    string
	resolverTimeout time.Duration
	httpClient      *http.Client
	resolver        *net.Resolver
	log             *slog.Logger
}

// NewClient создает клиент центров лицензирования с таймаутами из конфига.
func NewClient(cfg config.LicenseAuthority, log *slog.Logger) *Client {
	return &Client{
		userCheckURL:    cfg.UserCheckURL,
		websiteCheckURL: cfg.WebsiteCheckURL,
		apiKey:          cfg.APIKey,
		productID:       cfg.ProductID,
		sharedSecret:    cfg.SharedSecret,
		resolverTimeout: cfg.ResolverTimeout,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		resolver:        net.DefaultResolver,
		log:             log,
	}
}

// ResolveIP разрешает домен в IP-адрес. Ошибка резолвера не фатальна:
// возвращается запасной адрес вызывающего либо пустая строка.
func (c *Client) ResolveIP(ctx context.Context, domain, fallbackIP string) string {
	if domain == "" {
		return fallbackIP
	}
	ctx, cancel := context.WithTimeout(ctx, c.resolverTimeout)
	defer cancel()

	addrs, err := c.resolver.LookupHost(ctx, domain)
	if err != nil || len(addrs) == 0 {
		c.log.Warn("domain resolution failed, using fallback ip",
			slog.String("domain", domain), slog.String("fallback_ip", fallbackIP))
		return fallbackIP
	}
	return addrs[0]
}

// CheckUserLicense проверяет пользовательский лицензионный ключ.
// В запрос включается метка времени и контрольная сумма от общего секрета,
// контрольная сумма ответа сверяется: отсутствие или несовпадение приводит
// статус к invalid независимо от номинального значения. Любая сетевая
// ошибка деградирует результат к inactive и возвращает ErrUnavailable.
func (c *Client) CheckUserLicense(ctx context.Context, key, domain, fallbackIP string) (UserLicenseResult, error) {
	const op = "licenseauthority.CheckUserLicense"
	log := c.log.With(slog.String("op", op), slog.String("license_key", licensekey.Mask(key)))

	ip := c.ResolveIP(ctx, domain, fallbackIP)
	ts := time.Now().Unix()
	reqBody := userCheckRequest{
		LicenseKey: key,
		IP:         ip,
		Domain:     domain,
		Timestamp:  ts,
		Checksum:   checksum(key, strconv.FormatInt(ts, 10), c.sharedSecret),
	}

	var respBody userCheckResponse
	if err := c.post(ctx, c.userCheckURL, reqBody, &respBody); err != nil {
		log.Warn("user license check degraded to inactive", sl.Err(err))
		return UserLicenseResult{Status: models.LicenseInactive, Details: "authority unreachable"},
			fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	if respBody.Checksum == "" || respBody.Checksum != checksum(respBody.Status, strconv.FormatInt(ts, 10), c.sharedSecret) {
		log.Warn("response checksum missing or mismatched, forcing invalid",
			slog.String("nominal_status", respBody.Status))
		return UserLicenseResult{Status: models.LicenseInvalid, Details: "checksum mismatch"}, nil
	}

	log.Info("user license checked", slog.String("status", respBody.Status))
	return UserLicenseResult{Status: normalizeStatus(respBody.Status), Details: respBody.Details}, nil
}

// CheckWebsiteLicense проверяет лицензию сайта. Любая ошибка транспорта
// деградирует результат к isValid=false и возвращает ErrUnavailable.
func (c *Client) CheckWebsiteLicense(ctx context.Context, key, siteURL, clientName string) (WebsiteLicenseResult, error) {
	const op = "licenseauthority.CheckWebsiteLicense"
	log := c.log.With(slog.String("op", op),
		slog.String("license_key", licensekey.Mask(key)), slog.String("site_url", siteURL))

	ip := c.ResolveIP(ctx, hostOf(siteURL), "")
	reqBody := websiteCheckRequest{
		APIKey:      c.apiKey,
		ProductID:   c.productID,
		SiteURL:     siteURL,
		SiteIP:      ip,
		LicenseCode: key,
		ClientName:  clientName,
	}

	var respBody websiteCheckResponse
	if err := c.post(ctx, c.websiteCheckURL, reqBody, &respBody); err != nil {
		log.Warn("website license check degraded to invalid", sl.Err(err))
		return WebsiteLicenseResult{IsValid: false, Message: "authority unreachable"},
			fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	log.Info("website license checked", slog.Bool("valid", respBody.Valid))
	return WebsiteLicenseResult{IsValid: respBody.Valid, Message: respBody.Message}, nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// normalizeStatus приводит номинальный статус центра к известному набору.
// Неизвестные значения трактуются как invalid.
func normalizeStatus(status string) string {
	switch status {
	case models.LicenseActive, models.LicenseSuspended, models.LicenseExpired,
		models.LicenseInvalid, models.LicenseInactive, models.LicenseReissued:
		return status
	default:
		return models.LicenseInvalid
	}
}

// checksum считает sha256 от конкатенации полей с общим секретом.
func checksum(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte("|"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// hostOf вычленяет хост из URL сайта: обрезает схему и путь.
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

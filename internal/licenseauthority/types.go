// Package licenseauthority реализует клиент двух внешних центров проверки
// лицензий: по ключу пользователя и по лицензии сайта. Клиент нормализует
// разнородные ответы в фиксированный набор статусов и никогда не выпускает
// наружу сетевые ошибки — результат деградирует к консервативному статусу,
// а факт недоступности сообщается sentinel-ошибкой ErrUnavailable.
package licenseauthority

import "errors"

// ErrUnavailable сигнализирует, что центр лицензирования недоступен
// и возвращенный статус — деградация, а не ответ центра. Вызывающие,
// которым нужен ответ прямо сейчас, используют статус; фоновая сверка
// трактует ошибку как отсутствие информации и пропускает запись.
var ErrUnavailable = errors.New("license authority unavailable")

// UserLicenseResult нормализованный результат проверки ключа пользователя.
type UserLicenseResult struct {
	Status  string // active | suspended | expired | invalid | inactive
	Details string
}

// WebsiteLicenseResult результат проверки лицензии сайта.
type WebsiteLicenseResult struct {
	IsValid bool
	Message string
}

// userCheckRequest тело запроса к центру проверки пользовательских ключей.
type userCheckRequest struct {
	LicenseKey string `json:"license_key"`
	IP         string `json:"ip"`
	Domain     string `json:"domain"`
	Timestamp  int64  `json:"timestamp"`
	Checksum   string `json:"checksum"`
}

// userCheckResponse слаботипизированный ответ центра.
type userCheckResponse struct {
	Status   string `json:"status"`
	Details  string `json:"details"`
	Checksum string `json:"checksum"`
}

// websiteCheckRequest тело запроса к центру лицензий сайтов.
type websiteCheckRequest struct {
	APIKey      string `json:"api_key"`
	ProductID   string `json:"product_id"`
	SiteURL     string `json:"site_url"`
	SiteIP      string `json:"site_ip"`
	LicenseCode string `json:"license_code"`
	ClientName  string `json:"client_name"`
}

// websiteCheckResponse ответ центра лицензий сайтов.
type websiteCheckResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

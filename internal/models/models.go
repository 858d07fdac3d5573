// Package models содержит доменные структуры ядра: сайты, пользователи,
// счета, платежи и журнал лицензионных действий, а также наборы статусов,
// с которыми работают сервисы и хранилище.
package models

import "time"

// Статусы лицензии пользователя. Значение приходит как от внешнего
// центра лицензирования, так и выставляется локально при истечении подписки.
const (
	LicenseActive    = "active"
	LicenseInactive  = "inactive"
	LicenseSuspended = "suspended"
	LicenseExpired   = "expired"
	LicenseReissued  = "reissued"
	LicenseInvalid   = "invalid"
)

// Статусы сайта.
const (
	WebsitePending   = "pending"
	WebsiteApproved  = "approved"
	WebsiteRejected  = "rejected"
	WebsiteSuspended = "suspended"
)

// Статусы счета.
const (
	InvoicePending   = "pending"
	InvoicePaid      = "paid"
	InvoiceFailed    = "failed"
	InvoiceCancelled = "cancelled"
)

// Назначение счета.
const (
	PurposeInitial = "initial"
	PurposeRenewal = "renewal"
)

// Действия в журнале лицензий.
const (
	HistoryCreated   = "created"
	HistoryRenewed   = "renewed"
	HistorySuspended = "suspended"
)

// Website представляет зарегистрированный клиентский сайт.
// Запись никогда не удаляется физически, статус меняют регистрация
// и фоновая сверка лицензий.
type Website struct {
	ID         int64
	URL        string
	Name       string
	Status     string
	LicenseKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PendingUser — предварительная заявка на регистрацию. На один email
// существует не более одной записи: повторная регистрация перезаписывает
// предыдущую. Запись удаляется в момент активации пользователя.
type PendingUser struct {
	ID           int64
	Email        string
	PasswordHash string
	Phone        string
	WebsiteID    *int64 // Обязателен при записи; nil возможен только в старых данных
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User — активированный подписчик. LicenseStatus и SubscriptionUntil
// меняются независимо: статус правит сверка и проверка на логине,
// дату — только успешная оплата.
type User struct {
	ID                int64
	Email             string
	PasswordHash      string
	Phone             string
	WebsiteID         *int64
	LicenseKey        string
	LicenseStatus     string
	SubscriptionUntil *time.Time // nil — без ограничения срока
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Entitled сообщает, имеет ли пользователь фактическое право доступа:
// статус active и дата подписки отсутствует либо в будущем.
func (u *User) Entitled(now time.Time) bool {
	if u.LicenseStatus != LicenseActive {
		return false
	}
	return u.SubscriptionUntil == nil || u.SubscriptionUntil.After(now)
}

// Invoice — единица оплаты. Владелец — ровно одно из полей
// UserID/PendingUserID. На владельца допускается не более одного
// счета в статусе pending.
type Invoice struct {
	ID              int64
	InvoiceNumber   string
	UserID          *int64
	PendingUserID   *int64
	Purpose         string
	Amount          int64 // В минимальных единицах валюты
	Status          string
	PaymentURL      string
	GatewayResponse []byte // Сырой ответ шлюза при создании заказа
	PaidAt          *time.Time
	CreatedAt       time.Time
}

// Payment — неизменяемая запись о поступившей оплате. Пара
// (InvoiceID, ProviderTxnID) уникальна — это защита от повторных
// колбэков шлюза.
type Payment struct {
	ID            int64
	InvoiceID     int64
	ProviderTxnID string
	Amount        int64
	RawResponse   []byte
	CreatedAt     time.Time
}

// LicenseHistory — строка журнала лицензионных действий. Только запись,
// без обновлений и удалений.
type LicenseHistory struct {
	ID        int64
	UserID    int64
	Action    string
	Details   string
	CreatedAt time.Time
}

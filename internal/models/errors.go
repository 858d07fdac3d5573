package models

import "errors"

// Ошибки доменного уровня. Хранилище возвращает их как есть,
// сервисы и обработчики различают их через errors.Is.
var (
	// ErrInvoiceNotFound счет с таким номером не существует.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrInvoiceNotPending попытка оплатить или закрыть счет не в статусе pending.
	ErrInvoiceNotPending = errors.New("invoice is not pending")
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrPendingUserNotFound заявка на регистрацию не найдена.
	ErrPendingUserNotFound = errors.New("pending user not found")
	// ErrDuplicateOwner email уже занят активированным пользователем.
	ErrDuplicateOwner = errors.New("email already registered")
	// ErrWebsiteMissing у заявки отсутствует обязательный сайт —
	// фатальная ошибка активации, требует ручной сверки.
	ErrWebsiteMissing = errors.New("pending user has no website reference")
	// ErrWebsiteLicenseInvalid центр лицензирования отверг лицензию сайта.
	ErrWebsiteLicenseInvalid = errors.New("website license is invalid")
	// ErrPaymentProvider платежный шлюз недоступен или ответил ошибкой;
	// операция может быть повторена вызывающим.
	ErrPaymentProvider = errors.New("payment provider error")
	// ErrInvalidCredentials неверная пара email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

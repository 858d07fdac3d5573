// Package reconciler реализует фоновую сверку локальных статусов лицензий
// с двумя внешними центрами и чистые функции приведения статусов.
package reconciler

import "github.com/magabrotheeeer/subscription-licensing/internal/models"

// ReconcileUserStatus приводит ответ центра к локальному статусу
// лицензии пользователя: reissued считается действующей лицензией,
// invalid приостанавливает доступ, остальные статусы переносятся как есть.
func ReconcileUserStatus(local, remote string) string {
	switch remote {
	case models.LicenseReissued:
		return models.LicenseActive
	case models.LicenseInvalid:
		return models.LicenseSuspended
	case models.LicenseActive, models.LicenseSuspended, models.LicenseExpired, models.LicenseInactive:
		return remote
	default:
		// Неизвестный ответ информации не несет
		return local
	}
}

// ReconcileWebsiteStatus переводит вердикт центра лицензий сайтов
// в локальный статус сайта.
func ReconcileWebsiteStatus(isValid bool) string {
	if isValid {
		return models.WebsiteApproved
	}
	return models.WebsiteSuspended
}

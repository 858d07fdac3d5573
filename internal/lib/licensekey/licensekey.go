// Package licensekey отвечает за выпуск новых лицензионных ключей
// и за маскирование ключей при выводе в логи.
package licensekey

import (
	"strings"

	"github.com/google/uuid"
)

// Mint выпускает новый лицензионный ключ вида XXXX-XXXX-XXXX-XXXX-XXXX-XXXX-XXXX-XXXX
// на основе uuid, без дефисов исходного формата.
func Mint() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	parts := make([]string, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		parts = append(parts, raw[i:i+4])
	}
	return strings.Join(parts, "-")
}

// Mask скрывает середину ключа, оставляя видимыми первые и последние
// четыре символа. Короткие ключи маскируются целиком.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

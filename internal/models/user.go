package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// UserSettings — запись пользователя движка: подписка, ключи биржи и
// per-user переопределения торговых параметров.
type UserSettings struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"` // Telegram chat/user ID

	Name string `json:"name"`

	// Ключи лежат в base64, как в исходном json-сторе.
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`

	SubUntil *time.Time `json:"sub_until"`

	// Сырые настройки с ключами исходной системы (RSI_PERIOD, FAST_MA, ...).
	// В торговлю идут только через ResolveSettings.
	Settings map[string]any `json:"settings"`
}

// Eligible — подписка не истекла и оба ключа на месте.
func (u *UserSettings) Eligible(now time.Time) bool {
	if u == nil || u.SubUntil == nil || !u.SubUntil.After(now) {
		return false
	}
	return u.APIKey != "" && u.APISecret != ""
}

// Credentials декодирует ключи. Ошибка декодирования = ключей нет.
func (u *UserSettings) Credentials() (string, string, error) {
	key, err := DecodeKey(u.APIKey)
	if err != nil {
		return "", "", fmt.Errorf("api_key: %w", err)
	}
	secret, err := DecodeKey(u.APISecret)
	if err != nil {
		return "", "", fmt.Errorf("api_secret: %w", err)
	}
	if key == "" || secret == "" {
		return "", "", fmt.Errorf("empty credentials")
	}
	return key, secret, nil
}

func EncodeKey(raw string) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.TrimSpace(raw)))
}

func DecodeKey(enc string) (string, error) {
	if enc == "" {
		return "", nil
	}
	b, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

// DefaultConfigPath is used when MEMORYMATE_CONFIG is not set.
const DefaultConfigPath = "memorymate.yaml"

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"port": "8080",
		},
		"database": map[string]interface{}{
			"url":         "",
			"sqlite_path": "memorymate.db",
		},
		"openai": map[string]interface{}{
			"api_key":    "",
			"model":      "gpt-4o-mini",
			"max_tokens": 200,
		},
		"twilio": map[string]interface{}{
			"account_sid":     "",
			"auth_token":      "",
			"whatsapp_number": "",
			"notify_to":       "",
		},
		"caldav": map[string]interface{}{
			"url":      "https://caldav.icloud.com",
			"username": "",
			"password": "",
		},
		"calendar": map[string]interface{}{
			"title":    "Memory Mate",
			"color":    "#6750A4",
			"platform": "ios",
		},
		"sync": map[string]interface{}{
			"interval":    "@every 15m",
			"window_days": 7,
		},
		"digest": map[string]interface{}{
			"schedule": "0 8 * * *",
		},
		"auth": map[string]interface{}{
			"jwt_secret": "",
			"token_ttl":  "720h",
		},
		"timezone": "Local",
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

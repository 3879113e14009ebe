package config

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var allKeys = []string{
	"APP_ENV", "APP_HTTP_ADDR", "METRICS_ADDR", "STORE_TYPE", "DB_DSN", "SQLITE_PATH",
	"SESSION_STORE", "REDIS_URL", "SESSION_TTL", "ADMIN_API_KEY", "CLIENT_API_KEY",
	"API_KEY_HASHES", "MINIMUM_WAGE", "CATALOG_FILE", "LOG_LEVEL", "RATE_LIMIT_PER_IP",
	"WEBHOOK_URLS", "WEBHOOK_SECRET", "OFFICE_NAME", "OFFICE_CITY",
}

// clearEnv blanks every key for the duration of the test; viper ignores
// empty environment values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("Expected AppEnv='dev', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr=':8080', got '%s'", cfg.HTTPAddr)
	}
	if cfg.StoreType != "sqlite" {
		t.Errorf("Expected StoreType='sqlite', got '%s'", cfg.StoreType)
	}
	if cfg.SQLitePath != "demandas.db" {
		t.Errorf("Expected SQLitePath='demandas.db', got '%s'", cfg.SQLitePath)
	}
	if cfg.SessionStore != "memory" {
		t.Errorf("Expected SessionStore='memory', got '%s'", cfg.SessionStore)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("Expected SessionTTL=2h, got %v", cfg.SessionTTL)
	}
	if !cfg.MinimumWage.Equal(decimal.NewFromInt(1518)) {
		t.Errorf("Expected MinimumWage=1518, got %s", cfg.MinimumWage)
	}
	if cfg.RateLimitPerIP != 100 {
		t.Errorf("Expected RateLimitPerIP=100, got %d", cfg.RateLimitPerIP)
	}
	if len(cfg.WebhookURLs) != 0 {
		t.Errorf("Expected no webhook URLs, got %v", cfg.WebhookURLs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "test")
	t.Setenv("STORE_TYPE", "memory")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("MINIMUM_WAGE", "1412.50")
	t.Setenv("WEBHOOK_URLS", "http://a.example/hook, ,http://b.example/hook")
	t.Setenv("API_KEY_HASHES", "admin:$2a$10$abc,readonly:$2a$10$def")
	t.Setenv("RATE_LIMIT_PER_IP", "200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "test" || cfg.StoreType != "memory" {
		t.Errorf("Unexpected overrides: %+v", cfg)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Errorf("Expected SessionTTL=45m, got %v", cfg.SessionTTL)
	}
	if cfg.MinimumWage.String() != "1412.5" {
		t.Errorf("Expected MinimumWage=1412.5, got %s", cfg.MinimumWage)
	}
	if len(cfg.WebhookURLs) != 2 || cfg.WebhookURLs[1] != "http://b.example/hook" {
		t.Errorf("Expected 2 webhook URLs, got %v", cfg.WebhookURLs)
	}
	if len(cfg.APIKeyHashes) != 2 {
		t.Errorf("Expected 2 key hashes, got %v", cfg.APIKeyHashes)
	}
	if cfg.RateLimitPerIP != 200 {
		t.Errorf("Expected RateLimitPerIP=200, got %d", cfg.RateLimitPerIP)
	}
}

func TestLoad_InvalidMinimumWage(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINIMUM_WAGE", "mil reais")

	_, err := Load()
	var vErr ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "MINIMUM_WAGE" {
		t.Fatalf("Expected MINIMUM_WAGE validation error, got %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		AppEnv:       "dev",
		HTTPAddr:     ":8080",
		MetricsAddr:  ":9090",
		StoreType:    "memory",
		SessionStore: "memory",
		SessionTTL:   time.Hour,
		AdminAPIKey:  defaultAdminKey,
		MinimumWage:  decimal.NewFromInt(1518),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad store", func(c *Config) { c.StoreType = "mysql" }, "STORE_TYPE"},
		{"postgres without dsn", func(c *Config) { c.StoreType = "postgres" }, "DB_DSN"},
		{"sqlite without path", func(c *Config) { c.StoreType = "sqlite" }, "SQLITE_PATH"},
		{"bad session store", func(c *Config) { c.SessionStore = "memcached" }, "SESSION_STORE"},
		{"redis without url", func(c *Config) { c.SessionStore = "redis" }, "REDIS_URL"},
		{"empty http addr", func(c *Config) { c.HTTPAddr = "" }, "APP_HTTP_ADDR"},
		{"empty metrics addr", func(c *Config) { c.MetricsAddr = "" }, "METRICS_ADDR"},
		{"zero wage", func(c *Config) { c.MinimumWage = decimal.Zero }, "MINIMUM_WAGE"},
		{"negative wage", func(c *Config) { c.MinimumWage = decimal.NewFromInt(-1) }, "MINIMUM_WAGE"},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, "SESSION_TTL"},
		{"malformed key hash", func(c *Config) { c.APIKeyHashes = []string{"nohash"} }, "API_KEY_HASHES"},
		{"webhooks without secret", func(c *Config) { c.WebhookURLs = []string{"http://x"} }, "WEBHOOK_SECRET"},
		{"default key in prod", func(c *Config) { c.AppEnv = "prod" }, "ADMIN_API_KEY"},
		{"custom key in prod", func(c *Config) { c.AppEnv = "production"; c.AdminAPIKey = "s3cret" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				return
			}
			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

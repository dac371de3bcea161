// Package config assembles typed service configuration from environment
// variables and viper settings.
package config

import (
	"strings"
	"time"

	"vending-reconciliation-service/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds MySQL connection settings
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NotifyConfig holds shortage alert delivery settings
type NotifyConfig struct {
	WebhookURL string
}

// ServiceConfig is the full configuration for the serve command
type ServiceConfig struct {
	Server   ServerConfig
	Database DatabaseConfig
	Notify   NotifyConfig
}

// LoadServiceConfig reads configuration from the environment (including a
// .env file when present) and any viper-bound settings. Flags override the
// values returned here.
func LoadServiceConfig() (*ServiceConfig, error) {
	godotenv.Load()

	v := viper.GetViper()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("db.max_open_conns", 50)
	v.SetDefault("db.max_idle_conns", 25)
	v.SetDefault("db.conn_max_lifetime", "5m")

	dsn := v.GetString("db.dsn")
	if dsn == "" {
		dsn = store.DSNFromEnv()
	}

	cfg := &ServiceConfig{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			AllowedOrigins:  splitAndTrim(v.GetString("server.allowed_origins")),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			DSN:             dsn,
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db.conn_max_lifetime"),
		},
		Notify: NotifyConfig{
			WebhookURL: v.GetString("notify.webhook_url"),
		},
	}
	return cfg, nil
}

func splitAndTrim(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	cms "github.com/goliatone/go-cms-admin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type serverConfig struct {
	Addr            string
	SiteDomain      string
	SiteName        string
	AdminUsername   string
	ShutdownTimeout time.Duration
}

// loadConfig reads .env (when present) and CMS_* environment variables.
func loadConfig() (cms.Config, serverConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cms.Config{}, serverConfig{}, fmt.Errorf("load .env: %w", err)
	}

	defaults := cms.DefaultConfig()
	v := viper.New()
	v.SetEnvPrefix("CMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("site.id", defaults.SiteID.String())
	v.SetDefault("site.domain", "localhost:8080")
	v.SetDefault("site.name", "Example")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.base_path", defaults.Admin.BasePath)
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.trust_user_header", false)
	v.SetDefault("languages", strings.Join(defaults.Languages, ","))
	v.SetDefault("default_language", defaults.DefaultLanguage)
	v.SetDefault("templates", strings.Join(defaults.Templates, ","))
	v.SetDefault("placeholders.slots", strings.Join(defaults.Placeholders.Slots, ","))
	v.SetDefault("permissions.enabled", defaults.Permissions.Enabled)
	v.SetDefault("storage.provider", defaults.Storage.Provider)
	v.SetDefault("storage.dialect", defaults.Storage.Dialect)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)
	v.SetDefault("logging.provider", defaults.Logging.Provider)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	siteID, err := uuid.Parse(v.GetString("site.id"))
	if err != nil {
		return cms.Config{}, serverConfig{}, fmt.Errorf("CMS_SITE_ID: %w", err)
	}

	cfg := defaults
	cfg.SiteID = siteID
	cfg.Languages = splitList(v.GetString("languages"))
	cfg.DefaultLanguage = v.GetString("default_language")
	cfg.Templates = splitList(v.GetString("templates"))
	cfg.Placeholders.Slots = splitList(v.GetString("placeholders.slots"))
	cfg.Permissions.Enabled = v.GetBool("permissions.enabled")
	cfg.Storage = cms.StorageConfig{
		Provider: v.GetString("storage.provider"),
		Dialect:  v.GetString("storage.dialect"),
		DSN:      v.GetString("storage.dsn"),
	}
	cfg.Cache = cms.CacheConfig{Enabled: v.GetBool("cache.enabled"), TTL: v.GetDuration("cache.ttl")}
	cfg.Logging.Provider = v.GetString("logging.provider")
	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")
	cfg.Admin.BasePath = v.GetString("admin.base_path")
	cfg.Admin.JWTSecret = v.GetString("admin.jwt_secret")
	cfg.Admin.TrustUserHeader = v.GetBool("admin.trust_user_header")
	if err := cfg.Validate(); err != nil {
		return cms.Config{}, serverConfig{}, err
	}

	server := serverConfig{
		Addr:            v.GetString("http.addr"),
		SiteDomain:      v.GetString("site.domain"),
		SiteName:        v.GetString("site.name"),
		AdminUsername:   v.GetString("admin.username"),
		ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
	}
	return cfg, server, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

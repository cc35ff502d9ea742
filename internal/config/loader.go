package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/metacat-io/metacat/internal/db"
)

// Config holds the full service configuration.
type Config struct {
	Server   ServerConfig
	Database db.Config
	Search   SearchConfig
	Export   ExportConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// SearchConfig points at the external search backend.
type SearchConfig struct {
	URL     string
	Timeout time.Duration
}

// ExportConfig holds export output settings.
type ExportConfig struct {
	Dir string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: db.DefaultConfig(),
		Search: SearchConfig{
			URL:     "http://localhost:9200",
			Timeout: 15 * time.Second,
		},
		Export: ExportConfig{},
	}
}

// Load reads config.yaml from the given path with environment overrides
// (METACAT_ prefix, e.g. METACAT_DATABASE_HOST).
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("METACAT")
	// Config keys are dotted but env names cannot be, so database.host
	// resolves to METACAT_DATABASE_HOST.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("server.addr")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("search.url")
	v.BindEnv("export.dir")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("search.url") {
		cfg.Search.URL = v.GetString("search.url")
	}
	if v.IsSet("search.timeout") {
		cfg.Search.Timeout = v.GetDuration("search.timeout")
	}
	if v.IsSet("export.dir") {
		cfg.Export.Dir = v.GetString("export.dir")
	}

	return cfg, nil
}

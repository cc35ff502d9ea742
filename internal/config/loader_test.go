package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("unexpected default addr %q", cfg.Server.Addr)
	}
	if cfg.Database.Host != "localhost" || cfg.Database.DBName != "metacat" {
		t.Errorf("unexpected database defaults %+v", cfg.Database)
	}
	if cfg.Search.URL != "http://localhost:9200" || cfg.Search.Timeout != 15*time.Second {
		t.Errorf("unexpected search defaults %+v", cfg.Search)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("METACAT_DATABASE_HOST", "db.internal")
	t.Setenv("METACAT_DATABASE_PORT", "6432")
	t.Setenv("METACAT_SEARCH_URL", "http://index.internal:9200")
	t.Setenv("METACAT_SERVER_ADDR", ":9090")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("METACAT_DATABASE_HOST not applied: host = %q", cfg.Database.Host)
	}
	if cfg.Database.Port != 6432 {
		t.Errorf("METACAT_DATABASE_PORT not applied: port = %d", cfg.Database.Port)
	}
	if cfg.Search.URL != "http://index.internal:9200" {
		t.Errorf("METACAT_SEARCH_URL not applied: url = %q", cfg.Search.URL)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("METACAT_SERVER_ADDR not applied: addr = %q", cfg.Server.Addr)
	}
}

func TestLoadEnvLeavesUnsetKeysAtDefaults(t *testing.T) {
	t.Setenv("METACAT_DATABASE_HOST", "db.internal")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("override not applied: %q", cfg.Database.Host)
	}
	if cfg.Database.User != "postgres" || cfg.Database.Port != 5432 {
		t.Errorf("unset keys must keep defaults, got %+v", cfg.Database)
	}
}

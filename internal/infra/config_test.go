package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(map[string]string{"JWT_SECRET": "test-secret"})
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.StorageDriver != StorageMemory {
		t.Fatalf("StorageDriver mismatch: got %q want %q", cfg.StorageDriver, StorageMemory)
	}
	if cfg.ApprovalQuorum != "1/2" {
		t.Fatalf("ApprovalQuorum mismatch: got %q", cfg.ApprovalQuorum)
	}
	if cfg.HTTPReadTimeout != 15*time.Second {
		t.Fatalf("HTTPReadTimeout mismatch: got %s", cfg.HTTPReadTimeout)
	}
	if cfg.RateLimitPerMin != 120 {
		t.Fatalf("RateLimitPerMin mismatch: got %d", cfg.RateLimitPerMin)
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	if _, err := loadConfig(map[string]string{}); err == nil {
		t.Fatalf("loadConfig expected error without JWT_SECRET")
	}
}

func TestLoadConfigPostgresRequiresDatabaseURL(t *testing.T) {
	_, err := loadConfig(map[string]string{
		"JWT_SECRET":     "test-secret",
		"STORAGE_DRIVER": "postgres",
	})
	if err == nil {
		t.Fatalf("loadConfig expected error without DATABASE_URL")
	}

	cfg, err := loadConfig(map[string]string{
		"JWT_SECRET":     "test-secret",
		"STORAGE_DRIVER": " Postgres ",
		"DATABASE_URL":   "postgres://example",
	})
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.StorageDriver != StoragePostgres {
		t.Fatalf("StorageDriver mismatch: got %q", cfg.StorageDriver)
	}
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	_, err := loadConfig(map[string]string{
		"JWT_SECRET":     "test-secret",
		"STORAGE_DRIVER": "mongo",
	})
	if err == nil {
		t.Fatalf("loadConfig expected error for unknown driver")
	}
}

func TestLoadConfigParsesOriginsAndTimeouts(t *testing.T) {
	cfg, err := loadConfig(map[string]string{
		"JWT_SECRET":         "test-secret",
		"CORS_ORIGINS":       "https://app.example.com, ,http://localhost:3000",
		"HTTP_WRITE_TIMEOUT": "45s",
		"PORT":               "1919",
	})
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	expected := []string{"https://app.example.com", "http://localhost:3000"}
	if len(cfg.CORSOrigins) != len(expected) {
		t.Fatalf("CORSOrigins mismatch: got %#v want %#v", cfg.CORSOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSOrigins[i] != origin {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], origin)
		}
	}
	if cfg.HTTPWriteTimeout != 45*time.Second {
		t.Fatalf("HTTPWriteTimeout mismatch: got %s", cfg.HTTPWriteTimeout)
	}
	if cfg.Port != "1919" {
		t.Fatalf("Port mismatch: got %q", cfg.Port)
	}
}

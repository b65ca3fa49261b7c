package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "SESSION_TTL", "CORS_ORIGINS_OFFLINE", "S3_USE_SSL"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Mode != ModeOffline || cfg.HTTPAddr != ":5000" || cfg.DBDriver != "sqlite" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.SessionTTL != 7*24*time.Hour || !cfg.S3.UseSSL {
		t.Fatalf("session ttl %v, ssl %v", cfg.SessionTTL, cfg.S3.UseSSL)
	}
	if got := cfg.CORSOrigins(); len(got) != 2 || got[1] != "http://localhost:5173" {
		t.Fatalf("offline origins = %v", got)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("TOKEN_TTL", "not-a-duration")
	t.Setenv("S3_USE_SSL", "no")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.example , ,https://b.example")

	cfg := FromEnv()
	if cfg.SessionTTL != 2*time.Hour || cfg.TokenTTL != 24*time.Hour || cfg.S3.UseSSL {
		t.Fatalf("cfg = %+v", cfg)
	}
	got := cfg.CORSOrigins()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("online origins = %v", got)
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kkm.yaml")
	yml := "db_driver: postgres\nregistration_token: sekolah\ns3:\n  bucket: soal\n"
	if err := os.WriteFile(p, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", p)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.RegistrationToken != "sekolah" || cfg.S3.Bucket != "soal" {
		t.Fatalf("overlay = %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.S3.Region != "us-east-1" {
		t.Fatalf("env values lost: level %q region %q", cfg.LogLevel, cfg.S3.Region)
	}

	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("missing config file accepted")
	}
}

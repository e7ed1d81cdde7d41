package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.WS.SendQueueSize != 256 || cfg.WS.IdleTTL != 75*time.Second {
		t.Errorf("ws defaults: %+v", cfg.WS)
	}
	if cfg.Mongo.Database != "taskflow" {
		t.Errorf("mongo defaults: %+v", cfg.Mongo)
	}
}

func TestLoadYamlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	body := `
port: 9000
jwt_secret: s3cret
ws:
  idle_ttl: 90s
redis:
  enabled: true
  addr: 10.0.0.5:6379
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9000 || cfg.JWTSecret != "s3cret" {
		t.Errorf("loaded: port=%d secret=%q", cfg.Port, cfg.JWTSecret)
	}
	if cfg.WS.IdleTTL != 90*time.Second {
		t.Errorf("idle ttl = %v", cfg.WS.IdleTTL)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "10.0.0.5:6379" {
		t.Errorf("redis: %+v", cfg.Redis)
	}
	// untouched keys keep their defaults
	if cfg.WS.PingInterval != 25*time.Second {
		t.Errorf("ping interval = %v", cfg.WS.PingInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TF_PORT", "9001")
	t.Setenv("TF_MONGO_URI", "mongodb://db:27017")
	t.Setenv("TF_WS_IDLE_TTL", "2m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9001 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" {
		t.Errorf("mongo uri = %q", cfg.Mongo.URI)
	}
	if cfg.WS.IdleTTL != 2*time.Minute {
		t.Errorf("idle ttl = %v", cfg.WS.IdleTTL)
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("TVCAST_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestLoadConfig_Defaults verifies a missing config file falls back to
// built-in defaults instead of failing.
func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TVCAST_CONFIG", "")

	cfg, path, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty for defaults", path)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("default API port = %d, want 8090", cfg.API.Port)
	}
	if cfg.Service.Name != "tvcast" {
		t.Errorf("default service name = %q", cfg.Service.Name)
	}
}

// TestLoadConfig_ExplicitFile verifies TVCAST_CONFIG takes precedence.
func TestLoadConfig_ExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
api:
  port: 9999

logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("TVCAST_CONFIG", configPath)

	cfg, path, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %q, want %q", path, configPath)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API port = %d, want 9999", cfg.API.Port)
	}
}

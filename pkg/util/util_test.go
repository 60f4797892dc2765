package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sampleConfig struct {
	Server struct {
		Port int    `yaml:"port" validate:"gt=0"`
		Host string `yaml:"host"`
	} `yaml:"server"`
}

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeTempConfig(t, "server:\n  port: 8090\n  host: localhost\n")
		cfg, err := LoadConfig[sampleConfig](path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Server.Port != 8090 || cfg.Server.Host != "localhost" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig[sampleConfig]("does-not-exist.yaml"); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeTempConfig(t, "server: [not a map\n")
		if _, err := LoadConfig[sampleConfig](path); err == nil {
			t.Fatal("expected error for invalid yaml")
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		path := writeTempConfig(t, "server:\n  port: 0\n")
		_, err := LoadConfig[sampleConfig](path)
		if err == nil {
			t.Fatal("expected validation error for port 0")
		}
		if !strings.Contains(err.Error(), "validation") {
			t.Fatalf("expected validation error, got: %v", err)
		}
	})
}

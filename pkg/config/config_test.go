package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "realmd.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesOnlyGivenKeys(t *testing.T) {
	path := writeConfig(t, `
[server]
tick_ms = 50

[game]
addr = ":9999"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.TickMillis != 50 {
		t.Fatalf("tick_ms = %d, want 50", cfg.Server.TickMillis)
	}
	if cfg.Game.Addr != ":9999" {
		t.Fatalf("game addr = %q, want :9999", cfg.Game.Addr)
	}

	// Untouched keys keep their defaults.
	def := Default()
	if cfg.Login.Addr != def.Login.Addr {
		t.Fatalf("login addr = %q, want default %q", cfg.Login.Addr, def.Login.Addr)
	}
	if cfg.Server.CompressionLevel != def.Server.CompressionLevel {
		t.Fatalf("compression_level = %d, want default %d", cfg.Server.CompressionLevel, def.Server.CompressionLevel)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"zero tick", "[server]\ntick_ms = 0\n"},
		{"bad compression", "[server]\ncompression_level = 12\n"},
		{"all ports off", "[login]\nenabled = false\n[game]\nenabled = false\n[status]\nenabled = false\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	if cfg.Tick().Milliseconds() != int64(cfg.Server.TickMillis) {
		t.Fatalf("Tick() = %v", cfg.Tick())
	}
	if cfg.ConnTimeout().Seconds() != float64(cfg.Server.ConnTimeoutSeconds) {
		t.Fatalf("ConnTimeout() = %v", cfg.ConnTimeout())
	}
}

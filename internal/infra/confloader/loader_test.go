package confloader

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Server struct {
		Address string `koanf:"address"`
		Enabled bool   `koanf:"enabled"`
	} `koanf:"server"`
	Token struct {
		DefaultTTL string `koanf:"default_ttl"`
	} `koanf:"token"`
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
	)

	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q, want %q", l.filePath, "/path/to/config.yaml")
	}
}

func TestLoader_LoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: "0.0.0.0:7430"
  enabled: true
token:
  default_ttl: "30m"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	l := NewLoader()
	if err := l.LoadFile(configPath); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if addr := l.GetString("server.address"); addr != "0.0.0.0:7430" {
		t.Errorf("server.address = %q, want %q", addr, "0.0.0.0:7430")
	}
	if !l.GetBool("server.enabled") {
		t.Error("server.enabled should be true")
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
}

func TestLoader_LoadFile_Empty(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("GLYPH_SERVER_ADDRESS", "127.0.0.1:8080")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if addr := l.GetString("server.address"); addr != "127.0.0.1:8080" {
		t.Errorf("server.address = %q, want %q", addr, "127.0.0.1:8080")
	}
}

func TestLoader_LoadEnv_CustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_PORT", "9090")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if port := l.GetString("server.port"); port != "9090" {
		t.Errorf("server.port = %q, want %q", port, "9090")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()

	data := map[string]any{
		"server.address": "localhost:3000",
		"debug":          true,
	}
	if err := l.LoadMap(data); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	if addr := l.GetString("server.address"); addr != "localhost:3000" {
		t.Errorf("server.address = %q, want %q", addr, "localhost:3000")
	}
	if !l.GetBool("debug") {
		t.Error("debug should be true")
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: "from-file:7430"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("GLYPH_SERVER_ADDRESS", "from-env:8080")

	l := NewLoader(WithConfigFile(configPath))

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Environment overrides file.
	if cfg.Server.Address != "from-env:8080" {
		t.Errorf("Address = %q, want %q", cfg.Server.Address, "from-env:8080")
	}
}

func TestLoader_Unmarshal(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: "0.0.0.0:7430"
  enabled: true
token:
  default_ttl: "30m"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	l := NewLoader(WithConfigFile(configPath))

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != "0.0.0.0:7430" {
		t.Errorf("Address = %q, want %q", cfg.Server.Address, "0.0.0.0:7430")
	}
	if !cfg.Server.Enabled {
		t.Error("Enabled should be true")
	}
	if cfg.Token.DefaultTTL != "30m" {
		t.Errorf("DefaultTTL = %q, want %q", cfg.Token.DefaultTTL, "30m")
	}
}

func TestLoader_IsLoaded(t *testing.T) {
	l := NewLoader()
	if l.IsLoaded() {
		t.Error("IsLoaded() should be false before Load()")
	}

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_AllAndKeys(t *testing.T) {
	l := NewLoader()
	l.LoadMap(map[string]any{
		"key1": "value1",
		"key2": "value2",
	})

	if all := l.All(); len(all) < 2 {
		t.Errorf("All() returned %d keys, want at least 2", len(all))
	}
	if keys := l.Keys(); len(keys) < 2 {
		t.Errorf("Keys() returned %d keys, want at least 2", len(keys))
	}
}

func TestLoader_GetInt(t *testing.T) {
	l := NewLoader()
	l.LoadMap(map[string]any{"port": 8080})

	if port := l.GetInt("port"); port != 8080 {
		t.Errorf("GetInt(port) = %d, want %d", port, 8080)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if config.Registrar.MaxCoursesPerStudent != 5 {
		t.Errorf("MaxCoursesPerStudent = %d, want 5", config.Registrar.MaxCoursesPerStudent)
	}
	if config.Registrar.AdminUsername != "admin" {
		t.Errorf("AdminUsername = %q, want admin", config.Registrar.AdminUsername)
	}
	if config.WebSocket.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want 30s", config.WebSocket.PingInterval)
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.HTTP.Port = -1 }},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero max courses", func(c *Config) { c.Registrar.MaxCoursesPerStudent = 0 }},
		{"empty admin username", func(c *Config) { c.Registrar.AdminUsername = "" }},
		{"empty admin password", func(c *Config) { c.Registrar.AdminPassword = "" }},
		{"zero rate limit", func(c *Config) { c.Registrar.RateLimitPerMinute = 0 }},
		{"missing websocket", func(c *Config) { c.WebSocket = nil }},
		{"zero buffer size", func(c *Config) { c.WebSocket.BufferSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("REGISTRAR_HTTP_PORT", "9090")
	t.Setenv("REGISTRAR_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("REGISTRAR_MAX_COURSES_PER_STUDENT", "3")
	t.Setenv("REGISTRAR_ADMIN_PASSWORD", "rotated")
	t.Setenv("REGISTRAR_WEBSOCKET_PING_INTERVAL", "15s")
	t.Setenv("REGISTRAR_LOG_LEVEL", "debug")

	config := LoadFromEnv()

	if config.HTTP.Port != 9090 {
		t.Errorf("Port = %d, want 9090", config.HTTP.Port)
	}
	if config.Database.Path != "/tmp/env.db" {
		t.Errorf("Path = %q", config.Database.Path)
	}
	if config.Registrar.MaxCoursesPerStudent != 3 {
		t.Errorf("MaxCoursesPerStudent = %d, want 3", config.Registrar.MaxCoursesPerStudent)
	}
	if config.Registrar.AdminPassword != "rotated" {
		t.Errorf("AdminPassword = %q", config.Registrar.AdminPassword)
	}
	if config.WebSocket.PingInterval != 15*time.Second {
		t.Errorf("PingInterval = %v, want 15s", config.WebSocket.PingInterval)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", config.Logging.Level)
	}
}

func TestConfig_LoadFromEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv("REGISTRAR_HTTP_PORT", "not-a-port")
	t.Setenv("REGISTRAR_WEBSOCKET_PING_INTERVAL", "soon")

	config := LoadFromEnv()

	if config.HTTP.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", config.HTTP.Port)
	}
	if config.WebSocket.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want default 30s", config.WebSocket.PingInterval)
	}
}

func TestConfig_LoadFromFile(t *testing.T) {
	content := `{
		"database": {"path": "/tmp/file.db", "timeout": "10s"},
		"http": {"port": 9999},
		"websocket": {"ping_interval": "20s"},
		"registrar": {"max_courses_per_student": 4, "admin_password": "from-file"},
		"logging": {"level": "warn", "pretty": true}
	}`
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Database.Path != "/tmp/file.db" {
		t.Errorf("Path = %q", config.Database.Path)
	}
	if config.Database.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", config.Database.Timeout)
	}
	if config.HTTP.Port != 9999 {
		t.Errorf("Port = %d, want 9999", config.HTTP.Port)
	}
	if config.WebSocket.PingInterval != 20*time.Second {
		t.Errorf("PingInterval = %v, want 20s", config.WebSocket.PingInterval)
	}
	if config.Registrar.MaxCoursesPerStudent != 4 {
		t.Errorf("MaxCoursesPerStudent = %d, want 4", config.Registrar.MaxCoursesPerStudent)
	}
	if config.Registrar.AdminPassword != "from-file" {
		t.Errorf("AdminPassword = %q", config.Registrar.AdminPassword)
	}
	// Unspecified fields keep defaults.
	if config.HTTP.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want default 30s", config.HTTP.ReadTimeout)
	}
	if !config.Logging.Pretty {
		t.Error("Pretty should be true")
	}
}

func TestConfig_LoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{invalid"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestConfig_Precedence(t *testing.T) {
	t.Setenv("REGISTRAR_HTTP_PORT", "9090")

	content := `{"http": {"port": 7777}}`
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	// File wins over environment.
	config := LoadConfigWithPrecedence(path)
	if config.HTTP.Port != 7777 {
		t.Errorf("Port = %d, want file value 7777", config.HTTP.Port)
	}

	// Without a file the environment layer applies.
	config = LoadConfigWithPrecedence("")
	if config.HTTP.Port != 9090 {
		t.Errorf("Port = %d, want env value 9090", config.HTTP.Port)
	}

	// A broken file path falls back to the environment layer.
	config = LoadConfigWithPrecedence("/nonexistent/config.json")
	if config.HTTP.Port != 9090 {
		t.Errorf("Port = %d, want env value 9090", config.HTTP.Port)
	}
}

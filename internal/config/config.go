package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings for the server.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Registrar *RegistrarConfig `json:"registrar"`
	Logging   *LoggingConfig   `json:"logging"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// RegistrarConfig carries the enrollment policy and the bootstrap admin
// credentials.
type RegistrarConfig struct {
	MaxCoursesPerStudent int    `json:"max_courses_per_student"`
	AdminUsername        string `json:"admin_username"`
	AdminPassword        string `json:"admin_password"`
	RateLimitPerMinute   int    `json:"rate_limit_per_minute"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./data/registrar.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   16,
		},
		Registrar: &RegistrarConfig{
			MaxCoursesPerStudent: 5,
			AdminUsername:        "admin",
			AdminPassword:        "admin_password",
			RateLimitPerMinute:   100,
		},
		Logging: &LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Registrar == nil {
		return fmt.Errorf("registrar configuration is required")
	}
	if c.Registrar.MaxCoursesPerStudent <= 0 {
		return fmt.Errorf("max courses per student must be positive")
	}
	if c.Registrar.AdminUsername == "" {
		return fmt.Errorf("admin username cannot be empty")
	}
	if c.Registrar.AdminPassword == "" {
		return fmt.Errorf("admin password cannot be empty")
	}
	if c.Registrar.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	if c.Logging == nil {
		return fmt.Errorf("logging configuration is required")
	}

	return nil
}

// LoadFromEnv returns the defaults overridden by any REGISTRAR_*
// environment variables that are set. Unparseable values are ignored.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("REGISTRAR_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("REGISTRAR_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if dbPath := os.Getenv("REGISTRAR_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if dbTimeout := os.Getenv("REGISTRAR_DATABASE_TIMEOUT"); dbTimeout != "" {
		if timeout, err := time.ParseDuration(dbTimeout); err == nil {
			config.Database.Timeout = timeout
		}
	}
	if readTimeout := os.Getenv("REGISTRAR_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("REGISTRAR_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}
	if pingInterval := os.Getenv("REGISTRAR_WEBSOCKET_PING_INTERVAL"); pingInterval != "" {
		if interval, err := time.ParseDuration(pingInterval); err == nil {
			config.WebSocket.PingInterval = interval
		}
	}
	if wsReadTimeout := os.Getenv("REGISTRAR_WEBSOCKET_READ_TIMEOUT"); wsReadTimeout != "" {
		if timeout, err := time.ParseDuration(wsReadTimeout); err == nil {
			config.WebSocket.ReadTimeout = timeout
		}
	}
	if wsWriteTimeout := os.Getenv("REGISTRAR_WEBSOCKET_WRITE_TIMEOUT"); wsWriteTimeout != "" {
		if timeout, err := time.ParseDuration(wsWriteTimeout); err == nil {
			config.WebSocket.WriteTimeout = timeout
		}
	}
	if bufferSize := os.Getenv("REGISTRAR_WEBSOCKET_BUFFER_SIZE"); bufferSize != "" {
		if size, err := strconv.Atoi(bufferSize); err == nil {
			config.WebSocket.BufferSize = size
		}
	}
	if maxCourses := os.Getenv("REGISTRAR_MAX_COURSES_PER_STUDENT"); maxCourses != "" {
		if n, err := strconv.Atoi(maxCourses); err == nil {
			config.Registrar.MaxCoursesPerStudent = n
		}
	}
	if adminUser := os.Getenv("REGISTRAR_ADMIN_USERNAME"); adminUser != "" {
		config.Registrar.AdminUsername = adminUser
	}
	if adminPass := os.Getenv("REGISTRAR_ADMIN_PASSWORD"); adminPass != "" {
		config.Registrar.AdminPassword = adminPass
	}
	if rateLimit := os.Getenv("REGISTRAR_RATE_LIMIT_PER_MINUTE"); rateLimit != "" {
		if n, err := strconv.Atoi(rateLimit); err == nil {
			config.Registrar.RateLimitPerMinute = n
		}
	}
	if level := os.Getenv("REGISTRAR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if pretty := os.Getenv("REGISTRAR_LOG_PRETTY"); pretty != "" {
		if b, err := strconv.ParseBool(pretty); err == nil {
			config.Logging.Pretty = b
		}
	}

	return config
}

// ConfigFile mirrors Config for JSON parsing, with durations as strings.
type ConfigFile struct {
	Database  *DatabaseConfigFile  `json:"database"`
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Registrar *RegistrarConfig     `json:"registrar"`
	Logging   *LoggingConfig       `json:"logging"`
}

type DatabaseConfigFile struct {
	Path    string `json:"path"`
	Timeout string `json:"timeout"`
}

type HTTPConfigFile struct {
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	Host         string `json:"host"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	BufferSize   int    `json:"buffer_size"`
}

// LoadFromFile reads a JSON config file on top of the defaults.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.Database != nil {
		if configFile.Database.Path != "" {
			config.Database.Path = configFile.Database.Path
		}
		if configFile.Database.Timeout != "" {
			if timeout, err := time.ParseDuration(configFile.Database.Timeout); err == nil {
				config.Database.Timeout = timeout
			}
		}
	}

	if configFile.HTTP != nil {
		if configFile.HTTP.Port > 0 {
			config.HTTP.Port = configFile.HTTP.Port
		}
		if configFile.HTTP.Host != "" {
			config.HTTP.Host = configFile.HTTP.Host
		}
		if configFile.HTTP.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = timeout
			}
		}
		if configFile.HTTP.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = timeout
			}
		}
	}

	if configFile.WebSocket != nil {
		if configFile.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = configFile.WebSocket.BufferSize
		}
		if configFile.WebSocket.PingInterval != "" {
			if interval, err := time.ParseDuration(configFile.WebSocket.PingInterval); err == nil {
				config.WebSocket.PingInterval = interval
			}
		}
		if configFile.WebSocket.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.ReadTimeout); err == nil {
				config.WebSocket.ReadTimeout = timeout
			}
		}
		if configFile.WebSocket.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(configFile.WebSocket.WriteTimeout); err == nil {
				config.WebSocket.WriteTimeout = timeout
			}
		}
	}

	if configFile.Registrar != nil {
		if configFile.Registrar.MaxCoursesPerStudent > 0 {
			config.Registrar.MaxCoursesPerStudent = configFile.Registrar.MaxCoursesPerStudent
		}
		if configFile.Registrar.AdminUsername != "" {
			config.Registrar.AdminUsername = configFile.Registrar.AdminUsername
		}
		if configFile.Registrar.AdminPassword != "" {
			config.Registrar.AdminPassword = configFile.Registrar.AdminPassword
		}
		if configFile.Registrar.RateLimitPerMinute > 0 {
			config.Registrar.RateLimitPerMinute = configFile.Registrar.RateLimitPerMinute
		}
	}

	if configFile.Logging != nil {
		if configFile.Logging.Level != "" {
			config.Logging.Level = configFile.Logging.Level
		}
		config.Logging.Pretty = configFile.Logging.Pretty
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file over
// environment over defaults. A missing or broken file falls back to the
// environment layer.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server    Server    `mapstructure:"server"`
	CORS      CORS      `mapstructure:"cors"`
	Upload    Upload    `mapstructure:"upload"`
	Transform Transform `mapstructure:"transform"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	Port         int           `mapstructure:"port"` // HTTP port to listen on
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CORS holds the cross-origin policy.
type CORS struct {
	AllowedOrigin string `mapstructure:"allowed_origin"` // the only origin allowed to call the API
}

// Upload holds the scratch directory and the upload size limit.
type Upload struct {
	Dir         string `mapstructure:"dir"`
	MaxFileSize int64  `mapstructure:"max_file_size"` // bytes
}

// Transform holds codec defaults.
type Transform struct {
	DefaultQuality int `mapstructure:"default_quality"`
	WebPEffort     int `mapstructure:"webp_effort"`  // effort of plain WebP conversion
	ChainEffort    int `mapstructure:"chain_effort"` // effort of the WebP step after JPEG optimization
}

// Addr returns the listen address for the configured port.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

var defaults = map[string]any{
	"server.port":               3001,
	"server.read_timeout":       60 * time.Second,
	"server.write_timeout":      120 * time.Second,
	"cors.allowed_origin":       "http://localhost:3000",
	"upload.dir":                "uploads",
	"upload.max_file_size":      50 << 20,
	"transform.default_quality": 80,
	"transform.webp_effort":     4,
	"transform.chain_effort":    6,
}

var envBindings = map[string]string{
	"server.port":          "PORT",
	"cors.allowed_origin":  "FRONTEND_URL",
	"upload.dir":           "UPLOAD_DIR",
	"upload.max_file_size": "MAX_FILE_SIZE",
}

// Load reads the YAML file at path, if it exists, on top of the defaults
// and applies the environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Upload.MaxFileSize <= 0 {
		return nil, fmt.Errorf("upload.max_file_size must be positive, got %d", cfg.Upload.MaxFileSize)
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}

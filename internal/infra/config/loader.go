// Package config loads and watches the gateway configuration file.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"toolgate/internal/domain"
)

// Config is the normalized gateway configuration.
type Config struct {
	Upstream   UpstreamConfig
	Server     ServerConfig
	Spec       SpecConfig
	Validation ValidationConfig
}

type UpstreamConfig struct {
	Endpoint             string
	Headers              map[string]string
	Timeout              time.Duration
	HealthTimeout        time.Duration
	MaxReconnectAttempts int
	ReconnectBase        time.Duration
	ReconnectMax         time.Duration
	MaxResponseBytes     int64
}

type ServerConfig struct {
	ListenAddress   string
	AuthToken       string
	ShutdownTimeout time.Duration
}

type SpecConfig struct {
	Title          string
	Version        string
	ServerURL      string
	TTL            time.Duration
	RefreshPeriod  time.Duration
	RegistryPeriod time.Duration
}

type ValidationConfig struct {
	Mode domain.ValidationMode
}

type rawConfig struct {
	Upstream   rawUpstreamConfig   `mapstructure:"upstream"`
	Server     rawServerConfig     `mapstructure:"server"`
	Spec       rawSpecConfig       `mapstructure:"spec"`
	Validation rawValidationConfig `mapstructure:"validation"`
}

type rawUpstreamConfig struct {
	Endpoint             string            `mapstructure:"endpoint"`
	Headers              map[string]string `mapstructure:"headers"`
	TimeoutSeconds       int               `mapstructure:"timeoutSeconds"`
	HealthTimeoutSeconds int               `mapstructure:"healthTimeoutSeconds"`
	MaxReconnectAttempts int               `mapstructure:"maxReconnectAttempts"`
	ReconnectBaseSeconds int               `mapstructure:"reconnectBaseSeconds"`
	ReconnectMaxSeconds  int               `mapstructure:"reconnectMaxSeconds"`
	MaxResponseBytes     int64             `mapstructure:"maxResponseBytes"`
}

type rawServerConfig struct {
	ListenAddress          string `mapstructure:"listenAddress"`
	AuthToken              string `mapstructure:"authToken"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdownTimeoutSeconds"`
}

type rawSpecConfig struct {
	Title                  string `mapstructure:"title"`
	Version                string `mapstructure:"version"`
	ServerURL              string `mapstructure:"serverURL"`
	TTLSeconds             int    `mapstructure:"ttlSeconds"`
	RefreshSeconds         int    `mapstructure:"refreshSeconds"`
	RegistryRefreshSeconds int    `mapstructure:"registryRefreshSeconds"`
}

type rawValidationConfig struct {
	Mode string `mapstructure:"mode"`
}

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("config")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upstream.timeoutSeconds", domain.DefaultUpstreamTimeoutSeconds)
	v.SetDefault("upstream.healthTimeoutSeconds", domain.DefaultHealthTimeoutSeconds)
	v.SetDefault("upstream.maxReconnectAttempts", domain.DefaultMaxReconnectAttempts)
	v.SetDefault("upstream.reconnectBaseSeconds", domain.DefaultReconnectBaseSeconds)
	v.SetDefault("upstream.reconnectMaxSeconds", domain.DefaultReconnectMaxSeconds)
	v.SetDefault("upstream.maxResponseBytes", domain.DefaultMaxResponseBytes)
	v.SetDefault("server.listenAddress", domain.DefaultListenAddress)
	v.SetDefault("server.shutdownTimeoutSeconds", domain.DefaultShutdownTimeoutSeconds)
	v.SetDefault("spec.title", domain.DefaultSpecTitle)
	v.SetDefault("spec.version", domain.DefaultSpecVersion)
	v.SetDefault("spec.ttlSeconds", domain.DefaultSpecTTLSeconds)
	v.SetDefault("spec.refreshSeconds", domain.DefaultSpecRefreshSeconds)
	v.SetDefault("spec.registryRefreshSeconds", domain.DefaultRegistryRefreshSeconds)
	v.SetDefault("validation.mode", string(domain.DefaultValidationMode))
}

// Load reads the config file at path, expands ${VAR} references from the
// environment, applies defaults, and validates the result.
func (l *Loader) Load(ctx context.Context, path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	expanded, missing := expandEnv(string(data))
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config",
			zap.String("path", path),
			zap.Strings("missing", missing),
		)
	}

	v := newConfigViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	cfg, errs := normalize(raw)
	if len(errs) > 0 {
		return Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

func normalize(raw rawConfig) (Config, []string) {
	var errs []string

	if raw.Upstream.Endpoint == "" {
		errs = append(errs, "upstream.endpoint is required")
	} else if u, err := url.Parse(raw.Upstream.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("upstream.endpoint %q is not a valid URL", raw.Upstream.Endpoint))
	}
	if raw.Upstream.TimeoutSeconds <= 0 {
		errs = append(errs, "upstream.timeoutSeconds must be positive")
	}
	if raw.Upstream.MaxReconnectAttempts < 0 {
		errs = append(errs, "upstream.maxReconnectAttempts must not be negative")
	}
	if raw.Server.AuthToken == "" {
		errs = append(errs, "server.authToken is required")
	}

	mode := domain.ValidationMode(raw.Validation.Mode)
	switch mode {
	case domain.ValidationAdvisory, domain.ValidationStrict:
	case "":
		mode = domain.DefaultValidationMode
	default:
		errs = append(errs, fmt.Sprintf("validation.mode %q must be advisory or strict", raw.Validation.Mode))
	}

	if len(errs) > 0 {
		return Config{}, errs
	}

	return Config{
		Upstream: UpstreamConfig{
			Endpoint:             raw.Upstream.Endpoint,
			Headers:              raw.Upstream.Headers,
			Timeout:              time.Duration(raw.Upstream.TimeoutSeconds) * time.Second,
			HealthTimeout:        time.Duration(raw.Upstream.HealthTimeoutSeconds) * time.Second,
			MaxReconnectAttempts: raw.Upstream.MaxReconnectAttempts,
			ReconnectBase:        time.Duration(raw.Upstream.ReconnectBaseSeconds) * time.Second,
			ReconnectMax:         time.Duration(raw.Upstream.ReconnectMaxSeconds) * time.Second,
			MaxResponseBytes:     raw.Upstream.MaxResponseBytes,
		},
		Server: ServerConfig{
			ListenAddress:   raw.Server.ListenAddress,
			AuthToken:       raw.Server.AuthToken,
			ShutdownTimeout: time.Duration(raw.Server.ShutdownTimeoutSeconds) * time.Second,
		},
		Spec: SpecConfig{
			Title:          raw.Spec.Title,
			Version:        raw.Spec.Version,
			ServerURL:      raw.Spec.ServerURL,
			TTL:            time.Duration(raw.Spec.TTLSeconds) * time.Second,
			RefreshPeriod:  time.Duration(raw.Spec.RefreshSeconds) * time.Second,
			RegistryPeriod: time.Duration(raw.Spec.RegistryRefreshSeconds) * time.Second,
		},
		Validation: ValidationConfig{Mode: mode},
	}, nil
}

// expandEnv substitutes ${VAR} references and reports names that were unset.
// A literal dollar is written as $$.
func expandEnv(data string) (string, []string) {
	var missing []string
	seen := map[string]bool{}
	expanded := os.Expand(data, func(name string) string {
		if name == "$" {
			return "$"
		}
		value, ok := os.LookupEnv(name)
		if !ok && !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
		return value
	})
	return expanded, missing
}

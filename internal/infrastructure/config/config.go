package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	Security     SecurityConfig     `koanf:"security"`
	Collaborator CollaboratorConfig `koanf:"collaborator"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// SecurityConfig holds the authentication policy knobs. SessionTTL is
// a deliberate configuration choice: 8h for the case-scoped flow is the
// default; deployments wanting the stricter 30m profile set it here.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	SessionTTL      time.Duration `koanf:"session_ttl"`
	OTPTTL          time.Duration `koanf:"otp_ttl"`
	LoginRateLimit  int           `koanf:"login_rate_limit"`
	LoginRateWindow time.Duration `koanf:"login_rate_window"`
}

type CollaboratorConfig struct {
	NotifierTimeout   time.Duration `koanf:"notifier_timeout"`
	StorageTimeout    time.Duration `koanf:"storage_timeout"`
	AnchorTimeout     time.Duration `koanf:"anchor_timeout"`
	ClassifierTimeout time.Duration `koanf:"classifier_timeout"`
	DispatchRate      int           `koanf:"dispatch_rate"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		Security: SecurityConfig{
			SessionTTL:      8 * time.Hour,
			OTPTTL:          5 * time.Minute,
			LoginRateLimit:  10,
			LoginRateWindow: time.Minute,
		},
		Collaborator: CollaboratorConfig{
			NotifierTimeout:   5 * time.Second,
			StorageTimeout:    30 * time.Second,
			AnchorTimeout:     10 * time.Second,
			ClassifierTimeout: 5 * time.Second,
			DispatchRate:      50,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("CUSTODIA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CUSTODIA_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode" validate:"oneof=debug release test"`
	Port       int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`
	LogLevel   string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`

	// WebSocket transport.
	ReadLimit  int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	PongWait   time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	WriteWait  time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	SendBuffer int           `mapstructure:"send_buffer" validate:"gt=0"`

	// Matchmaking.
	SweepInterval      time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	SessionMaxAge      time.Duration `mapstructure:"session_max_age" validate:"gte=0"`
	RateLimit          int           `mapstructure:"rate_limit" validate:"gte=0"`
	RateInterval       time.Duration `mapstructure:"rate_interval" validate:"gt=0"`
	BackpressurePolicy string        `mapstructure:"backpressure_policy" validate:"oneof=kick drop"`

	ICEServers     []ICEServer `mapstructure:"ice_servers" validate:"dive"`
	AllowedOrigins []string    `mapstructure:"allowed_origins"`
}

var ErrPingPeriod = errors.New("ping_period must be shorter than pong_wait")

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("sweep_interval", "30s")
	v.SetDefault("session_max_age", "4h")
	v.SetDefault("rate_limit", 200)
	v.SetDefault("rate_interval", "10s")
	v.SetDefault("backpressure_policy", "kick")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
	v.SetDefault("allowed_origins", []string{})
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults when
// the file is missing. ROULETTE_* environment variables override both.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("ROULETTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Dur("sweep_interval", cfg.SweepInterval).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.PingPeriod >= c.PongWait {
		return ErrPingPeriod
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	CORSAllow  []string      `mapstructure:"cors_allow"`

	JWT      JWTConfig      `mapstructure:"jwt"`
	Room     RoomConfig     `mapstructure:"room"`
	Match    MatchConfig    `mapstructure:"match"`
	Rate     RateConfig     `mapstructure:"rate"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Collab   CollabConfig   `mapstructure:"collab"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type RoomConfig struct {
	Grace    time.Duration `mapstructure:"grace"`
	Capacity int           `mapstructure:"capacity"`
}

// MatchConfig.Policy is "preferences" or "fifo".
type MatchConfig struct {
	Policy string `mapstructure:"policy"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

// PostgresConfig with an empty URL disables persistence.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig with an empty Addr disables the display cache.
type RedisConfig struct {
	Addr string        `mapstructure:"addr"`
	DB   int           `mapstructure:"db"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type CollabConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "30s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_allow", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("jwt.secret", "")
	v.SetDefault("room.grace", "60s")
	v.SetDefault("room.capacity", 0)
	v.SetDefault("match.policy", "preferences")
	v.SetDefault("rate.limit", 20)
	v.SetDefault("rate.interval", "1s")
	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "10m")
	v.SetDefault("collab.timeout", "2s")
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults. PAIRUP_*
// environment variables override both, e.g. PAIRUP_ROOM_GRACE=30s.
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
	v.SetEnvPrefix("PAIRUP")
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
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Dur("room_grace", cfg.Room.Grace).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Room.Grace <= 0 {
		errs = append(errs, errors.New("room.grace must be positive"))
	}
	if c.Room.Capacity < 0 {
		errs = append(errs, errors.New("room.capacity must not be negative"))
	}
	if c.Match.Policy != "preferences" && c.Match.Policy != "fifo" {
		errs = append(errs, fmt.Errorf("match.policy %q unknown", c.Match.Policy))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	return errors.Join(errs...)
}

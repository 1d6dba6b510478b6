package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr" validate:"required,hostname_port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	} `mapstructure:"server"`
	Database struct {
		URL string `mapstructure:"url" validate:"required"`
	} `mapstructure:"database"`
	Auth struct {
		BcryptCost int `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
	} `mapstructure:"auth"`
	CORS struct {
		Origins []string `mapstructure:"origins" validate:"dive,url"`
	} `mapstructure:"cors"`
	Log struct {
		Level  string `mapstructure:"level" validate:"required,oneof=trace debug info warn warning error fatal panic"`
		Format string `mapstructure:"format" validate:"required,oneof=text json"`
	} `mapstructure:"log"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from .env, environment variables and an optional
// config file in the working directory.
func Load() (Config, error) {
	_ = godotenv.Load() // optional file; existing env wins

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("VOICELINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the store location keeps its conventional unprefixed name
	if err := v.BindEnv("database.url", "VOICELINK_DATABASE_URL", "DATABASE_URL"); err != nil {
		return Config{}, fmt.Errorf("bind database url: %w", err)
	}

	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.url", "sqlite:///./voicelink.db")
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("cors.origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

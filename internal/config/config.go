package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	TokenSecret    string   `mapstructure:"TOKEN_SECRET"`
	TokenTTLMin    int      `mapstructure:"TOKEN_TTL_MIN"`
	ResetTTLMin    int      `mapstructure:"RESET_TTL_MIN"`
	MigrationsDir  string   `mapstructure:"MIGRATIONS_DIR"`
	BcryptCost     int      `mapstructure:"BCRYPT_COST"`
	SignInPerMin   int      `mapstructure:"SIGNIN_PER_MIN"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TOKEN_TTL_MIN", 60)
	v.SetDefault("RESET_TTL_MIN", 15)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("SIGNIN_PER_MIN", 10)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("TOKEN_SECRET")
	v.BindEnv("TOKEN_TTL_MIN")
	v.BindEnv("RESET_TTL_MIN")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("BCRYPT_COST")
	v.BindEnv("SIGNIN_PER_MIN")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.TokenSecret == "" {
		log.Println("WARNING: TOKEN_SECRET not set; using an insecure development secret.")
		log.Println("WARNING: Set TOKEN_SECRET before deploying (ENV=production refuses to start without it).")
		cfg.TokenSecret = "dev-insecure-token-secret"
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// TOKEN_SECRET must be set so that session tokens cannot be forged.
func (c *Config) Validate() error {
	if !c.IsDev() && (c.TokenSecret == "" || c.TokenSecret == "dev-insecure-token-secret") {
		return fmt.Errorf("TOKEN_SECRET must be set when ENV=%q; refusing to start with a guessable signing key", c.Env)
	}
	if c.TokenTTLMin <= 0 {
		return fmt.Errorf("TOKEN_TTL_MIN must be positive, got %d", c.TokenTTLMin)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	return nil
}

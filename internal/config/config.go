package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	AuthIssuer  string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL string   `mapstructure:"AUTH_JWKS_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Facility default working window, minutes from midnight. Used by slot
	// suggestion for days a doctor has no schedule record.
	ScheduleDayStart int `mapstructure:"SCHEDULE_DAY_START"`
	ScheduleDayEnd   int `mapstructure:"SCHEDULE_DAY_END"`
	SlotMinutes      int `mapstructure:"SLOT_MINUTES"`
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
	v.SetDefault("SCHEDULE_DAY_START", 9*60)
	v.SetDefault("SCHEDULE_DAY_END", 17*60)
	v.SetDefault("SLOT_MINUTES", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SCHEDULE_DAY_START")
	v.BindEnv("SCHEDULE_DAY_END")
	v.BindEnv("SLOT_MINUTES")

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

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active; all requests get admin access.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// either a shared JWT secret or a JWKS endpoint must be configured, and the
// facility working window must be a sane, ordered pair of minute offsets.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("JWT_SECRET or AUTH_JWKS_URL must be set when ENV=%q; refusing to start without authentication", c.Env)
	}
	if c.ScheduleDayStart < 0 || c.ScheduleDayEnd > 24*60 || c.ScheduleDayStart >= c.ScheduleDayEnd {
		return fmt.Errorf("SCHEDULE_DAY_START/SCHEDULE_DAY_END must satisfy 0 <= start < end <= 1440, got %d/%d",
			c.ScheduleDayStart, c.ScheduleDayEnd)
	}
	if c.SlotMinutes <= 0 || c.SlotMinutes > 24*60 {
		return fmt.Errorf("SLOT_MINUTES must be between 1 and 1440, got %d", c.SlotMinutes)
	}
	return nil
}

package config

import (
	"fmt"
	"strings"

	"estimate-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseDriver      string // postgres or sqlite
	DatabaseURL         string
	RedisURL            string
	CatalogPaths        []string // priority order; "db:<source>" reads the RateCatalogEntries table
	CatalogThreshold    float64
	DefaultOverheadRate decimal.Decimal
	DefaultTaxRate      decimal.Decimal
	FrontendURLEndsWith string
	DevPassword         string
	HealthAdminKey      string
	LogLevel            string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("CATALOG_THRESHOLD", 70)
	viper.SetDefault("DEFAULT_OVERHEAD_RATE", domain.DefaultOverheadRate.String())
	viper.SetDefault("DEFAULT_TAX_RATE", domain.DefaultTaxRate.String())
	viper.SetDefault("LOG_LEVEL", "info")

	env := viper.GetString("APP_ENV")
	dbURL := viper.GetString("DATABASE_URL")
	if dbURL == "" && env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	overhead, err := decimal.NewFromString(viper.GetString("DEFAULT_OVERHEAD_RATE"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_OVERHEAD_RATE: %w", err)
	}
	tax, err := decimal.NewFromString(viper.GetString("DEFAULT_TAX_RATE"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TAX_RATE: %w", err)
	}
	threshold := viper.GetFloat64("CATALOG_THRESHOLD")
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("CATALOG_THRESHOLD must be between 0 and 100, got %v", threshold)
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		DatabaseDriver:      strings.ToLower(viper.GetString("DATABASE_DRIVER")),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		CatalogPaths:        splitList(viper.GetString("CATALOG_PATHS")),
		CatalogThreshold:    threshold,
		DefaultOverheadRate: overhead,
		DefaultTaxRate:      tax,
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

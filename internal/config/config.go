package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	GatewayBaseURL      string `env:"GATEWAY_BASE_URL,required"`
	GatewayClientID     string `env:"GATEWAY_CLIENT_ID,required"`
	GatewayClientSecret string `env:"GATEWAY_CLIENT_SECRET,required"`
	GatewayTimeoutS     int    `env:"GATEWAY_TIMEOUT_S" envDefault:"10"`

	Currency   string  `env:"CURRENCY" envDefault:"USD"`
	FeeMode    string  `env:"FEE_MODE" envDefault:"added"`
	FeePercent float64 `env:"FEE_PERCENT" envDefault:"0"`

	// WithdrawalMin is in minor units (500 = 5.00).
	WithdrawalMin int64 `env:"WITHDRAWAL_MIN" envDefault:"500"`

	OrderTTLMin     int `env:"ORDER_TTL_MIN" envDefault:"15"`
	SweepIntervalS  int `env:"SWEEP_INTERVAL_S" envDefault:"60"`
	PayoutIntervalS int `env:"PAYOUT_INTERVAL_S" envDefault:"30"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

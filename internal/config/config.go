package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

type ServicesConfig struct {
	Menu     string
	Customer string
	Payment  string
	Delivery string
}

type HTTPConfig struct {
	Timeout         time.Duration
	Retries         int
	CircuitFailures int
	CircuitReset    time.Duration
}

type Config struct {
	App struct {
		Port string
	}
	Postgres PostgresConfig
	Services ServicesConfig
	HTTP     HTTPConfig
	Order    struct {
		DeliveryFee float64
	}
}

// Load reads configuration from the environment, optionally pre-loading a
// .env file. Database and downstream service addresses are required.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	cfg.App.Port = getenv("APP_PORT", "8080")

	var err error
	if cfg.Postgres.Host, err = require("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Port, err = require("DB_PORT"); err != nil {
		return nil, err
	}
	if cfg.Postgres.User, err = require("DB_USER"); err != nil {
		return nil, err
	}
	if cfg.Postgres.Password, err = require("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Postgres.DBName, err = require("DB_NAME"); err != nil {
		return nil, err
	}
	cfg.Postgres.SSLMode = getenv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getenv("MIGRATIONS_PATH", "migrations")

	if cfg.Services.Menu, err = require("MENU_SVC"); err != nil {
		return nil, err
	}
	if cfg.Services.Customer, err = require("CUST_SVC"); err != nil {
		return nil, err
	}
	if cfg.Services.Payment, err = require("PAY_SVC"); err != nil {
		return nil, err
	}
	if cfg.Services.Delivery, err = require("DELIV_SVC"); err != nil {
		return nil, err
	}

	timeoutMs, err := getenvInt("HTTP_TIMEOUT_MS", 2500)
	if err != nil {
		return nil, err
	}
	cfg.HTTP.Timeout = time.Duration(timeoutMs) * time.Millisecond

	if cfg.HTTP.Retries, err = getenvInt("HTTP_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.HTTP.CircuitFailures, err = getenvInt("CIRCUIT_FAILURES", 5); err != nil {
		return nil, err
	}

	resetMs, err := getenvInt("CIRCUIT_RESET_MS", 20000)
	if err != nil {
		return nil, err
	}
	cfg.HTTP.CircuitReset = time.Duration(resetMs) * time.Millisecond

	fee := getenv("DELIVERY_FEE", "40.0")
	cfg.Order.DeliveryFee, err = strconv.ParseFloat(fee, 64)
	if err != nil {
		return nil, fmt.Errorf("DELIVERY_FEE must be a number, got %q", fee)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func require(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func getenvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

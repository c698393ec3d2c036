package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/efreitasn/bilateralexchange/internal/domain"
)

// Config holds all runtime configuration for the exchange.
type Config struct {
	Port     int
	LogLevel string

	// StoreBackend selects the order store: "memory" or "pebble".
	StoreBackend string
	DataDir      string

	ContractAddress string
	AdminAddress    string
	AskFee          domain.Coins
	BidFee          domain.Coins

	// RegistrySeedFile optionally names a JSON file of markers, scopes,
	// attributes and balances loaded into the in-process registry.
	RegistrySeedFile string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoadFile loads variables from a .env file at path, without overriding
// variables already set, and then calls Load. A missing file is ignored.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return Load()
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	backend := getStr("STORE_BACKEND", "memory")
	if backend != "memory" && backend != "pebble" {
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q, must be one of: memory, pebble", backend)
	}
	dataDir := getStr("DATA_DIR", "data")

	askFee, err := getCoins("ASK_FEE")
	if err != nil {
		return nil, fmt.Errorf("invalid ASK_FEE: %w", err)
	}
	bidFee, err := getCoins("BID_FEE")
	if err != nil {
		return nil, fmt.Errorf("invalid BID_FEE: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:             port,
		LogLevel:         logLevel,
		StoreBackend:     backend,
		DataDir:          dataDir,
		ContractAddress:  getStr("CONTRACT_ADDRESS", "exchange-contract"),
		AdminAddress:     getStr("ADMIN_ADDRESS", "exchange-admin"),
		AskFee:           askFee,
		BidFee:           bidFee,
		RegistrySeedFile: getStr("REGISTRY_SEED_FILE", ""),
		ReadTimeout:      readTimeout,
		WriteTimeout:     writeTimeout,
		IdleTimeout:      idleTimeout,
		ShutdownTimeout:  shutdownTimeout,
	}, nil
}

// Settings returns the initial exchange settings described by c.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		Admin:           c.AdminAddress,
		ContractAddress: c.ContractAddress,
		AskFee:          c.AskFee,
		BidFee:          c.BidFee,
	}
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func getCoins(key string) (domain.Coins, error) {
	return domain.ParseCoins(os.Getenv(key))
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

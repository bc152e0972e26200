package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Economy   EconomyConfig
	Chain     ChainConfig
	RateLimit RateLimitConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Production   bool
}

type DatabaseConfig struct {
	Path string
}

// EconomyConfig holds the tunable economic constants. They are read once at
// process start and treated as immutable for the process lifetime.
type EconomyConfig struct {
	ExchangePoints     int     // points consumed per exchange unit
	ExchangeCoin       int     // coin produced per exchange unit
	BaseUpgradeCost    int
	UpgradeMultiplier  float64
	BasePointsPerClick float64
	ClickMultiplier    float64
	BaseCoinPerHour    float64
	IdleMultiplier     float64
	MaxIdleHours       int
	MinWithdraw        float64
}

// ChainConfig drives the on-chain settlement adapter.
type ChainConfig struct {
	RPCURL          string
	PrivateKey      string
	ContractAddress string
	MethodSignature string
	GasLimit        uint64
	CoinDecimals    int
	Confirmations   uint64
	ConfirmTimeout  time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond int
	BurstSize         int
}

type AdminConfig struct {
	APIKey string
	// StaleProcessingAge is the age after which a request still in processing
	// is reported by the reconciliation sweep.
	StaleProcessingAge time.Duration
	SweepInterval      time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 10)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 10)) * time.Second,
			Production:   getEnv("APP_ENV", "development") == "production",
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./tapcoin.db"),
		},
		Economy: EconomyConfig{
			ExchangePoints:     getEnvAsInt("EXCHANGE_POINTS", 1000),
			ExchangeCoin:       getEnvAsInt("EXCHANGE_COIN", 10),
			BaseUpgradeCost:    getEnvAsInt("UPGRADE_BASE_COST", 30),
			UpgradeMultiplier:  getEnvAsFloat("UPGRADE_MULTIPLIER", 1.5),
			BasePointsPerClick: getEnvAsFloat("CLICK_BASE_POINTS", 25),
			ClickMultiplier:    getEnvAsFloat("CLICK_POINTS_MULTIPLIER", 1.25),
			BaseCoinPerHour:    getEnvAsFloat("IDLE_BASE_COIN", 12),
			IdleMultiplier:     getEnvAsFloat("IDLE_COIN_MULTIPLIER", 1.2),
			MaxIdleHours:       getEnvAsInt("IDLE_MAX_HOURS", 24),
			MinWithdraw:        getEnvAsFloat("MIN_WITHDRAW", 50),
		},
		Chain: ChainConfig{
			RPCURL:          getEnv("CHAIN_RPC_URL", ""),
			PrivateKey:      getEnv("CHAIN_WITHDRAWER_KEY", ""),
			ContractAddress: getEnv("CHAIN_CONTRACT_ADDRESS", ""),
			MethodSignature: getEnv("CHAIN_WITHDRAW_METHOD", "withdraw(address,uint256)"),
			GasLimit:        uint64(getEnvAsInt("CHAIN_WITHDRAW_GAS_LIMIT", 220000)),
			CoinDecimals:    getEnvAsInt("CHAIN_COIN_DECIMALS", 18),
			Confirmations:   uint64(getEnvAsInt("CHAIN_WITHDRAW_CONFIRMATIONS", 1)),
			ConfirmTimeout:  time.Duration(getEnvAsInt("CHAIN_CONFIRM_TIMEOUT", 120)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 10),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Admin: AdminConfig{
			APIKey:             getEnv("ADMIN_API_KEY", ""),
			StaleProcessingAge: time.Duration(getEnvAsInt("STALE_PROCESSING_MINUTES", 30)) * time.Minute,
			SweepInterval:      time.Duration(getEnvAsInt("SWEEP_INTERVAL_MINUTES", 10)) * time.Minute,
		},
	}
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}

package common

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	JWTSecret       string
	StartingBalance float64

	// Anchor connectivity. FabricConfig etc. feed the rich tier,
	// AnchorAPIURL the minimal REST tier.
	FabricConfig    string
	MSP             string
	CertPath        string
	KeyPath         string
	AnchorAPIURL    string
	AnchorChannel   string
	AnchorChaincode string

	DB DBConfig
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	// Path is used by the sqlite driver instead of host/port.
	Path string
}

func LoadConfig() *Config {
	// Missing .env is fine, system env vars still apply.
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
		StartingBalance: getEnvFloat("STARTING_BALANCE", 1000.0),
		FabricConfig:    getEnv("FABRIC_CONFIG", "connection-profile.yaml"),
		MSP:             getEnv("MSP_ID", "BricsMSP"),
		CertPath:        getEnv("CERT_PATH", ""),
		KeyPath:         getEnv("KEY_PATH", ""),
		AnchorAPIURL:    getEnv("ANCHOR_API_URL", "http://localhost:3000/api"),
		AnchorChannel:   getEnv("ANCHOR_CHANNEL", "bricschannel"),
		AnchorChaincode: getEnv("ANCHOR_CHAINCODE", "bricstransfer"),
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "brics_transfer"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "data/brics_transfer.db"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

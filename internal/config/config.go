// Package config loads process configuration from environment variables,
// the same requireEnv/getEnvOrDefault idiom the engine binary used, but
// collected into an explicit struct instead of scattered package-level
// lookups so it can be passed around rather than read from global state.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds every recognized environment option from spec.md §6.
type Config struct {
	Port     string
	NodeEnv  string // dev|test|prod
	Hostname string

	DatabaseURL string
	RedisURL    string

	JWTSecret            string
	PNHashSecret         string
	DeviceHashSecret     string
	VoterHashSecret      string
	APIKeyEncryptSecret  string

	MinKAnonymity     int
	EnablePrivacyNoise bool

	BiometricServiceURL  string
	BiometricTimeoutMS   int
	BiometricMaxRetries  int

	VaultAddr       string
	VaultToken      string
	VaultSecretPath string

	CryptoHasher string // hmac|poseidon

	BackendURL      string
	BlockThreshold  int
	ShieldHealthPort string

	LedgerURL        string
	LedgerPrivateKey string
}

// IsProduction reports whether NodeEnv is "prod".
func (c *Config) IsProduction() bool { return c.NodeEnv == "prod" }

// Load reads the full configuration from the environment. Required secrets
// (per spec.md §4.2) are enforced whenever NODE_ENV is not "test" (dev
// included): min 32 chars.
func Load() (*Config, error) {
	nodeEnv := getEnvOrDefault("NODE_ENV", "dev")

	c := &Config{
		Port:     getEnvOrDefault("PORT", "3000"),
		NodeEnv:  nodeEnv,
		Hostname: hostnameOrDefault(),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		PNHashSecret:        os.Getenv("PN_HASH_SECRET"),
		DeviceHashSecret:    os.Getenv("DEVICE_HASH_SECRET"),
		VoterHashSecret:     os.Getenv("VOTER_HASH_SECRET"),
		APIKeyEncryptSecret: os.Getenv("API_KEY_ENCRYPTION_SECRET"),

		MinKAnonymity:      getEnvInt("MIN_K_ANONYMITY", 30),
		EnablePrivacyNoise: getEnvBool("ENABLE_PRIVACY_NOISE", true),

		BiometricServiceURL: os.Getenv("BIOMETRIC_SERVICE_URL"),
		BiometricTimeoutMS:  getEnvInt("BIOMETRIC_TIMEOUT_MS", 10_000),
		BiometricMaxRetries: getEnvInt("BIOMETRIC_MAX_RETRIES", 1),

		VaultAddr:       os.Getenv("VAULT_ADDR"),
		VaultToken:      os.Getenv("VAULT_TOKEN"),
		VaultSecretPath: os.Getenv("VAULT_SECRET_PATH"),

		CryptoHasher: getEnvOrDefault("CRYPTO_HASHER", "hmac"),

		BackendURL:       os.Getenv("BACKEND_URL"),
		BlockThreshold:   getEnvInt("BLOCK_THRESHOLD", 100),
		ShieldHealthPort: getEnvOrDefault("SHIELD_HEALTH_PORT", "8090"),

		LedgerURL:        os.Getenv("LEDGER_URL"),
		LedgerPrivateKey: os.Getenv("LEDGER_PRIVATE_KEY"),
	}

	if nodeEnv != "test" {
		if err := c.requireSecretsLen32(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Config) requireSecretsLen32() error {
	secrets := map[string]string{
		"JWT_SECRET":                 c.JWTSecret,
		"PN_HASH_SECRET":             c.PNHashSecret,
		"DEVICE_HASH_SECRET":         c.DeviceHashSecret,
		"VOTER_HASH_SECRET":          c.VoterHashSecret,
		"API_KEY_ENCRYPTION_SECRET":  c.APIKeyEncryptSecret,
	}
	for name, val := range secrets {
		if len(val) < 32 {
			return fmt.Errorf("FATAL: %s must be set and at least 32 characters outside test mode", name)
		}
	}
	return nil
}

// RequireEnv reads a required environment variable and fatally exits if it
// is not set. Used for boot-time values that have no safe default.
func RequireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1" || v == "yes"
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the entries-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                   string `mapstructure:"SERVER_PORT"`
	DatabaseURL                  string `mapstructure:"DATABASE_URL"`
	RedisURL                     string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix         string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                  string `mapstructure:"RABBITMQ_URL"`
	StripeAPIBaseURL             string `mapstructure:"STRIPE_API_BASE_URL"`
	StripeSecretKey              string `mapstructure:"STRIPE_SECRET_KEY"`
	JWKSURL                      string `mapstructure:"JWKS_URL"`
	AccountServiceURL            string `mapstructure:"ACCOUNT_SERVICE_URL"`
	AccountServiceInternalAPIKey string `mapstructure:"ACCOUNT_SERVICE_INTERNAL_API_KEY"`
	InternalAPIKey               string `mapstructure:"INTERNAL_API_KEY"`
	Currency                     string `mapstructure:"CURRENCY"`
	PaymentMethodCap             int    `mapstructure:"PAYMENT_METHOD_CAP"`
	SubmissionRateLimitPerMinute int    `mapstructure:"SUBMISSION_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STRIPE_API_BASE_URL", "https://api.stripe.com")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "babawina:rate_limit")
	viper.SetDefault("CURRENCY", "zar")
	viper.SetDefault("PAYMENT_METHOD_CAP", 3)
	viper.SetDefault("SUBMISSION_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "ENTRIES_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("STRIPE_API_BASE_URL")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("ACCOUNT_SERVICE_URL")
	_ = viper.BindEnv("ACCOUNT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "ENTRIES_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("CURRENCY")
	_ = viper.BindEnv("PAYMENT_METHOD_CAP")
	_ = viper.BindEnv("SUBMISSION_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("ENTRIES_SERVICE_INTERNAL_API_KEY"))
	}
	config.AccountServiceInternalAPIKey = strings.TrimSpace(config.AccountServiceInternalAPIKey)
	if config.AccountServiceInternalAPIKey == "" {
		config.AccountServiceInternalAPIKey = config.InternalAPIKey
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "babawina:rate_limit"
	}

	config.Currency = strings.ToLower(strings.TrimSpace(config.Currency))
	if config.Currency == "" {
		config.Currency = "zar"
	}

	if config.PaymentMethodCap <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive payment method cap configured; using default\" cap=%d", config.PaymentMethodCap)
		config.PaymentMethodCap = 3
	}
	if config.SubmissionRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative submission rate limit configured; disabling limiter\" limit=%d", config.SubmissionRateLimitPerMinute)
		config.SubmissionRateLimitPerMinute = 0
	}

	return config, nil
}

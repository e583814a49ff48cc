/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
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

// Config holds all the configuration variables for the service. These values
// are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	EventExchange        string `mapstructure:"EVENT_EXCHANGE"`
	MailAPIBaseURL       string `mapstructure:"MAIL_API_BASE_URL"`
	MailAPIKey           string `mapstructure:"MAIL_API_KEY"`
	MailFromAddress      string `mapstructure:"MAIL_FROM_ADDRESS"`
	MailFromName         string `mapstructure:"MAIL_FROM_NAME"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	AdminEmails          string `mapstructure:"ADMIN_EMAILS"`
	SendTimeoutSeconds   int    `mapstructure:"SEND_TIMEOUT_SECONDS"`
	MaxDeliveryAttempts  int    `mapstructure:"MAX_DELIVERY_ATTEMPTS"`
}

// AdminEmailList splits the configured operator allow list.
func (c Config) AdminEmailList() []string {
	if strings.TrimSpace(c.AdminEmails) == "" {
		return nil
	}
	parts := strings.Split(c.AdminEmails, ",")
	emails := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			emails = append(emails, p)
		}
	}
	return emails
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "zelle:rate_limit")
	viper.SetDefault("EVENT_EXCHANGE", "zelle.events")
	viper.SetDefault("MAIL_FROM_ADDRESS", "no-reply@zelle-style.dev")
	viper.SetDefault("MAIL_FROM_NAME", "Zelle Style")
	viper.SetDefault("SEND_TIMEOUT_SECONDS", 10)
	viper.SetDefault("MAX_DELIVERY_ATTEMPTS", 3)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENT_EXCHANGE")
	_ = viper.BindEnv("MAIL_API_BASE_URL")
	_ = viper.BindEnv("MAIL_API_KEY")
	_ = viper.BindEnv("MAIL_FROM_ADDRESS")
	_ = viper.BindEnv("MAIL_FROM_NAME")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("ADMIN_EMAILS")
	_ = viper.BindEnv("SEND_TIMEOUT_SECONDS")
	_ = viper.BindEnv("MAX_DELIVERY_ATTEMPTS")

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
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "zelle:rate_limit"
	}
	if config.SendTimeoutSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"invalid send timeout; using default\" seconds=%d", config.SendTimeoutSeconds)
		config.SendTimeoutSeconds = 10
	}
	if config.MaxDeliveryAttempts <= 0 {
		log.Printf("level=warn component=config msg=\"invalid attempt bound; using default\" attempts=%d", config.MaxDeliveryAttempts)
		config.MaxDeliveryAttempts = 3
	}

	return
}

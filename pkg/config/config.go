package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Gateway  GatewayConfig
	Storage  StorageConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type AdminConfig struct {
	APISecret string
}

type GatewayConfig struct {
	BaseURL         string
	SubscriptionKey string
	MerchantSerial  string
	CallbackURL     string
	FallbackURL     string
	WebhookSecret   string
	Timeout         time.Duration
}

type StorageConfig struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type EmailConfig struct {
	APIKey string
	From   string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Admin: AdminConfig{
			APISecret: getEnv("ADMIN_API_SECRET", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:         getEnv("PAYMENT_API_URL", "https://apitest.vipps.no"),
			SubscriptionKey: getEnv("PAYMENT_SUBSCRIPTION_KEY", ""),
			MerchantSerial:  getEnv("PAYMENT_MERCHANT_SERIAL", ""),
			CallbackURL:     getEnv("PAYMENT_CALLBACK_URL", ""),
			FallbackURL:     getEnv("PAYMENT_FALLBACK_URL", ""),
			WebhookSecret:   getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			Timeout:         15 * time.Second,
		},
		Storage: StorageConfig{
			Bucket:    getEnv("S3_BUCKET", "bryllupstorget-gallery"),
			Region:    getEnv("S3_REGION", "eu-north-1"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
		Email: EmailConfig{
			APIKey: getEnv("RESEND_API_KEY", ""),
			From:   getEnv("EMAIL_FROM", "Bryllupstorget <no-reply@bryllupstorget.no>"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI  string
	DBName    string
	JWTSecret string
	RedisAddr string

	FrontendURL string

	RazorpayKeyID     string
	RazorpayKeySecret string

	PhonePeClientID     string
	PhonePeClientSecret string
	PhonePeMerchantID   string
	PhonePeBaseURL      string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalBaseURL      string

	SendGridAPIKey string
	EmailFrom      string

	InvoiceServiceURL string

	GatewayTimeout time.Duration

	EstimatedDeliveryDays int
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:  getEnvOrDefault("MONGO_URI", ""),
		DBName:    getEnvOrDefault("DB_NAME", "storefront"),
		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
		RedisAddr: getEnvOrDefault("REDIS_ADDR", ""),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),

		RazorpayKeyID:     getEnvOrDefault("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnvOrDefault("RAZORPAY_KEY_SECRET", ""),

		PhonePeClientID:     getEnvOrDefault("PHONEPE_CLIENT_ID", ""),
		PhonePeClientSecret: getEnvOrDefault("PHONEPE_CLIENT_SECRET", ""),
		PhonePeMerchantID:   getEnvOrDefault("PHONEPE_MERCHANT_ID", ""),
		PhonePeBaseURL:      phonePeBaseURL(),

		PayPalClientID:     getEnvOrDefault("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret: getEnvOrDefault("PAYPAL_CLIENT_SECRET", ""),
		PayPalBaseURL:      getEnvOrDefault("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),

		SendGridAPIKey: getEnvOrDefault("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnvOrDefault("EMAIL_FROM", "orders@storefront.local"),

		InvoiceServiceURL: getEnvOrDefault("INVOICE_SERVICE_URL", ""),

		GatewayTimeout: getDurationEnv("GATEWAY_TIMEOUT", 15, time.Second),

		EstimatedDeliveryDays: getIntEnv("ESTIMATED_DELIVERY_DAYS", 5),
	}
}

func phonePeBaseURL() string {
	if strings.EqualFold(getEnvOrDefault("PHONEPE_ENV", "UAT"), "PRODUCTION") {
		return "https://api.phonepe.com/apis/pg"
	}
	return "https://api-preprod.phonepe.com/apis/pg-sandbox"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

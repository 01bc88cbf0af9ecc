package config

import (
	"fmt"
	"os"
	"time"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

func RegistryBaseURL() string {
	return os.Getenv("REGISTRY_API_URL")
}

func GatewayBaseURL() string {
	return os.Getenv("PAYMENT_GATEWAY_URL")
}

func GatewayMerchantID() string {
	return os.Getenv("PAYMENT_GATEWAY_MERCHANT_ID")
}

// PaymentRedirectURL is where the gateway sends the customer after the
// checkout overlay closes: back to the event's booking page.
func PaymentRedirectURL(eventId string) string {
	return fmt.Sprintf("%s/events/%s", os.Getenv("APP_HOST"), eventId)
}

func SupportContact() string {
	contact := os.Getenv("SUPPORT_CONTACT")
	if contact == "" {
		contact = "support@travelbook.app"
	}
	return contact
}

// Poll cadence and local deadline for a checkout session. The deadline is
// enforced locally regardless of what the gateway reports.
const (
	PAYMENT_POLL_INTERVAL = 10 * time.Second
	PAYMENT_DEADLINE      = 4 * time.Minute
)

const PAYMENT_NOTE = "Payment for your booking. Do not close this window until payment completes."

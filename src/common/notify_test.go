package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionMailCarriesOrderReference(t *testing.T) {
	session := &PaymentSession{
		ID:              "s1",
		EventName:       "City Walking Tour",
		BookingID:       "b1",
		CustomerName:    "Asha Rao",
		CustomerEmail:   "asha@example.com",
		Amount:          1000,
		MerchantOrderID: "mo1",
	}

	input := completionMailInput(session, []string{"/tmp/qr.jpeg"})
	assert.Equal(t, []string{"asha@example.com"}, input.To)
	assert.Contains(t, input.Subject, "City Walking Tour")
	assert.Contains(t, input.Body, "mo1")
	assert.Contains(t, input.Body, "b1")
	assert.Contains(t, input.Body, "1000.00")
	assert.Equal(t, []string{"/tmp/qr.jpeg"}, input.Attachments)
}

func TestCompletionMailWithoutBooking(t *testing.T) {
	session := &PaymentSession{
		ID:              "s2",
		EventName:       "City Walking Tour",
		CustomerName:    "Asha Rao",
		CustomerEmail:   "asha@example.com",
		Amount:          1000,
		MerchantOrderID: "mo2",
	}

	input := completionMailInput(session, nil)
	assert.Contains(t, input.Body, "mo2")
	assert.NotContains(t, input.Body, "booking reference")
}

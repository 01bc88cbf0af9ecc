package common

import (
	"fmt"
	"log"
	"os"
	"tbs/src/config"
	"tbs/src/lib"
	"tbs/src/lib/mailer"
	"tbs/src/utils"
)

var notifyCompleted = NotifyPaymentCompleted

// NewCompletionNotifier Replace the completion hook, used by tests
func NewCompletionNotifier(fn func(*PaymentSession)) {
	if fn == nil {
		notifyCompleted = NotifyPaymentCompleted
		return
	}
	notifyCompleted = fn
}

// completionMailInput builds the confirmation email. The order id is the
// customer's payment reference; the booking reference only exists for
// screening events, so it is appended when the session carries one.
func completionMailInput(session *PaymentSession, attachments []string) *lib.SendMailInput {
	body := fmt.Sprintf(
		"Hi %s,<br/><br/>Your payment of %.2f for <b>%s</b> is confirmed. Your order reference is <b>%s</b>.",
		session.CustomerName,
		session.Amount,
		session.EventName,
		session.MerchantOrderID,
	)
	if session.BookingID != "" {
		body += fmt.Sprintf("<br/>Your booking reference is <b>%s</b>.", session.BookingID)
	}
	body += fmt.Sprintf("<br/><br/>Questions? Reach us at %s.", config.SupportContact())
	return &lib.SendMailInput{
		From:        os.Getenv("EMAIL_SENDER"),
		FromName:    "Bookings",
		To:          []string{session.CustomerEmail},
		Subject:     fmt.Sprintf("Payment confirmed for %s", session.EventName),
		Body:        body,
		Html:        true,
		Attachments: attachments,
	}
}

// NotifyPaymentCompleted sends the confirmation email and a push message.
// Every failure here is swallowed: the payment already succeeded and no
// notification problem may undo that.
func NotifyPaymentCompleted(session *PaymentSession) {
	attachments := []string{}
	qrPath, err := utils.GenerateBookingQR(session.EventName, session.BookingID, session.CustomerID)
	if err != nil {
		log.Printf("[notify] Could not generate QR for session %s: %s\n", session.ID, err.Error())
	} else {
		attachments = append(attachments, qrPath)
	}

	input := completionMailInput(session, attachments)
	if err := mailer.NewMailerMessage(input); err != nil {
		log.Printf("[notify] Could not queue confirmation email for session %s: %s\n", session.ID, err.Error())
		if err := lib.SendMail(input); err != nil {
			log.Printf("[notify] Could not send confirmation email for session %s: %s\n", session.ID, err.Error())
		}
	}

	lib.SendPushNotification(
		session.CustomerUID,
		"Payment confirmed",
		fmt.Sprintf("Your booking for %s is confirmed", session.EventName),
		map[string]string{
			"event_id":   session.EventID,
			"booking_id": session.BookingID,
			"session_id": session.ID,
		},
	)
}

package common

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"tbs/src/config"
	"tbs/src/lib"
	"tbs/src/lib/mailer"
	"tbs/src/types"
)

// DeriveBookingState maps the registry's tri-state approval flag onto the
// UI-facing state. No record means the customer still has to register.
func DeriveBookingState(booking *types.BookingRecord) types.BookingState {
	if booking == nil {
		return types.BOOKING_STATE_REGISTER
	}
	if booking.IsApproved == nil {
		return types.BOOKING_STATE_REGISTERED
	}
	if *booking.IsApproved {
		return types.BOOKING_STATE_APPROVED
	}
	return types.BOOKING_STATE_REJECTED
}

// ResolveBookingState never surfaces a registry failure to the caller. A
// customer who cannot be resolved is shown the registration form, which
// is always a safe place to land.
func ResolveBookingState(identity *types.Identity, eventId string) *types.APIResponseBookingStatus {
	rc := lib.GetRegistryClient()
	booking, err := rc.GetBookingForCustomer(eventId, identity.Bearer)
	if err != nil {
		log.Printf("[booking] Could not resolve state for event %s: %s\n", eventId, err.Error())
		return &types.APIResponseBookingStatus{
			EventID: eventId,
			State:   types.BOOKING_STATE_REGISTER,
		}
	}
	return &types.APIResponseBookingStatus{
		EventID: eventId,
		State:   DeriveBookingState(booking),
		Booking: booking,
	}
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

func ValidPhoneNumber(phone string) bool {
	return phonePattern.MatchString(strings.ReplaceAll(phone, " ", ""))
}

// ValidateRegistration runs the field-level checks the registration form
// needs beyond request binding: phone format and the event's custom form.
// Every declared question must carry a non-empty answer. A non-empty
// result is an expected outcome, not a failure.
func ValidateRegistration(event *types.EventDetail, params *types.RegisterRequestBody) []types.FieldError {
	fieldErrors := make([]types.FieldError, 0)
	if strings.TrimSpace(params.Name) == "" {
		fieldErrors = append(fieldErrors, types.FieldError{Field: "name", Message: "name is required"})
	}
	if !ValidPhoneNumber(params.PhoneNumber) {
		fieldErrors = append(fieldErrors, types.FieldError{Field: "phone_number", Message: "phone number is not valid"})
	}
	for _, field := range event.CustomForm {
		answer, ok := params.CustomFormData[field.Question]
		if !ok || strings.TrimSpace(answer) == "" {
			fieldErrors = append(fieldErrors, types.FieldError{
				Field:   field.Question,
				Message: fmt.Sprintf("%s is required", field.Question),
			})
		}
	}
	return fieldErrors
}

// SubmitRegistration validates against the event's form schema and hands
// the record to the registry. The confirmation email is best-effort and
// never blocks or fails the submission.
func SubmitRegistration(identity *types.Identity, eventId string, kind types.EventKind, params *types.RegisterRequestBody) (*types.BookingRecord, []types.FieldError, error) {
	rc := lib.GetRegistryClient()
	event, err := rc.GetEvent(eventId, kind)
	if err != nil {
		return nil, nil, err
	}
	if fieldErrors := ValidateRegistration(event, params); len(fieldErrors) > 0 {
		return nil, fieldErrors, nil
	}
	record := &types.BookingRecord{
		EventID:        eventId,
		CustomerID:     identity.CustomerID,
		Name:           params.Name,
		PhoneNumber:    params.PhoneNumber,
		Email:          params.Email,
		CustomFormData: params.CustomFormData,
	}
	created, err := rc.CreateBooking(record, identity.Bearer)
	if err != nil {
		return nil, nil, err
	}
	go SendRegistrationEmail(event, created)
	return created, nil, nil
}

func SendRegistrationEmail(event *types.EventDetail, booking *types.BookingRecord) {
	body := fmt.Sprintf(
		"Hi %s,<br/><br/>We received your registration for <b>%s</b>. You will be notified once the organizer reviews it.<br/><br/>Questions? Reach us at %s.",
		booking.Name,
		event.Name,
		config.SupportContact(),
	)
	input := &lib.SendMailInput{
		From:     os.Getenv("EMAIL_SENDER"),
		FromName: "Bookings",
		To:       []string{booking.Email},
		Subject:  fmt.Sprintf("Registration received for %s", event.Name),
		Body:     body,
		Html:     true,
	}
	if err := mailer.NewMailerMessage(input); err != nil {
		log.Printf("[booking] Could not queue confirmation email for %s: %s\n", booking.ID, err.Error())
		if err := lib.SendMail(input); err != nil {
			log.Printf("[booking] Could not send confirmation email for %s: %s\n", booking.ID, err.Error())
		}
	}
}

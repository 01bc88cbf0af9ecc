package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type BookingState string

const (
	BOOKING_STATE_REGISTER   BookingState = "register"
	BOOKING_STATE_REGISTERED BookingState = "registered"
	BOOKING_STATE_APPROVED   BookingState = "approved"
	BOOKING_STATE_REJECTED   BookingState = "rejected"
)

type PaymentState string

const (
	PAYMENT_IDLE      PaymentState = "idle"
	PAYMENT_PENDING   PaymentState = "pending"
	PAYMENT_COMPLETED PaymentState = "completed"
	PAYMENT_FAILED    PaymentState = "failed"
)

func (s PaymentState) Terminal() bool {
	return s == PAYMENT_COMPLETED || s == PAYMENT_FAILED
}

type OrderState string

const (
	ORDER_PENDING   OrderState = "PENDING"
	ORDER_COMPLETED OrderState = "COMPLETED"
	ORDER_FAILED    OrderState = "FAILED"
)

type FailureReason string

const (
	FAIL_GATEWAY   FailureReason = "gateway_failed"
	FAIL_TIMEOUT   FailureReason = "timeout"
	FAIL_EXPIRED   FailureReason = "gateway_expired"
	FAIL_CANCELED  FailureReason = "user_cancel"
	FAIL_INTERNAL  FailureReason = "internal_error"
	FAIL_ABANDONED FailureReason = "abandoned"
)

type SignalKind int

const (
	SIGNAL_CANCELED SignalKind = iota
	SIGNAL_CONCLUDED
	SIGNAL_UNKNOWN
)

// CheckoutSignal is the closed form of the overlay callback's raw string.
// Raw is kept around for logging unrecognized values.
type CheckoutSignal struct {
	Kind SignalKind
	Raw  string
}

func ParseCheckoutSignal(raw string) CheckoutSignal {
	switch raw {
	case "USER_CANCEL":
		return CheckoutSignal{Kind: SIGNAL_CANCELED, Raw: raw}
	case "CONCLUDED":
		return CheckoutSignal{Kind: SIGNAL_CONCLUDED, Raw: raw}
	default:
		return CheckoutSignal{Kind: SIGNAL_UNKNOWN, Raw: raw}
	}
}

type EventKind string

const (
	EVENT_KIND_EVENT      EventKind = "event"
	EVENT_KIND_EXPERIENCE EventKind = "experience"
)

type FormField struct {
	Question string `json:"question"`
}

type EventDetail struct {
	ID             string      `json:"id"`
	Name           string      `json:"event_name"`
	VendorID       string      `json:"vendor_id"`
	FixedPrice     float64     `json:"fixed_price"`
	TicketPrice    float64     `json:"ticket_price"`
	ScreeningEvent bool        `json:"is_screening_event"`
	CustomForm     []FormField `json:"custom_form"`

	Kind EventKind `json:"-"`
}

func (e *EventDetail) BasePrice() float64 {
	if e.Kind == EVENT_KIND_EXPERIENCE {
		return e.TicketPrice
	}
	return e.FixedPrice
}

// IsApproved is a tri-state: nil means the vendor has not reviewed the
// registration yet.
type BookingRecord struct {
	ID             string            `json:"id"`
	EventID        string            `json:"event_id"`
	CustomerID     string            `json:"customer_id"`
	Name           string            `json:"name"`
	PhoneNumber    string            `json:"phone_number"`
	Email          string            `json:"email"`
	CustomFormData map[string]string `json:"custom_form_data"`
	IsApproved     *bool             `json:"is_approved"`
}

type OrderStatus struct {
	State    OrderState `json:"state"`
	OrderID  string     `json:"orderId"`
	Amount   float64    `json:"amount"`
	ExpireAt int64      `json:"expireAt,omitempty"`
}

type RegisterRequestBody struct {
	Name           string            `json:"name" binding:"required"`
	Email          string            `json:"email" binding:"required,email"`
	PhoneNumber    string            `json:"phone_number" binding:"required,phone"`
	CustomFormData map[string]string `json:"custom_form_data,omitempty"`
}

type CheckoutRequestBody struct {
	EventID   string `json:"event_id" binding:"required"`
	EventKind string `json:"event_kind,omitempty"`
	Guests    uint   `json:"guests" binding:"required,min=1"`
}

type CheckoutSignalRequestBody struct {
	Signal string `json:"signal" binding:"required"`
}

type EventURIParams struct {
	ID string `uri:"id" binding:"required"`
}

type SessionURIParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type APIResponseSession struct {
	ID              string       `json:"id"`
	State           PaymentState `json:"state"`
	EventID         string       `json:"event_id,omitempty"`
	MerchantOrderID string       `json:"merchant_order_id,omitempty"`
	RedirectURL     string       `json:"redirect_url,omitempty"`
	Amount          float64      `json:"amount,omitempty"`
	FailureReason   string       `json:"failure_reason,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type APIResponseBookingStatus struct {
	EventID string       `json:"event_id"`
	State   BookingState `json:"state"`

	Booking *BookingRecord `json:"booking,omitempty"`
}

type APIResponseAttempt struct {
	ID              uint       `json:"id"`
	SessionID       string     `json:"session_id"`
	EventID         string     `json:"event_id,omitempty"`
	MerchantOrderID string     `json:"merchant_order_id,omitempty"`
	Amount          float64    `json:"amount,omitempty"`
	State           string     `json:"state"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

type Handler func(payload string)

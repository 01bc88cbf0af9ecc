package common

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"tbs/src/config"
	"tbs/src/lib"
	"tbs/src/types"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBookingMissing   = errors.New("no registration found for this event")
	ErrNotApproved      = errors.New("registration has not been approved")
	ErrPaymentInFlight  = errors.New("a payment is already in progress for this event")
	ErrInvalidAmount    = errors.New("event has no payable price")
	ErrVendorMissing    = errors.New("event has no vendor to receive the payment")
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrSessionNotOwned  = errors.New("checkout session belongs to another customer")
	ErrSessionNotClosed = errors.New("checkout session is still in progress")
)

// PaymentSession is the engine's in-memory record of one checkout attempt.
// Terminal states are final and survive only until the janitor sweeps the
// session out.
type PaymentSession struct {
	ID              string
	EventID         string
	EventKind       types.EventKind
	EventName       string
	VendorID        string
	BookingID       string
	CustomerID      string
	CustomerUID     string
	CustomerEmail   string
	CustomerName    string
	Guests          uint
	Amount          float64
	MerchantOrderID string
	RedirectURL     string
	CreatedAt       time.Time

	mu            sync.Mutex
	state         types.PaymentState
	failureReason types.FailureReason
	expireAt      int64
	deadline      time.Time
	stop          chan struct{}
	stopOnce      sync.Once
	poke          chan struct{}
}

func (s *PaymentSession) State() types.PaymentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *PaymentSession) FailureReason() types.FailureReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureReason
}

// cancel releases the poll loop. It is the only resource a session owns
// and is safe to call any number of times.
func (s *PaymentSession) cancel() {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			close(s.stop)
		}
	})
}

// setTerminal moves the session to a final state exactly once. The first
// transition wins; later calls are ignored.
func (s *PaymentSession) setTerminal(state types.PaymentState, reason types.FailureReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = state
	s.failureReason = reason
	return true
}

func (s *PaymentSession) APIResponse() *types.APIResponseSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	createdAt := s.CreatedAt
	return &types.APIResponseSession{
		ID:              s.ID,
		State:           s.state,
		EventID:         s.EventID,
		MerchantOrderID: s.MerchantOrderID,
		RedirectURL:     s.RedirectURL,
		Amount:          s.Amount,
		FailureReason:   string(s.failureReason),
		CreatedAt:       &createdAt,
	}
}

type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*PaymentSession
}

var sessionRegistry *SessionRegistry

func GetSessionRegistry() *SessionRegistry {
	if sessionRegistry != nil {
		return sessionRegistry
	}
	sessionRegistry = &SessionRegistry{sessions: make(map[string]*PaymentSession)}
	return sessionRegistry
}

// NewSessionRegistry Replace registry instance, used by tests for isolation
func NewSessionRegistry(r *SessionRegistry) *SessionRegistry {
	if r.sessions == nil {
		r.sessions = make(map[string]*PaymentSession)
	}
	sessionRegistry = r
	return sessionRegistry
}

func (r *SessionRegistry) Add(s *PaymentSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *SessionRegistry) Get(id string) *PaymentSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// ActiveForEvent reports a non-terminal session held by the customer for
// the event, if any.
func (r *SessionRegistry) ActiveForEvent(customerId string, eventId string) *PaymentSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.CustomerID == customerId && s.EventID == eventId && !s.State().Terminal() {
			return s
		}
	}
	return nil
}

func (r *SessionRegistry) ForCustomer(customerId string) []*PaymentSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PaymentSession, 0)
	for _, s := range r.sessions {
		if s.CustomerID == customerId {
			out = append(out, s)
		}
	}
	return out
}

// Sweep drops sessions older than maxAge and returns how many were
// removed. A session still open at that age was orphaned by its client,
// so it is failed first; otherwise it would block the customer's next
// checkout for the event forever. The scheduler runs this as a janitor job.
func (r *SessionRegistry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for id, s := range r.sessions {
		if !s.CreatedAt.Before(cutoff) {
			continue
		}
		if !s.State().Terminal() {
			FailSession(s, types.FAIL_ABANDONED)
		}
		delete(r.sessions, id)
		removed++
	}
	return removed
}

// InitiateCheckout runs the preconditions and registers a merchant order
// with the gateway. The registration gate only exists for screening
// events; an open event is payable with no booking record at all. The
// session comes back idle; polling only starts once the overlay reports
// the customer concluded the checkout. Unlike state resolution this fails
// closed: a registry error blocks payment.
func InitiateCheckout(identity *types.Identity, params *types.CheckoutRequestBody) (*PaymentSession, error) {
	rc := lib.GetRegistryClient()
	kind := types.EventKind(params.EventKind)
	event, err := rc.GetEvent(params.EventID, kind)
	if err != nil {
		return nil, err
	}
	bookingId := ""
	if event.ScreeningEvent {
		booking, err := rc.GetBookingForCustomer(params.EventID, identity.Bearer)
		if err != nil {
			return nil, err
		}
		if booking == nil {
			return nil, ErrBookingMissing
		}
		if DeriveBookingState(booking) != types.BOOKING_STATE_APPROVED {
			return nil, ErrNotApproved
		}
		bookingId = booking.ID
	}
	if event.VendorID == "" {
		return nil, ErrVendorMissing
	}
	registry := GetSessionRegistry()
	if active := registry.ActiveForEvent(identity.CustomerID, params.EventID); active != nil {
		return nil, ErrPaymentInFlight
	}
	amount := event.BasePrice() * float64(params.Guests)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	merchantOrderId := uuid.New().String()
	gc := lib.GetGatewayClient()
	res, err := gc.CreatePaymentRequest(&lib.CreatePaymentRequestInput{
		MerchantOrderID: merchantOrderId,
		Amount:          amount,
		Message:         config.PAYMENT_NOTE,
		RedirectURL:     config.PaymentRedirectURL(event.ID),
		MetaInfo: lib.PaymentMetaInfo{
			Udf1: event.ID,
			Udf2: event.VendorID,
			Udf3: bookingId,
			Udf4: identity.CustomerID,
			Udf5: fmt.Sprint(params.Guests),
		},
	})
	if err != nil {
		return nil, err
	}

	session := &PaymentSession{
		ID:              uuid.New().String(),
		EventID:         event.ID,
		EventKind:       event.Kind,
		EventName:       event.Name,
		VendorID:        event.VendorID,
		BookingID:       bookingId,
		CustomerID:      identity.CustomerID,
		CustomerUID:     identity.UID,
		CustomerEmail:   identity.Email,
		CustomerName:    identity.Name,
		Guests:          params.Guests,
		Amount:          amount,
		MerchantOrderID: merchantOrderId,
		RedirectURL:     res.RedirectURL,
		CreatedAt:       time.Now(),
		state:           types.PAYMENT_IDLE,
		expireAt:        res.ExpireAt,
	}
	registry.Add(session)
	lib.CacheSet("order:"+merchantOrderId, session.ID, 24*time.Hour)

	return session, nil
}

// RetryCheckout opens a brand-new session for the same event. The failed
// session is left behind for the audit surface, never reused.
func RetryCheckout(identity *types.Identity, sessionId string) (*PaymentSession, error) {
	registry := GetSessionRegistry()
	prev := registry.Get(sessionId)
	if prev == nil {
		return nil, ErrSessionNotFound
	}
	if prev.CustomerID != identity.CustomerID {
		return nil, ErrSessionNotOwned
	}
	if !prev.State().Terminal() {
		return nil, ErrSessionNotClosed
	}
	return InitiateCheckout(identity, &types.CheckoutRequestBody{
		EventID:   prev.EventID,
		EventKind: string(prev.EventKind),
		Guests:    prev.Guests,
	})
}

// HandleCheckoutSignal applies the overlay's callback. A user cancel is
// trusted as-is and fails the session before any polling starts. Concluded
// arms the tracker; the gateway stays the source of truth for the outcome.
// Unrecognized signals never mutate state and never trigger a poll, so a
// misbehaving caller cannot tighten the status cadence.
func HandleCheckoutSignal(session *PaymentSession, signal types.CheckoutSignal) {
	switch signal.Kind {
	case types.SIGNAL_CANCELED:
		FailSession(session, types.FAIL_CANCELED)
	case types.SIGNAL_CONCLUDED:
		if session.State() == types.PAYMENT_IDLE {
			StartTracking(session)
			return
		}
		session.RequestCheck()
	default:
		log.Printf("[payment] Unrecognized checkout signal %q for session %s\n", signal.Raw, session.ID)
	}
}

// AbandonSession is the explicit teardown path. A session already closed
// stays as it was.
func AbandonSession(session *PaymentSession) {
	FailSession(session, types.FAIL_ABANDONED)
}


package common

import (
	"log"
	"tbs/src/config"
	"tbs/src/db"
	"tbs/src/lib"
	"tbs/src/models"
	"tbs/src/types"
	"time"
)

// TrackerOptions override the poll cadence and local deadline. Tests use
// short values; production always runs the config defaults.
type TrackerOptions struct {
	Interval time.Duration
	Deadline time.Duration
}

func defaultTrackerOptions() *TrackerOptions {
	return &TrackerOptions{
		Interval: config.PAYMENT_POLL_INTERVAL,
		Deadline: config.PAYMENT_DEADLINE,
	}
}

func StartTracking(session *PaymentSession) {
	StartTrackingWithOptions(session, defaultTrackerOptions())
}

// StartTrackingWithOptions moves the session to pending and runs the poll
// loop until a terminal state is reached. The first status check happens
// immediately, not one interval in.
func StartTrackingWithOptions(session *PaymentSession, opts *TrackerOptions) {
	session.mu.Lock()
	if session.state != types.PAYMENT_IDLE {
		session.mu.Unlock()
		return
	}
	session.state = types.PAYMENT_PENDING
	session.deadline = time.Now().Add(opts.Deadline)
	session.stop = make(chan struct{})
	session.poke = make(chan struct{}, 1)
	session.mu.Unlock()

	go func() {
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		for {
			checkSession(session)
			if session.State().Terminal() {
				session.cancel()
				return
			}
			select {
			case <-ticker.C:
			case <-session.poke:
			case <-session.stop:
				return
			}
		}
	}()
}

// RequestCheck asks the poll loop to run a status check now instead of
// waiting for the next tick.
func (s *PaymentSession) RequestCheck() {
	s.mu.Lock()
	poke := s.poke
	s.mu.Unlock()
	if poke == nil {
		return
	}
	select {
	case poke <- struct{}{}:
	default:
	}
}

// checkSession enforces the local deadline and the gateway's expiry before
// ever going to the network. A deadline hit fails the session even if the
// gateway would still call the order pending.
func checkSession(session *PaymentSession) {
	session.mu.Lock()
	deadline := session.deadline
	expireAt := session.expireAt
	merchantOrderId := session.MerchantOrderID
	session.mu.Unlock()

	now := time.Now()
	if now.After(deadline) {
		FailSession(session, types.FAIL_TIMEOUT)
		return
	}
	if expireAt > 0 && now.UnixMilli() > expireAt {
		FailSession(session, types.FAIL_EXPIRED)
		return
	}

	gc := lib.GetGatewayClient()
	status, err := gc.GetOrderStatus(merchantOrderId)
	if err != nil {
		log.Printf("[tracker] Status check failed for order %s: %s\n", merchantOrderId, err.Error())
		return
	}
	if status.ExpireAt > 0 {
		session.mu.Lock()
		session.expireAt = status.ExpireAt
		session.mu.Unlock()
	}
	switch status.State {
	case types.ORDER_COMPLETED:
		CompleteSession(session)
	case types.ORDER_FAILED:
		FailSession(session, types.FAIL_GATEWAY)
	case types.ORDER_PENDING:
	default:
		log.Printf("[tracker] Unknown order state %q for order %s\n", status.State, merchantOrderId)
	}
}

func CompleteSession(session *PaymentSession) {
	if !session.setTerminal(types.PAYMENT_COMPLETED, "") {
		return
	}
	session.cancel()
	log.Printf("[tracker] Session %s completed (order %s)\n", session.ID, session.MerchantOrderID)
	go recordAttempt(session)
	go notifyCompleted(session)
}

func FailSession(session *PaymentSession, reason types.FailureReason) {
	if !session.setTerminal(types.PAYMENT_FAILED, reason) {
		return
	}
	session.cancel()
	log.Printf("[tracker] Session %s failed (order %s): %s\n", session.ID, session.MerchantOrderID, reason)
	go recordAttempt(session)
}

// recordAttempt persists the audit row. The session outcome never depends
// on the database being reachable.
func recordAttempt(session *PaymentSession) {
	conn := db.Current()
	if conn == nil {
		log.Printf("[tracker] No database connection; attempt for session %s not recorded\n", session.ID)
		return
	}
	attempt := models.PaymentAttempt{
		SessionID:       session.ID,
		EventID:         session.EventID,
		CustomerID:      session.CustomerID,
		MerchantOrderID: session.MerchantOrderID,
		Amount:          session.Amount,
		Guests:          session.Guests,
		State:           session.State(),
		FailureReason:   string(session.FailureReason()),
		Metadata: types.JSONB{
			"booking_id": session.BookingID,
			"vendor_id":  session.VendorID,
		},
	}
	if err := conn.Create(&attempt).Error; err != nil {
		log.Printf("[tracker] Could not record attempt for session %s: %s\n", session.ID, err.Error())
	}
}

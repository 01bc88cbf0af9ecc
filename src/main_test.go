package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"tbs/src/common"
	"tbs/src/db"
	"tbs/src/lib"
	"tbs/src/middlewares"
	"tbs/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func generateJWT(customerId string) (string, error) {
	claims := &types.Claims{
		Name:       "Asha Rao",
		Email:      "asha@example.com",
		CustomerID: customerId,
		UID:        "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customerId,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

func newMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}))
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	return gormDB, mock
}

// upstreamStub stands in for the booking registry and the payment
// gateway behind one test server.
type upstreamStub struct {
	mu         sync.Mutex
	event      *types.EventDetail
	booking    *types.BookingRecord
	orderState types.OrderState
}

func (u *upstreamStub) handler(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/events/"):
		json.NewEncoder(w).Encode(u.event)
	case strings.HasPrefix(r.URL.Path, "/api/bookings/event/customer/"):
		if u.booking == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(u.booking)
	case r.URL.Path == "/api/bookings/create":
		var record types.BookingRecord
		json.NewDecoder(r.Body).Decode(&record)
		record.ID = "b1"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&record)
	case r.URL.Path == "/checkout/v2/pay":
		json.NewEncoder(w).Encode(map[string]any{
			"orderId":     "OMO1",
			"state":       "PENDING",
			"redirectUrl": "https://gateway.test/pay/OMO1",
			"expireAt":    time.Now().Add(10 * time.Minute).UnixMilli(),
		})
	case strings.HasSuffix(r.URL.Path, "/status"):
		json.NewEncoder(w).Encode(&types.OrderStatus{State: u.orderState, OrderID: "OMO1"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func approved() *bool {
	v := true
	return &v
}

type MainTestSuite struct {
	suite.Suite

	router *gin.Engine
	stub   *upstreamStub
	server *httptest.Server
	token  string
}

func (s *MainTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	os.Setenv("API_ENV", "local")

	s.stub = &upstreamStub{
		event: &types.EventDetail{
			ID:             "evt1",
			Name:           "City Walking Tour",
			VendorID:       "v1",
			FixedPrice:     500,
			ScreeningEvent: true,
			CustomForm: []types.FormField{
				{Question: "Dietary requirements"},
			},
		},
		booking: &types.BookingRecord{
			ID:         "b1",
			EventID:    "evt1",
			CustomerID: "c1",
			IsApproved: approved(),
		},
		orderState: types.ORDER_PENDING,
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.stub.handler))
	lib.NewRegistryClient(&lib.RegistryClient{BaseURL: s.server.URL})
	lib.NewGatewayClient(&lib.GatewayClient{BaseURL: s.server.URL, MerchantID: "M1"})
	common.NewSessionRegistry(&common.SessionRegistry{})
	common.NewCompletionNotifier(func(*common.PaymentSession) {})

	router := setupRouter()
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("phone", phoneValidatorFunc)
	}
	router = maintenanceModeMiddleware(router)
	publicRoutes(router)
	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	bookingHandlers(authorized)
	paymentHandlers(authorized)
	s.router = router

	token, err := generateJWT("c1")
	if err != nil {
		s.T().Fatalf("could not sign test token: %s", err)
	}
	s.token = token
}

func (s *MainTestSuite) TearDownSuite() {
	common.NewCompletionNotifier(nil)
	s.server.Close()
}

func (s *MainTestSuite) request(method string, target string, body *strings.Reader, token string) *httptest.ResponseRecorder {
	if body == nil {
		body = strings.NewReader("")
	}
	req, _ := http.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *MainTestSuite) TestPingRoute() {
	w := s.request(http.MethodGet, "/", nil, "")
	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *MainTestSuite) TestHealthz() {
	w := s.request(http.MethodGet, "/api/v1/healthz", nil, "")
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "ok", gjson.Get(w.Body.String(), "status").String())
}

func (s *MainTestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")
	w := s.request(http.MethodGet, "/api/v1/healthz", nil, "")
	assert.Equal(s.T(), http.StatusServiceUnavailable, w.Code)
}

func (s *MainTestSuite) TestRejectsMissingToken() {
	w := s.request(http.MethodGet, "/api/v1/payment/attempts", nil, "")
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodGet, "/api/v1/payment/attempts", nil, "not-a-token")
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
}

func (s *MainTestSuite) TestBookingStatus() {
	w := s.request(http.MethodGet, "/api/v1/bookings/event/evt1/status", nil, s.token)
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "approved", gjson.Get(w.Body.String(), "data.state").String())

	s.stub.mu.Lock()
	s.stub.booking = nil
	s.stub.mu.Unlock()
	w = s.request(http.MethodGet, "/api/v1/bookings/event/evt1/status", nil, s.token)
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "register", gjson.Get(w.Body.String(), "data.state").String())

	s.stub.mu.Lock()
	s.stub.booking = &types.BookingRecord{ID: "b1", EventID: "evt1", CustomerID: "c1", IsApproved: approved()}
	s.stub.mu.Unlock()
}

func (s *MainTestSuite) TestRegisterRejectsBadPhone() {
	body := strings.NewReader(`{"name":"Asha Rao","email":"asha@example.com","phone_number":"12"}`)
	w := s.request(http.MethodPost, "/api/v1/bookings/event/evt1/register", body, s.token)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *MainTestSuite) TestRegisterReportsFieldErrors() {
	body := strings.NewReader(`{"name":"Asha Rao","email":"asha@example.com","phone_number":"9876543210"}`)
	w := s.request(http.MethodPost, "/api/v1/bookings/event/evt1/register", body, s.token)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	errs := gjson.Get(w.Body.String(), "errors")
	assert.True(s.T(), errs.IsArray())
	assert.Equal(s.T(), "Dietary requirements", gjson.Get(w.Body.String(), "errors.0.field").String())
}

func (s *MainTestSuite) TestRegisterCreatesBooking() {
	body := strings.NewReader(`{"name":"Asha Rao","email":"asha@example.com","phone_number":"9876543210","custom_form_data":{"Dietary requirements":"Vegetarian"}}`)
	w := s.request(http.MethodPost, "/api/v1/bookings/event/evt1/register", body, s.token)
	assert.Equal(s.T(), http.StatusCreated, w.Code)
	assert.Equal(s.T(), "b1", gjson.Get(w.Body.String(), "data.id").String())
	assert.Equal(s.T(), "c1", gjson.Get(w.Body.String(), "data.customer_id").String())
}

func (s *MainTestSuite) TestCheckoutLifecycle() {
	body := strings.NewReader(`{"event_id":"evt1","event_kind":"event","guests":2}`)
	w := s.request(http.MethodPost, "/api/v1/payment/checkout", body, s.token)
	assert.Equal(s.T(), http.StatusCreated, w.Code)
	res := w.Body.String()
	sessionId := gjson.Get(res, "data.id").String()
	assert.NotEmpty(s.T(), sessionId)
	assert.Equal(s.T(), "idle", gjson.Get(res, "data.state").String())
	assert.Equal(s.T(), "https://gateway.test/pay/OMO1", gjson.Get(res, "data.redirect_url").String())
	assert.Equal(s.T(), float64(1000), gjson.Get(res, "data.amount").Float())

	w = s.request(http.MethodGet, fmt.Sprintf("/api/v1/payment/checkout/%s", sessionId), nil, s.token)
	assert.Equal(s.T(), http.StatusOK, w.Code)

	// A second checkout for the same event is refused while the first is open.
	body = strings.NewReader(`{"event_id":"evt1","event_kind":"event","guests":2}`)
	w = s.request(http.MethodPost, "/api/v1/payment/checkout", body, s.token)
	assert.Equal(s.T(), http.StatusConflict, w.Code)

	// Retrying an open session is refused too.
	w = s.request(http.MethodPost, fmt.Sprintf("/api/v1/payment/checkout/%s/retry", sessionId), nil, s.token)
	assert.Equal(s.T(), http.StatusConflict, w.Code)

	// An unrecognized overlay signal is rejected without touching state.
	w = s.request(http.MethodPost, fmt.Sprintf("/api/v1/payment/checkout/%s/signal", sessionId), strings.NewReader(`{"signal":"SOMETHING_ELSE"}`), s.token)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), "idle", gjson.Get(w.Body.String(), "data.state").String())

	w = s.request(http.MethodPost, fmt.Sprintf("/api/v1/payment/checkout/%s/signal", sessionId), strings.NewReader(`{"signal":"USER_CANCEL"}`), s.token)
	assert.Equal(s.T(), http.StatusAccepted, w.Code)
	assert.Equal(s.T(), "failed", gjson.Get(w.Body.String(), "data.state").String())
	assert.Equal(s.T(), "user_cancel", gjson.Get(w.Body.String(), "data.failure_reason").String())

	w = s.request(http.MethodPost, fmt.Sprintf("/api/v1/payment/checkout/%s/retry", sessionId), nil, s.token)
	assert.Equal(s.T(), http.StatusCreated, w.Code)
	retriedId := gjson.Get(w.Body.String(), "data.id").String()
	assert.NotEqual(s.T(), sessionId, retriedId)

	w = s.request(http.MethodDelete, fmt.Sprintf("/api/v1/payment/checkout/%s", retriedId), nil, s.token)
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "abandoned", gjson.Get(w.Body.String(), "data.failure_reason").String())
}

func (s *MainTestSuite) TestCheckoutOpenEvent() {
	s.stub.mu.Lock()
	s.stub.event.ScreeningEvent = false
	s.stub.booking = nil
	s.stub.mu.Unlock()
	defer func() {
		s.stub.mu.Lock()
		s.stub.event.ScreeningEvent = true
		s.stub.booking = &types.BookingRecord{ID: "b1", EventID: "evt1", CustomerID: "c1", IsApproved: approved()}
		s.stub.mu.Unlock()
	}()

	// No registration gate: the checkout opens without a booking record.
	body := strings.NewReader(`{"event_id":"evt1","event_kind":"event","guests":2}`)
	w := s.request(http.MethodPost, "/api/v1/payment/checkout", body, s.token)
	assert.Equal(s.T(), http.StatusCreated, w.Code)
	sessionId := gjson.Get(w.Body.String(), "data.id").String()
	assert.Equal(s.T(), "idle", gjson.Get(w.Body.String(), "data.state").String())

	w = s.request(http.MethodDelete, fmt.Sprintf("/api/v1/payment/checkout/%s", sessionId), nil, s.token)
	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *MainTestSuite) TestCheckoutRequiresApproval() {
	s.stub.mu.Lock()
	s.stub.booking = &types.BookingRecord{ID: "b1", EventID: "evt1", CustomerID: "c1"}
	s.stub.mu.Unlock()

	body := strings.NewReader(`{"event_id":"evt1","event_kind":"event","guests":2}`)
	w := s.request(http.MethodPost, "/api/v1/payment/checkout", body, s.token)
	assert.Equal(s.T(), http.StatusForbidden, w.Code)

	s.stub.mu.Lock()
	s.stub.booking = nil
	s.stub.mu.Unlock()
	body = strings.NewReader(`{"event_id":"evt1","event_kind":"event","guests":2}`)
	w = s.request(http.MethodPost, "/api/v1/payment/checkout", body, s.token)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)

	s.stub.mu.Lock()
	s.stub.booking = &types.BookingRecord{ID: "b1", EventID: "evt1", CustomerID: "c1", IsApproved: approved()}
	s.stub.mu.Unlock()
}

func (s *MainTestSuite) TestSessionAccess() {
	w := s.request(http.MethodGet, "/api/v1/payment/checkout/00000000-0000-0000-0000-000000000000", nil, s.token)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)

	w = s.request(http.MethodGet, "/api/v1/payment/checkout/not-a-uuid", nil, s.token)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *MainTestSuite) TestAttemptsFallBackToMemory() {
	db.NewDB(nil)
	w := s.request(http.MethodGet, "/api/v1/payment/attempts", nil, s.token)
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.True(s.T(), gjson.Get(w.Body.String(), "data").IsArray())
}

func (s *MainTestSuite) TestAttemptsFromDatabase() {
	gormDB, mock := newMockDB()
	db.NewDB(gormDB)
	defer db.NewDB(nil)

	rows := sqlmock.NewRows([]string{"id", "session_id", "event_id", "customer_id", "merchant_order_id", "amount", "guests", "state", "failure_reason"}).
		AddRow("7b7e52a0-94c8-4bd5-b2b5-3b9af1a0f1aa", "s1", "evt1", "c1", "mo1", 1000.0, 2, "failed", "timeout")
	mock.ExpectQuery(`SELECT (.+) FROM "payment_attempts"`).WillReturnRows(rows)

	w := s.request(http.MethodGet, "/api/v1/payment/attempts?state=failed", nil, s.token)
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), int64(1), gjson.Get(w.Body.String(), "count").Int())
	assert.Equal(s.T(), "s1", gjson.Get(w.Body.String(), "data.0.SessionID").String())
}

func TestMainRunner(t *testing.T) {
	suite.Run(t, new(MainTestSuite))
}

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-checkout/internal/checkout"
	"github.com/iliyamo/cinema-checkout/internal/inventory"
	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/payment"
)

type stubCatalog struct{ st *model.Showtime }

func (s *stubCatalog) GetShowtime(_ context.Context, id uint64) (*model.Showtime, error) {
	if s.st.ID != id {
		return nil, fmt.Errorf("showtime %d not found", id)
	}
	return s.st, nil
}

type stubBookings struct {
	mu      sync.Mutex
	byToken map[string]*model.Booking
	nextID  uint64
	codeSeq int
}

func (s *stubBookings) Create(_ context.Context, b *model.Booking, token string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byToken[token]; ok {
		return existing, nil
	}
	s.nextID++
	stored := *b
	stored.ID = s.nextID
	s.byToken[token] = &stored
	return &stored, nil
}

func (s *stubBookings) GenerateCode(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeSeq++
	return fmt.Sprintf("TEST%04d", s.codeSeq), nil
}

func (s *stubBookings) BookedSeats(_ context.Context, _ uint64) ([]model.SeatID, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) (*CheckoutHandler, *payment.QRAdapter) {
	t.Helper()
	st := &model.Showtime{
		ID:             1,
		MovieTitle:     "Heat",
		HallName:       "Hall 2",
		StartsAt:       time.Now().Add(time.Hour),
		EndsAt:         time.Now().Add(3 * time.Hour),
		BasePriceCents: 90000,
		Seats: []model.SeatInfo{
			{ID: model.SeatID{Row: "A", Number: 1}, Type: model.SeatRegular, PriceCents: 90000},
			{ID: model.SeatID{Row: "A", Number: 2}, Type: model.SeatRegular, PriceCents: 90000},
		},
		TicketTypes: []model.TicketType{{ID: "adult", Name: "Adult", Multiplier: 1.0}},
	}
	qr := payment.NewQRAdapter()
	svc := checkout.NewService(
		inventory.NewStore(),
		&stubCatalog{st: st},
		&stubBookings{byToken: map[string]*model.Booking{}},
		payment.NewRegistry(payment.NewCounterAdapter(), qr),
		nil,
		time.Minute, time.Minute,
	)
	return NewCheckoutHandler(svc, nil, qr), qr
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	require.NoError(t, h(c))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createSession(t *testing.T, h *CheckoutHandler) string {
	t.Helper()
	rec := doJSON(t, h.CreateReservation, http.MethodPost, "/v1/checkout/reservations",
		`{"showtime_id":1,"seats":["A1","A2"],"tickets":{"adult":2}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decode(t, rec)["session"].(map[string]interface{})
	return session["id"].(string)
}

func TestCreateReservationReturnsSessionView(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.CreateReservation, http.MethodPost, "/v1/checkout/reservations",
		`{"showtime_id":1,"seats":["A1","A2"],"tickets":{"adult":2}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	session := decode(t, rec)["session"].(map[string]interface{})
	assert.Equal(t, "collecting_customer_info", session["step"])
	assert.Equal(t, float64(180000), session["total_amount_cents"])
	assert.Regexp(t, `^\d{2}:\d{2}$`, session["remaining_display"])
}

func TestCreateReservationSeatConflictNamesLosers(t *testing.T) {
	h, _ := newTestHandler(t)
	createSession(t, h)

	rec := doJSON(t, h.CreateReservation, http.MethodPost, "/v1/checkout/reservations",
		`{"showtime_id":1,"seats":["A2"],"tickets":{"adult":1}}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "reselect_seats", body["action"])
	assert.Equal(t, []interface{}{"A2"}, body["unavailable"])
}

func TestCreateReservationRejectsBadSeatLabel(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.CreateReservation, http.MethodPost, "/v1/checkout/reservations",
		`{"showtime_id":1,"seats":["1A"],"tickets":{"adult":1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFullCounterCheckoutOverHTTP(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	rec := doJSON(t, h.SubmitCustomerInfo, http.MethodPost, "/",
		`{"full_name":"Ada Lovelace","email":"ada@example.com","phone":"+49123","accepted_terms":true}`,
		"id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode(t, rec)["session"].(map[string]interface{})
	assert.Equal(t, "choosing_payment", session["step"])

	rec = doJSON(t, h.ChoosePayment, http.MethodPost, "/", `{"method_id":"counter"}`, "id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	session = decode(t, rec)["session"].(map[string]interface{})
	assert.Equal(t, "finalized", session["step"])
	booking := session["booking"].(map[string]interface{})
	assert.Equal(t, "CONFIRMED", booking["status"])
	assert.Equal(t, "UNPAID", booking["payment_status"])
}

func TestQRCallbackConfirmsBooking(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	rec := doJSON(t, h.SubmitCustomerInfo, http.MethodPost, "/",
		`{"full_name":"Ada Lovelace","email":"ada@example.com","phone":"+49123","accepted_terms":true}`,
		"id", id)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h.ChoosePayment, http.MethodPost, "/", `{"method_id":"qr_wallet"}`, "id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode(t, rec)["session"].(map[string]interface{})
	require.Equal(t, "awaiting_confirmation", session["step"])
	txID := session["qr"].(map[string]interface{})["transaction_id"].(string)

	rec = doJSON(t, h.ConfirmationStatus, http.MethodGet, "/", "", "id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decode(t, rec)["status"])

	rec = doJSON(t, h.QRCallback, http.MethodPost, "/v1/payments/qr/callback",
		fmt.Sprintf(`{"transaction_id":%q,"status":"paid"}`, txID))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h.ConfirmationStatus, http.MethodGet, "/", "", "id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	booking := body["booking"].(map[string]interface{})
	assert.Equal(t, "PAID", booking["payment_status"])

	// A duplicated callback is acknowledged without changing anything.
	rec = doJSON(t, h.QRCallback, http.MethodPost, "/v1/payments/qr/callback",
		fmt.Sprintf(`{"transaction_id":%q,"status":"failed"}`, txID))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQRCallbackUnknownTransaction(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.QRCallback, http.MethodPost, "/v1/payments/qr/callback",
		`{"transaction_id":"qr-missing","status":"paid"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClosedSessionMapsToGone(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	rec := doJSON(t, h.CancelReservation, http.MethodDelete, "/", "", "id", id)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h.SubmitCustomerInfo, http.MethodPost, "/",
		`{"full_name":"Ada","email":"a@b.c","phone":"1","accepted_terms":true}`, "id", id)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "restart_checkout", decode(t, rec)["action"])
}

func TestUnknownSessionMapsToNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.GetSession, http.MethodGet, "/", "", "id", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "restart_checkout", decode(t, rec)["action"])
}

func TestPaymentMethodsListing(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.PaymentMethods, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	methods := decode(t, rec)["methods"].([]interface{})
	require.Len(t, methods, 2)
	assert.Equal(t, "counter", methods[0].(map[string]interface{})["id"])
}

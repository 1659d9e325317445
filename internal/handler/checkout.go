package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-checkout/internal/checkout"
	"github.com/iliyamo/cinema-checkout/internal/inventory"
	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/payment"
	"github.com/iliyamo/cinema-checkout/internal/repository"
)

// CheckoutHandler exposes the reservation-and-checkout flow over HTTP.
// Every state mutation is delegated to the checkout service; handlers
// only parse input and translate engine errors into responses that
// always name a concrete next action for the customer.
type CheckoutHandler struct {
	Svc   *checkout.Service    // the checkout state machine
	Users *repository.UserRepo // profile lookup for customer-info pre-fill
	QR    *payment.QRAdapter   // confirmation entry point for the QR channel
}

// NewCheckoutHandler constructs a CheckoutHandler.  Svc must be
// non-nil; users and qr may be nil in reduced deployments.
func NewCheckoutHandler(svc *checkout.Service, users *repository.UserRepo, qr *payment.QRAdapter) *CheckoutHandler {
	if svc == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Svc: svc, Users: users, QR: qr}
}

// writeCheckoutError maps engine errors onto the HTTP taxonomy.  The
// "action" field tells the customer how to recover: reselect seats,
// fix the submitted input, retry payment, or restart the flow.
func writeCheckoutError(c echo.Context, err error) error {
	var conflict *inventory.ConflictError
	switch {
	case errors.As(err, &conflict):
		labels := make([]string, len(conflict.Seats))
		for i, s := range conflict.Seats {
			labels[i] = s.Label()
		}
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "some seats are no longer available",
			"unavailable": labels,
			"action":      "reselect_seats",
		})
	case errors.Is(err, inventory.ErrCountMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "seat count must match the ticket count",
			"action": "fix_input",
		})
	case errors.Is(err, checkout.ErrInvalidSelection):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  err.Error(),
			"action": "fix_input",
		})
	case errors.Is(err, checkout.ErrPaymentFailed):
		return c.JSON(http.StatusPaymentRequired, echo.Map{
			"error":  "payment was declined",
			"action": "retry_payment",
		})
	case errors.Is(err, checkout.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":  "reservation session not found",
			"action": "restart_checkout",
		})
	case checkout.IsClosedErr(err):
		return c.JSON(http.StatusGone, echo.Map{
			"error":  "reservation session expired, please restart checkout",
			"action": "restart_checkout",
		})
	case errors.Is(err, repository.ErrShowtimeNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":  "something went wrong, please try again",
			"action": "retry",
		})
	}
}

// parseSeatLabels converts "A1"-style labels into seat identities,
// dropping duplicates while preserving order.
func parseSeatLabels(labels []string) ([]model.SeatID, error) {
	seen := make(map[model.SeatID]struct{}, len(labels))
	out := make([]model.SeatID, 0, len(labels))
	for _, l := range labels {
		id, err := model.ParseSeatID(l)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// CreateReservation handles POST /v1/checkout/reservations.  The body
// names the showtime, the seat labels and the ticket/product
// selections.  When the authenticated customer's profile is complete
// the customer-info step is pre-filled and skipped.  Returns 201 with
// the session view, 409 with the unavailable seats on a hold
// conflict.
func (h *CheckoutHandler) CreateReservation(c echo.Context) error {
	var body struct {
		ShowtimeID uint64                 `json:"showtime_id"`
		Seats      []string               `json:"seats"`
		Tickets    model.TicketSelection  `json:"tickets"`
		Products   model.ProductSelection `json:"products"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ShowtimeID == 0 || len(body.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id and seats are required"})
	}
	seats, err := parseSeatLabels(body.Seats)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	// Load the customer's profile for the auto-skip convenience.  A
	// missing or incomplete profile simply means the info step is shown.
	var profile *model.CustomerInfo
	if userID, err := getUserID(c); err == nil && h.Users != nil {
		if u, uerr := h.Users.GetByID(c.Request().Context(), userID); uerr == nil {
			ci := model.CustomerInfo{FullName: u.FullName, Email: u.Email, Phone: u.Phone}
			if ci.Complete() {
				profile = &ci
			}
		} else if !errors.Is(uerr, sql.ErrNoRows) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}

	view, err := h.Svc.CreateReservation(c.Request().Context(), body.ShowtimeID, seats, body.Tickets, body.Products, profile)
	if err != nil {
		return writeCheckoutError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"session": view})
}

// GetSession handles GET /v1/checkout/reservations/:id.  It returns
// the session's current step, held seats, frozen totals and remaining
// hold time for rendering.
func (h *CheckoutHandler) GetSession(c echo.Context) error {
	view, err := h.Svc.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session": view})
}

// SubmitCustomerInfo handles POST /v1/checkout/reservations/:id/customer.
func (h *CheckoutHandler) SubmitCustomerInfo(c echo.Context) error {
	var body model.CustomerInfo
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	view, err := h.Svc.AdvanceStep(c.Request().Context(), c.Param("id"), checkout.CustomerInfoInput{Info: body})
	if err != nil {
		return writeCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session": view})
}

// ChoosePayment handles POST /v1/checkout/reservations/:id/payment.
// Synchronous methods finalize in place and the response carries the
// booking; asynchronous methods return the QR payload and the session
// enters the confirmation step with a fresh window.
func (h *CheckoutHandler) ChoosePayment(c echo.Context) error {
	var body struct {
		MethodID string `json:"method_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	view, err := h.Svc.AdvanceStep(c.Request().Context(), c.Param("id"), checkout.PaymentChoiceInput{MethodID: body.MethodID})
	if err != nil {
		return writeCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session": view})
}

// CancelQR handles POST /v1/checkout/reservations/:id/payment/cancel.
// It abandons the pending QR charge and returns to method selection;
// seats stay held and the countdown keeps running.
func (h *CheckoutHandler) CancelQR(c echo.Context) error {
	view, err := h.Svc.AdvanceStep(c.Request().Context(), c.Param("id"), checkout.CancelQRInput{})
	if err != nil {
		return writeCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session": view})
}

// GoBack handles POST /v1/checkout/reservations/:id/back.  Navigating
// backward only moves the step pointer; seats and timer are untouched.
func (h *CheckoutHandler) GoBack(c echo.Context) error {
	var body struct {
		Step string `json:"step"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	var to checkout.Step
	switch body.Step {
	case "collecting_customer_info":
		to = checkout.StepCollectingCustomerInfo
	case "choosing_payment":
		to = checkout.StepChoosingPayment
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown step", "action": "fix_input"})
	}
	view, err := h.Svc.AdvanceStep(c.Request().Context(), c.Param("id"), checkout.BackInput{To: to})
	if err != nil {
		return writeCheckoutError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session": view})
}

// ConfirmationStatus handles GET /v1/checkout/reservations/:id/status.
// The presentation layer polls it while the QR payment is pending; a
// success response carries the finalized booking for the receipt view.
func (h *CheckoutHandler) ConfirmationStatus(c echo.Context) error {
	status, booking, err := h.Svc.ConfirmationStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeCheckoutError(c, err)
	}
	resp := echo.Map{"status": status}
	if booking != nil {
		resp["booking"] = booking
	}
	return c.JSON(http.StatusOK, resp)
}

// CancelReservation handles DELETE /v1/checkout/reservations/:id.  It
// releases the held seats and closes the session; cancelling an
// already-closed session is a no-op.
func (h *CheckoutHandler) CancelReservation(c echo.Context) error {
	if err := h.Svc.CancelReservation(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, checkout.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation session not found"})
		}
		return writeCheckoutError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PaymentMethods handles GET /v1/checkout/payment-methods.
func (h *CheckoutHandler) PaymentMethods(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"methods": h.Svc.Methods()})
}

// QRCallback handles POST /v1/payments/qr/callback: the confirming
// party reports the outcome of a QR charge.  Repeat deliveries for a
// transaction that already reached a terminal state are acknowledged
// without effect.
func (h *CheckoutHandler) QRCallback(c echo.Context) error {
	if h.QR == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "qr payments not enabled"})
	}
	var body struct {
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	var paid bool
	switch body.Status {
	case "paid", "success":
		paid = true
	case "failed", "cancelled":
		paid = false
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be paid or failed"})
	}
	if err := h.QR.MarkResult(body.TransactionID, paid); err != nil {
		if errors.Is(err, payment.ErrNoCharge) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown transaction"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record result"})
	}
	return c.JSON(http.StatusOK, echo.Map{"accepted": true, "transaction_id": body.TransactionID})
}

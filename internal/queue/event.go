// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published when a checkout session finalizes
// into a booking.  It carries enough information for the notification
// worker to compose the customer email without querying the primary
// database.
type BookingConfirmedEvent struct {
	BookingID        uint64   `json:"booking_id"`
	BookingCode      string   `json:"booking_code"`
	ShowtimeID       uint64   `json:"showtime_id"`
	MovieTitle       string   `json:"movie_title"`
	HallName         string   `json:"hall_name"`
	StartsAt         string   `json:"starts_at"`
	CustomerName     string   `json:"customer_name"`
	CustomerEmail    string   `json:"customer_email"`
	SeatLabels       []string `json:"seats"`
	TotalAmountCents int64    `json:"total_amount_cents"`
	PaymentMethod    string   `json:"payment_method"`
	PaymentStatus    string   `json:"payment_status"`
	ConfirmedAt      string   `json:"confirmed_at"`
}

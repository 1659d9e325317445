package model

import "time"

// BookingStatus is the lifecycle state of a persisted booking.  New
// bookings start as PENDING or CONFIRMED depending on the payment
// method; later status changes (cancellation, refunds) happen through
// administrative operations outside the checkout engine.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// PaymentStatus tracks whether a booking has been paid.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Booking is the durable record produced exactly once per finalized
// reservation session.  Seat and line-item contents are immutable
// after creation; only the status fields change afterwards.
//
// Fields:
//  ID               – internal primary key.
//  Code             – externally unique, human-presentable booking code.
//  ShowtimeID       – showtime the booking belongs to.
//  CustomerName     – customer info captured during checkout.
//  CustomerEmail    – contact address used for notification.
//  CustomerPhone    – contact phone number.
//  Seats            – seats claimed by the booking.
//  Tickets          – ticket line items with frozen unit prices.
//  Products         – concession line items with frozen unit prices.
//  TotalAmountCents – total frozen at checkout time.
//  PaymentMethod    – identifier of the payment method used.
//  PaymentRef       – transaction id from the payment channel.
//  Status           – booking lifecycle status.
//  PaymentStatus    – whether the booking has been paid.
//  CreatedAt        – creation timestamp (UTC).
type Booking struct {
	ID               uint64        `json:"id"`
	Code             string        `json:"code"`
	ShowtimeID       uint64        `json:"showtime_id"`
	CustomerName     string        `json:"customer_name"`
	CustomerEmail    string        `json:"customer_email"`
	CustomerPhone    string        `json:"customer_phone"`
	Seats            []SeatID      `json:"-"`
	SeatLabels       []string      `json:"seats"`
	Tickets          []BookingLine `json:"tickets"`
	Products         []BookingLine `json:"products"`
	TotalAmountCents int64         `json:"total_amount_cents"`
	PaymentMethod    string        `json:"payment_method"`
	PaymentRef       string        `json:"payment_ref"`
	Status           BookingStatus `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	CreatedAt        time.Time     `json:"created_at"`
}

// BookingLine is one itemized ticket or product entry on a booking.
// Unit prices are frozen copies of the catalog prices at the moment
// the session entered payment, not live references.
type BookingLine struct {
	ItemID         string `json:"item_id"`
	Name           string `json:"name"`
	Quantity       uint32 `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// LineTotal returns quantity times unit price.
func (l BookingLine) LineTotal() int64 { return int64(l.Quantity) * l.UnitPriceCents }

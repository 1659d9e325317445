package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// bookingCodeAlphabet excludes easily confused characters (0/O, 1/I)
// so codes stay readable over the phone and at the counter.
const bookingCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// bookingCodeLength is the fixed length of customer-facing codes.
const bookingCodeLength = 8

// BookingRepo persists finalized bookings: the booking row, its seat
// rows and its itemized ticket/product lines, always within a single
// transaction.  A unique index on idempotency_token makes creation
// safe to retry, and a unique index on code guarantees codes are
// globally unique.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts the booking with all of its seats and line items as
// one atomic unit and returns the stored record with its generated id.
// When the idempotency token already has a booking (a retried finalize
// after a duplicated payment callback) the existing booking is
// returned instead of creating a second one.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, idempotencyToken string) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings
			(code, idempotency_token, showtime_id, customer_name, customer_email, customer_phone,
			 total_amount_cents, payment_method, payment_ref, status, payment_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Code, idempotencyToken, b.ShowtimeID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.TotalAmountCents, b.PaymentMethod, b.PaymentRef, string(b.Status), string(b.PaymentStatus),
		b.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		if isDuplicate(err) {
			// A booking for this token already exists; release the tx
			// locks before reading it back.
			_ = tx.Rollback()
			committed = true
			return r.GetByToken(ctx, idempotencyToken)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if len(b.Seats) > 0 {
		query := `INSERT INTO booking_seats (booking_id, showtime_id, row_label, seat_number) VALUES `
		args := make([]interface{}, 0, len(b.Seats)*4)
		for i, seat := range b.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			args = append(args, id, b.ShowtimeID, seat.Row, seat.Number)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}

	if err := r.insertLines(ctx, tx, uint64(id), "TICKET", b.Tickets); err != nil {
		return nil, err
	}
	if err := r.insertLines(ctx, tx, uint64(id), "PRODUCT", b.Products); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	out := *b
	out.ID = uint64(id)
	return &out, nil
}

// insertLines bulk-inserts one kind of line items for a booking.
func (r *BookingRepo) insertLines(ctx context.Context, tx *sql.Tx, bookingID uint64, kind string, lines []model.BookingLine) error {
	if len(lines) == 0 {
		return nil
	}
	query := `INSERT INTO booking_items (booking_id, kind, item_id, name, quantity, unit_price_cents) VALUES `
	args := make([]interface{}, 0, len(lines)*6)
	for i, l := range lines {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, bookingID, kind, l.ItemID, l.Name, l.Quantity, l.UnitPriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByToken loads the booking created under an idempotency token,
// with seats and line items attached.  Returns ErrBookingNotFound
// when no booking exists for the token.
func (r *BookingRepo) GetByToken(ctx context.Context, token string) (*model.Booking, error) {
	return r.getByWhere(ctx, "idempotency_token = ?", token)
}

// GetByCode loads a booking by its customer-facing code.
func (r *BookingRepo) GetByCode(ctx context.Context, code string) (*model.Booking, error) {
	return r.getByWhere(ctx, "code = ?", code)
}

func (r *BookingRepo) getByWhere(ctx context.Context, where string, arg interface{}) (*model.Booking, error) {
	b := &model.Booking{}
	var status, payStatus string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, showtime_id, customer_name, customer_email, customer_phone,
				total_amount_cents, payment_method, payment_ref, status, payment_status, created_at
		   FROM bookings WHERE `+where+` LIMIT 1`,
		arg,
	).Scan(&b.ID, &b.Code, &b.ShowtimeID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
		&b.TotalAmountCents, &b.PaymentMethod, &b.PaymentRef, &status, &payStatus, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(payStatus)

	seatRows, err := r.db.QueryContext(ctx,
		`SELECT row_label, seat_number FROM booking_seats WHERE booking_id = ? ORDER BY row_label, seat_number`,
		b.ID,
	)
	if err != nil {
		return nil, err
	}
	defer seatRows.Close()
	for seatRows.Next() {
		var s model.SeatID
		if err := seatRows.Scan(&s.Row, &s.Number); err != nil {
			return nil, err
		}
		b.Seats = append(b.Seats, s)
		b.SeatLabels = append(b.SeatLabels, s.Label())
	}
	if err := seatRows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := r.db.QueryContext(ctx,
		`SELECT kind, item_id, name, quantity, unit_price_cents FROM booking_items WHERE booking_id = ? ORDER BY id`,
		b.ID,
	)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var kind string
		var l model.BookingLine
		if err := itemRows.Scan(&kind, &l.ItemID, &l.Name, &l.Quantity, &l.UnitPriceCents); err != nil {
			return nil, err
		}
		if kind == "PRODUCT" {
			b.Products = append(b.Products, l)
		} else {
			b.Tickets = append(b.Tickets, l)
		}
	}
	return b, itemRows.Err()
}

// BookedSeats returns the seats claimed by non-cancelled bookings of a
// showtime.  The inventory store uses this to seed seat states on
// first access.
func (r *BookingRepo) BookedSeats(ctx context.Context, showtimeID uint64) ([]model.SeatID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT bs.row_label, bs.seat_number
		   FROM booking_seats bs
		   JOIN bookings b ON b.id = bs.booking_id
		  WHERE bs.showtime_id = ? AND b.status <> 'CANCELLED'`,
		showtimeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.SeatID
	for rows.Next() {
		var s model.SeatID
		if err := rows.Scan(&s.Row, &s.Number); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// GenerateCode produces an unused fixed-length alphanumeric booking
// code, collision-checked against the bookings table.  The unique
// index on bookings.code remains the last line of defence for races
// between the check and the insert.
func (r *BookingRepo) GenerateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomCode(bookingCodeLength)
		if err != nil {
			return "", err
		}
		var exists bool
		err = r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM bookings WHERE code = ?)`, code,
		).Scan(&exists)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// randomCode draws n characters from the booking code alphabet using
// crypto/rand.
func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(n)
	for _, c := range buf {
		sb.WriteByte(bookingCodeAlphabet[int(c)%len(bookingCodeAlphabet)])
	}
	return sb.String(), nil
}

// isDuplicate reports whether the error is a MySQL duplicate-key
// violation (error 1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

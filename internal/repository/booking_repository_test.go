package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

func testBooking() *model.Booking {
	return &model.Booking{
		Code:          "ABCD2345",
		ShowtimeID:    7,
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		CustomerPhone: "+49123456789",
		Seats: []model.SeatID{
			{Row: "A", Number: 1},
			{Row: "A", Number: 2},
		},
		SeatLabels: []string{"A1", "A2"},
		Tickets: []model.BookingLine{
			{ItemID: "adult", Name: "Adult", Quantity: 2, UnitPriceCents: 90000},
		},
		Products: []model.BookingLine{
			{ItemID: "popcorn", Name: "Popcorn L", Quantity: 1, UnitPriceCents: 25000},
		},
		TotalAmountCents: 205000,
		PaymentMethod:    "counter",
		PaymentRef:       "ctr-123",
		Status:           model.BookingConfirmed,
		PaymentStatus:    model.PaymentUnpaid,
		CreatedAt:        time.Date(2026, 8, 29, 17, 30, 0, 0, time.UTC),
	}
}

func TestCreatePersistsBookingSeatsAndLines(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("INSERT INTO booking_seats").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO booking_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Create(context.Background(), testBooking(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), got.ID)
	assert.Equal(t, "ABCD2345", got.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReturnsExistingBookingOnDuplicateToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'tok-1'"))
	mock.ExpectRollback()

	created := time.Date(2026, 8, 29, 17, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, code, showtime_id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "showtime_id", "customer_name", "customer_email", "customer_phone",
			"total_amount_cents", "payment_method", "payment_ref", "status", "payment_status", "created_at",
		}).AddRow(5, "ABCD2345", 7, "Ada Lovelace", "ada@example.com", "+49123456789",
			205000, "counter", "ctr-123", "CONFIRMED", "UNPAID", created))
	mock.ExpectQuery("SELECT row_label, seat_number FROM booking_seats").
		WillReturnRows(sqlmock.NewRows([]string{"row_label", "seat_number"}).
			AddRow("A", 1).AddRow("A", 2))
	mock.ExpectQuery("SELECT kind, item_id, name, quantity, unit_price_cents").
		WillReturnRows(sqlmock.NewRows([]string{"kind", "item_id", "name", "quantity", "unit_price_cents"}).
			AddRow("TICKET", "adult", "Adult", 2, 90000).
			AddRow("PRODUCT", "popcorn", "Popcorn L", 1, 25000))

	got, err := repo.Create(context.Background(), testBooking(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.ID, "the booking stored under the token is returned")
	assert.Equal(t, []string{"A1", "A2"}, got.SeatLabels)
	require.Len(t, got.Tickets, 1)
	require.Len(t, got.Products, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackOnSeatInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("INSERT INTO booking_seats").
		WillReturnError(errors.New("gone away"))
	mock.ExpectRollback()

	_, err = repo.Create(context.Background(), testBooking(), "tok-1")
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByTokenNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	mock.ExpectQuery("SELECT id, code, showtime_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByToken(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestBookedSeatsSkipsCancelledBookings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	mock.ExpectQuery("SELECT bs.row_label, bs.seat_number").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"row_label", "seat_number"}).
			AddRow("A", 1).AddRow("B", 5))

	seats, err := repo.BookedSeats(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []model.SeatID{{Row: "A", Number: 1}, {Row: "B", Number: 5}}, seats)
}

func TestGenerateCodeRetriesOnCollision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	code, err := repo.GenerateCode(context.Background())
	require.NoError(t, err)
	assert.Len(t, code, bookingCodeLength)
	for _, c := range code {
		assert.Contains(t, bookingCodeAlphabet, string(c))
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateCodeGivesUpAfterRepeatedCollisions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewBookingRepo(db)

	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	}

	_, err = repo.GenerateCode(context.Background())
	assert.ErrorIs(t, err, ErrCodeExhausted)
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// ShowtimeRepo provides read-only access to the showtime catalog: the
// screening itself, its seat layout with display prices, the ticket
// types and the concession products.  The catalog is maintained by
// administrative tooling outside this service; the checkout engine
// only ever reads it.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// GetShowtime loads one showtime together with its seat layout,
// ticket types and the product catalog.  It returns
// ErrShowtimeNotFound when the id does not exist.
func (r *ShowtimeRepo) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	st := &model.Showtime{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, movie_title, hall_name, starts_at, ends_at, base_price_cents
		   FROM showtimes WHERE id = ?`,
		id,
	).Scan(&st.ID, &st.MovieTitle, &st.HallName, &st.StartsAt, &st.EndsAt, &st.BasePriceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}

	seats, err := r.loadSeats(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Seats = seats

	types, err := r.loadTicketTypes(ctx, id)
	if err != nil {
		return nil, err
	}
	st.TicketTypes = types

	products, err := r.loadProducts(ctx)
	if err != nil {
		return nil, err
	}
	st.Products = products
	return st, nil
}

// loadSeats reads the seat layout for a showtime ordered by row and
// number so renderings are stable.
func (r *ShowtimeRepo) loadSeats(ctx context.Context, showtimeID uint64) ([]model.SeatInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT row_label, seat_number, seat_type, price_cents
		   FROM showtime_seats
		  WHERE showtime_id = ?
		  ORDER BY row_label, seat_number`,
		showtimeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.SeatInfo
	for rows.Next() {
		var s model.SeatInfo
		var typ string
		if err := rows.Scan(&s.ID.Row, &s.ID.Number, &typ, &s.PriceCents); err != nil {
			return nil, err
		}
		s.Type = model.SeatType(typ)
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// loadTicketTypes reads the purchasable ticket types of a showtime.
// fixed_price_cents is nullable; when present it overrides the
// multiplier-based price.
func (r *ShowtimeRepo) loadTicketTypes(ctx context.Context, showtimeID uint64) ([]model.TicketType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, multiplier, fixed_price_cents
		   FROM ticket_types
		  WHERE showtime_id = ?
		  ORDER BY id`,
		showtimeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var types []model.TicketType
	for rows.Next() {
		var t model.TicketType
		var fixed sql.NullInt64
		if err := rows.Scan(&t.ID, &t.Name, &t.Multiplier, &fixed); err != nil {
			return nil, err
		}
		if fixed.Valid {
			v := fixed.Int64
			t.FixedPriceCents = &v
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// loadProducts reads the concession catalog.  Products are offered
// uniformly across showtimes.
func (r *ShowtimeRepo) loadProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, price_cents FROM products ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

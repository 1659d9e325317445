package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-checkout/internal/checkout"
	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/repository"
)

// BrowseHandler serves the read-only catalog endpoints guests use
// before entering checkout: showtime details with ticket types and
// products, and the live seat availability snapshot.
type BrowseHandler struct {
	Showtimes *repository.ShowtimeRepo // catalog lookups
	Svc       *checkout.Service        // seat snapshots through the inventory
}

// NewBrowseHandler constructs a BrowseHandler with non-nil deps.
func NewBrowseHandler(showtimes *repository.ShowtimeRepo, svc *checkout.Service) *BrowseHandler {
	if showtimes == nil || svc == nil {
		panic("nil dependency passed to NewBrowseHandler")
	}
	return &BrowseHandler{Showtimes: showtimes, Svc: svc}
}

// parseShowtimeID reads the :id path parameter.
func parseShowtimeID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid showtime id")
	}
	return id, nil
}

// GetShowtime handles GET /v1/showtimes/:id.  It returns the movie,
// schedule, base price, ticket types and products, but not the seat
// states; those come from the snapshot endpoint which is never cached.
func (h *BrowseHandler) GetShowtime(c echo.Context) error {
	id, err := parseShowtimeID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	st, err := h.Showtimes.GetShowtime(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	types := make([]echo.Map, 0, len(st.TicketTypes))
	for _, t := range st.TicketTypes {
		types = append(types, echo.Map{
			"id":               t.ID,
			"name":             t.Name,
			"unit_price_cents": t.UnitPriceCents(st.BasePriceCents),
		})
	}
	products := make([]echo.Map, 0, len(st.Products))
	for _, p := range st.Products {
		products = append(products, echo.Map{
			"id":          p.ID,
			"name":        p.Name,
			"price_cents": p.PriceCents,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":               st.ID,
		"movie_title":      st.MovieTitle,
		"hall_name":        st.HallName,
		"starts_at":        st.StartsAt.UTC().Format(time.RFC3339),
		"ends_at":          st.EndsAt.UTC().Format(time.RFC3339),
		"base_price_cents": st.BasePriceCents,
		"ticket_types":     types,
		"products":         products,
	})
}

// GetSeatSnapshot handles GET /v1/showtimes/:id/seats.  Seat states
// reflect live holds, so concurrent customers see HELD seats as
// unavailable rather than merely BOOKED.
func (h *BrowseHandler) GetSeatSnapshot(c echo.Context) error {
	id, err := parseShowtimeID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	seats, err := h.Svc.SeatSnapshot(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seat snapshot"})
	}
	grouped := make(map[string][]model.SeatStatus)
	var rows []string
	for _, s := range seats {
		if _, ok := grouped[s.ID.Row]; !ok {
			rows = append(rows, s.ID.Row)
		}
		grouped[s.ID.Row] = append(grouped[s.ID.Row], s)
	}
	out := make([]echo.Map, 0, len(rows))
	for _, r := range rows {
		out = append(out, echo.Map{"row": r, "seats": grouped[r]})
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": id, "rows": out})
}

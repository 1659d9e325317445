package checkout

import (
	"fmt"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// buildLines resolves the ticket and product selections against the
// showtime catalog snapshot and freezes them into itemized lines with
// unit prices.  The returned total is what the eventual booking will
// carry; later catalog price changes never reach it because the lines
// copy the prices instead of referencing them.
//
// Unknown ticket or product ids, or a ticket total of zero, fail with
// ErrInvalidSelection.  Zero-quantity entries are dropped.
func buildLines(st *model.Showtime, tickets model.TicketSelection, products model.ProductSelection) (ticketLines, productLines []model.BookingLine, total int64, err error) {
	types := make(map[string]model.TicketType, len(st.TicketTypes))
	for _, t := range st.TicketTypes {
		types[t.ID] = t
	}
	// Iterate catalog order so line ordering is deterministic.
	for _, t := range st.TicketTypes {
		qty, ok := tickets[t.ID]
		if !ok || qty == 0 {
			continue
		}
		line := model.BookingLine{
			ItemID:         t.ID,
			Name:           t.Name,
			Quantity:       qty,
			UnitPriceCents: t.UnitPriceCents(st.BasePriceCents),
		}
		ticketLines = append(ticketLines, line)
		total += line.LineTotal()
	}
	for id, qty := range tickets {
		if _, ok := types[id]; !ok && qty > 0 {
			return nil, nil, 0, fmt.Errorf("%w: unknown ticket type %q", ErrInvalidSelection, id)
		}
	}
	if len(ticketLines) == 0 {
		return nil, nil, 0, fmt.Errorf("%w: no tickets selected", ErrInvalidSelection)
	}

	prods := make(map[string]model.Product, len(st.Products))
	for _, p := range st.Products {
		prods[p.ID] = p
	}
	for _, p := range st.Products {
		qty, ok := products[p.ID]
		if !ok || qty == 0 {
			continue
		}
		line := model.BookingLine{
			ItemID:         p.ID,
			Name:           p.Name,
			Quantity:       qty,
			UnitPriceCents: p.PriceCents,
		}
		productLines = append(productLines, line)
		total += line.LineTotal()
	}
	for id, qty := range products {
		if _, ok := prods[id]; !ok && qty > 0 {
			return nil, nil, 0, fmt.Errorf("%w: unknown product %q", ErrInvalidSelection, id)
		}
	}
	return ticketLines, productLines, total, nil
}

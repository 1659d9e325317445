package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeatID(t *testing.T) {
	cases := []struct {
		in      string
		want    SeatID
		wantErr bool
	}{
		{in: "A1", want: SeatID{Row: "A", Number: 1}},
		{in: "f12", want: SeatID{Row: "F", Number: 12}},
		{in: " AA7 ", want: SeatID{Row: "AA", Number: 7}},
		{in: "A0", wantErr: true},
		{in: "12", wantErr: true},
		{in: "A", wantErr: true},
		{in: "", wantErr: true},
		{in: "A1B", wantErr: true},
	}
	for _, c := range cases {
		got, err := ParseSeatID(c.in)
		if c.wantErr {
			assert.Error(t, err, "input %q", c.in)
			continue
		}
		require.NoError(t, err, "input %q", c.in)
		assert.Equal(t, c.want, got)
		assert.Equal(t, c.want, mustParse(t, got.Label()), "Label must round-trip")
	}
}

func mustParse(t *testing.T, label string) SeatID {
	t.Helper()
	id, err := ParseSeatID(label)
	require.NoError(t, err)
	return id
}

func TestTicketTypeUnitPrice(t *testing.T) {
	adult := TicketType{ID: "adult", Multiplier: 1.0}
	child := TicketType{ID: "child", Multiplier: 0.5}
	assert.Equal(t, int64(90000), adult.UnitPriceCents(90000))
	assert.Equal(t, int64(45000), child.UnitPriceCents(90000))

	// Multiplier results round to the nearest minor unit.
	weird := TicketType{ID: "promo", Multiplier: 0.333}
	assert.Equal(t, int64(29970), weird.UnitPriceCents(90000))

	fixed := int64(70000)
	member := TicketType{ID: "member", Multiplier: 2.0, FixedPriceCents: &fixed}
	assert.Equal(t, fixed, member.UnitPriceCents(90000), "fixed price wins over the multiplier")
}

func TestTicketSelectionTotal(t *testing.T) {
	assert.Zero(t, TicketSelection{}.Total())
	assert.Equal(t, uint32(3), TicketSelection{"adult": 2, "child": 1}.Total())
}

func TestBookingLineTotal(t *testing.T) {
	l := BookingLine{ItemID: "adult", Quantity: 2, UnitPriceCents: 90000}
	assert.Equal(t, int64(180000), l.LineTotal())
}

func TestCustomerInfoComplete(t *testing.T) {
	assert.False(t, CustomerInfo{}.Complete())
	assert.False(t, CustomerInfo{FullName: "Ada", Email: "ada@example.com"}.Complete())
	assert.False(t, CustomerInfo{FullName: "  ", Email: "ada@example.com", Phone: "123"}.Complete())
	assert.True(t, CustomerInfo{FullName: "Ada", Email: "ada@example.com", Phone: "123"}.Complete())
}

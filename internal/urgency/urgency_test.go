package urgency

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/model"
)

func fixedScorer(t *testing.T) Scorer {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, loc)
	return Scorer{Now: func() time.Time { return now }, Loc: loc}
}

func TestDaysSinceFormats(t *testing.T) {
	s := fixedScorer(t)
	cases := []struct {
		in   string
		days int
	}{
		{"2024-03-10T08:00:00.000Z", 10},
		{"2024-03-20T09:00:00Z", 0},
		{"2024-03-17", 3},
		{"13.03.2024", 7},
		{"1.3.2024", 19},
		{"2024-03-19T11:00:00", 1},
	}
	for _, c := range cases {
		d, ok := s.DaysSince(c.in)
		require.True(t, ok, c.in)
		assert.Equal(t, c.days, d, c.in)
	}
}

func TestDaysSinceUnknown(t *testing.T) {
	s := fixedScorer(t)
	for _, in := range []string{"", "  ", "yesterday", "32.13.2024", "2024-02-30"} {
		d, ok := s.DaysSince(in)
		assert.False(t, ok, in)
		assert.Zero(t, d, in)
	}
}

func TestDaysSinceFutureIsNotClamped(t *testing.T) {
	s := fixedScorer(t)
	d, ok := s.DaysSince("2024-03-25T12:00:00+02:00")
	require.True(t, ok)
	assert.Equal(t, -5, d)
}

func TestBands(t *testing.T) {
	assert.Equal(t, BandUnknown, BandFor(0, false))
	assert.Equal(t, BandFresh, BandFor(-2, true))
	assert.Equal(t, BandFresh, BandFor(3, true))
	assert.Equal(t, BandAging, BandFor(4, true))
	assert.Equal(t, BandAging, BandFor(7, true))
	assert.Equal(t, BandStale, BandFor(8, true))
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.0, Score(0, false))
	assert.Equal(t, 0.0, Score(99, false))
	assert.Equal(t, 3.0, Score(6, true))
	assert.Equal(t, 6.5, Score(7, true))
	assert.Equal(t, 8.0, Score(10, true))
}

func TestStaleOrders(t *testing.T) {
	s := fixedScorer(t)
	orders := []model.Order{
		{ID: "a", Created: "2024-03-13", OrderStatus: model.OrderWaiting},
		{ID: "b", Created: "2024-03-01", OrderStatus: model.OrderDelivered},
		{ID: "c", Created: "bad", OrderStatus: model.OrderWaiting},
		{ID: "d", Created: "2024-03-01", OrderStatus: model.OrderOutOfStock},
		{ID: "e", Created: "2024-03-18", OrderStatus: model.OrderWaiting},
	}
	stale := s.Stale(orders)
	require.Len(t, stale, 2)
	assert.Equal(t, "d", stale[0].ID)
	assert.Equal(t, "a", stale[1].ID)
	assert.False(t, s.IsStale(orders[2]))
}

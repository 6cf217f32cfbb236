// Package urgency derives order age and priority from the created timestamp.
package urgency

import (
	"math"
	"sort"
	"strings"
	"time"

	"routedesk/internal/model"
)

// StaleThresholdDays is the age at which an open order needs attention.
const StaleThresholdDays = 7

// Band is a display bucket for order age.
type Band string

const (
	BandFresh   Band = "fresh"
	BandAging   Band = "aging"
	BandStale   Band = "stale"
	BandUnknown Band = "unknown"
)

// Scorer computes ages relative to Now. Loc is used for timestamps that carry
// no zone of their own (legacy DD.MM.YYYY and zone-less ISO values).
type Scorer struct {
	Now func() time.Time
	Loc *time.Location
}

// New returns a scorer on the wall clock in loc.
func New(loc *time.Location) Scorer {
	if loc == nil {
		loc = time.Local
	}
	return Scorer{Now: time.Now, Loc: loc}
}

func (s Scorer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s Scorer) loc() *time.Location {
	if s.Loc == nil {
		return time.Local
	}
	return s.Loc
}

// Parse reads a created timestamp. ok is false for empty or unparsable input.
func (s Scorer) Parse(created string) (time.Time, bool) {
	created = strings.TrimSpace(created)
	if created == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		return t, true
	}
	// Date-only ISO values are taken as UTC midnight.
	if t, err := time.Parse("2006-01-02", created); err == nil {
		return t, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2.1.2006"} {
		if t, err := time.ParseInLocation(layout, created, s.loc()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysSince returns whole days elapsed since created, floored. Future dates
// yield negative values. ok is false when the age is unknown.
func (s Scorer) DaysSince(created string) (days int, ok bool) {
	t, ok := s.Parse(created)
	if !ok {
		return 0, false
	}
	d := s.now().Sub(t).Hours() / 24
	return int(math.Floor(d)), true
}

// BandFor buckets an age: fresh up to 3 days, aging up to 7, stale beyond.
func BandFor(days int, ok bool) Band {
	switch {
	case !ok:
		return BandUnknown
	case days <= 3:
		return BandFresh
	case days <= StaleThresholdDays:
		return BandAging
	default:
		return BandStale
	}
}

// Score is the route-priority score: 3 points once stale plus half a point per
// day. Unknown ages score as zero days.
func Score(days int, ok bool) float64 {
	if !ok {
		days = 0
	}
	score := float64(days) * 0.5
	if days >= StaleThresholdDays {
		score += 3
	}
	return score
}

// Band returns the age band of an order.
func (s Scorer) Band(o model.Order) Band {
	return BandFor(s.DaysSince(o.Created))
}

// OrderScore returns the route-priority score of an order.
func (s Scorer) OrderScore(o model.Order) float64 {
	return Score(s.DaysSince(o.Created))
}

// IsStale reports whether an undelivered order is at least a week old.
// Orders of unknown age are never stale.
func (s Scorer) IsStale(o model.Order) bool {
	if o.OrderStatus == model.OrderDelivered {
		return false
	}
	days, ok := s.DaysSince(o.Created)
	return ok && days >= StaleThresholdDays
}

// Stale returns the stale orders, oldest first, preserving input order on ties.
func (s Scorer) Stale(orders []model.Order) []model.Order {
	type aged struct {
		o    model.Order
		days int
	}
	var out []aged
	for _, o := range orders {
		if !s.IsStale(o) {
			continue
		}
		d, _ := s.DaysSince(o.Created)
		out = append(out, aged{o, d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].days > out[j].days })
	res := make([]model.Order, len(out))
	for i, a := range out {
		res[i] = a.o
	}
	return res
}

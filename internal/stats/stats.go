// Package stats summarises an order snapshot for the dashboard.
package stats

import (
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"routedesk/internal/geo"
	"routedesk/internal/model"
	"routedesk/internal/urgency"
)

// UnknownWorker labels orders without an opened-by value.
const UnknownWorker = "לא ידוע"

type OrderStatusCounts struct {
	Waiting    int `json:"waiting"`
	Scheduled  int `json:"scheduled"`
	OutOfStock int `json:"outOfStock"`
	Delivered  int `json:"delivered"`
}

type TaskStatusCounts struct {
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Done       int `json:"done"`
}

// Summary is the dashboard header data.
type Summary struct {
	Total             int               `json:"total"`
	ByOrderStatus     OrderStatusCounts `json:"byOrderStatus"`
	ByWorker          map[string]int    `json:"byWorker"`
	ByStatus          TaskStatusCounts  `json:"byStatus"`
	UniqueCities      []string          `json:"uniqueCities"`
	TodayCount        int               `json:"todayCount"`
	ThisWeekDelivered int               `json:"thisWeekDelivered"`
	StaleCount        int               `json:"staleCount"`
	// WaitingByZone counts waiting orders per zone id; every zone is present.
	WaitingByZone map[string]int `json:"waitingByZone"`
	// Unzoned counts waiting orders whose city maps to no zone.
	Unzoned int `json:"unzoned"`
}

// Zoner maps a city to its delivery zone.
type Zoner interface {
	ZoneFor(city string) (geo.Zone, bool)
	Zones() []geo.Zone
}

// Compute builds the summary. Day boundaries use the scorer's location and
// weeks start on Sunday.
func Compute(orders []model.Order, s urgency.Scorer, z Zoner) Summary {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	loc := s.Loc
	if loc == nil {
		loc = time.Local
	}
	today := startOfDay(now().In(loc))
	weekStart := today.AddDate(0, 0, -int(today.Weekday()))

	sum := Summary{
		Total:         len(orders),
		ByWorker:      map[string]int{},
		UniqueCities:  []string{},
		WaitingByZone: map[string]int{},
	}
	if z != nil {
		for _, zone := range z.Zones() {
			sum.WaitingByZone[zone.ID] = 0
		}
	}

	seen := map[string]bool{}
	for _, o := range orders {
		switch o.OrderStatus {
		case model.OrderWaiting:
			sum.ByOrderStatus.Waiting++
			if z != nil {
				if zone, ok := z.ZoneFor(o.City); ok {
					sum.WaitingByZone[zone.ID]++
				} else {
					sum.Unzoned++
				}
			}
		case model.OrderScheduled:
			sum.ByOrderStatus.Scheduled++
		case model.OrderOutOfStock:
			sum.ByOrderStatus.OutOfStock++
		case model.OrderDelivered:
			sum.ByOrderStatus.Delivered++
		}

		worker := strings.TrimSpace(o.OpenedBy)
		if worker == "" {
			worker = UnknownWorker
		}
		sum.ByWorker[worker]++

		switch o.Status {
		case model.TaskInProgress:
			sum.ByStatus.InProgress++
		case model.TaskDone:
			sum.ByStatus.Done++
		case model.TaskTodo, "":
			sum.ByStatus.Todo++
		}

		if c := strings.TrimSpace(o.City); c != "" && !seen[c] {
			seen[c] = true
			sum.UniqueCities = append(sum.UniqueCities, c)
		}

		if created, ok := s.Parse(o.Created); ok {
			day := startOfDay(created.In(loc))
			if day.Equal(today) {
				sum.TodayCount++
			}
			if o.OrderStatus == model.OrderDelivered && !day.Before(weekStart) {
				sum.ThisWeekDelivered++
			}
		}
		if s.IsStale(o) {
			sum.StaleCount++
		}
	}
	collate.New(language.Hebrew).SortStrings(sum.UniqueCities)
	return sum
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Partition splits orders into the three dashboard columns: not yet scheduled
// (waiting or out of stock), scheduled, and delivered.
type Partition struct {
	Unscheduled []model.Order `json:"unscheduled"`
	Scheduled   []model.Order `json:"scheduled"`
	Delivered   []model.Order `json:"delivered"`
}

func Split(orders []model.Order) Partition {
	p := Partition{Unscheduled: []model.Order{}, Scheduled: []model.Order{}, Delivered: []model.Order{}}
	for _, o := range orders {
		switch o.OrderStatus {
		case model.OrderScheduled:
			p.Scheduled = append(p.Scheduled, o)
		case model.OrderDelivered:
			p.Delivered = append(p.Delivered, o)
		default:
			p.Unscheduled = append(p.Unscheduled, o)
		}
	}
	return p
}

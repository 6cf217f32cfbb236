// Package recommend surfaces cities where enough orders have piled up to be
// worth a dedicated delivery run.
package recommend

import (
	"sort"

	"routedesk/internal/model"
	"routedesk/internal/urgency"
)

// Cluster is one recommended city.
type Cluster struct {
	City       string        `json:"city"`
	Orders     []model.Order `json:"orders"`
	TotalCount int           `json:"totalCount"`
	OldCount   int           `json:"oldCount"`
	OldestDays int           `json:"oldestDays"`
	Score      float64       `json:"score"`
}

// Options tune Recommend. Zero values take the defaults.
type Options struct {
	MinClusterSize int
	TopN           int
}

const (
	DefaultMinClusterSize = 2
	DefaultTopN           = 3
)

var (
	// RouteStatuses is the status set used when planning routes.
	RouteStatuses = []model.OrderStatus{model.OrderWaiting, model.OrderScheduled}
	// CoordinationStatuses is the status set used when coordinating with customers.
	CoordinationStatuses = []model.OrderStatus{model.OrderWaiting}
)

// Recommend groups orders by exact city, drops groups smaller than
// MinClusterSize and returns the TopN by score
// oldCount*3 + size + oldestDays*0.5. Ties are broken by city name.
func Recommend(s urgency.Scorer, orders []model.Order, statuses []model.OrderStatus, opts Options) []Cluster {
	if opts.MinClusterSize <= 0 {
		opts.MinClusterSize = DefaultMinClusterSize
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	allowed := make(map[model.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		allowed[st] = true
	}

	groups := map[string]*Cluster{}
	for _, o := range orders {
		if !o.Deliverable() || !allowed[o.OrderStatus] {
			continue
		}
		c, ok := groups[o.City]
		if !ok {
			c = &Cluster{City: o.City}
			groups[o.City] = c
		}
		c.Orders = append(c.Orders, o)
		days, known := s.DaysSince(o.Created)
		if !known {
			days = 0
		}
		if days >= urgency.StaleThresholdDays {
			c.OldCount++
		}
		if days > c.OldestDays {
			c.OldestDays = days
		}
	}

	out := make([]Cluster, 0, len(groups))
	for _, c := range groups {
		c.TotalCount = len(c.Orders)
		if c.TotalCount < opts.MinClusterSize {
			continue
		}
		c.Score = float64(c.OldCount)*3 + float64(c.TotalCount) + float64(c.OldestDays)*0.5
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].City < out[j].City
	})
	if len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	return out
}

package model

import (
	"fmt"
	"time"
)

// Canonical route field names.
const (
	FieldRouteName         = "routeName"
	FieldDriver            = "driver"
	FieldDeliveryDate      = "deliveryDate"
	FieldRouteStatus       = "status"
	FieldOrderIDs          = "orderIds"
	FieldStops             = "stops"
	FieldStopCount         = "stopCount"
	FieldEstimatedDistance = "estimatedDistance"
	FieldEstimatedTime     = "estimatedTime"
	FieldNotes             = "notes"
)

var RouteFields = []string{
	FieldRouteName, FieldDriver, FieldDeliveryDate, FieldRouteStatus, FieldOrderIDs,
	FieldStops, FieldStopCount, FieldEstimatedDistance, FieldEstimatedTime, FieldNotes,
}

type RouteStatus string

const (
	RouteApproved   RouteStatus = "approved"
	RouteInProgress RouteStatus = "in-progress"
	RouteCompleted  RouteStatus = "completed"
	RouteCancelled  RouteStatus = "cancelled"
)

var routeTransitions = map[RouteStatus][]RouteStatus{
	RouteApproved:   {RouteInProgress, RouteCancelled},
	RouteInProgress: {RouteCompleted},
}

func (s RouteStatus) Valid() bool {
	switch s {
	case RouteApproved, RouteInProgress, RouteCompleted, RouteCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s RouteStatus) IsTerminal() bool {
	return s == RouteCompleted || s == RouteCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s RouteStatus) CanTransitionTo(next RouteStatus) bool {
	for _, allowed := range routeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s RouteStatus) Label() string {
	switch s {
	case RouteApproved:
		return "מאושר"
	case RouteInProgress:
		return "בביצוע"
	case RouteCompleted:
		return "הושלם"
	case RouteCancelled:
		return "בוטל"
	}
	return string(s)
}

// Driver is one of the fixed set of named drivers.
type Driver string

const (
	DriverRudi     Driver = "רודי דויד"
	DriverExternal Driver = "נהג חיצוני מועלם"
)

var Drivers = []Driver{DriverRudi, DriverExternal}

func (d Driver) Valid() bool {
	for _, known := range Drivers {
		if d == known {
			return true
		}
	}
	return false
}

// RouteStop is one delivery point. ID is the order id.
type RouteStop struct {
	ID           string `json:"id"`
	CustomerName string `json:"customerName"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Sequence     int    `json:"sequence"`
}

// StopFromOrder builds the stop for o at the given 1-based position.
func StopFromOrder(o Order, seq int) RouteStop {
	return RouteStop{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		Address:      o.Address,
		City:         o.City,
		Phone:        o.Phone,
		Sequence:     seq,
	}
}

// ApprovedRoute is the persisted route record.
type ApprovedRoute struct {
	ID                string      `json:"id"`
	RouteName         string      `json:"routeName"`
	Driver            Driver      `json:"driver"`
	DeliveryDate      string      `json:"deliveryDate"`
	Status            RouteStatus `json:"status"`
	OrderIDs          []string    `json:"orderIds"`
	Stops             []RouteStop `json:"stops"`
	StopCount         int         `json:"stopCount"`
	EstimatedDistance int         `json:"estimatedDistance"`
	EstimatedTime     int         `json:"estimatedTime"`
	Notes             string      `json:"notes,omitempty"`
	Created           time.Time   `json:"created"`
}

// CheckShape verifies that the stop list, order ids and stop count agree and
// that sequences run 1..N.
func (r ApprovedRoute) CheckShape() error {
	if r.StopCount != len(r.Stops) || len(r.Stops) != len(r.OrderIDs) {
		return fmt.Errorf("route %s: stopCount=%d stops=%d orderIds=%d", r.ID, r.StopCount, len(r.Stops), len(r.OrderIDs))
	}
	for i, s := range r.Stops {
		if s.Sequence != i+1 {
			return fmt.Errorf("route %s: stop %s has sequence %d at position %d", r.ID, s.ID, s.Sequence, i+1)
		}
	}
	return nil
}

// RoutePatch is a partial route update. Nil fields are left untouched.
type RoutePatch struct {
	Status   *RouteStatus `json:"status,omitempty"`
	Notes    *string      `json:"notes,omitempty"`
	Stops    *[]RouteStop `json:"stops,omitempty"`
	OrderIDs *[]string    `json:"orderIds,omitempty"`
	// StopCount is derived from Stops when Stops is set.
	StopCount *int `json:"stopCount,omitempty"`
}

// WithStops sets the stop list together with the matching order ids and count.
func (p RoutePatch) WithStops(stops []RouteStop) RoutePatch {
	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	n := len(stops)
	p.Stops = &stops
	p.OrderIDs = &ids
	p.StopCount = &n
	return p
}

// Apply returns a copy of r with the patch applied.
func (p RoutePatch) Apply(r ApprovedRoute) ApprovedRoute {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.Stops != nil {
		r.Stops = append([]RouteStop(nil), (*p.Stops)...)
	}
	if p.OrderIDs != nil {
		r.OrderIDs = append([]string(nil), (*p.OrderIDs)...)
	}
	if p.StopCount != nil {
		r.StopCount = *p.StopCount
	}
	return r
}

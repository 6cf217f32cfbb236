// Package navlink builds navigation-app links for a sequence of stops.
package navlink

import (
	"net/url"
	"strings"

	"routedesk/internal/model"
)

const (
	directionsBase = "https://www.google.com/maps/dir/"
	searchBase     = "https://www.google.com/maps/search/"
	wazeBase       = "https://waze.com/ul"

	// MaxStops is origin + destination + MaxWaypoints.
	MaxStops     = 11
	MaxWaypoints = MaxStops - 2
)

// Link is a directions URL. Truncated is set when stops beyond the cap were
// left out; the caller is expected to tell the user.
type Link struct {
	URL       string `json:"url"`
	Stops     int    `json:"stops"`
	Truncated bool   `json:"truncated"`
	Omitted   int    `json:"omitted,omitempty"`
}

// Place renders "address, city", or whichever half is present.
func Place(address, city string) string {
	address, city = strings.TrimSpace(address), strings.TrimSpace(city)
	switch {
	case address == "":
		return city
	case city == "":
		return address
	}
	return address + ", " + city
}

// Places renders the stops of a route in sequence order, skipping stops with
// neither address nor city.
func Places(stops []model.RouteStop) []string {
	out := make([]string, 0, len(stops))
	for _, st := range stops {
		if p := Place(st.Address, st.City); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// OrderPlaces is Places for orders.
func OrderPlaces(orders []model.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		if p := Place(o.Address, o.City); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Directions builds a driving directions URL through places. With an empty
// origin the first place is the origin. At most MaxWaypoints intermediate
// places are kept; the last kept place is the destination. Places past the
// cap are dropped, not split into another link.
func Directions(places []string, origin string) Link {
	origin = strings.TrimSpace(origin)
	if len(places) == 0 {
		return Link{}
	}

	limit := MaxStops
	if origin != "" {
		limit = MaxStops - 1
	}
	var link Link
	if len(places) > limit {
		link.Truncated = true
		link.Omitted = len(places) - limit
		places = places[:limit]
	}

	q := url.Values{}
	q.Set("api", "1")
	q.Set("travelmode", "driving")
	q.Set("destination", places[len(places)-1])
	var waypoints []string
	switch {
	case origin != "":
		q.Set("origin", origin)
		waypoints = places[:len(places)-1]
	case len(places) > 1:
		q.Set("origin", places[0])
		waypoints = places[1 : len(places)-1]
	}
	if len(waypoints) > 0 {
		q.Set("waypoints", strings.Join(waypoints, "|"))
	}

	link.URL = directionsBase + "?" + q.Encode()
	link.Stops = len(places)
	return link
}

// Search links to a single address; ok is false without an address.
func Search(address, city string) (string, bool) {
	if strings.TrimSpace(address) == "" {
		return "", false
	}
	q := url.Values{}
	q.Set("api", "1")
	q.Set("query", Place(address, city))
	return searchBase + "?" + q.Encode(), true
}

// Waze opens navigation to a single address.
func Waze(address, city string) (string, bool) {
	p := Place(address, city)
	if p == "" {
		return "", false
	}
	q := url.Values{}
	q.Set("q", p)
	q.Set("navigate", "yes")
	return wazeBase + "?" + q.Encode(), true
}

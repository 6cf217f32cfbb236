// Package geo resolves free-text city names to approximate coordinates and
// delivery zones using a static gazetteer, and measures great-circle distance.
package geo

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var embedded []byte

const earthRadiusKm = 6371.0

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Distance returns the haversine great-circle distance in kilometres.
func Distance(a, b Coordinates) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Match methods, in the order they are tried.
const (
	MatchExact      = "exact"
	MatchNormalized = "normalized"
	MatchHyphen     = "hyphen"
	MatchContains   = "contains"
	MatchMiss       = "miss"
)

// Zone is a delivery area grouping several cities.
type Zone struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Region string   `json:"region" yaml:"region"`
	Cities []string `json:"-" yaml:"cities"`
}

type file struct {
	Regions map[string]string `yaml:"regions"`
	Cities  []struct {
		Name string  `yaml:"name"`
		Lat  float64 `yaml:"lat"`
		Lng  float64 `yaml:"lng"`
	} `yaml:"cities"`
	Zones []Zone `yaml:"zones"`
}

// Gazetteer is an immutable city lookup table. Safe for concurrent use.
type Gazetteer struct {
	cities  *index[Coordinates]
	zones   *index[string]
	zoneDef []Zone
	regions map[string]string
	observe func(kind, method string)
}

var (
	defaultOnce sync.Once
	defaultGaz  *Gazetteer
)

// Default returns the gazetteer compiled into the binary.
func Default() *Gazetteer {
	defaultOnce.Do(func() {
		g, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("geo: embedded gazetteer: %v", err))
		}
		defaultGaz = g
	})
	return defaultGaz
}

// Load reads a gazetteer from a YAML file.
func Load(path string) (*Gazetteer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	return Parse(b)
}

// Parse builds a gazetteer from YAML.
func Parse(b []byte) (*Gazetteer, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse gazetteer: %w", err)
	}
	if len(f.Cities) == 0 {
		return nil, fmt.Errorf("gazetteer has no cities")
	}
	g := &Gazetteer{
		cities:  newIndex[Coordinates](),
		zones:   newIndex[string](),
		regions: f.Regions,
	}
	for _, c := range f.Cities {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("gazetteer: city with empty name")
		}
		if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
			return nil, fmt.Errorf("gazetteer: city %q has out-of-range coordinates", c.Name)
		}
		if !g.cities.add(c.Name, Coordinates{Lat: c.Lat, Lng: c.Lng}) {
			return nil, fmt.Errorf("gazetteer: duplicate city %q", c.Name)
		}
	}
	for _, z := range f.Zones {
		if _, ok := f.Regions[z.Region]; !ok {
			return nil, fmt.Errorf("gazetteer: zone %q has unknown region %q", z.ID, z.Region)
		}
		for _, c := range z.Cities {
			if !g.zones.add(c, z.ID) {
				return nil, fmt.Errorf("gazetteer: city %q listed in more than one zone", c)
			}
		}
		g.zoneDef = append(g.zoneDef, z)
	}
	g.cities.seal()
	g.zones.seal()
	return g, nil
}

// WithObserver returns a copy of g that reports every lookup outcome.
// kind is "city" or "zone"; method is one of the Match constants.
func (g *Gazetteer) WithObserver(fn func(kind, method string)) *Gazetteer {
	cp := *g
	cp.observe = fn
	return &cp
}

// Resolve returns coordinates for a free-text city name. Lookup order is
// exact, whitespace-normalized, hyphen-normalized, then containment in
// either direction. Containment prefers the longest gazetteer key, then the
// lexically smallest, and logs when qualifying keys disagree.
func (g *Gazetteer) Resolve(city string) (Coordinates, bool) {
	c, _, ok := g.Lookup(city)
	return c, ok
}

// Lookup is Resolve that also reports which match method succeeded.
func (g *Gazetteer) Lookup(city string) (Coordinates, string, bool) {
	c, method, ok := g.cities.find(city, true)
	g.report("city", method)
	return c, method, ok
}

// ZoneFor returns the zone containing city. Hyphens are not normalized.
func (g *Gazetteer) ZoneFor(city string) (Zone, bool) {
	id, method, ok := g.zones.find(city, false)
	g.report("zone", method)
	if !ok {
		return Zone{}, false
	}
	return g.Zone(id)
}

// Zone returns a zone by id.
func (g *Gazetteer) Zone(id string) (Zone, bool) {
	for _, z := range g.zoneDef {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// Zones lists zones in declaration order.
func (g *Gazetteer) Zones() []Zone {
	return append([]Zone(nil), g.zoneDef...)
}

// ZonesInRegion lists the zones of one region.
func (g *Gazetteer) ZonesInRegion(region string) []Zone {
	var out []Zone
	for _, z := range g.zoneDef {
		if z.Region == region {
			out = append(out, z)
		}
	}
	return out
}

// RegionLabel returns the display name of a region.
func (g *Gazetteer) RegionLabel(region string) string {
	if l, ok := g.regions[region]; ok {
		return l
	}
	return region
}

// Cities returns every gazetteer key, sorted.
func (g *Gazetteer) Cities() []string {
	out := append([]string(nil), g.cities.order...)
	sort.Strings(out)
	return out
}

// Known reports whether city is an exact gazetteer key after trimming.
func (g *Gazetteer) Known(city string) bool {
	_, ok := g.cities.exact[strings.TrimSpace(city)]
	return ok
}

func (g *Gazetteer) report(kind, method string) {
	if g.observe != nil {
		g.observe(kind, method)
	}
}

type index[V comparable] struct {
	exact map[string]V
	norm  map[string]V
	hyph  map[string]V
	order []string // keys in file order
	// Containment candidates, longest first then lexical.
	normByLen []string
	hyphByLen []string
}

func newIndex[V comparable]() *index[V] {
	return &index[V]{exact: map[string]V{}, norm: map[string]V{}, hyph: map[string]V{}}
}

func (ix *index[V]) add(key string, v V) bool {
	key = strings.TrimSpace(key)
	if _, dup := ix.exact[key]; dup {
		return false
	}
	ix.exact[key] = v
	ix.order = append(ix.order, key)
	// Earlier keys win when spellings collapse to the same normalized form.
	if n := normalize(key); n != "" {
		if _, ok := ix.norm[n]; !ok {
			ix.norm[n] = v
		}
	}
	if h := dehyphen(key); h != "" {
		if _, ok := ix.hyph[h]; !ok {
			ix.hyph[h] = v
		}
	}
	return true
}

func (ix *index[V]) seal() {
	ix.normByLen = longestFirst(ix.norm)
	ix.hyphByLen = longestFirst(ix.hyph)
}

func longestFirst[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		la, lb := len([]rune(a)), len([]rune(b))
		if la != lb {
			return la > lb
		}
		return a < b
	})
	return keys
}

func (ix *index[V]) find(text string, hyphenStep bool) (V, string, bool) {
	var zero V
	key := strings.TrimSpace(text)
	if key == "" {
		return zero, MatchMiss, false
	}
	if v, ok := ix.exact[key]; ok {
		return v, MatchExact, true
	}
	n := normalize(key)
	if v, ok := ix.norm[n]; ok {
		return v, MatchNormalized, true
	}
	probe, table, keys := n, ix.norm, ix.normByLen
	if hyphenStep {
		probe, table, keys = dehyphen(key), ix.hyph, ix.hyphByLen
		if v, ok := table[probe]; ok {
			return v, MatchHyphen, true
		}
	}
	var (
		best    string
		found   bool
		differs []string
	)
	for _, k := range keys {
		if !strings.Contains(probe, k) && !strings.Contains(k, probe) {
			continue
		}
		if !found {
			best, found = k, true
			continue
		}
		if table[k] != table[best] {
			differs = append(differs, k)
		}
	}
	if !found {
		return zero, MatchMiss, false
	}
	if len(differs) > 0 {
		log.Warn().Str("input", key).Str("chosen", best).Strs("alternatives", differs).
			Msg("ambiguous gazetteer containment match")
	}
	return table[best], MatchContains, true
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func dehyphen(s string) string {
	return normalize(strings.ReplaceAll(s, "-", " "))
}

// Package safety holds the collaborators the dispatch service exposes next to
// notifications: route scoring, weather and nearby help centers. Production
// deployments plug real providers in behind these interfaces.
package safety

import (
	"context"
	"hash/fnv"
	"math"
	"sort"

	"github.com/notifyhub/safety-dispatch/internal/domain"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// RouteSafetyScorer rates a route from 0 (avoid) to 100 (safe).
type RouteSafetyScorer interface {
	Score(ctx context.Context, route []Point) (int, error)
}

type Weather struct {
	TempC     int    `json:"temp"`
	Condition string `json:"condition"`
	Humidity  int    `json:"humidity"`
	WindKmh   int    `json:"wind_speed"`
}

type WeatherProvider interface {
	Current(ctx context.Context, at Point) (*Weather, error)
}

type HelpCenter struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DistanceKm float64 `json:"distance_km"`
}

type HelpCenterFinder interface {
	Nearby(ctx context.Context, at Point) ([]HelpCenter, error)
}

// seed derives a stable value from a set of points so mock answers do not
// change between calls for the same input.
func seed(points ...Point) uint32 {
	h := fnv.New32a()
	for _, p := range points {
		// ~100m grid
		lat := int64(math.Round(p.Lat * 1000))
		lon := int64(math.Round(p.Lon * 1000))
		var b [16]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(lat >> (8 * i))
			b[8+i] = byte(lon >> (8 * i))
		}
		_, _ = h.Write(b[:])
	}
	return h.Sum32()
}

// MockRouteScorer scores a route between 40 and 100. Longer routes score
// slightly lower.
type MockRouteScorer struct{}

func (MockRouteScorer) Score(ctx context.Context, route []Point) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(route) == 0 {
		return 0, domain.ErrInvalidArgument
	}
	for _, p := range route {
		if !p.valid() {
			return 0, domain.ErrInvalidLocation
		}
	}
	score := 70 + int(seed(route...)%31)
	score -= min(len(route)-1, 30)
	return max(score, 40), nil
}

var conditions = []string{"Sunny", "Cloudy", "Partly Cloudy", "Rainy", "Windy"}

// MockWeatherProvider reports plausible weather: 15-29°C, 50-79% humidity,
// 5-24 km/h wind.
type MockWeatherProvider struct{}

func (MockWeatherProvider) Current(ctx context.Context, at Point) (*Weather, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !at.valid() {
		return nil, domain.ErrInvalidLocation
	}
	s := seed(at)
	return &Weather{
		TempC:     15 + int(s%15),
		Condition: conditions[(s>>4)%uint32(len(conditions))],
		Humidity:  50 + int((s>>8)%30),
		WindKmh:   5 + int((s>>16)%20),
	}, nil
}

// helpOffsets place the mock centers around the caller.
var helpOffsets = []HelpCenter{
	{Name: "Police Station A", Type: "police", Lat: 0.004, Lon: 0.006},
	{Name: "24x7 Women's Helpline", Type: "shelter", Lat: -0.002, Lon: 0.001},
	{Name: "City Hospital", Type: "hospital", Lat: 0.011, Lon: -0.008},
	{Name: "Night Pharmacy", Type: "pharmacy", Lat: -0.006, Lon: -0.003},
	{Name: "Main Square", Type: "lit-area", Lat: 0.001, Lon: -0.001},
}

// MockHelpCenterFinder returns a fixed set of help centers around the query
// point, nearest first.
type MockHelpCenterFinder struct{}

func (MockHelpCenterFinder) Nearby(ctx context.Context, at Point) ([]HelpCenter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !at.valid() {
		return nil, domain.ErrInvalidLocation
	}
	out := make([]HelpCenter, len(helpOffsets))
	for i, o := range helpOffsets {
		c := o
		c.Lat = at.Lat + o.Lat
		c.Lon = at.Lon + o.Lon
		c.DistanceKm = math.Round(haversineKm(at, Point{Lat: c.Lat, Lon: c.Lon})*100) / 100
		out[i] = c
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

func haversineKm(a, b Point) float64 {
	const earthRadiusKm = 6371.0
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLon := (b.Lon - a.Lon) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Package maplink builds map deep links and static map image URLs.
// It only formats strings; nothing here calls a map service.
package maplink

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	staticMapBase = "https://image.maps.ls.hereapi.com/mia/1.6/mapview"
	defaultZoom   = 15
	defaultWidth  = 400
	defaultHeight = 300
)

// Builder holds the map API key used for static images.
type Builder struct {
	apiKey string
	zoom   int
}

func NewBuilder(apiKey string) *Builder {
	return &Builder{apiKey: apiKey, zoom: defaultZoom}
}

// StaticMapURL returns a static map image URL centred on lat/lng with a
// point-of-interest marker at the same position. ok is false when either
// coordinate is missing. Non-positive dimensions fall back to 400x300.
func (b *Builder) StaticMapURL(lat, lng *float64, width, height int) (u string, ok bool) {
	if lat == nil || lng == nil {
		return "", false
	}
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	pos := coord(*lat) + "," + coord(*lng)
	return fmt.Sprintf("%s?c=%s&z=%d&w=%d&h=%d&poi=%s&apiKey=%s",
		staticMapBase, pos, b.zoom, width, height, pos, url.QueryEscape(b.apiKey)), true
}

// GoogleMapsURL links to a Google Maps pin.
func GoogleMapsURL(lat, lng float64) string {
	return "https://maps.google.com/?q=" + coord(lat) + "," + coord(lng)
}

// HereWeGoURL links to the HERE WeGo web map.
func HereWeGoURL(lat, lng float64) string {
	return fmt.Sprintf("https://wego.here.com/?map=%s,%s,%d,normal", coord(lat), coord(lng), defaultZoom)
}

// Coordinates renders a position with six decimals, e.g. "19.113600, 72.869700".
func Coordinates(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', 6, 64) + ", " + strconv.FormatFloat(lng, 'f', 6, 64)
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

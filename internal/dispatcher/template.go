package dispatcher

import (
	"fmt"
	"time"

	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/maplink"
)

// Template renders the per-recipient payload of one dispatch kind.
type Template interface {
	Kind() domain.DispatchKind
	// EmailParams returns the relay template variables for one recipient.
	// to is the corrected address actually used for delivery.
	EmailParams(c domain.Contact, to string, user domain.UserInfo, loc domain.LocationSnapshot) map[string]string
	SMSBody(user domain.UserInfo, loc domain.LocationSnapshot) string
}

const timestampLayout = "2006-01-02 15:04:05 MST"

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func stamp(loc domain.LocationSnapshot) string {
	ts := loc.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format(timestampLayout)
}

func locationLine(loc domain.LocationSnapshot) string {
	return or(loc.Address, maplink.Coordinates(loc.Latitude, loc.Longitude))
}

func googleLink(loc domain.LocationSnapshot) string {
	return or(loc.MapLinkURL, maplink.GoogleMapsURL(loc.Latitude, loc.Longitude))
}

// commonParams are shared by every email template.
func commonParams(c domain.Contact, to string, user domain.UserInfo, loc domain.LocationSnapshot, contactFallback, messageFallback string) map[string]string {
	ts := stamp(loc)
	name := or(user.Name, "Safety App User")
	return map[string]string{
		"user_name":            name,
		"name":                 name,
		"timestamp":            ts,
		"time":                 ts,
		"user_location":        locationLine(loc),
		"message":              or(user.Message, messageFallback),
		"contact_name":         or(c.Name, contactFallback),
		"to_email":             to,
		"user_phone":           or(user.Phone, "Not provided"),
		"location_address":     or(loc.Address, "Unknown location"),
		"location_coordinates": maplink.Coordinates(loc.Latitude, loc.Longitude),
		"google_maps_url":      googleLink(loc),
		"here_maps_url":        maplink.HereWeGoURL(loc.Latitude, loc.Longitude),
	}
}

// LocationShareTemplate is used when a user shares their position.
type LocationShareTemplate struct {
	ReplyTo string
	// Tracking marks periodic updates from a live tracking session.
	Tracking bool
}

func (t LocationShareTemplate) Kind() domain.DispatchKind {
	if t.Tracking {
		return domain.KindTrackingUpdate
	}
	return domain.KindLocationShare
}

func (t LocationShareTemplate) EmailParams(c domain.Contact, to string, user domain.UserInfo, loc domain.LocationSnapshot) map[string]string {
	p := commonParams(c, to, user, loc, "Safety Contact", "This is my current location, track me")
	p["to_name"] = or(c.Name, "Safety Contact")
	p["from_name"] = "Safety App"
	p["reply_to"] = or(t.ReplyTo, "noreply@safetyapp.com")
	p["sharing_type"] = string(t.Kind())
	return p
}

func (t LocationShareTemplate) SMSBody(user domain.UserInfo, loc domain.LocationSnapshot) string {
	return fmt.Sprintf("%s shared their location: %s - %s. Map: %s",
		or(user.Name, "Safety App User"),
		or(user.Message, "This is my current location, track me"),
		locationLine(loc),
		googleLink(loc),
	)
}

// EmergencyTemplate is used for emergency alerts. When Maps is set, a static
// map image URL is included in the email.
type EmergencyTemplate struct {
	Maps *maplink.Builder
}

func (t EmergencyTemplate) Kind() domain.DispatchKind { return domain.KindEmergencyAlert }

func (t EmergencyTemplate) EmailParams(c domain.Contact, to string, user domain.UserInfo, loc domain.LocationSnapshot) map[string]string {
	p := commonParams(c, to, user, loc, "Emergency Contact", "Emergency alert triggered")
	p["emergency_message"] = or(user.Message, "I need help! This is an emergency notification.")
	p["sharing_type"] = string(domain.KindEmergencyAlert)
	if t.Maps != nil {
		lat, lng := loc.Latitude, loc.Longitude
		img, _ := t.Maps.StaticMapURL(&lat, &lng, 0, 0)
		p["map_image_url"] = img
	}
	return p
}

func (t EmergencyTemplate) SMSBody(user domain.UserInfo, loc domain.LocationSnapshot) string {
	return fmt.Sprintf("EMERGENCY ALERT from %s: %s - I'm at: %s. Map: %s",
		or(user.Name, "Safety App User"),
		or(user.Message, "I need help! This is an emergency notification."),
		or(loc.Address, "Unknown location"),
		googleLink(loc),
	)
}

// TemplateFor returns the template for kind.
func TemplateFor(kind domain.DispatchKind, maps *maplink.Builder) Template {
	switch kind {
	case domain.KindEmergencyAlert:
		return EmergencyTemplate{Maps: maps}
	case domain.KindTrackingUpdate:
		return LocationShareTemplate{Tracking: true}
	}
	return LocationShareTemplate{}
}

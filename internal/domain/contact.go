package domain

import (
	"strings"
	"time"
)

// Contact is a pre-registered recipient. The dispatch subsystem only reads it.
type Contact struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// HasEmail reports whether the contact is eligible for the email channel.
func (c Contact) HasEmail() bool { return strings.TrimSpace(c.Email) != "" }

// HasPhone reports whether the contact is eligible for the SMS channel.
func (c Contact) HasPhone() bool { return strings.TrimSpace(c.Phone) != "" }

// Eligible reports whether the contact carries the field required by ch.
func (c Contact) Eligible(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return c.HasEmail()
	case ChannelSMS:
		return c.HasPhone()
	}
	return false
}

func (c Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidContact
	}
	if !c.HasEmail() && !c.HasPhone() {
		return ErrInvalidContact
	}
	return nil
}

// UserInfo describes the sender. It is built fresh for every dispatch call.
type UserInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message"`
}

// LocationSnapshot is a captured position. It must not be mutated once it is
// handed to a dispatch.
type LocationSnapshot struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Address    string    `json:"address,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	MapLinkURL string    `json:"map_link_url,omitempty"`
}

func (l *LocationSnapshot) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidLocation
	}
	return nil
}

package handler

import (
	"time"

	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/safety"
)

type locationDTO struct {
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Address   string    `json:"address" validate:"max=512"`
	Timestamp time.Time `json:"timestamp"`
}

func (l *locationDTO) snapshot() *domain.LocationSnapshot {
	if l == nil {
		return nil
	}
	return &domain.LocationSnapshot{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Address:   l.Address,
		Timestamp: l.Timestamp,
	}
}

type contactDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required,max=128"`
	Phone string `json:"phone" validate:"max=32"`
	// Format is not checked here; invalid addresses are reported per recipient.
	Email string `json:"email" validate:"max=254"`
}

func (c contactDTO) contact() domain.Contact {
	return domain.Contact{ID: c.ID, Name: c.Name, Phone: c.Phone, Email: c.Email}
}

type userDTO struct {
	Name    string `json:"name" validate:"max=128"`
	Phone   string `json:"phone" validate:"max=32"`
	Message string `json:"message" validate:"max=1000"`
}

func (u userDTO) info() domain.UserInfo {
	return domain.UserInfo{Name: u.Name, Phone: u.Phone, Message: u.Message}
}

// dispatchRequest is the body of share and alert requests. Location is a
// pointer so a missing location reaches the orchestrator as such.
type dispatchRequest struct {
	Contacts []contactDTO   `json:"contacts" validate:"max=100,dive"`
	User     userDTO        `json:"user"`
	Location *locationDTO   `json:"location"`
	Channel  domain.Channel `json:"channel" validate:"required,oneof=email sms all"`
}

type ownerDispatchRequest struct {
	User     userDTO        `json:"user"`
	Location *locationDTO   `json:"location"`
	Channel  domain.Channel `json:"channel" validate:"required,oneof=email sms all"`
	Kind     string         `json:"kind" validate:"omitempty,oneof=location_share emergency_alert"`
}

type createContactRequest struct {
	Name  string `json:"name" validate:"required,max=128"`
	Phone string `json:"phone" validate:"max=32"`
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

type startTrackingRequest struct {
	OwnerID         string         `json:"owner_id"`
	Contacts        []contactDTO   `json:"contacts" validate:"required,min=1,max=100,dive"`
	User            userDTO        `json:"user"`
	Channel         domain.Channel `json:"channel" validate:"required,oneof=email sms all"`
	IntervalSeconds int            `json:"interval_seconds" validate:"required,gt=0"`
	Location        *locationDTO   `json:"location"`
}

type analyzeEmailRequest struct {
	Email string `json:"email"`
}

type scoreRouteRequest struct {
	Route []safety.Point `json:"route" validate:"required,min=1,max=1000"`
}

func contacts(in []contactDTO) []domain.Contact {
	out := make([]domain.Contact, len(in))
	for i, c := range in {
		out[i] = c.contact()
	}
	return out
}

package domain_test

import (
	"testing"

	"github.com/notifyhub/safety-dispatch/internal/domain"
)

func TestContact_Validate(t *testing.T) {
	valid := domain.Contact{
		Name:  "Asha",
		Email: "asha@example.com",
	}

	t.Run("valid contact passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("phone only passes", func(t *testing.T) {
		c := valid
		c.Email = ""
		c.Phone = "+919876543210"
		if err := c.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		c := valid
		c.Name = "  "
		if err := c.Validate(); err != domain.ErrInvalidContact {
			t.Fatalf("expected ErrInvalidContact, got %v", err)
		}
	})

	t.Run("no phone and no email", func(t *testing.T) {
		c := valid
		c.Email = " "
		if err := c.Validate(); err != domain.ErrInvalidContact {
			t.Fatalf("expected ErrInvalidContact, got %v", err)
		}
	})
}

func TestContact_Eligible(t *testing.T) {
	c := domain.Contact{Name: "Ravi", Phone: "+919876543210"}

	if c.Eligible(domain.ChannelEmail) {
		t.Fatal("contact without email must not be eligible for email")
	}
	if !c.Eligible(domain.ChannelSMS) {
		t.Fatal("contact with phone must be eligible for sms")
	}
	if c.Eligible(domain.ChannelAll) {
		t.Fatal("ChannelAll is not a concrete channel")
	}
}

func TestChannel_Expand(t *testing.T) {
	tests := []struct {
		ch   domain.Channel
		want []domain.Channel
	}{
		{domain.ChannelEmail, []domain.Channel{domain.ChannelEmail}},
		{domain.ChannelSMS, []domain.Channel{domain.ChannelSMS}},
		{domain.ChannelAll, []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}},
		{"fax", nil},
	}

	for _, tc := range tests {
		got := tc.ch.Expand()
		if len(got) != len(tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.ch, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%q: expected %v, got %v", tc.ch, tc.want, got)
			}
		}
		if tc.ch.IsValid() != (tc.want != nil) {
			t.Fatalf("%q: IsValid disagrees with Expand", tc.ch)
		}
	}
}

func TestLocationSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"mumbai", 19.1136, 72.8697, false},
		{"poles and antimeridian", -90, 180, false},
		{"latitude too large", 90.0001, 0, true},
		{"longitude too small", 0, -180.5, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := domain.LocationSnapshot{Latitude: tc.lat, Longitude: tc.lng}
			err := l.Validate()
			if tc.wantErr && err != domain.ErrInvalidLocation {
				t.Fatalf("expected ErrInvalidLocation, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

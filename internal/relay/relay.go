package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/notifyhub/safety-dispatch/internal/domain"
)

// Message is one templated email handed to the mail relay.
// TemplateParams is a flat string map; the relay substitutes {{key}}
// placeholders in the stored template.
type Message struct {
	ServiceID      string
	TemplateID     string
	PublicKey      string
	TemplateParams map[string]string
}

// Response is the relay's acknowledgement. BodyErr is set when the relay
// accepted the message but its response body could not be read.
type Response struct {
	Status  int
	Text    string
	BodyErr error
}

// MailRelay abstracts the third-party email relay.
// Mocking this interface in tests gives full control over relay behaviour
// without making real HTTP calls.
type MailRelay interface {
	Send(ctx context.Context, msg Message) (*Response, error)
}

// SMSTransport delivers a plain-text body to a phone number.
type SMSTransport interface {
	Send(ctx context.Context, phone, body string) error
}

// Error is returned by a relay when it answers with a non-success status.
type Error struct {
	Status int
	Text   string
}

func (e *Error) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("relay status %d: %s", e.Status, e.Text)
	}
	return fmt.Sprintf("relay status %d", e.Status)
}

// serviceName is the user-facing name of the transport behind a channel.
func serviceName(ch domain.Channel) string {
	if ch == domain.ChannelSMS {
		return "SMS service"
	}
	return "Email service"
}

func genericFailure(ch domain.Channel) string {
	if ch == domain.ChannelSMS {
		return "Failed to send SMS. Please try again."
	}
	return "Failed to send email. Please try again."
}

// Classify maps a send error on channel ch to an error kind and a message
// fit for the user.
func Classify(ch domain.Channel, err error) (domain.ErrorKind, string) {
	if err == nil {
		return "", ""
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Status == 0 {
		return domain.ErrorKindTransportGeneric, genericFailure(ch)
	}

	svc := serviceName(ch)
	switch rerr.Status {
	case http.StatusBadRequest:
		return domain.ErrorKindTransportBadRequest, "Invalid request. Please check your message and try again."
	case http.StatusUnauthorized:
		return domain.ErrorKindTransportAuth, "Authentication failed. Please contact support."
	case http.StatusPaymentRequired:
		return domain.ErrorKindTransportQuota, svc + " quota exceeded. Please try again later."
	case http.StatusForbidden:
		return domain.ErrorKindTransportForbidden, "Service temporarily unavailable. Please try again."
	case http.StatusNotFound:
		return domain.ErrorKindTransportNotFound, svc + " not found. Please contact support."
	case http.StatusTooManyRequests:
		return domain.ErrorKindTransportRateLimited, "Too many requests. Please wait a moment and try again."
	case http.StatusInternalServerError:
		return domain.ErrorKindTransportServer, svc + " error. Please try again later."
	default:
		return domain.ErrorKindTransportGeneric,
			fmt.Sprintf("%s error (%d). Please try again.", svc, rerr.Status)
	}
}

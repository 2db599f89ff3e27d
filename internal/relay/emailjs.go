package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEmailJSURL is the public EmailJS send endpoint.
const DefaultEmailJSURL = "https://api.emailjs.com/api/v1.0/email/send"

// sendRequest is the JSON body EmailJS expects.
type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// EmailJSRelay delivers templated email through the EmailJS REST API.
// The endpoint is injected from config so tests can point to a local mock.
type EmailJSRelay struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
}

func NewEmailJSRelay(endpoint, accessToken string, timeout time.Duration) *EmailJSRelay {
	if endpoint == "" {
		endpoint = DefaultEmailJSURL
	}
	return &EmailJSRelay{
		endpoint:    endpoint,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts msg and expects 200 OK. Any other status is returned as *Error
// carrying the status and the response text.
func (r *EmailJSRelay) Send(ctx context.Context, msg Message) (*Response, error) {
	body, err := json.Marshal(sendRequest{
		ServiceID:      msg.ServiceID,
		TemplateID:     msg.TemplateID,
		UserID:         msg.PublicKey,
		AccessToken:    r.accessToken,
		TemplateParams: msg.TemplateParams,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(raw))
	if resp.StatusCode != http.StatusOK {
		if readErr != nil {
			text = strings.TrimSpace(fmt.Sprintf("%s (read body: %v)", text, readErr))
		}
		return nil, &Error{Status: resp.StatusCode, Text: text}
	}

	// A 200 means the relay accepted the message; a failed body read must
	// not turn that into a retry.
	var bodyErr error
	if readErr != nil {
		bodyErr = fmt.Errorf("read response body: %w", readErr)
	}
	return &Response{Status: resp.StatusCode, Text: text, BodyErr: bodyErr}, nil
}

// compile-time check that EmailJSRelay implements MailRelay
var _ MailRelay = (*EmailJSRelay)(nil)

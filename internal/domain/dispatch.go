package domain

import "time"

// Channel is a notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	// ChannelAll requests every concrete channel at once.
	ChannelAll Channel = "all"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelAll:
		return true
	}
	return false
}

// Expand returns the concrete channels a request for c covers.
func (c Channel) Expand() []Channel {
	switch c {
	case ChannelEmail:
		return []Channel{ChannelEmail}
	case ChannelSMS:
		return []Channel{ChannelSMS}
	case ChannelAll:
		return []Channel{ChannelEmail, ChannelSMS}
	}
	return nil
}

// ErrorKind classifies a failure reported to the caller.
type ErrorKind string

const (
	ErrorKindInvalidFormat        ErrorKind = "invalid_format"
	ErrorKindTransportBadRequest  ErrorKind = "transport_bad_request"
	ErrorKindTransportAuth        ErrorKind = "transport_auth"
	ErrorKindTransportQuota       ErrorKind = "transport_quota"
	ErrorKindTransportForbidden   ErrorKind = "transport_forbidden"
	ErrorKindTransportNotFound    ErrorKind = "transport_not_found"
	ErrorKindTransportRateLimited ErrorKind = "transport_rate_limited"
	ErrorKindTransportServer      ErrorKind = "transport_server"
	ErrorKindTransportGeneric     ErrorKind = "transport_generic"
	ErrorKindNoContacts           ErrorKind = "no_contacts"
	ErrorKindNoEmailContacts      ErrorKind = "no_email_contacts"
	ErrorKindNoPhoneContacts      ErrorKind = "no_phone_contacts"
	ErrorKindNoEligibleContacts   ErrorKind = "no_eligible_contacts"
	ErrorKindMissingLocation      ErrorKind = "missing_location"
)

// IsTransport reports whether k came from the delivery relay.
func (k ErrorKind) IsTransport() bool {
	switch k {
	case ErrorKindTransportBadRequest, ErrorKindTransportAuth, ErrorKindTransportQuota,
		ErrorKindTransportForbidden, ErrorKindTransportNotFound, ErrorKindTransportRateLimited,
		ErrorKindTransportServer, ErrorKindTransportGeneric:
		return true
	}
	return false
}

// Correction records a typo fix applied to an address before delivery.
type Correction struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// Failure is a recipient that did not receive the notification.
type Failure struct {
	OriginalAddress  string    `json:"original_address"`
	CorrectedAddress string    `json:"corrected_address,omitempty"`
	ErrorKind        ErrorKind `json:"error_kind"`
	ErrorDetail      string    `json:"error_detail"`
	Attempts         int       `json:"attempts"`
}

// DispatchResult is the outcome of one channel.
//
// Every attempted contact appears in exactly one of Succeeded or Failed.
// Entries are in settle order, not submission order.
type DispatchResult struct {
	Channel           Channel      `json:"channel"`
	AttemptedContacts []Contact    `json:"attempted_contacts"`
	Succeeded         []string     `json:"succeeded"`
	Failed            []Failure    `json:"failed"`
	Corrections       []Correction `json:"corrections"`
}

// SucceededCount is a convenience for summaries.
func (r *DispatchResult) SucceededCount() int {
	if r == nil {
		return 0
	}
	return len(r.Succeeded)
}

// DispatchKind distinguishes the template used for a dispatch.
type DispatchKind string

const (
	KindLocationShare  DispatchKind = "location_share"
	KindEmergencyAlert DispatchKind = "emergency_alert"
	KindTrackingUpdate DispatchKind = "tracking_update"
)

// AggregateResult merges the per-channel results of one user action.
type AggregateResult struct {
	ID             string                      `json:"id,omitempty"`
	Kind           DispatchKind                `json:"kind"`
	OverallSuccess bool                        `json:"overall_success"`
	ErrorKind      ErrorKind                   `json:"error_kind,omitempty"`
	PerChannel     map[Channel]*DispatchResult `json:"per_channel"`
	HumanSummary   string                      `json:"human_summary"`
	CreatedAt      time.Time                   `json:"created_at"`
}

// DispatchRecord is what gets persisted for a dispatch so failed recipients
// can be retried later without resending to the ones that succeeded.
type DispatchRecord struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"owner_id,omitempty"`
	Kind      DispatchKind     `json:"kind"`
	Channel   Channel          `json:"channel"`
	Contacts  []Contact        `json:"contacts"`
	User      UserInfo         `json:"user"`
	Location  LocationSnapshot `json:"location"`
	Result    *AggregateResult `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

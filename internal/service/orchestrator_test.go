package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/safety-dispatch/internal/cache"
	"github.com/notifyhub/safety-dispatch/internal/dispatcher"
	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/maplink"
	"github.com/notifyhub/safety-dispatch/internal/repository"
	"github.com/notifyhub/safety-dispatch/internal/service"
)

// fakeDispatcher succeeds for every eligible contact except those listed in
// fail, which fail with a rate-limit error.
type fakeDispatcher struct {
	mu    sync.Mutex
	calls []domain.Channel
	seen  map[domain.Channel][]domain.Contact
	fail  map[string]bool
	err   error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{seen: map[domain.Channel][]domain.Contact{}, fail: map[string]bool{}}
}

func (f *fakeDispatcher) Dispatch(
	_ context.Context,
	ch domain.Channel,
	contacts []domain.Contact,
	_ *domain.UserInfo,
	_ *domain.LocationSnapshot,
	_ dispatcher.Template,
) (*domain.DispatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ch)
	if f.err != nil {
		return nil, f.err
	}
	res := &domain.DispatchResult{Channel: ch}
	for _, c := range contacts {
		if !c.Eligible(ch) {
			continue
		}
		f.seen[ch] = append(f.seen[ch], c)
		res.AttemptedContacts = append(res.AttemptedContacts, c)
		addr := c.Email
		if ch == domain.ChannelSMS {
			addr = c.Phone
		}
		if f.fail[addr] {
			res.Failed = append(res.Failed, domain.Failure{
				OriginalAddress: addr,
				ErrorKind:       domain.ErrorKindTransportRateLimited,
				ErrorDetail:     "Too many requests. Please wait a moment and try again.",
				Attempts:        3,
			})
			continue
		}
		res.Succeeded = append(res.Succeeded, addr)
	}
	return res, nil
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newOrchestrator(d service.ChannelDispatcher) (*service.Orchestrator, *repository.MockDispatchRepository, *repository.MockContactRepository) {
	dispatches := repository.NewMockDispatchRepository()
	contacts := repository.NewMockContactRepository()
	o := service.NewOrchestrator(
		d, contacts, dispatches,
		cache.NewMemoryIdempotencyStore(), time.Hour,
		maplink.NewBuilder(""), nil, zap.NewNop(),
	)
	return o, dispatches, contacts
}

func loc() *domain.LocationSnapshot {
	return &domain.LocationSnapshot{Latitude: 37.7749, Longitude: -122.4194, Address: "San Francisco"}
}

var (
	alice = domain.Contact{ID: "1", Name: "Alice", Email: "alice@example.com", Phone: "+14155550100"}
	bob   = domain.Contact{ID: "2", Name: "Bob", Email: "bob@example.com"}
	carol = domain.Contact{ID: "3", Name: "Carol", Phone: "+14155550101"}
)

func TestDispatch_NoContactsMakesNoCalls(t *testing.T) {
	d := newFakeDispatcher()
	o, dispatches, _ := newOrchestrator(d)

	res, dup, err := o.ShareLocation(context.Background(), service.Request{
		Location: loc(), Channel: domain.ChannelEmail,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup {
		t.Error("expected fresh dispatch")
	}
	if res.OverallSuccess || res.ErrorKind != domain.ErrorKindNoContacts {
		t.Errorf("expected no_contacts failure, got %+v", res)
	}
	if d.callCount() != 0 {
		t.Errorf("expected no dispatcher calls, got %d", d.callCount())
	}
	if dispatches.Len() != 0 {
		t.Error("rejected dispatch must not be stored")
	}
}

func TestDispatch_PreconditionOrder(t *testing.T) {
	tests := []struct {
		name string
		req  service.Request
		want domain.ErrorKind
	}{
		{"missing location first", service.Request{Channel: domain.ChannelEmail}, domain.ErrorKindMissingLocation},
		{"no contacts", service.Request{Location: loc(), Channel: domain.ChannelSMS}, domain.ErrorKindNoContacts},
		{"no email", service.Request{Location: loc(), Channel: domain.ChannelEmail, Contacts: []domain.Contact{carol}}, domain.ErrorKindNoEmailContacts},
		{"no phone", service.Request{Location: loc(), Channel: domain.ChannelSMS, Contacts: []domain.Contact{bob}}, domain.ErrorKindNoPhoneContacts},
		{"all needs email", service.Request{Location: loc(), Channel: domain.ChannelAll, Contacts: []domain.Contact{carol}}, domain.ErrorKindNoEmailContacts},
		{"all with nobody reachable", service.Request{Location: loc(), Channel: domain.ChannelAll, Contacts: []domain.Contact{{Name: "Nameless"}}}, domain.ErrorKindNoEligibleContacts},
		{"all needs phone", service.Request{Location: loc(), Channel: domain.ChannelAll, Contacts: []domain.Contact{bob}}, domain.ErrorKindNoPhoneContacts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDispatcher()
			o, _, _ := newOrchestrator(d)
			res, _, err := o.SendEmergencyAlert(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.ErrorKind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, res.ErrorKind)
			}
			if res.HumanSummary == "" {
				t.Error("expected a human summary")
			}
			if d.callCount() != 0 {
				t.Errorf("expected no dispatcher calls, got %d", d.callCount())
			}
		})
	}
}

func TestDispatch_InvalidChannel(t *testing.T) {
	o, _, _ := newOrchestrator(newFakeDispatcher())
	_, _, err := o.ShareLocation(context.Background(), service.Request{
		Location: loc(), Channel: "pigeon", Contacts: []domain.Contact{alice},
	})
	if !errors.Is(err, domain.ErrInvalidChannel) {
		t.Errorf("expected ErrInvalidChannel, got %v", err)
	}
}

func TestDispatch_AllChannelsMerged(t *testing.T) {
	d := newFakeDispatcher()
	o, dispatches, _ := newOrchestrator(d)

	res, _, err := o.ShareLocation(context.Background(), service.Request{
		OwnerID:  "u1",
		Location: loc(),
		Channel:  domain.ChannelAll,
		Contacts: []domain.Contact{alice, bob, carol},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OverallSuccess {
		t.Error("expected overall success")
	}
	if len(res.PerChannel) != 2 {
		t.Fatalf("expected 2 channel results, got %d", len(res.PerChannel))
	}
	if n := res.PerChannel[domain.ChannelEmail].SucceededCount(); n != 2 {
		t.Errorf("expected 2 emails, got %d", n)
	}
	if n := res.PerChannel[domain.ChannelSMS].SucceededCount(); n != 2 {
		t.Errorf("expected 2 sms, got %d", n)
	}
	want := "Location shared with 2 contacts via email; Location shared with 2 contacts via SMS"
	if res.HumanSummary != want {
		t.Errorf("summary: got %q, want %q", res.HumanSummary, want)
	}
	if dispatches.Len() != 1 {
		t.Errorf("expected 1 stored dispatch, got %d", dispatches.Len())
	}

	rec, err := o.GetDispatch(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("GetDispatch: %v", err)
	}
	if rec.OwnerID != "u1" || rec.Kind != domain.KindLocationShare {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Location.MapLinkURL == "" || rec.Location.Timestamp.IsZero() {
		t.Error("expected location to be completed before dispatch")
	}
}

func TestDispatch_AllFailedSummary(t *testing.T) {
	d := newFakeDispatcher()
	d.fail["bob@example.com"] = true
	o, _, _ := newOrchestrator(d)

	res, _, err := o.SendEmergencyAlert(context.Background(), service.Request{
		Location: loc(), Channel: domain.ChannelEmail, Contacts: []domain.Contact{bob},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OverallSuccess {
		t.Error("expected failure")
	}
	if res.HumanSummary != "Failed to send emails" {
		t.Errorf("unexpected summary %q", res.HumanSummary)
	}
}

func TestDispatch_ChannelErrorRecordedAsFailure(t *testing.T) {
	d := newFakeDispatcher()
	d.err = domain.ErrRelayUnconfigured
	o, dispatches, _ := newOrchestrator(d)

	res, _, err := o.ShareLocation(context.Background(), service.Request{
		Location: loc(), Channel: domain.ChannelEmail, Contacts: []domain.Contact{alice, bob, carol},
		IdempotencyKey: "k1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OverallSuccess {
		t.Error("expected failure")
	}
	email := res.PerChannel[domain.ChannelEmail]
	if email == nil || len(email.Failed) != 2 || len(email.AttemptedContacts) != 2 {
		t.Fatalf("expected both email contacts failed, got %+v", email)
	}
	for _, f := range email.Failed {
		if f.ErrorKind != domain.ErrorKindTransportGeneric || f.ErrorDetail != "Email service is not configured." {
			t.Errorf("unexpected failure %+v", f)
		}
	}
	if dispatches.Len() != 1 {
		t.Fatalf("expected the failed dispatch to be stored, got %d", dispatches.Len())
	}

	// the transport failures stay retryable once the relay is back
	d.err = nil
	retried, err := o.RetryFailed(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if !retried.OverallSuccess || retried.PerChannel[domain.ChannelEmail].SucceededCount() != 2 {
		t.Errorf("expected retry to deliver both emails, got %+v", retried.PerChannel[domain.ChannelEmail])
	}
}

// countingSMS records every SMS handed to it.
type countingSMS struct {
	mu     sync.Mutex
	phones []string
}

func (s *countingSMS) Send(_ context.Context, phone, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phones = append(s.phones, phone)
	return nil
}

func TestDispatch_AllChannelsWithoutMailRelay(t *testing.T) {
	sms := &countingSMS{}
	disp := dispatcher.New(nil, sms, nil, dispatcher.Config{MaxRetries: 2}, zap.NewNop(),
		dispatcher.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	o, dispatches, _ := newOrchestrator(disp)

	res, _, err := o.SendEmergencyAlert(context.Background(), service.Request{
		Location: loc(), Channel: domain.ChannelAll, Contacts: []domain.Contact{alice},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OverallSuccess {
		t.Errorf("SMS went out, expected overall success: %s", res.HumanSummary)
	}
	if len(sms.phones) != 1 {
		t.Errorf("expected exactly 1 SMS, got %d", len(sms.phones))
	}
	if res.PerChannel[domain.ChannelSMS].SucceededCount() != 1 {
		t.Errorf("unexpected SMS result %+v", res.PerChannel[domain.ChannelSMS])
	}
	if f := res.PerChannel[domain.ChannelEmail].Failed; len(f) != 1 || !f[0].ErrorKind.IsTransport() {
		t.Errorf("expected email recorded as transport failure, got %+v", f)
	}
	if res.HumanSummary != "Failed to send emails; Emergency SMS sent to 1 contact" {
		t.Errorf("unexpected summary %q", res.HumanSummary)
	}
	if dispatches.Len() != 1 {
		t.Errorf("expected dispatch to be stored, got %d", dispatches.Len())
	}
}

func TestDispatch_CancelledBeforeSendReleasesKey(t *testing.T) {
	d := newFakeDispatcher()
	o, dispatches, _ := newOrchestrator(d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := o.ShareLocation(ctx, service.Request{
		Location: loc(), Channel: domain.ChannelEmail, Contacts: []domain.Contact{bob},
		IdempotencyKey: "k2",
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if d.callCount() != 0 || dispatches.Len() != 0 {
		t.Fatal("nothing should be sent or stored for a cancelled request")
	}

	res, dup, err := o.ShareLocation(context.Background(), service.Request{
		Location: loc(), Channel: domain.ChannelEmail, Contacts: []domain.Contact{bob},
		IdempotencyKey: "k2",
	})
	if err != nil || dup || !res.OverallSuccess {
		t.Errorf("expected fresh success, got res=%+v dup=%v err=%v", res, dup, err)
	}
}

func TestDispatch_IdempotencyKeyReturnsEarlierResult(t *testing.T) {
	d := newFakeDispatcher()
	o, dispatches, _ := newOrchestrator(d)
	req := service.Request{
		Location: loc(), Channel: domain.ChannelEmail,
		Contacts: []domain.Contact{alice}, IdempotencyKey: "tap-1",
	}

	first, dup, err := o.ShareLocation(context.Background(), req)
	if err != nil || dup {
		t.Fatalf("first: dup=%v err=%v", dup, err)
	}
	second, dup, err := o.ShareLocation(context.Background(), req)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !dup {
		t.Error("expected duplicate")
	}
	if second.ID != first.ID {
		t.Errorf("expected same dispatch id, got %s and %s", first.ID, second.ID)
	}
	if d.callCount() != 1 {
		t.Errorf("expected 1 dispatcher call, got %d", d.callCount())
	}
	if dispatches.Len() != 1 {
		t.Errorf("expected 1 stored dispatch, got %d", dispatches.Len())
	}
}

func TestShareWithEmergencyContacts(t *testing.T) {
	d := newFakeDispatcher()
	o, _, contacts := newOrchestrator(d)
	for _, c := range []domain.Contact{alice, bob} {
		c.OwnerID = "u1"
		if err := contacts.Create(context.Background(), &c); err != nil {
			t.Fatal(err)
		}
	}

	res, _, err := o.ShareWithEmergencyContacts(context.Background(), domain.KindEmergencyAlert, service.Request{
		OwnerID: "u1", Location: loc(), Channel: domain.ChannelEmail,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HumanSummary != "Emergency emails sent to 2 contacts" {
		t.Errorf("unexpected summary %q", res.HumanSummary)
	}
}

func TestRetryFailed_OnlyFailedRecipients(t *testing.T) {
	d := newFakeDispatcher()
	d.fail["bob@example.com"] = true
	o, _, _ := newOrchestrator(d)

	res, _, err := o.ShareLocation(context.Background(), service.Request{
		Location: loc(), Channel: domain.ChannelEmail, Contacts: []domain.Contact{alice, bob},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.PerChannel[domain.ChannelEmail].Failed) != 1 {
		t.Fatalf("expected 1 failure, got %+v", res.PerChannel[domain.ChannelEmail])
	}

	d.mu.Lock()
	d.fail = map[string]bool{}
	d.seen = map[domain.Channel][]domain.Contact{}
	d.mu.Unlock()

	merged, err := o.RetryFailed(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if got := d.seen[domain.ChannelEmail]; len(got) != 1 || got[0].Email != "bob@example.com" {
		t.Errorf("expected only bob to be retried, got %+v", got)
	}
	email := merged.PerChannel[domain.ChannelEmail]
	if email.SucceededCount() != 2 || len(email.Failed) != 0 {
		t.Errorf("expected 2 successes and no failures, got %+v", email)
	}

	if _, err := o.RetryFailed(context.Background(), res.ID); !errors.Is(err, domain.ErrNothingToRetry) {
		t.Errorf("expected ErrNothingToRetry, got %v", err)
	}
}

func TestRetryFailed_UnknownID(t *testing.T) {
	o, _, _ := newOrchestrator(newFakeDispatcher())
	if _, err := o.RetryFailed(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRetryFailed_SkipsInvalidFormat(t *testing.T) {
	d := newFakeDispatcher()
	o, dispatches, _ := newOrchestrator(d)

	rec := &domain.DispatchRecord{
		ID:       "d1",
		Kind:     domain.KindLocationShare,
		Channel:  domain.ChannelEmail,
		Location: *loc(),
		Result: &domain.AggregateResult{
			ID:   "d1",
			Kind: domain.KindLocationShare,
			PerChannel: map[domain.Channel]*domain.DispatchResult{
				domain.ChannelEmail: {
					Channel:           domain.ChannelEmail,
					AttemptedContacts: []domain.Contact{{Name: "X", Email: "not-an-email"}},
					Failed: []domain.Failure{{
						OriginalAddress: "not-an-email",
						ErrorKind:       domain.ErrorKindInvalidFormat,
						ErrorDetail:     "Invalid email format",
					}},
				},
			},
		},
	}
	if err := dispatches.Save(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	if _, err := o.RetryFailed(context.Background(), "d1"); !errors.Is(err, domain.ErrNothingToRetry) {
		t.Errorf("expected ErrNothingToRetry, got %v", err)
	}
	if d.callCount() != 0 {
		t.Errorf("expected no dispatcher calls, got %d", d.callCount())
	}
}

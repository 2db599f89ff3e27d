package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notifyhub/safety-dispatch/internal/cache"
	"github.com/notifyhub/safety-dispatch/internal/dispatcher"
	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/maplink"
	"github.com/notifyhub/safety-dispatch/internal/relay"
	"github.com/notifyhub/safety-dispatch/internal/repository"
)

// ChannelDispatcher delivers one channel of a dispatch.
// *dispatcher.Dispatcher is the production implementation.
type ChannelDispatcher interface {
	Dispatch(
		ctx context.Context,
		ch domain.Channel,
		contacts []domain.Contact,
		user *domain.UserInfo,
		loc *domain.LocationSnapshot,
		tmpl dispatcher.Template,
	) (*domain.DispatchResult, error)
}

// Request is one user action: who to notify, from whom, where, and how.
type Request struct {
	OwnerID        string
	Contacts       []domain.Contact
	User           domain.UserInfo
	Location       *domain.LocationSnapshot
	Channel        domain.Channel
	IdempotencyKey string
}

// Orchestrator turns a "share location" or "send alert" action into
// per-channel dispatches and merges their results.
// Precondition failures come back as a failed AggregateResult, not an error;
// errors are reserved for malformed requests and internal faults.
type Orchestrator struct {
	disp       ChannelDispatcher
	contacts   repository.ContactRepository
	dispatches repository.DispatchRepository
	idem       cache.IdempotencyStore
	idemTTL    time.Duration
	maps       *maplink.Builder
	onDispatch func(*domain.AggregateResult)
	logger     *zap.Logger
}

func NewOrchestrator(
	disp ChannelDispatcher,
	contacts repository.ContactRepository,
	dispatches repository.DispatchRepository,
	idem cache.IdempotencyStore,
	idemTTL time.Duration,
	maps *maplink.Builder,
	onDispatch func(*domain.AggregateResult),
	logger *zap.Logger,
) *Orchestrator {
	if onDispatch == nil {
		onDispatch = func(*domain.AggregateResult) {}
	}
	return &Orchestrator{
		disp: disp, contacts: contacts, dispatches: dispatches,
		idem: idem, idemTTL: idemTTL, maps: maps,
		onDispatch: onDispatch, logger: logger,
	}
}

// ShareLocation sends the user's position to the selected contacts.
func (o *Orchestrator) ShareLocation(ctx context.Context, req Request) (*domain.AggregateResult, bool, error) {
	return o.Dispatch(ctx, domain.KindLocationShare, req)
}

// SendEmergencyAlert sends an emergency alert to the selected contacts.
func (o *Orchestrator) SendEmergencyAlert(ctx context.Context, req Request) (*domain.AggregateResult, bool, error) {
	return o.Dispatch(ctx, domain.KindEmergencyAlert, req)
}

// ShareWithEmergencyContacts dispatches to every contact the owner has
// registered, ignoring any contacts set on req.
func (o *Orchestrator) ShareWithEmergencyContacts(
	ctx context.Context,
	kind domain.DispatchKind,
	req Request,
) (*domain.AggregateResult, bool, error) {
	contacts, err := o.contacts.ListByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, false, fmt.Errorf("load contacts: %w", err)
	}
	req.Contacts = contacts
	return o.Dispatch(ctx, kind, req)
}

// Dispatch validates req, fans out to every requested channel concurrently,
// and merges the results once all channels have settled.
//
// The returned bool is true when req.IdempotencyKey matched an earlier
// dispatch; the earlier result is returned instead of sending again.
func (o *Orchestrator) Dispatch(
	ctx context.Context,
	kind domain.DispatchKind,
	req Request,
) (*domain.AggregateResult, bool, error) {
	if !req.Channel.IsValid() {
		return nil, false, domain.ErrInvalidChannel
	}
	if req.Location != nil {
		if err := req.Location.Validate(); err != nil {
			return nil, false, err
		}
	}

	if failed := precheck(kind, req); failed != nil {
		o.onDispatch(failed)
		o.logger.Info("dispatch rejected",
			zap.String("kind", string(kind)),
			zap.String("error_kind", string(failed.ErrorKind)),
		)
		return failed, false, nil
	}

	id := uuid.New().String()
	if req.IdempotencyKey != "" && o.idem != nil {
		existing, claimed, err := o.idem.Claim(ctx, req.IdempotencyKey, id, o.idemTTL)
		if err != nil {
			return nil, false, err
		}
		if !claimed {
			rec, err := o.dispatches.GetByID(ctx, existing)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, false, domain.ErrDuplicateRequest
			}
			if err != nil {
				return nil, false, fmt.Errorf("load duplicate dispatch: %w", err)
			}
			return rec.Result, true, nil
		}
		// nothing has been sent yet, so a retry with the same key must go through
		if err := ctx.Err(); err != nil {
			_ = o.idem.Release(context.WithoutCancel(ctx), req.IdempotencyKey)
			return nil, false, err
		}
	}

	loc := *req.Location
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now().UTC()
	}
	if loc.MapLinkURL == "" {
		loc.MapLinkURL = maplink.GoogleMapsURL(loc.Latitude, loc.Longitude)
	}

	tmpl := dispatcher.TemplateFor(kind, o.maps)
	res := o.run(ctx, tmpl, req.Channel.Expand(), req.Contacts, req.User, loc)
	res.ID = id

	now := time.Now().UTC()
	rec := &domain.DispatchRecord{
		ID:        id,
		OwnerID:   req.OwnerID,
		Kind:      kind,
		Channel:   req.Channel,
		Contacts:  req.Contacts,
		User:      req.User,
		Location:  loc,
		Result:    res,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.dispatches.Save(ctx, rec); err != nil {
		// the notifications already went out; the caller still gets the result
		o.logger.Error("failed to persist dispatch", zap.String("id", id), zap.Error(err))
	}

	o.onDispatch(res)
	o.logger.Info("dispatch finished",
		zap.String("id", id),
		zap.String("kind", string(kind)),
		zap.Bool("overall_success", res.OverallSuccess),
		zap.String("summary", res.HumanSummary),
	)
	return res, false, nil
}

// RetryFailed re-dispatches only the recipients that failed with a transport
// error in an earlier dispatch. Recipients that already succeeded are not
// contacted again.
func (o *Orchestrator) RetryFailed(ctx context.Context, id string) (*domain.AggregateResult, error) {
	rec, err := o.dispatches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Result == nil {
		return nil, domain.ErrNothingToRetry
	}

	tmpl := dispatcher.TemplateFor(rec.Kind, o.maps)
	prev := rec.Result
	var (
		channels []domain.Channel
		retry    = map[domain.Channel][]domain.Contact{}
	)
	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelSMS} {
		r := prev.PerChannel[ch]
		if r == nil || len(r.Failed) == 0 {
			continue
		}
		failed := make(map[string]bool, len(r.Failed))
		for _, f := range r.Failed {
			// a malformed address fails the same way every time
			if f.ErrorKind.IsTransport() {
				failed[f.OriginalAddress] = true
			}
		}
		for _, c := range r.AttemptedContacts {
			if failed[address(c, ch)] {
				retry[ch] = append(retry[ch], c)
			}
		}
		if len(retry[ch]) > 0 {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return nil, domain.ErrNothingToRetry
	}

	results := make([]*domain.DispatchResult, len(channels))
	var g errgroup.Group
	for i, ch := range channels {
		g.Go(func() error {
			results[i] = o.dispatchChannel(ctx, ch, retry[ch], rec.User, rec.Location, tmpl)
			return nil
		})
	}
	_ = g.Wait()

	merged := &domain.AggregateResult{
		ID:         rec.ID,
		Kind:       rec.Kind,
		PerChannel: make(map[domain.Channel]*domain.DispatchResult, len(prev.PerChannel)),
		CreatedAt:  time.Now().UTC(),
	}
	for ch, r := range prev.PerChannel {
		merged.PerChannel[ch] = r
	}
	for i, ch := range channels {
		merged.PerChannel[ch] = mergeRetry(prev.PerChannel[ch], results[i])
	}
	finish(merged)

	if err := o.dispatches.UpdateResult(ctx, rec.ID, merged); err != nil {
		o.logger.Error("failed to persist retry result", zap.String("id", rec.ID), zap.Error(err))
	}
	o.onDispatch(merged)
	o.logger.Info("retry finished",
		zap.String("id", rec.ID),
		zap.Int("channels", len(channels)),
		zap.String("summary", merged.HumanSummary),
	)
	return merged, nil
}

// GetDispatch returns a stored dispatch record.
func (o *Orchestrator) GetDispatch(ctx context.Context, id string) (*domain.DispatchRecord, error) {
	return o.dispatches.GetByID(ctx, id)
}

// run dispatches every channel concurrently. Each goroutine writes only its
// own slot of results. A channel that cannot send at all does not abort the
// others.
func (o *Orchestrator) run(
	ctx context.Context,
	tmpl dispatcher.Template,
	channels []domain.Channel,
	contacts []domain.Contact,
	user domain.UserInfo,
	loc domain.LocationSnapshot,
) *domain.AggregateResult {
	results := make([]*domain.DispatchResult, len(channels))
	var g errgroup.Group
	for i, ch := range channels {
		g.Go(func() error {
			results[i] = o.dispatchChannel(ctx, ch, contacts, user, loc, tmpl)
			return nil
		})
	}
	_ = g.Wait()

	res := &domain.AggregateResult{
		Kind:       tmpl.Kind(),
		PerChannel: make(map[domain.Channel]*domain.DispatchResult, len(channels)),
		CreatedAt:  time.Now().UTC(),
	}
	for i, ch := range channels {
		res.PerChannel[ch] = results[i]
	}
	finish(res)
	return res
}

// dispatchChannel sends one channel. When the channel's transport is unusable
// every eligible contact is recorded as a transport failure, so the result
// stays retryable once the transport is back.
func (o *Orchestrator) dispatchChannel(
	ctx context.Context,
	ch domain.Channel,
	contacts []domain.Contact,
	user domain.UserInfo,
	loc domain.LocationSnapshot,
	tmpl dispatcher.Template,
) *domain.DispatchResult {
	r, err := o.disp.Dispatch(ctx, ch, contacts, &user, &loc, tmpl)
	if err == nil {
		return r
	}
	o.logger.Error("channel dispatch failed",
		zap.String("channel", string(ch)),
		zap.Error(err),
	)

	detail := unavailableMessage(ch)
	if !errors.Is(err, domain.ErrRelayUnconfigured) {
		_, detail = relay.Classify(ch, err)
	}
	res := &domain.DispatchResult{
		Channel:           ch,
		AttemptedContacts: []domain.Contact{},
		Succeeded:         []string{},
		Failed:            []domain.Failure{},
		Corrections:       []domain.Correction{},
	}
	for _, c := range contacts {
		if !c.Eligible(ch) {
			continue
		}
		res.AttemptedContacts = append(res.AttemptedContacts, c)
		res.Failed = append(res.Failed, domain.Failure{
			OriginalAddress: address(c, ch),
			ErrorKind:       domain.ErrorKindTransportGeneric,
			ErrorDetail:     detail,
		})
	}
	return res
}

func unavailableMessage(ch domain.Channel) string {
	if ch == domain.ChannelSMS {
		return "SMS service is not configured."
	}
	return "Email service is not configured."
}

// precheck returns a failed result when req cannot be dispatched at all.
func precheck(kind domain.DispatchKind, req Request) *domain.AggregateResult {
	var k domain.ErrorKind
	switch {
	case req.Location == nil:
		k = domain.ErrorKindMissingLocation
	case len(req.Contacts) == 0:
		k = domain.ErrorKindNoContacts
	case len(req.Channel.Expand()) > 1 && !anyEligibleFor(req.Contacts, req.Channel.Expand()):
		k = domain.ErrorKindNoEligibleContacts
	default:
		for _, ch := range req.Channel.Expand() {
			if !anyEligible(req.Contacts, ch) {
				if ch == domain.ChannelEmail {
					k = domain.ErrorKindNoEmailContacts
				} else {
					k = domain.ErrorKindNoPhoneContacts
				}
				break
			}
		}
	}
	if k == "" {
		return nil
	}
	return &domain.AggregateResult{
		Kind:         kind,
		ErrorKind:    k,
		PerChannel:   map[domain.Channel]*domain.DispatchResult{},
		HumanSummary: preconditionMessage(k),
		CreatedAt:    time.Now().UTC(),
	}
}

func anyEligible(contacts []domain.Contact, ch domain.Channel) bool {
	for _, c := range contacts {
		if c.Eligible(ch) {
			return true
		}
	}
	return false
}

func anyEligibleFor(contacts []domain.Contact, channels []domain.Channel) bool {
	for _, ch := range channels {
		if anyEligible(contacts, ch) {
			return true
		}
	}
	return false
}

func address(c domain.Contact, ch domain.Channel) string {
	if ch == domain.ChannelSMS {
		return c.Phone
	}
	return c.Email
}

func preconditionMessage(k domain.ErrorKind) string {
	switch k {
	case domain.ErrorKindMissingLocation:
		return "Location is unavailable. Please enable location services."
	case domain.ErrorKindNoContacts:
		return "Please select at least one contact."
	case domain.ErrorKindNoEmailContacts:
		return "No valid email contacts found."
	case domain.ErrorKindNoPhoneContacts:
		return "No valid phone contacts found."
	}
	return "No contacts can be reached."
}

// mergeRetry folds a retry result into the previous result of the same channel.
func mergeRetry(prev, retry *domain.DispatchResult) *domain.DispatchResult {
	out := &domain.DispatchResult{
		Channel:           prev.Channel,
		AttemptedContacts: prev.AttemptedContacts,
		Succeeded:         append(append([]string{}, prev.Succeeded...), retry.Succeeded...),
		Corrections:       append([]domain.Correction{}, prev.Corrections...),
	}
	for _, f := range prev.Failed {
		if !f.ErrorKind.IsTransport() {
			out.Failed = append(out.Failed, f)
		}
	}
	out.Failed = append(out.Failed, retry.Failed...)
	seen := make(map[domain.Correction]bool, len(out.Corrections))
	for _, c := range out.Corrections {
		seen[c] = true
	}
	for _, c := range retry.Corrections {
		if !seen[c] {
			out.Corrections = append(out.Corrections, c)
		}
	}
	return out
}

// finish sets OverallSuccess and HumanSummary from PerChannel.
func finish(res *domain.AggregateResult) {
	var parts []string
	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelSMS} {
		r, ok := res.PerChannel[ch]
		if !ok {
			continue
		}
		if r.SucceededCount() > 0 {
			res.OverallSuccess = true
		}
		parts = append(parts, channelSummary(res.Kind, r))
	}
	res.HumanSummary = strings.Join(parts, "; ")
}

func channelSummary(kind domain.DispatchKind, r *domain.DispatchResult) string {
	n := r.SucceededCount()
	var s string
	switch {
	case n == 0 && r.Channel == domain.ChannelEmail && kind == domain.KindEmergencyAlert:
		s = "Failed to send emails"
	case n == 0 && r.Channel == domain.ChannelEmail:
		s = "Failed to send location sharing emails"
	case n == 0:
		s = "Failed to send SMS"
	case r.Channel == domain.ChannelEmail && kind == domain.KindEmergencyAlert:
		s = fmt.Sprintf("Emergency emails sent to %d %s", n, plural(n))
	case r.Channel == domain.ChannelEmail:
		s = fmt.Sprintf("Location shared with %d %s via email", n, plural(n))
	case kind == domain.KindEmergencyAlert:
		s = fmt.Sprintf("Emergency SMS sent to %d %s", n, plural(n))
	default:
		s = fmt.Sprintf("Location shared with %d %s via SMS", n, plural(n))
	}
	if c := len(r.Corrections); c > 0 {
		s += fmt.Sprintf(" (%d corrected)", c)
	}
	if f := len(r.Failed); f > 0 && n > 0 {
		s += fmt.Sprintf(" (%d failed)", f)
	}
	return s
}

func plural(n int) string {
	if n == 1 {
		return "contact"
	}
	return "contacts"
}

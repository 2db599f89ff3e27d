package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/emailaddr"
	"github.com/notifyhub/safety-dispatch/internal/ratelimiter"
	"github.com/notifyhub/safety-dispatch/internal/relay"
)

// Config carries the relay identifiers and the retry budget.
type Config struct {
	ServiceID  string
	TemplateID string
	PublicKey  string

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration

	// PhoneRegion is the default region for numbers without a country code.
	PhoneRegion string
}

// Hooks carries the metric callbacks injected by main. Nil fields are no-ops.
type Hooks struct {
	OnSent      func(ch domain.Channel, latency time.Duration)
	OnFailed    func(ch domain.Channel, kind domain.ErrorKind)
	OnRetry     func(ch domain.Channel)
	OnCorrected func(ch domain.Channel)
}

func (h *Hooks) fill() {
	if h.OnSent == nil {
		h.OnSent = func(domain.Channel, time.Duration) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.Channel, domain.ErrorKind) {}
	}
	if h.OnRetry == nil {
		h.OnRetry = func(domain.Channel) {}
	}
	if h.OnCorrected == nil {
		h.OnCorrected = func(domain.Channel) {}
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithSleep replaces the wait between retries. Tests use it to observe delays.
func WithSleep(fn SleepFunc) Option { return func(d *Dispatcher) { d.sleep = fn } }

// WithHooks installs metric callbacks.
func WithHooks(h Hooks) Option { return func(d *Dispatcher) { d.hooks = h } }

// WithCorrector replaces the default email typo corrector.
func WithCorrector(c *emailaddr.Corrector) Option { return func(d *Dispatcher) { d.corrector = c } }

// Dispatcher fans a notification out to every eligible contact of a channel.
// Each contact is attempted independently; one contact's failure never
// cancels or blocks another's.
type Dispatcher struct {
	mail      relay.MailRelay
	sms       relay.SMSTransport
	limiter   *ratelimiter.ChannelLimiters
	corrector *emailaddr.Corrector
	cfg       Config
	sleep     SleepFunc
	hooks     Hooks
	logger    *zap.Logger
}

func New(
	mail relay.MailRelay,
	sms relay.SMSTransport,
	limiter *ratelimiter.ChannelLimiters,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		mail:    mail,
		sms:     sms,
		limiter: limiter,
		cfg:     cfg,
		sleep:   sleepCtx,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.corrector == nil {
		d.corrector = emailaddr.Default()
	}
	if d.cfg.MaxRetries < 0 {
		d.cfg.MaxRetries = 0
	}
	d.hooks.fill()
	return d
}

// outcome is one contact's settled result. Each goroutine owns exactly one.
type outcome struct {
	seq        int64
	succeeded  string
	failure    *domain.Failure
	correction *domain.Correction
}

// DispatchEmail delivers the email template to every contact that has an
// email address. Per-contact failures are recorded in the result, never
// returned; the error is reserved for unusable arguments.
func (d *Dispatcher) DispatchEmail(
	ctx context.Context,
	contacts []domain.Contact,
	user *domain.UserInfo,
	loc *domain.LocationSnapshot,
	tmpl Template,
) (*domain.DispatchResult, error) {
	if user == nil || loc == nil || tmpl == nil {
		return nil, fmt.Errorf("dispatch email: %w", domain.ErrInvalidArgument)
	}
	if d.mail == nil {
		return nil, fmt.Errorf("dispatch email: %w", domain.ErrRelayUnconfigured)
	}

	eligible := filter(contacts, domain.ChannelEmail)
	return d.fanOut(ctx, domain.ChannelEmail, eligible, func(ctx context.Context, c domain.Contact) outcome {
		return d.emailOne(ctx, c, *user, *loc, tmpl)
	}), nil
}

// DispatchSMS delivers the SMS body to every contact that has a phone number.
func (d *Dispatcher) DispatchSMS(
	ctx context.Context,
	contacts []domain.Contact,
	user *domain.UserInfo,
	loc *domain.LocationSnapshot,
	tmpl Template,
) (*domain.DispatchResult, error) {
	if user == nil || loc == nil || tmpl == nil {
		return nil, fmt.Errorf("dispatch sms: %w", domain.ErrInvalidArgument)
	}
	if d.sms == nil {
		return nil, fmt.Errorf("dispatch sms: %w", domain.ErrRelayUnconfigured)
	}

	eligible := filter(contacts, domain.ChannelSMS)
	body := tmpl.SMSBody(*user, *loc)
	return d.fanOut(ctx, domain.ChannelSMS, eligible, func(ctx context.Context, c domain.Contact) outcome {
		return d.smsOne(ctx, c, body)
	}), nil
}

// Dispatch routes to the dispatcher for ch.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	ch domain.Channel,
	contacts []domain.Contact,
	user *domain.UserInfo,
	loc *domain.LocationSnapshot,
	tmpl Template,
) (*domain.DispatchResult, error) {
	switch ch {
	case domain.ChannelEmail:
		return d.DispatchEmail(ctx, contacts, user, loc, tmpl)
	case domain.ChannelSMS:
		return d.DispatchSMS(ctx, contacts, user, loc, tmpl)
	}
	return nil, domain.ErrInvalidChannel
}

func filter(contacts []domain.Contact, ch domain.Channel) []domain.Contact {
	out := make([]domain.Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.Eligible(ch) {
			out = append(out, c)
		}
	}
	return out
}

// fanOut runs one goroutine per contact and waits for all of them to settle.
// Results are collected into per-index slots, then ordered by settle time.
func (d *Dispatcher) fanOut(
	ctx context.Context,
	ch domain.Channel,
	contacts []domain.Contact,
	one func(context.Context, domain.Contact) outcome,
) *domain.DispatchResult {
	outcomes := make([]outcome, len(contacts))
	var settled atomic.Int64

	var g errgroup.Group
	for i, c := range contacts {
		g.Go(func() error {
			o := one(ctx, c)
			o.seq = settled.Add(1)
			outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].seq < outcomes[b].seq })

	res := &domain.DispatchResult{
		Channel:           ch,
		AttemptedContacts: contacts,
		Succeeded:         []string{},
		Failed:            []domain.Failure{},
		Corrections:       []domain.Correction{},
	}
	for _, o := range outcomes {
		if o.correction != nil {
			res.Corrections = append(res.Corrections, *o.correction)
		}
		if o.failure != nil {
			res.Failed = append(res.Failed, *o.failure)
			continue
		}
		res.Succeeded = append(res.Succeeded, o.succeeded)
	}
	return res
}

func (d *Dispatcher) emailOne(
	ctx context.Context,
	c domain.Contact,
	user domain.UserInfo,
	loc domain.LocationSnapshot,
	tmpl Template,
) outcome {
	var o outcome
	original := c.Email
	address := d.corrector.Correct(original)
	log := d.logger.With(
		zap.String("channel", string(domain.ChannelEmail)),
		zap.String("contact_id", c.ID),
		zap.String("address", address),
	)

	if address != original {
		o.correction = &domain.Correction{Original: original, Corrected: address}
		d.hooks.OnCorrected(domain.ChannelEmail)
		log.Info("corrected email address", zap.String("original", original))
	}

	if !emailaddr.IsValidFormat(address) {
		o.failure = &domain.Failure{
			OriginalAddress: original,
			ErrorKind:       domain.ErrorKindInvalidFormat,
			ErrorDetail:     "Invalid email format",
		}
		if o.correction != nil {
			o.failure.CorrectedAddress = address
		}
		d.hooks.OnFailed(domain.ChannelEmail, domain.ErrorKindInvalidFormat)
		log.Warn("invalid email format")
		return o
	}

	msg := relay.Message{
		ServiceID:      d.cfg.ServiceID,
		TemplateID:     d.cfg.TemplateID,
		PublicKey:      d.cfg.PublicKey,
		TemplateParams: tmpl.EmailParams(c, address, user, loc),
	}

	start := time.Now()
	attempts, err := d.sendWithRetry(ctx, domain.ChannelEmail, log, func(ctx context.Context) error {
		resp, err := d.mail.Send(ctx, msg)
		if err == nil && resp != nil && resp.BodyErr != nil {
			log.Warn("relay accepted message but response was unreadable", zap.Error(resp.BodyErr))
		}
		return err
	})
	if err != nil {
		o.failure = d.transportFailure(domain.ChannelEmail, original, address, attempts, err, log)
		return o
	}

	d.hooks.OnSent(domain.ChannelEmail, time.Since(start))
	log.Info("email sent", zap.Int("attempts", attempts))
	o.succeeded = address
	return o
}

func (d *Dispatcher) smsOne(ctx context.Context, c domain.Contact, body string) outcome {
	var o outcome
	original := c.Phone
	phone := NormalizePhone(original, d.cfg.PhoneRegion)
	log := d.logger.With(
		zap.String("channel", string(domain.ChannelSMS)),
		zap.String("contact_id", c.ID),
		zap.String("address", phone),
	)

	start := time.Now()
	attempts, err := d.sendWithRetry(ctx, domain.ChannelSMS, log, func(ctx context.Context) error {
		return d.sms.Send(ctx, phone, body)
	})
	if err != nil {
		o.failure = d.transportFailure(domain.ChannelSMS, original, phone, attempts, err, log)
		return o
	}

	d.hooks.OnSent(domain.ChannelSMS, time.Since(start))
	log.Info("sms sent", zap.Int("attempts", attempts))
	o.succeeded = phone
	return o
}

// sendWithRetry makes up to 1+MaxRetries attempts with a fixed delay in
// between. It returns the number of attempts made and the last error.
func (d *Dispatcher) sendWithRetry(
	ctx context.Context,
	ch domain.Channel,
	log *zap.Logger,
	send func(context.Context) error,
) (int, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx, ch); err != nil {
				if lastErr == nil {
					lastErr = err
				}
				return attempt - 1, lastErr
			}
		}

		lastErr = send(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if attempt > d.cfg.MaxRetries {
			return attempt, lastErr
		}

		_, reason := relay.Classify(ch, lastErr)
		log.Warn("send failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", d.cfg.MaxRetries+1),
			zap.String("reason", reason),
			zap.Error(lastErr),
		)
		d.hooks.OnRetry(ch)
		if err := d.sleep(ctx, d.cfg.RetryDelay); err != nil {
			return attempt, lastErr
		}
	}
}

func (d *Dispatcher) transportFailure(
	ch domain.Channel,
	original, address string,
	attempts int,
	err error,
	log *zap.Logger,
) *domain.Failure {
	kind, msg := relay.Classify(ch, err)
	f := &domain.Failure{
		OriginalAddress: original,
		ErrorKind:       kind,
		ErrorDetail:     msg,
		Attempts:        attempts,
	}
	if address != original {
		f.CorrectedAddress = address
	}
	d.hooks.OnFailed(ch, kind)
	log.Error("delivery failed",
		zap.String("error_kind", string(kind)),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return f
}

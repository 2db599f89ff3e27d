package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/notifyhub/safety-dispatch/internal/domain"
)

// ChannelLimiters holds one token bucket per delivery channel so a burst of
// alerts cannot push the mail relay past its plan limits and earn 429s.
// Burst equals the per-second rate.
type ChannelLimiters struct {
	limiters map[domain.Channel]*rate.Limiter
}

// New creates a ChannelLimiters with ratePerSec tokens per second per channel.
// A non-positive rate disables limiting.
func New(ratePerSec int) *ChannelLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec
	if ratePerSec <= 0 {
		r, burst = rate.Inf, 1
	}

	return &ChannelLimiters{
		limiters: map[domain.Channel]*rate.Limiter{
			domain.ChannelEmail: rate.NewLimiter(r, burst),
			domain.ChannelSMS:   rate.NewLimiter(r, burst),
		},
	}
}

// Wait blocks until the channel's limiter grants a token.
// Called immediately before every relay attempt, retries included.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (cl *ChannelLimiters) Wait(ctx context.Context, ch domain.Channel) error {
	l, ok := cl.limiters[ch]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}

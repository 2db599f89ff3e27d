package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/ratelimiter"
)

func TestChannelLimiters_Unlimited(t *testing.T) {
	l := ratelimiter.New(0)
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		if err := l.Wait(ctx, domain.ChannelEmail); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestChannelLimiters_BurstThenBlock(t *testing.T) {
	l := ratelimiter.New(2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx, domain.ChannelSMS); err != nil {
			t.Fatalf("burst token %d: unexpected error: %v", i, err)
		}
	}

	// bucket is empty; the next token is ~500ms away, longer than the deadline
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(short, domain.ChannelSMS); err == nil {
		t.Fatal("expected wait to fail once the bucket is drained")
	}

	// channels have independent buckets
	if err := l.Wait(ctx, domain.ChannelEmail); err != nil {
		t.Fatalf("email bucket should be untouched: %v", err)
	}
}

package widget

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/crowsupport/chatbridge/internal/conversation"
)

const (
	defaultPollInterval = 200 * time.Millisecond
	defaultMaxAttempts  = 25
	defaultReadyTimeout = 3 * time.Second
)

// Consumer delivers a transfer payload into a destination widget. The
// widget may initialize asynchronously, so the consumer polls for
// availability under a bounded attempt budget, then races the widget's
// ready notification against a fallback timeout. History is injected at
// most once; if the widget never comes up, the surface is opened bare.
type Consumer struct {
	w   Widget
	log *slog.Logger

	pollInterval time.Duration
	maxAttempts  int
	readyTimeout time.Duration

	injected atomic.Bool
}

type Option func(*Consumer)

func WithPollInterval(d time.Duration) Option {
	return func(c *Consumer) { c.pollInterval = d }
}

func WithMaxAttempts(n int) Option {
	return func(c *Consumer) { c.maxAttempts = n }
}

func WithReadyTimeout(d time.Duration) Option {
	return func(c *Consumer) { c.readyTimeout = d }
}

func NewConsumer(w Widget, log *slog.Logger, opts ...Option) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	c := &Consumer{
		w:            w,
		log:          log,
		pollInterval: defaultPollInterval,
		maxAttempts:  defaultMaxAttempts,
		readyTimeout: defaultReadyTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Deliver opens the widget and, when payload is non-nil, prefills it
// with the transferred conversation. It never returns an error: every
// widget call is individually guarded so one failure cannot abort the
// rest, and an unavailable widget degrades to a bare open.
func (c *Consumer) Deliver(ctx context.Context, payload *conversation.TransferPayload) {
	if payload == nil {
		c.safe("open", c.w.Open)
		return
	}

	if !c.waitAvailable(ctx) {
		c.log.Warn("widget never became available, opening without prefill")
		c.safe("open", c.w.Open)
		return
	}

	c.waitReady(ctx)
	c.inject(payload)
}

// waitAvailable polls Available at the configured interval, bounded by
// maxAttempts. Context cancellation ends the wait early.
func (c *Consumer) waitAvailable(ctx context.Context) bool {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if c.available() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return c.available()
}

// waitReady races the widget's ready notification against the fallback
// timeout; whichever fires first lets injection proceed.
func (c *Consumer) waitReady(ctx context.Context) {
	ready := make(chan struct{})
	var once atomic.Bool
	c.safe("onReady", func() {
		c.w.OnReady(func() {
			if once.CompareAndSwap(false, true) {
				close(ready)
			}
		})
	})

	timer := time.NewTimer(c.readyTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-timer.C:
		c.log.Debug("widget ready signal timed out, injecting anyway")
	case <-ctx.Done():
	}
}

// inject pushes the payload into the widget exactly once.
func (c *Consumer) inject(p *conversation.TransferPayload) {
	if !c.injected.CompareAndSwap(false, true) {
		return
	}
	c.safe("open", c.w.Open)
	c.safeErr("setComposer", func() error { return c.w.SetComposer(p.Summary) })
	c.safeErr("setConversationFields", func() error {
		return c.w.SetConversationFields(map[string]any{
			"session_id":        p.Meta.SessionID,
			"transcript":        p.AgentSummary,
			"customer_messages": countBySender(p.Messages, conversation.SenderCustomer),
		})
	})
	c.safeErr("setConversationTags", func() error {
		return c.w.SetConversationTags([]string{"chat-transfer"})
	})
}

func (c *Consumer) available() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("widget availability check panicked", "panic", r)
			ok = false
		}
	}()
	return c.w.Available()
}

func (c *Consumer) safe(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("widget call panicked", "op", op, "panic", r)
		}
	}()
	fn()
}

func (c *Consumer) safeErr(op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("widget call panicked", "op", op, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		c.log.Warn("widget call failed", "op", op, "err", err)
	}
}

func countBySender(msgs []conversation.Message, s conversation.Sender) int {
	n := 0
	for _, m := range msgs {
		if m.Sender == s {
			n++
		}
	}
	return n
}

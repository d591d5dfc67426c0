package widget

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/crowsupport/chatbridge/internal/conversation"
)

type fakeWidget struct {
	mu sync.Mutex

	available      bool
	availableAfter int // calls to Available before it flips true
	readyFns       []func()
	fireReady      bool

	opens     int
	composer  []string
	fields    []map[string]any
	tags      [][]string
	panicOpen bool
}

func (w *fakeWidget) Available() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.availableAfter > 0 {
		w.availableAfter--
		return false
	}
	return w.available
}

func (w *fakeWidget) Open() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.panicOpen {
		panic("widget script exploded")
	}
	w.opens++
}

func (w *fakeWidget) SetComposer(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.composer = append(w.composer, text)
	return nil
}

func (w *fakeWidget) SetConversationFields(fields map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fields = append(w.fields, fields)
	return nil
}

func (w *fakeWidget) SetConversationTags(tags []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tags = append(w.tags, tags)
	return nil
}

func (w *fakeWidget) OnReady(fn func()) {
	w.mu.Lock()
	fire := w.fireReady
	w.readyFns = append(w.readyFns, fn)
	w.mu.Unlock()
	if fire {
		fn()
	}
}

func (w *fakeWidget) snapshot() (opens int, composer []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opens, append([]string(nil), w.composer...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConsumer(w Widget) *Consumer {
	return NewConsumer(w, testLogger(),
		WithPollInterval(time.Millisecond),
		WithMaxAttempts(5),
		WithReadyTimeout(5*time.Millisecond),
	)
}

func testPayload() *conversation.TransferPayload {
	now := time.Now()
	return &conversation.TransferPayload{
		Summary:      "[09:31] You: help",
		AgentSummary: "transcript",
		Messages: []conversation.Message{
			{Text: "help", Sender: conversation.SenderCustomer, Timestamp: now},
		},
		Meta: conversation.Metadata{
			StartTime: now,
			Status:    conversation.StatusTransferred,
			SessionID: "01TESTSESSION",
		},
	}
}

func TestDeliver_InjectsWhenReadyFires(t *testing.T) {
	w := &fakeWidget{available: true, fireReady: true}
	c := fastConsumer(w)

	c.Deliver(context.Background(), testPayload())

	opens, composer := w.snapshot()
	if opens != 1 {
		t.Fatalf("expected one open, got %d", opens)
	}
	if len(composer) != 1 || composer[0] != "[09:31] You: help" {
		t.Fatalf("composer not prefilled: %v", composer)
	}
	if len(w.fields) != 1 || w.fields[0]["session_id"] != "01TESTSESSION" {
		t.Fatalf("conversation fields missing: %v", w.fields)
	}
	if len(w.tags) != 1 {
		t.Fatalf("conversation tags missing: %v", w.tags)
	}
}

func TestDeliver_FallbackTimeoutWithoutReadySignal(t *testing.T) {
	w := &fakeWidget{available: true, fireReady: false}
	c := fastConsumer(w)

	c.Deliver(context.Background(), testPayload())

	opens, composer := w.snapshot()
	if opens != 1 || len(composer) != 1 {
		t.Fatalf("expected injection after fallback timeout: opens=%d composer=%v", opens, composer)
	}
}

func TestDeliver_WidgetNeverAvailable(t *testing.T) {
	w := &fakeWidget{available: false}
	c := fastConsumer(w)

	c.Deliver(context.Background(), testPayload())

	opens, composer := w.snapshot()
	if opens != 1 {
		t.Fatalf("expected bare open, got %d opens", opens)
	}
	if len(composer) != 0 {
		t.Fatalf("expected no prefill, got %v", composer)
	}
}

func TestDeliver_BecomesAvailableMidPoll(t *testing.T) {
	w := &fakeWidget{available: true, availableAfter: 3, fireReady: true}
	c := fastConsumer(w)

	c.Deliver(context.Background(), testPayload())

	_, composer := w.snapshot()
	if len(composer) != 1 {
		t.Fatalf("expected injection once widget came up, got %v", composer)
	}
}

func TestDeliver_NilPayloadOpensBare(t *testing.T) {
	w := &fakeWidget{available: true}
	c := fastConsumer(w)

	c.Deliver(context.Background(), nil)

	opens, composer := w.snapshot()
	if opens != 1 || len(composer) != 0 {
		t.Fatalf("expected bare open only: opens=%d composer=%v", opens, composer)
	}
}

func TestDeliver_InjectsAtMostOnce(t *testing.T) {
	w := &fakeWidget{available: true, fireReady: true}
	c := fastConsumer(w)
	p := testPayload()

	c.Deliver(context.Background(), p)
	c.Deliver(context.Background(), p)

	_, composer := w.snapshot()
	if len(composer) != 1 {
		t.Fatalf("expected exactly one injection, got %d", len(composer))
	}
}

func TestDeliver_PanickingWidgetDoesNotEscape(t *testing.T) {
	w := &fakeWidget{available: true, fireReady: true, panicOpen: true}
	c := fastConsumer(w)

	// Open panics; the remaining calls still happen and nothing escapes.
	c.Deliver(context.Background(), testPayload())

	_, composer := w.snapshot()
	if len(composer) != 1 {
		t.Fatalf("expected composer call despite open panic, got %v", composer)
	}
}

func TestDeliver_ContextCancelledDuringPoll(t *testing.T) {
	w := &fakeWidget{available: false}
	c := NewConsumer(w, testLogger(),
		WithPollInterval(50*time.Millisecond),
		WithMaxAttempts(100),
		WithReadyTimeout(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		c.Deliver(ctx, testPayload())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("deliver did not return after context cancellation")
	}
}

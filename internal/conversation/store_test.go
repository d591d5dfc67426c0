package conversation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore() (*Store, *MemorySlot, *MemorySlot) {
	primary := NewMemorySlot("session")
	secondary := NewMemorySlot("durable")
	s := NewStore(primary, secondary, discardLogger())
	return s, primary, secondary
}

func TestAppend_OrderAndCount(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	texts := []string{"first", "second", "third"}
	var conv *Conversation
	for _, txt := range texts {
		conv = s.Append(ctx, "k1", txt, SenderCustomer, nil)
	}

	if len(conv.Messages) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(conv.Messages))
	}
	for i, txt := range texts {
		if conv.Messages[i].Text != txt {
			t.Fatalf("message %d: expected %q, got %q", i, txt, conv.Messages[i].Text)
		}
	}
	if conv.Meta.LastUpdateTime == nil {
		t.Fatalf("expected last update time to be set")
	}
}

func TestAppend_PersistsToBothSlots(t *testing.T) {
	s, primary, secondary := newTestStore()
	ctx := context.Background()

	s.Append(ctx, "k1", "hello", SenderCustomer, nil)

	for _, slot := range []*MemorySlot{primary, secondary} {
		raw, err := slot.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("slot %s: %v", slot.Name(), err)
		}
		var conv Conversation
		if err := json.Unmarshal(raw, &conv); err != nil {
			t.Fatalf("slot %s: unmarshal: %v", slot.Name(), err)
		}
		if len(conv.Messages) != 1 || conv.Messages[0].Text != "hello" {
			t.Fatalf("slot %s: unexpected snapshot %+v", slot.Name(), conv)
		}
	}
}

func TestInitialize_RoundTrip(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	s.Append(ctx, "k1", "hi", SenderCustomer, map[string]any{"page": "pricing"})
	want := s.Append(ctx, "k1", "hello back", SenderAgent, nil)

	got := s.Initialize(ctx, "k1")
	if got.Meta.SessionID != want.Meta.SessionID {
		t.Fatalf("session id changed across load: %q vs %q", got.Meta.SessionID, want.Meta.SessionID)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Text != "hi" || got.Messages[1].Text != "hello back" {
		t.Fatalf("order not preserved: %+v", got.Messages)
	}
	if got.Messages[0].Metadata["page"] != "pricing" {
		t.Fatalf("metadata lost: %+v", got.Messages[0].Metadata)
	}
	if got.Meta.Status != StatusActive {
		t.Fatalf("expected active status, got %s", got.Meta.Status)
	}
}

func TestInitialize_FallsBackToSecondarySlot(t *testing.T) {
	s, primary, _ := newTestStore()
	ctx := context.Background()

	s.Append(ctx, "k1", "survives", SenderCustomer, nil)
	// Session slot lost (new tab); durable slot still has the copy.
	if err := primary.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got := s.Initialize(ctx, "k1")
	if len(got.Messages) != 1 || got.Messages[0].Text != "survives" {
		t.Fatalf("expected durable fallback, got %+v", got.Messages)
	}
}

func TestInitialize_PrimarySlotWins(t *testing.T) {
	s, primary, secondary := newTestStore()
	ctx := context.Background()

	mk := func(text string) []byte {
		conv := New(time.Now())
		conv.Messages = append(conv.Messages, Message{Text: text, Sender: SenderCustomer, Timestamp: time.Now()})
		raw, _ := json.Marshal(conv)
		return raw
	}
	if err := primary.Put(ctx, "k1", mk("from session")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := secondary.Put(ctx, "k1", mk("from durable")); err != nil {
		t.Fatalf("put: %v", err)
	}

	got := s.Initialize(ctx, "k1")
	if got.Messages[0].Text != "from session" {
		t.Fatalf("expected session slot precedence, got %q", got.Messages[0].Text)
	}
}

func TestInitialize_IgnoresTransferredConversation(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	s.Append(ctx, "k1", "old chat", SenderCustomer, nil)
	transferred := s.PrepareTransfer(ctx, "k1")

	got := s.Initialize(ctx, "k1")
	if len(got.Messages) != 0 {
		t.Fatalf("expected fresh conversation, got %d messages", len(got.Messages))
	}
	if got.Meta.Status != StatusActive {
		t.Fatalf("expected active, got %s", got.Meta.Status)
	}
	if got.Meta.SessionID == transferred.Meta.SessionID {
		t.Fatalf("fresh conversation reused old session id")
	}
}

func TestInitialize_MalformedSnapshotFallsBack(t *testing.T) {
	s, primary, _ := newTestStore()
	ctx := context.Background()

	if err := primary.Put(ctx, "k1", []byte("{not json")); err != nil {
		t.Fatalf("put: %v", err)
	}

	got := s.Initialize(ctx, "k1")
	if len(got.Messages) != 0 || got.Meta.Status != StatusActive {
		t.Fatalf("expected fresh empty conversation, got %+v", got)
	}
}

func TestSetTopic_LatestValueWins(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	s.Append(ctx, "k1", "hi", SenderCustomer, nil)
	s.SetTopic(ctx, "k1", "billing")
	conv := s.SetTopic(ctx, "k1", "refunds")

	if conv.Meta.Topic != "refunds" {
		t.Fatalf("expected latest topic, got %q", conv.Meta.Topic)
	}
	if got := s.Initialize(ctx, "k1"); got.Meta.Topic != "refunds" {
		t.Fatalf("persisted topic wrong: %q", got.Meta.Topic)
	}
}

func TestClear_RemovesBothSlots(t *testing.T) {
	s, primary, secondary := newTestStore()
	ctx := context.Background()

	old := s.Append(ctx, "k1", "hi", SenderCustomer, nil)
	fresh := s.Clear(ctx, "k1")

	if fresh.Meta.SessionID == old.Meta.SessionID {
		t.Fatalf("clear did not mint a new session id")
	}
	for _, slot := range []*MemorySlot{primary, secondary} {
		if _, err := slot.Get(ctx, "k1"); err != ErrNotFound {
			t.Fatalf("slot %s: expected ErrNotFound, got %v", slot.Name(), err)
		}
	}
}

func TestStats_CountsBySender(t *testing.T) {
	s, _, _ := newTestStore()
	ctx := context.Background()

	s.Append(ctx, "k1", "Hi, I need help", SenderCustomer, nil)
	s.Append(ctx, "k1", "What's your order number?", SenderAgent, nil)

	st := s.Stats(ctx, "k1")
	if st.CustomerMessages != 1 || st.AgentMessages != 1 || st.TotalMessages != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.SessionID == "" {
		t.Fatalf("expected session id in stats")
	}
	if st.Status != StatusActive {
		t.Fatalf("expected active status, got %s", st.Status)
	}
}

func TestStore_NilSecondarySlot(t *testing.T) {
	s := NewStore(NewMemorySlot("session"), nil, discardLogger())
	ctx := context.Background()

	conv := s.Append(ctx, "k1", "hi", SenderCustomer, nil)
	if len(conv.Messages) != 1 {
		t.Fatalf("append failed without secondary slot")
	}
	if got := s.Initialize(ctx, "k1"); len(got.Messages) != 1 {
		t.Fatalf("load failed without secondary slot")
	}
}

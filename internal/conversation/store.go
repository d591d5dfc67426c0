package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Store is the capture API. It keeps the canonical conversation for a
// session key mirrored into two slots, session-scoped first, durable
// second. Storage and serialization failures are logged and treated as
// "no existing conversation"; no Store operation ever fails the caller.
type Store struct {
	primary   Slot
	secondary Slot
	log       *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewStore(primary, secondary Slot, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		primary:   primary,
		secondary: secondary,
		log:       log,
		now:       time.Now,
	}
}

// Initialize loads the stored conversation for key, primary slot first.
// A stored conversation is adopted only while still active; a transferred
// one found here is stale and ignored. Missing or malformed data falls
// back to a fresh empty conversation.
func (s *Store) Initialize(ctx context.Context, key string) *Conversation {
	if conv := s.load(ctx, key); conv != nil && conv.Meta.Status == StatusActive {
		return conv
	}
	return New(s.now())
}

// Append adds one message with the current timestamp and persists the
// full conversation to both slots before returning.
func (s *Store) Append(ctx context.Context, key, text string, sender Sender, metadata map[string]any) *Conversation {
	conv := s.Initialize(ctx, key)
	now := s.now()
	conv.Messages = append(conv.Messages, Message{
		Text:      text,
		Sender:    sender,
		Timestamp: now,
		Metadata:  metadata,
	})
	conv.Meta.LastUpdateTime = &now
	s.persist(ctx, key, conv)
	return conv
}

// SetTopic overwrites the conversation topic; the latest value wins.
func (s *Store) SetTopic(ctx context.Context, key, topic string) *Conversation {
	conv := s.Initialize(ctx, key)
	conv.Meta.Topic = topic
	s.persist(ctx, key, conv)
	return conv
}

// Clear resets to a brand-new active conversation and removes both
// persisted slots.
func (s *Store) Clear(ctx context.Context, key string) *Conversation {
	s.erase(ctx, key)
	return New(s.now())
}

// Stats is a pure read over the current conversation.
func (s *Store) Stats(ctx context.Context, key string) Stats {
	return s.Initialize(ctx, key).Stats()
}

// load returns the stored conversation regardless of status, or nil.
func (s *Store) load(ctx context.Context, key string) *Conversation {
	for _, slot := range []Slot{s.primary, s.secondary} {
		if slot == nil {
			continue
		}
		raw, err := slot.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.log.Warn("conversation load failed", "slot", slot.Name(), "key", key, "err", err)
			}
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(raw, &conv); err != nil {
			s.log.Warn("conversation snapshot malformed", "slot", slot.Name(), "key", key, "err", err)
			continue
		}
		if conv.Messages == nil {
			conv.Messages = []Message{}
		}
		return &conv
	}
	return nil
}

// persist mirrors the conversation into both slots. A failed write is
// logged and skipped; the other slot is still attempted.
func (s *Store) persist(ctx context.Context, key string, conv *Conversation) {
	raw, err := json.Marshal(conv)
	if err != nil {
		s.log.Error("conversation marshal failed", "key", key, "err", err)
		return
	}
	for _, slot := range []Slot{s.primary, s.secondary} {
		if slot == nil {
			continue
		}
		if err := slot.Put(ctx, key, raw); err != nil {
			s.log.Warn("conversation persist failed", "slot", slot.Name(), "key", key, "err", err)
		}
	}
}

func (s *Store) erase(ctx context.Context, key string) {
	for _, slot := range []Slot{s.primary, s.secondary} {
		if slot == nil {
			continue
		}
		if err := slot.Delete(ctx, key); err != nil {
			s.log.Warn("conversation erase failed", "slot", slot.Name(), "key", key, "err", err)
		}
	}
}

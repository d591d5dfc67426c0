package conversation

import (
	"context"
)

// TransferPayload is what a handoff hands to the destination side:
// the formatted transcripts plus the raw log and metadata.
type TransferPayload struct {
	Summary      string    `json:"summary"`
	AgentSummary string    `json:"agent_summary"`
	Messages     []Message `json:"messages"`
	Meta         Metadata  `json:"metadata"`
}

// PrepareTransfer freezes the conversation for handoff: status becomes
// transferred, the transfer time is recorded, both slots are rewritten,
// and the formatted payload is returned synchronously. An empty
// conversation still transfers; the formatters cover that case.
func (s *Store) PrepareTransfer(ctx context.Context, key string) *TransferPayload {
	conv := s.Initialize(ctx, key)
	now := s.now()
	conv.Meta.Status = StatusTransferred
	conv.Meta.TransferTime = &now
	s.persist(ctx, key, conv)
	return payloadFor(conv)
}

// Consume performs the destination side of a handoff. It accepts a
// stored conversation only when its status is transferred; an active one
// found here belongs to a live capture session and is left untouched.
// Both slots are erased immediately after a successful read, before any
// downstream injection, so a transfer is consumable at most once even
// when injection later fails. Returns nil when there is nothing to
// consume; callers then open the destination surface bare.
func (s *Store) Consume(ctx context.Context, key string) *TransferPayload {
	conv := s.load(ctx, key)
	if conv == nil || conv.Meta.Status != StatusTransferred {
		return nil
	}
	s.erase(ctx, key)
	return payloadFor(conv)
}

func payloadFor(conv *Conversation) *TransferPayload {
	return &TransferPayload{
		Summary:      PlainSummary(conv),
		AgentSummary: AnnotatedSummary(conv),
		Messages:     conv.Messages,
		Meta:         conv.Meta,
	}
}

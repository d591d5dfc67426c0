package conversation

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Sender identifies who wrote a message. Only the two values below are
// valid; relay boundaries map them to "user"/"business".
type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderAgent    Sender = "agent"
)

// RelayRole returns the role string used by the messaging relays.
func (s Sender) RelayRole() string {
	if s == SenderAgent {
		return "business"
	}
	return "user"
}

func (s Sender) Valid() bool {
	return s == SenderCustomer || s == SenderAgent
}

type Status string

const (
	StatusActive      Status = "active"
	StatusTransferred Status = "transferred"
)

// Message is one chat message. Immutable once appended.
type Message struct {
	Text      string         `json:"text"`
	Sender    Sender         `json:"sender"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type Metadata struct {
	StartTime      time.Time  `json:"startTime"`
	LastUpdateTime *time.Time `json:"lastUpdateTime"`
	Topic          string     `json:"topic,omitempty"`
	Status         Status     `json:"status"`
	SessionID      string     `json:"sessionId"`
	TransferTime   *time.Time `json:"transferTime,omitempty"`
}

// Conversation is an ordered, append-only message log plus metadata.
// Insertion order is replay order.
type Conversation struct {
	Messages []Message `json:"messages"`
	Meta     Metadata  `json:"metadata"`
}

// New returns a fresh, empty, active conversation started at now.
func New(now time.Time) *Conversation {
	return &Conversation{
		Messages: []Message{},
		Meta: Metadata{
			StartTime: now,
			Status:    StatusActive,
			SessionID: NewSessionID(now),
		},
	}
}

// NewSessionID combines a timestamp with a random suffix (ULID), stable
// for the conversation's lifetime.
func NewSessionID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// Stats is a read-only snapshot of a conversation's counters and metadata.
type Stats struct {
	CustomerMessages int        `json:"customer_messages"`
	AgentMessages    int        `json:"agent_messages"`
	TotalMessages    int        `json:"total_messages"`
	StartTime        time.Time  `json:"start_time"`
	LastUpdateTime   *time.Time `json:"last_update_time"`
	Topic            string     `json:"topic,omitempty"`
	Status           Status     `json:"status"`
	SessionID        string     `json:"session_id"`
}

// Stats computes counters without side effects.
func (c *Conversation) Stats() Stats {
	st := Stats{
		TotalMessages:  len(c.Messages),
		StartTime:      c.Meta.StartTime,
		LastUpdateTime: c.Meta.LastUpdateTime,
		Topic:          c.Meta.Topic,
		Status:         c.Meta.Status,
		SessionID:      c.Meta.SessionID,
	}
	for _, m := range c.Messages {
		switch m.Sender {
		case SenderAgent:
			st.AgentMessages++
		default:
			st.CustomerMessages++
		}
	}
	return st
}

// LastCustomerMessage returns the most recent customer message, or nil.
func (c *Conversation) LastCustomerMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Sender == SenderCustomer {
			return &c.Messages[i]
		}
	}
	return nil
}

package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Channel delivers an outbound agent message to a user on some
// messaging surface.
type Channel interface {
	Deliver(ctx context.Context, userID, text string) (messageID string, err error)
}

type ChannelFactory func(ctx context.Context) (Channel, error)

// Registry routes outbound deliveries by channel name ("messenger",
// "sunshine", ...).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ChannelFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ChannelFactory)}
}

func (r *Registry) Register(name string, f ChannelFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string) (Channel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown relay channel: %s", name)
	}
	return f(ctx)
}

// MessengerChannel adapts MessengerClient to the Channel interface.
type MessengerChannel struct {
	Client *MessengerClient
}

func (c *MessengerChannel) Deliver(ctx context.Context, userID, text string) (string, error) {
	return c.Client.SendMessage(ctx, userID, text)
}

// SunshineChannel posts agent messages into an existing Sunshine
// conversation; userID is the conversation id.
type SunshineChannel struct {
	Client *SunshineClient
}

func (c *SunshineChannel) Deliver(ctx context.Context, userID, text string) (string, error) {
	if err := c.Client.PostMessage(ctx, userID, "business", text); err != nil {
		return "", err
	}
	return "", nil
}

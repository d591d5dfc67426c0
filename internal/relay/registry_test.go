package relay

import (
	"context"
	"testing"
)

type stubChannel struct {
	delivered []string
}

func (c *stubChannel) Deliver(_ context.Context, userID, text string) (string, error) {
	c.delivered = append(c.delivered, userID+":"+text)
	return "mid.stub", nil
}

func TestRegistry_RoutesByName(t *testing.T) {
	reg := NewRegistry()
	stub := &stubChannel{}
	reg.Register("Messenger", func(ctx context.Context) (Channel, error) {
		return stub, nil
	})

	// lookup is case-insensitive, matching registration normalization
	ch, err := reg.Get(context.Background(), "  messenger ")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	msgID, err := ch.Deliver(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if msgID != "mid.stub" || len(stub.delivered) != 1 {
		t.Fatalf("unexpected delivery: %q %v", msgID, stub.delivered)
	}
}

func TestRegistry_UnknownChannel(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Get(context.Background(), "carrier-pigeon"); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
}

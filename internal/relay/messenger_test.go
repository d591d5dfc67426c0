package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crowsupport/chatbridge/internal/conversation"
)

func TestSendMessage(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "tok" {
			t.Errorf("missing access token")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"recipient_id": "psid-1",
			"message_id":   "mid.123",
		})
	}))
	defer srv.Close()

	c := NewMessengerClient(srv.URL, "tok")
	msgID, err := c.SendMessage(context.Background(), "psid-1", "hello there")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msgID != "mid.123" {
		t.Fatalf("unexpected message id: %q", msgID)
	}

	recipient := gotBody["recipient"].(map[string]any)
	if recipient["id"] != "psid-1" {
		t.Fatalf("unexpected recipient: %v", gotBody)
	}
	message := gotBody["message"].(map[string]any)
	if message["text"] != "hello there" {
		t.Fatalf("unexpected text: %v", gotBody)
	}
}

func TestSendMessage_GraphError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Invalid OAuth access token", "code": 190},
		})
	}))
	defer srv.Close()

	c := NewMessengerClient(srv.URL, "bad")
	if _, err := c.SendMessage(context.Background(), "psid-1", "hi"); err == nil {
		t.Fatalf("expected error from graph error payload")
	}
}

func TestFetchHistory_MapsSendersAndOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Graph returns newest first.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"messages": map[string]any{
					"data": []map[string]any{
						{"message": "second", "created_time": "2026-03-14T09:32:00+0000",
							"from": map[string]string{"id": "page-1"}},
						{"message": "first", "created_time": "2026-03-14T09:31:00+0000",
							"from": map[string]string{"id": "user-9"}},
					},
				},
			}},
		})
	}))
	defer srv.Close()

	c := NewMessengerClient(srv.URL, "tok")
	msgs, err := c.FetchHistory(context.Background(), "page-1", "user-9", time.Time{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "first" || msgs[0].Sender != conversation.SenderCustomer {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Text != "second" || msgs[1].Sender != conversation.SenderAgent {
		t.Fatalf("unexpected second message: %+v", msgs[1])
	}
}

func TestFetchHistory_SinceFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"messages": map[string]any{
					"data": []map[string]any{
						{"message": "new", "created_time": "2026-03-14T12:00:00+0000",
							"from": map[string]string{"id": "user-9"}},
						{"message": "old", "created_time": "2026-03-13T12:00:00+0000",
							"from": map[string]string{"id": "user-9"}},
					},
				},
			}},
		})
	}))
	defer srv.Close()

	c := NewMessengerClient(srv.URL, "tok")
	since := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	msgs, err := c.FetchHistory(context.Background(), "page-1", "user-9", since)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "new" {
		t.Fatalf("since filter failed: %+v", msgs)
	}
}

func TestExchangePSID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "page-1" {
			t.Errorf("missing page param")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "psid-42"}},
		})
	}))
	defer srv.Close()

	c := NewMessengerClient(srv.URL, "tok")
	psid, err := c.ExchangePSID(context.Background(), "asid-1", "page-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if psid != "psid-42" {
		t.Fatalf("unexpected psid: %q", psid)
	}
}

func TestSendMessage_ZeroValueClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"recipient_id": "psid-1",
			"message_id":   "mid.9",
		})
	}))
	defer srv.Close()

	// A hand-built client without an http.Client falls back to the default.
	c := &MessengerClient{BaseURL: srv.URL, AccessToken: "tok"}
	if _, err := c.SendMessage(context.Background(), "psid-1", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := c.FetchHistory(context.Background(), "page-1", "psid-1", time.Time{}); err != nil {
		t.Fatalf("history: %v", err)
	}
}

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/crowsupport/chatbridge/internal/conversation"
)

// MessengerClient talks to the Facebook Graph API: sending messages to a
// PSID, reading conversation history and exchanging app-scoped ids for
// page-scoped ones.
type MessengerClient struct {
	BaseURL     string
	AccessToken string
	Client      *http.Client
}

func (c *MessengerClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func NewMessengerClient(baseURL, accessToken string) *MessengerClient {
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v18.0"
	}
	return &MessengerClient{
		BaseURL:     baseURL,
		AccessToken: accessToken,
		Client:      &http.Client{Timeout: 15 * time.Second},
	}
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type sendMessageReq struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	MessagingType string `json:"messaging_type"`
}

type sendMessageResp struct {
	RecipientID string      `json:"recipient_id"`
	MessageID   string      `json:"message_id"`
	Error       *graphError `json:"error,omitempty"`
}

// SendMessage delivers text to a Messenger user and returns the message id.
func (c *MessengerClient) SendMessage(ctx context.Context, psid, text string) (string, error) {
	var req sendMessageReq
	req.Recipient.ID = psid
	req.Message.Text = text
	req.MessagingType = "RESPONSE"

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/me/messages?access_token=%s", c.BaseURL, url.QueryEscape(c.AccessToken))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out sendMessageResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("messenger: decode send response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("messenger: send failed: %s (code %d)", out.Error.Message, out.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("messenger: send failed: status %d", resp.StatusCode)
	}
	return out.MessageID, nil
}

type historyResp struct {
	Data []struct {
		Messages struct {
			Data []struct {
				Message     string `json:"message"`
				CreatedTime string `json:"created_time"`
				From        struct {
					ID string `json:"id"`
				} `json:"from"`
			} `json:"data"`
		} `json:"messages"`
	} `json:"data"`
	Error *graphError `json:"error,omitempty"`
}

// FetchHistory reads the Messenger conversation with a PSID and maps it
// into the internal message shape, oldest first. Messages sent by the
// page itself come back as agent messages. A zero since means no lower
// bound.
func (c *MessengerClient) FetchHistory(ctx context.Context, pageID, psid string, since time.Time) ([]conversation.Message, error) {
	q := url.Values{}
	q.Set("user_id", psid)
	q.Set("fields", "messages{message,from,created_time}")
	q.Set("access_token", c.AccessToken)

	u := fmt.Sprintf("%s/me/conversations?%s", c.BaseURL, q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out historyResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("messenger: decode history response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("messenger: history failed: %s (code %d)", out.Error.Message, out.Error.Code)
	}

	var msgs []conversation.Message
	for _, conv := range out.Data {
		for _, m := range conv.Messages.Data {
			ts, err := parseGraphTime(m.CreatedTime)
			if err != nil {
				continue
			}
			if !since.IsZero() && ts.Before(since) {
				continue
			}
			sender := conversation.SenderCustomer
			if m.From.ID == pageID {
				sender = conversation.SenderAgent
			}
			msgs = append(msgs, conversation.Message{
				Text:      m.Message,
				Sender:    sender,
				Timestamp: ts,
			})
		}
	}

	// Graph returns newest first; replay order is oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Graph timestamps use a numeric zone without a colon ("+0000").
func parseGraphTime(v string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02T15:04:05-0700", v); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, v)
}

type idExchangeResp struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *graphError `json:"error,omitempty"`
}

// ExchangePSID resolves the page-scoped id for an app-scoped user id.
func (c *MessengerClient) ExchangePSID(ctx context.Context, asid, pageID string) (string, error) {
	q := url.Values{}
	q.Set("page", pageID)
	q.Set("access_token", c.AccessToken)

	u := fmt.Sprintf("%s/%s/ids_for_pages?%s", c.BaseURL, url.PathEscape(asid), q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out idExchangeResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("messenger: decode id exchange response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("messenger: id exchange failed: %s (code %d)", out.Error.Message, out.Error.Code)
	}
	if len(out.Data) == 0 {
		return "", errors.New("messenger: no page-scoped id for user")
	}
	return out.Data[0].ID, nil
}

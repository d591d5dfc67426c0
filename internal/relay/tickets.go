package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TicketClient raises Zendesk tickets for escalated conversations.
type TicketClient struct {
	BaseURL  string
	Email    string
	APIToken string
	Client   *http.Client
}

func NewTicketClient(baseURL, email, apiToken string) *TicketClient {
	return &TicketClient{
		BaseURL:  baseURL,
		Email:    email,
		APIToken: apiToken,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *TicketClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// TicketRequest carries the escalation context into the ticketing system.
type TicketRequest struct {
	ConversationHistory string `json:"conversation_history"`
	SessionID           string `json:"session_id"`
	UserEmail           string `json:"user_email"`
	UserName            string `json:"user_name"`
}

type ticketResp struct {
	Ticket struct {
		ID int64 `json:"id"`
	} `json:"ticket"`
}

// CreateTicket opens a ticket whose body is the formatted conversation
// history and returns the ticket id.
func (c *TicketClient) CreateTicket(ctx context.Context, req TicketRequest) (int64, error) {
	name := req.UserName
	if name == "" {
		name = "Website visitor"
	}
	body, err := json.Marshal(map[string]any{
		"ticket": map[string]any{
			"subject": fmt.Sprintf("Chat transfer %s", req.SessionID),
			"comment": map[string]string{
				"body": req.ConversationHistory,
			},
			"requester": map[string]string{
				"name":  name,
				"email": req.UserEmail,
			},
			"tags": []string{"chat-transfer"},
		},
	})
	if err != nil {
		return 0, err
	}

	u := c.BaseURL + "/api/v2/tickets.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.Email+"/token", c.APIToken)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("tickets: create failed: status %d", resp.StatusCode)
	}
	var out ticketResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("tickets: decode response: %w", err)
	}
	return out.Ticket.ID, nil
}

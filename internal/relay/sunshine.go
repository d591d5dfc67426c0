package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SunshineClient talks to Zendesk Sunshine Conversations: creating
// conversations, posting messages into them and minting the user-scoped
// JWTs the web widget authenticates with.
type SunshineClient struct {
	BaseURL   string
	AppID     string
	KeyID     string
	KeySecret string
	Client    *http.Client
}

func NewSunshineClient(baseURL, appID, keyID, keySecret string) *SunshineClient {
	if baseURL == "" {
		baseURL = "https://api.smooch.io/v2"
	}
	return &SunshineClient{
		BaseURL:   baseURL,
		AppID:     appID,
		KeyID:     keyID,
		KeySecret: keySecret,
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *SunshineClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// UserJWT signs a short-lived user-scoped token for externalID.
func (c *SunshineClient) UserJWT(externalID string) (string, error) {
	if c.KeySecret == "" {
		return "", errors.New("sunshine: key secret not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"scope":       "user",
		"external_id": externalID,
		"iat":         jwt.NewNumericDate(now),
		"exp":         jwt.NewNumericDate(now.Add(time.Hour)),
	})
	token.Header["kid"] = c.KeyID
	return token.SignedString([]byte(c.KeySecret))
}

type sunshineConvResp struct {
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
}

// CreateConversation opens a personal conversation for an external user
// id and returns the conversation id.
func (c *SunshineClient) CreateConversation(ctx context.Context, externalID string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"type": "personal",
		"participants": []map[string]string{
			{"userExternalId": externalID},
		},
	})
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/apps/%s/conversations", c.BaseURL, c.AppID)
	resp, err := c.post(ctx, u, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sunshine: create conversation: status %d", resp.StatusCode)
	}
	var out sunshineConvResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("sunshine: decode conversation response: %w", err)
	}
	return out.Conversation.ID, nil
}

// PostMessage appends a message to a conversation. role is the relay
// role: "user" or "business".
func (c *SunshineClient) PostMessage(ctx context.Context, conversationID, role, text string) error {
	body, err := json.Marshal(map[string]any{
		"author": map[string]string{
			"type": role,
		},
		"content": map[string]string{
			"type": "text",
			"text": text,
		},
	})
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/apps/%s/conversations/%s/messages", c.BaseURL, c.AppID, conversationID)
	resp, err := c.post(ctx, u, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sunshine: post message: status %d", resp.StatusCode)
	}
	return nil
}

func (c *SunshineClient) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	// App-scoped bearer token for server-to-server calls.
	appJWT, err := c.appJWT()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)

	return c.httpClient().Do(req)
}

func (c *SunshineClient) appJWT() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"scope": "app",
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(now.Add(10 * time.Minute)),
	})
	token.Header["kid"] = c.KeyID
	return token.SignedString([]byte(c.KeySecret))
}

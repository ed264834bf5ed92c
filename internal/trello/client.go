// Package trello reads boards, cards and attachments from the Trello REST API.
package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tgienger/cronocelda/internal/models"
)

// ErrNotConfigured is returned when the key or token is missing
var ErrNotConfigured = errors.New("trello key and token are required")

// Client talks to the Trello REST API
type Client struct {
	baseURL string
	key     string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a client. baseURL defaults to https://api.trello.com/1.
func NewClient(baseURL, key, token string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.trello.com/1"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "trello").Logger(),
	}
}

// Cards lists the open cards of a board
func (c *Client) Cards(ctx context.Context, boardID string) ([]models.Card, error) {
	var cards []models.Card
	q := url.Values{"fields": {"name,desc,url,dateLastActivity"}, "filter": {"open"}}
	if err := c.get(ctx, "/boards/"+url.PathEscape(boardID)+"/cards", q, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// Card fetches a single card
func (c *Client) Card(ctx context.Context, cardID string) (models.Card, error) {
	var card models.Card
	q := url.Values{"fields": {"name,desc,url,dateLastActivity"}}
	err := c.get(ctx, "/cards/"+url.PathEscape(cardID), q, &card)
	return card, err
}

// Attachments lists the attachments of a card
func (c *Client) Attachments(ctx context.Context, cardID string) ([]models.Attachment, error) {
	var atts []models.Attachment
	q := url.Values{"fields": {"id,name,fileName,mimeType,bytes,date,url"}}
	if err := c.get(ctx, "/cards/"+url.PathEscape(cardID)+"/attachments", q, &atts); err != nil {
		return nil, err
	}
	return atts, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.key == "" || c.token == "" {
		return ErrNotConfigured
	}
	q.Set("key", c.key)
	q.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	c.log.Debug().Str("path", path).Msg("trello request ok")
	return nil
}

// APIError is a non-200 response from Trello
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trello API error (status %d): %s", e.StatusCode, e.Body)
}

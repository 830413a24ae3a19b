// Package relay posts realtime events to the WebSocket relay, which fans them
// out to connected browsers.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aimd54/forum-progression/internal/config"
	prommetrics "github.com/aimd54/forum-progression/internal/metrics"
	"github.com/aimd54/forum-progression/pkg/logger"
)

// Event types understood by the relay.
const (
	EventUserRankUpdated = "USER_RANK_UPDATED"
	EventUserRankRemoved = "USER_RANK_REMOVED"
	EventUserLevelUp     = "USER_LEVEL_UP"
)

// secretHeader carries the shared relay secret.
const secretHeader = "X-Relay-Secret"

// Broadcaster delivers events to the relay.
type Broadcaster interface {
	Broadcast(ctx context.Context, event *Event) error
}

// Event is the relay payload.
type Event struct {
	Type    string      `json:"type"`
	UserID  uint        `json:"userId"`
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sentAt"`
}

// RankPayload describes a user's rank after a change.
type RankPayload struct {
	RankID    *uint      `json:"donationRankId"`
	RankName  string     `json:"rankName,omitempty"`
	Color     string     `json:"color,omitempty"`
	Badge     string     `json:"badge,omitempty"`
	ExpiresAt *time.Time `json:"rankExpiresAt"`
}

// Client handles relay broadcasts.
type Client struct {
	url     string
	secret  string
	enabled bool
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a new relay client.
func NewClient(cfg *config.RelayConfig, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:     cfg.URL,
		secret:  cfg.Secret,
		enabled: cfg.Enabled,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Broadcast posts an event to the relay.
func (c *Client) Broadcast(ctx context.Context, event *Event) error {
	if !c.enabled {
		c.log.Debug().Str("event", event.Type).Msg("Relay is disabled, skipping event")
		return nil
	}

	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(secretHeader, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		prommetrics.RecordRelayEvent(event.Type, "error")
		return fmt.Errorf("failed to send event to relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		prommetrics.RecordRelayEvent(event.Type, "error")
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}

	prommetrics.RecordRelayEvent(event.Type, "success")
	c.log.Debug().
		Str("event", event.Type).
		Uint("user_id", event.UserID).
		Msg("Sent event to relay")

	return nil
}

// Notify broadcasts in the background and logs failures. Relay outages never
// surface to the caller.
func Notify(b Broadcaster, log *logger.Logger, event *Event) {
	if b == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.Broadcast(ctx, event); err != nil {
			log.Warn().
				Err(err).
				Str("event", event.Type).
				Uint("user_id", event.UserID).
				Msg("Failed to broadcast relay event")
		}
	}()
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// PushMessage is the payload fanned out to a user's registered devices.
type PushMessage struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	Priority Priority       `json:"priority"`
}

// PushClient fans a message out to device tokens, best effort.
type PushClient interface {
	Send(ctx context.Context, tokens []string, msg PushMessage) error
}

// FCMClient dispatches through the FCM HTTP API with a server key.
type FCMClient struct {
	serverKey string
	endpoint  string
	client    *http.Client
}

func NewFCMClient(serverKey string) *FCMClient {
	return &FCMClient{
		serverKey: serverKey,
		endpoint:  "https://fcm.googleapis.com/fcm/send",
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *FCMClient) Send(ctx context.Context, tokens []string, msg PushMessage) error {
	payload := map[string]any{
		"registration_ids": tokens,
		"notification": map[string]any{
			"title":        msg.Title,
			"body":         msg.Body,
			"click_action": "OPEN_APP",
			"sound":        "default",
		},
		"data":     msg.Data,
		"priority": string(msg.Priority),
	}
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(payload); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fcm send failed status=%d", resp.StatusCode)
	}
	return nil
}

// BreakerClient wraps a PushClient with a circuit breaker so a failing
// push service stops eating the dispatch timeout on every notification.
// A tripped breaker surfaces as an ordinary send error and the router
// falls through to the inbox tier.
type BreakerClient struct {
	inner   PushClient
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerClient(inner PushClient) *BreakerClient {
	return &BreakerClient{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "push-service",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (b *BreakerClient) Send(ctx context.Context, tokens []string, msg PushMessage) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.Send(ctx, tokens, msg)
	})
	return err
}

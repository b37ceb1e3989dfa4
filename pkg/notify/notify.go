// Copyright 2025 venslabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/venslabs/depguard/pkg/errdefs"
	"github.com/venslabs/depguard/pkg/metrics"
)

// Disabled is the destination value that turns notifications off.
const Disabled = "none"

const (
	defaultTimeout = 10 * time.Second
	botUsername    = "DepGuard Bot"
)

// Transport delivers a single message.
type Transport interface {
	Send(ctx context.Context, message string) error
}

// NewTransport picks a transport for destination. It returns (nil, nil)
// when notifications are disabled.
func NewTransport(destination string) (Transport, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" || strings.EqualFold(destination, Disabled) {
		return nil, nil
	}
	u, err := url.Parse(destination)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook destination %q", destination)
	}
	client := &http.Client{Timeout: defaultTimeout}
	if strings.EqualFold(u.Hostname(), "hooks.slack.com") {
		return &SlackTransport{WebhookURL: destination, Client: client}, nil
	}
	return &DiscordTransport{WebhookURL: destination, Username: botUsername, Client: client}, nil
}

// DiscordTransport posts to a Discord-compatible webhook.
type DiscordTransport struct {
	WebhookURL string
	Username   string
	Client     *http.Client
}

// Send posts the message as the webhook content.
func (d *DiscordTransport) Send(ctx context.Context, message string) error {
	payload := map[string]string{
		"content": message,
	}
	if d.Username != "" {
		payload["username"] = d.Username
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord notification: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord notification failed with status: %d", resp.StatusCode)
	}
	return nil
}

// SlackTransport posts to a Slack incoming webhook.
type SlackTransport struct {
	WebhookURL string
	Client     *http.Client
}

// Send posts the message as the webhook text.
func (s *SlackTransport) Send(ctx context.Context, message string) error {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.WebhookURL, client, &slack.WebhookMessage{Text: message}); err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	return nil
}

// Notifier delivers chunks one by one, without retries.
type Notifier struct {
	Transport Transport // nil disables delivery
	Metrics   *metrics.Metrics
}

// Send delivers every chunk independently: a failed chunk is logged and
// the remaining ones are still sent. It returns the number of chunks
// delivered and the joined failures.
func (n *Notifier) Send(ctx context.Context, chunks []AlertChunk) (int, error) {
	if n.Transport == nil {
		slog.DebugContext(ctx, "Notifications disabled", "chunks", len(chunks))
		return 0, nil
	}
	var (
		sent int
		errs []error
	)
	for i, c := range chunks {
		err := n.Transport.Send(ctx, c.String())
		n.Metrics.ObserveNotification(err)
		if err != nil {
			slog.WarnContext(ctx, "Failed to deliver notification chunk", "chunk", i+1, "of", len(chunks), "error", err)
			errs = append(errs, fmt.Errorf("%w: chunk %d/%d: %v", errdefs.ErrNotification, i+1, len(chunks), err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

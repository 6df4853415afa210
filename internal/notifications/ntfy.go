package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "crmflow/0.1.0"

// NtfySender publishes push notifications to an ntfy server. The push
// subscription is an ntfy topic name or a full topic URL.
type NtfySender struct {
	baseURL string
	client  *http.Client
}

// NewNtfySender builds a push sender for baseURL.
func NewNtfySender(baseURL string, timeout time.Duration) *NtfySender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &NtfySender{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (n *NtfySender) endpoint(subscription string) string {
	subscription = strings.TrimSpace(subscription)
	if strings.HasPrefix(subscription, "http://") || strings.HasPrefix(subscription, "https://") {
		return subscription
	}
	return n.baseURL + "/" + url.PathEscape(subscription)
}

// Send implements Sender.
func (n *NtfySender) Send(ctx context.Context, subscription string, p Payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint(subscription), strings.NewReader(p.Message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if p.Title != "" {
		req.Header.Set("Title", p.Title)
	}
	tags := []string{"crmflow"}
	if p.Type != "" {
		tags = append(tags, p.Type)
	}
	req.Header.Set("Tags", strings.Join(tags, ","))
	if prio := ntfyPriority(p.Priority); prio != "" {
		req.Header.Set("Priority", prio)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func ntfyPriority(priority string) string {
	switch priority {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return ""
	}
}

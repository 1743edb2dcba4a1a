// Package webhook posts change notifications to a Discord-style webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Notifier struct {
	URL    string
	client *http.Client
}

func NewNotifier(url string) *Notifier {
	return &Notifier{
		URL: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether a webhook URL was configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.URL != ""
}

// Send posts a message to the webhook as {"content": "..."}.
func (n *Notifier) Send(ctx context.Context, content string) error {
	if !n.Enabled() {
		return nil
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}

	rq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	rq.Header.Set("Content-Type", "application/json")

	response, err := n.client.Do(rq)
	if err != nil {
		return fmt.Errorf("unable to send webhook message (%w)", err)
	}

	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", response.Status)
	}

	return nil
}

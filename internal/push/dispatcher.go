package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/agenda/internal/reminder"
)

// LocalDispatcher delivers reminders in-process through a Notifier.
type LocalDispatcher struct {
	notifier *Notifier
}

func NewLocalDispatcher(n *Notifier) *LocalDispatcher {
	return &LocalDispatcher{notifier: n}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, n reminder.Notification) error {
	res, err := d.notifier.NotifyUser(ctx, n.Owner, Payload{Title: n.Title, Body: n.Body, URL: n.URL})
	if err != nil {
		return err
	}
	if res.Sent > 0 {
		return nil
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("no live subscriptions: %d expired, %d failed: %s", res.Expired, len(res.Failed), res.Failed[0].Error)
	}
	return fmt.Errorf("no live subscriptions: %d expired", res.Expired)
}

// HTTPDispatcher posts reminders to a push-send endpoint, which may be this
// process or a separate deployment.
type HTTPDispatcher struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewHTTPDispatcher targets baseURL + "/api/push/send". token, when set, is
// sent as a bearer token.
func NewHTTPDispatcher(baseURL, token string) *HTTPDispatcher {
	return &HTTPDispatcher{
		url:   strings.TrimRight(baseURL, "/") + "/api/push/send",
		token: token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, n reminder.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNoSubscriptions
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("push send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

package restdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrStatus is wrapped by every non-2xx response.
var ErrStatus = errors.New("postgrest: unexpected status")

// StatusError describes a non-2xx response.
type StatusError struct {
	Method     string
	Table      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("postgrest %s %s: status %d: %s", e.Method, e.Table, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// rowLimit caps rows fetched per query.
const rowLimit = 200

// Client talks to a PostgREST endpoint (e.g. Supabase) with a service key.
// Calls go through a circuit breaker so an unreachable store fails fast
// instead of holding every reminder tick for the full timeout.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

func New(baseURL, apiKey string, logger *slog.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/rest/v1/",
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "postgrest",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, prefer string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", table, err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if prefer != "" {
			req.Header.Set("Prefer", prefer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("postgrest %s %s: %w", method, table, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
			return nil, &StatusError{Method: method, Table: table, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("decode %s: %w", table, err)
			}
		}
		return nil, nil
	})
	return err
}

func (c *Client) get(ctx context.Context, table string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, table, query, nil, "", out)
}

func (c *Client) insert(ctx context.Context, table string, row any) error {
	return c.do(ctx, http.MethodPost, table, nil, row, "return=minimal", nil)
}

func (c *Client) upsert(ctx context.Context, table, onConflict string, row any) error {
	q := url.Values{"on_conflict": {onConflict}}
	return c.do(ctx, http.MethodPost, table, q, row, "resolution=merge-duplicates,return=minimal", nil)
}

// delete removes matching rows and returns how many were deleted.
func (c *Client) delete(ctx context.Context, table string, query url.Values) (int, error) {
	var rows []json.RawMessage
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("select", "id")
	if err := c.do(ctx, http.MethodDelete, table, q, nil, "return=representation", &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// timeout bounds the calls made from context-free store methods.
func (c *Client) timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func eq(v string) string { return "eq." + v }

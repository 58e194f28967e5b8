package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/agenda/internal/model"
)

// ErrNoSubscriptions is returned when the user has no registered devices.
var ErrNoSubscriptions = errors.New("no push subscriptions")

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// SubscriptionStore is the part of the push store the notifier needs.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Failure describes one subscription that could not be reached.
type Failure struct {
	EndpointSuffix string `json:"endpoint_suffix"`
	Status         int    `json:"status,omitempty"`
	Error          string `json:"error"`
}

// Result summarises a fan-out.
type Result struct {
	Sent    int       `json:"sent"`
	Expired int       `json:"expired"`
	Failed  []Failure `json:"failed"`
}

// Notifier fans a payload out to every device of a user.
type Notifier struct {
	sender Sender
	subs   SubscriptionStore
	logger *slog.Logger
}

func NewNotifier(sender Sender, subs SubscriptionStore, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, subs: subs, logger: logger}
}

// NotifyUser sends to each subscription in turn. Expired subscriptions are
// deleted; other failures are collected and the remaining devices are still
// attempted.
func (n *Notifier) NotifyUser(ctx context.Context, userID string, payload Payload) (Result, error) {
	res := Result{Failed: []Failure{}}

	subs, err := n.subs.ListByUser(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return res, ErrNoSubscriptions
	}

	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(ctx, sub, payload)
		if err == nil {
			res.Sent++
			continue
		}

		if errors.Is(err, ErrExpired) {
			res.Expired++
			n.logger.Info("removing expired push subscription", "user", userID, "endpoint", endpointSuffix(sub.Endpoint))
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("failed to delete expired subscription", "error", err)
			}
			continue
		}

		f := Failure{EndpointSuffix: endpointSuffix(sub.Endpoint), Error: err.Error()}
		var se *StatusError
		if errors.As(err, &se) {
			f.Status = se.StatusCode
		}
		res.Failed = append(res.Failed, f)
		n.logger.Warn("push send failed", "user", userID, "endpoint", f.EndpointSuffix, "error", err)
	}
	return res, nil
}

func endpointSuffix(endpoint string) string {
	if len(endpoint) <= 12 {
		return endpoint
	}
	return endpoint[len(endpoint)-12:]
}

package reminder

import "context"

// Notification is what the engine hands to the push transport.
type Notification struct {
	Owner string `json:"user_id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Dispatcher delivers a notification to every device of its owner.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, n Notification) error

func (f DispatcherFunc) Dispatch(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

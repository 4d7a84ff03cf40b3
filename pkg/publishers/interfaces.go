package publishers

import "context"

// Publisher delivers one event to a single downstream sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Dispatcher delivers an event to every configured sink and reports how many
// accepted it. The scheduler depends on this rather than on Fanout.
type Dispatcher interface {
	Publish(ctx context.Context, evt Event) (int, error)
}

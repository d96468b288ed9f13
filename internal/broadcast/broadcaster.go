// Package broadcast publishes session lifecycle events to interested
// collaborators. Delivery transport and fanout are not this core's problem;
// publishing is fire-and-forget.
package broadcast

import "context"

// Broadcaster pushes a raw payload to a named topic.
type Broadcaster interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// SessionTopic keys lifecycle events by session code.
func SessionTopic(code string) string {
	return "trade:session:" + code
}

// UserTopic keys point notifications by user id.
func UserTopic(userID string) string {
	return "trade:user:" + userID
}

// Noop discards every publish. Useful for tests and for running without
// a broker.
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte) error { return nil }

var _ Broadcaster = Noop{}

package events

import "context"

// NoopPublisher sends nothing anywhere; it records every event in memory in
// Published. Used by the simulation harness and tests that exercise session
// finalization without a Kafka broker.
type NoopPublisher struct {
	Published []SessionCompleted
}

var _ Publisher = (*NoopPublisher)(nil)

// PublishSessionCompleted records the event in memory and always succeeds.
func (p *NoopPublisher) PublishSessionCompleted(_ context.Context, event SessionCompleted) error {
	p.Published = append(p.Published, event)
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error { return nil }

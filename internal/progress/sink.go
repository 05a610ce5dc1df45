package progress

import "context"

// Sink consumes batches of run events. Batches arrive in emission order,
// one at a time; implementations must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

package solana

import "context"

// LogsFilter selects which transaction logs a subscription receives.
// Solana accepts at most one mentioned address per subscription.
type LogsFilter struct {
	Mentions []string
}

// LogNotification is a single logsNotification event.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{} // non-nil for failed transactions
}

// WSClient streams transaction logs over a WebSocket subscription.
type WSClient interface {
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)
	Close() error
}

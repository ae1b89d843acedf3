package port

import "context"

// Notifier delivers verification and reset tokens to the account owner.
// A returned error fails the lifecycle operation that triggered it.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// OperationMetrics records the outcome of account lifecycle operations.
type OperationMetrics interface {
	Observe(operation, outcome string)
}

package orders

import "context"

// Store looks orders up by id or customer email.
type Store interface {
	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (*Order, error)
	// ByEmail matches email case-insensitively.
	ByEmail(ctx context.Context, email string) ([]Order, error)
	All(ctx context.Context) ([]Order, error)
}

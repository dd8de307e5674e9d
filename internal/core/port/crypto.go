package port

import "context"

// PasswordHasher hashes and verifies secrets. Implementations may block on a bounded pool,
// so both calls take a context.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password string, encoded string) (bool, error)
}

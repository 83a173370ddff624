package testutil

import "context"

// Tx is a Transactor that runs fn directly.
type Tx struct{}

func (Tx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

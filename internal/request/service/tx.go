package service

import (
	"context"
	"sync"
	"time"

	dErrors "accessops/pkg/domain-errors"
)

// StoreTx provides the transactional boundary for a decision: the conditional
// status update and the audit append must commit or roll back together. The
// callback receives a context carrying the transaction (pkg/platform/tx);
// tx-aware stores join it automatically.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// defaultTxTimeout is the maximum duration for a decision transaction.
const defaultTxTimeout = 5 * time.Second

// MemoryTx serializes callbacks with a mutex. Paired with the memory stores
// it gives unit tests the same exactly-once semantics the conditional UPDATE
// gives the postgres stores.
type MemoryTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewMemoryTx() *MemoryTx {
	return &MemoryTx{}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

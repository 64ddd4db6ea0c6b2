package vehicle

import (
	"context"

	"github.com/huttotw/kia-connect/pkg/transaction"
)

// Completion resolves once the portal stops executing a command, the polling budget is used up,
// or the completion is cancelled.
type Completion struct {
	Transaction transaction.Transaction

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	outcome transaction.Outcome
	err     error
}

func newCompletion(parent context.Context, txn transaction.Transaction) *Completion {
	ctx, cancel := context.WithCancel(parent)
	return &Completion{
		Transaction: txn,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

func (c *Completion) resolve(outcome transaction.Outcome, err error) {
	c.outcome = outcome
	c.err = err
	c.cancel()
	close(c.done)
}

// Done is closed once the completion has resolved.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the completion resolves or ctx ends. An expired ctx only stops the wait; use
// Cancel to stop polling.
func (c *Completion) Wait(ctx context.Context) (transaction.Outcome, error) {
	select {
	case <-c.done:
		return c.outcome, c.err
	case <-ctx.Done():
		return transaction.StillPending, ctx.Err()
	}
}

// Cancel stops polling before the next status check. The completion resolves with an error
// wrapping transaction.ErrCancelled unless it had already resolved.
func (c *Completion) Cancel() {
	c.cancel()
}

// Result returns the resolution. It must only be called after Done is closed.
func (c *Completion) Result() (transaction.Outcome, error) {
	<-c.done
	return c.outcome, c.err
}

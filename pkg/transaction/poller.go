package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/internal/metrics"
	"github.com/huttotw/kia-connect/pkg/protocol"
)

//go:generate mockgen -destination=../../mocks/status_checker.go -package=mocks -mock_names=StatusChecker=StatusChecker . StatusChecker

// StatusChecker queries the state of a single transaction.
type StatusChecker interface {
	TransactionStatus(ctx context.Context, vin, xid string) (Outcome, error)
}

// Poller waits for transactions to finish. Concurrent calls to Await are independent.
type Poller struct {
	checker StatusChecker
	policy  Policy
}

// NewPoller returns a Poller that queries checker on the given schedule.
func NewPoller(checker StatusChecker, policy Policy) (*Poller, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Poller{checker: checker, policy: policy}, nil
}

// Policy returns the schedule used by p.
func (p *Poller) Policy() Policy {
	return p.policy
}

// Await blocks until txn completes, the attempt budget is exhausted or ctx ends.
//
// Failed status queries consume an attempt. If every attempt is used without observing completion,
// Await returns a *protocol.UnresolvedOutcomeError; the command may still have succeeded. If ctx
// ends first, no further queries are sent and the returned error wraps ErrCancelled.
func (p *Poller) Await(ctx context.Context, txn Transaction) (Outcome, error) {
	var lastErr error
	for attempt := 0; attempt < p.policy.MaxAttempts; attempt++ {
		delay := p.policy.Delay(attempt)
		log.Debug("Checking transaction %s in %s (attempt %d of %d)", txn, delay, attempt+1, p.policy.MaxAttempts)
		select {
		case <-ctx.Done():
			metrics.TransactionOutcomes.WithLabelValues("cancelled").Inc()
			return StillPending, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		case <-time.After(delay):
		}

		outcome, err := p.checker.TransactionStatus(ctx, txn.VIN, txn.ID)
		if err != nil {
			if ctx.Err() != nil {
				metrics.TransactionOutcomes.WithLabelValues("cancelled").Inc()
				return StillPending, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
			metrics.TransactionPolls.WithLabelValues("error").Inc()
			log.Warning("Status check for transaction %s failed: %s", txn, err)
			lastErr = err
			continue
		}
		metrics.TransactionPolls.WithLabelValues(outcome.String()).Inc()
		if outcome == Completed {
			metrics.TransactionOutcomes.WithLabelValues("completed").Inc()
			if !txn.IssuedAt.IsZero() {
				metrics.TransactionLatency.Observe(time.Since(txn.IssuedAt).Seconds())
			}
			log.Info("Transaction %s completed after %d attempts", txn, attempt+1)
			return Completed, nil
		}
	}

	metrics.TransactionOutcomes.WithLabelValues("unresolved").Inc()
	log.Warning("Transaction %s still pending after %d attempts", txn, p.policy.MaxAttempts)
	return StillPending, &protocol.UnresolvedOutcomeError{
		VIN:           txn.VIN,
		TransactionID: txn.ID,
		Attempts:      p.policy.MaxAttempts,
		LastErr:       lastErr,
	}
}

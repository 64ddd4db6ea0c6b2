// Package transaction resolves the outcome of remote commands.
//
// The portal acknowledges a lock, unlock or climate request with a transaction identifier before
// the vehicle acts on it. A [Poller] queries the transaction until the portal reports that it is
// no longer executing or a fixed attempt budget runs out. Delays between queries shrink over time
// because most commands complete within a predictable window after dispatch.
//
// The portal does not report whether a finished transaction succeeded, so [Completed] only means
// the vehicle is done acting on the command. Callers should refresh vehicle state to learn the
// result.
package transaction

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrCancelled is wrapped by errors returned from Await when its context ends first.
var ErrCancelled = errors.New("transaction wait cancelled")

// Transaction is a handle for a command the portal has accepted.
type Transaction struct {
	ID       string
	VIN      string
	IssuedAt time.Time
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s/%s", t.VIN, t.ID)
}

// Outcome is the state of a transaction as reported by the portal.
type Outcome int

const (
	StillPending Outcome = iota
	Completed
)

func (o Outcome) String() string {
	switch o {
	case StillPending:
		return "pending"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Policy describes the polling schedule. Attempt n (counting from zero) is preceded by a delay of
// InitialDelay * Factor^n.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
}

// DefaultPolicy polls eight times over roughly half a minute.
var DefaultPolicy = Policy{
	MaxAttempts:  8,
	InitialDelay: 8 * time.Second,
	Factor:       0.8,
}

// Validate returns an error if p does not describe a bounded, tightening schedule.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("polling policy needs at least one attempt (got %d)", p.MaxAttempts)
	}
	if p.InitialDelay <= 0 {
		return fmt.Errorf("polling policy needs a positive initial delay (got %s)", p.InitialDelay)
	}
	if !(p.Factor > 0 && p.Factor < 1) {
		return fmt.Errorf("polling policy factor must be in (0, 1) (got %g)", p.Factor)
	}
	return nil
}

// Delay returns the wait before the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt)))
}

// Delays returns the full schedule.
func (p Policy) Delays() []time.Duration {
	delays := make([]time.Duration, p.MaxAttempts)
	for i := range delays {
		delays[i] = p.Delay(i)
	}
	return delays
}

// Budget returns the time spent waiting if every attempt is used.
func (p Policy) Budget() time.Duration {
	var total time.Duration
	for _, d := range p.Delays() {
		total += d
	}
	return total
}

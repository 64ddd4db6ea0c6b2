// Package vehicle is the public entry point for controlling vehicles registered to a Kia Owners
// account.
//
// A [Client] signs in on demand, reuses its session until it goes stale, and shares a single login
// between concurrent callers. Commands that change vehicle state return a [Completion] that
// resolves when the portal reports the command is no longer executing:
//
//	client, err := vehicle.New(account.Credentials{UserID: user, Password: password}, vehicle.Config{})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	completion, err := client.Lock(ctx, vin)
//	if err != nil {
//		return err
//	}
//	if _, err := completion.Wait(ctx); err != nil {
//		return err
//	}
//
// A completion that ends with a *protocol.UnresolvedOutcomeError does not mean the command failed.
// Fetch VehicleInfo to find out.
package vehicle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/huttotw/kia-connect/internal/dispatcher"
	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/pkg/account"
	"github.com/huttotw/kia-connect/pkg/action"
	"github.com/huttotw/kia-connect/pkg/connector"
	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/session"
	"github.com/huttotw/kia-connect/pkg/transaction"
)

// DefaultTargetTemperature is used by Vehicle.StartClimate when Config.TargetTemperature is empty.
const DefaultTargetTemperature = "68"

// Config holds optional Client settings. The zero value selects defaults throughout.
type Config struct {
	// ServerURL overrides the portal base URL.
	ServerURL string
	// UserAgent is sent with every request. Generated from build info if empty.
	UserAgent string
	// Connector replaces the HTTPS connection to the portal.
	Connector connector.Connector
	// SessionMaxAge is the staleness window after which the client signs in again.
	SessionMaxAge time.Duration
	// Polling is the schedule used to resolve transactions.
	Polling transaction.Policy
	// TargetTemperature is the default climate setpoint used by Vehicle handles.
	TargetTemperature string
}

// Client controls the vehicles of one account. It is safe for concurrent use.
type Client struct {
	account    *account.Account
	dispatcher *dispatcher.Dispatcher
	poller     *transaction.Poller
	target     string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	watchLock sync.Mutex
	watchers  map[string][]chan struct{}
}

// New returns a Client for creds. It does not contact the portal.
func New(creds account.Credentials, config Config) (*Client, error) {
	policy := config.Polling
	if policy == (transaction.Policy{}) {
		policy = transaction.DefaultPolicy
	}
	options := []account.Option{
		account.WithServerURL(config.ServerURL),
		account.WithStore(session.NewStore(config.SessionMaxAge)),
	}
	if config.Connector != nil {
		options = append(options, account.WithConnector(config.Connector))
	}
	acct, err := account.New(creds, config.UserAgent, options...)
	if err != nil {
		return nil, err
	}
	d := dispatcher.New(acct.Connector(), acct)
	poller, err := transaction.NewPoller(d, policy)
	if err != nil {
		return nil, err
	}
	target := config.TargetTemperature
	if target == "" {
		target = DefaultTargetTemperature
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		account:    acct,
		dispatcher: d,
		poller:     poller,
		target:     target,
		ctx:        ctx,
		cancel:     cancel,
		watchers:   make(map[string][]chan struct{}),
	}, nil
}

// Close cancels outstanding completions and waits for their polling to stop.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()
}

// Account returns the account the client signs in to.
func (c *Client) Account() *account.Account {
	return c.account
}

// Policy returns the polling schedule used by completions.
func (c *Client) Policy() transaction.Policy {
	return c.poller.Policy()
}

// EnsureSession signs in unless the current session is still fresh.
func (c *Client) EnsureSession(ctx context.Context) error {
	_, err := c.account.EnsureSession(ctx)
	return err
}

// Dispatch sends a state-changing request without waiting for it to complete. The facade never
// resends a command; callers that want another attempt must call Dispatch again.
func (c *Client) Dispatch(ctx context.Context, vin string, req *action.Request) (transaction.Transaction, error) {
	return c.dispatcher.Execute(ctx, vin, req)
}

// Send dispatches req and starts resolving its transaction in the background.
func (c *Client) Send(ctx context.Context, vin string, req *action.Request) (*Completion, error) {
	txn, err := c.Dispatch(ctx, vin, req)
	if err != nil {
		return nil, err
	}
	return c.Track(txn), nil
}

// Track starts resolving txn in the background. Watchers of the vehicle are refreshed once it
// settles.
func (c *Client) Track(txn transaction.Transaction) *Completion {
	completion := newCompletion(c.ctx, txn)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		completion.resolve(c.poller.Await(completion.ctx, txn))
		c.notify(txn.VIN)
	}()
	return completion
}

// Await blocks until txn is resolved or ctx ends.
func (c *Client) Await(ctx context.Context, txn transaction.Transaction) (transaction.Outcome, error) {
	outcome, err := c.poller.Await(ctx, txn)
	c.notify(txn.VIN)
	return outcome, err
}

func (c *Client) Lock(ctx context.Context, vin string) (*Completion, error) {
	return c.Send(ctx, vin, action.Lock())
}

func (c *Client) Unlock(ctx context.Context, vin string) (*Completion, error) {
	return c.Send(ctx, vin, action.Unlock())
}

// StartClimate turns on climate control at temperatureF, which is sent exactly as given. Use
// action.TemperatureF to produce a value the portal accepts.
func (c *Client) StartClimate(ctx context.Context, vin, temperatureF string) (*Completion, error) {
	return c.Send(ctx, vin, action.StartClimate(temperatureF))
}

func (c *Client) StopClimate(ctx context.Context, vin string) (*Completion, error) {
	return c.Send(ctx, vin, action.StopClimate())
}

// TransactionStatus performs a single status check.
func (c *Client) TransactionStatus(ctx context.Context, vin, xid string) (transaction.Outcome, error) {
	return c.dispatcher.TransactionStatus(ctx, vin, xid)
}

// VehicleInfo fetches the latest record for vin. Fails with a *protocol.NotFoundError if the
// account has no such vehicle.
func (c *Client) VehicleInfo(ctx context.Context, vin string) (*protocol.VehicleInfo, error) {
	return c.dispatcher.VehicleInfo(ctx, vin)
}

// VehicleList returns the vehicles registered to the account.
func (c *Client) VehicleList(ctx context.Context) ([]protocol.VehicleSummary, error) {
	return c.dispatcher.VehicleList(ctx)
}

// Status fetches and summarizes the record for vin.
func (c *Client) Status(ctx context.Context, vin string) (*Status, error) {
	info, err := c.VehicleInfo(ctx, vin)
	if err != nil {
		return nil, err
	}
	return Summarize(info), nil
}

// Vehicle returns a handle for vin. The VIN is not validated until the handle is used.
func (c *Client) Vehicle(vin string) *Vehicle {
	return &Vehicle{client: c, vin: vin, target: c.target}
}

func (c *Client) String() string {
	return fmt.Sprintf("vehicle.Client(%s)", c.account.UserID())
}

func (c *Client) subscribe(vin string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.watchLock.Lock()
	c.watchers[vin] = append(c.watchers[vin], ch)
	c.watchLock.Unlock()
	return ch, func() {
		c.watchLock.Lock()
		defer c.watchLock.Unlock()
		list := c.watchers[vin]
		for i, w := range list {
			if w == ch {
				c.watchers[vin] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(c.watchers[vin]) == 0 {
			delete(c.watchers, vin)
		}
	}
}

func (c *Client) notify(vin string) {
	c.watchLock.Lock()
	defer c.watchLock.Unlock()
	for _, ch := range c.watchers[vin] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	if n := len(c.watchers[vin]); n > 0 {
		log.Debug("Requested refresh of %s from %d watchers", vin, n)
	}
}

// Package account signs in to a Kia Owners account and keeps its session current.
//
// An [Account] is safe for concurrent use. Callers that need a session while none is fresh share
// a single login exchange with the portal; see [Account.EnsureSession].
package account

import (
	"context"
	_ "embed" // Used to embed version for use with user agent
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/internal/metrics"
	"github.com/huttotw/kia-connect/pkg/connector"
	"github.com/huttotw/kia-connect/pkg/connector/inet"
	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/session"
)

var (
	//go:embed version.txt
	libraryVersion string
)

const (
	loginEndpoint = "apiGateway"
	loginAction   = "authenticateUser"
	// userTypeOwner is the account-type tag the portal expects for vehicle owners.
	userTypeOwner = "0"
	// flightKey names the coalescing region shared by every login.
	flightKey = "login"
)

// DefaultLoginTimeout bounds a login exchange. Logins run independently of any single caller's
// context, so this is the only deadline they observe.
var DefaultLoginTimeout = 30 * time.Second

func buildUserAgent(app string) string {
	library := strings.TrimSpace("kia-connect/" + libraryVersion)
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return library
	}
	path := strings.Split(build.Path, "/")
	if len(path) == 0 {
		return library
	}

	if app == "" {
		app = path[len(path)-1]
		var version string
		if build.Main.Version != "(devel)" && build.Main.Version != "" {
			version = build.Main.Version
		} else {
			for _, info := range build.Settings {
				if info.Key == "vcs.revision" {
					if len(info.Value) > 8 {
						version = info.Value[0:8]
					}
					break
				}
			}
		}

		if version != "" {
			app = fmt.Sprintf("%s/%s", app, version)
		}
	}

	return fmt.Sprintf("%s %s", app, library)
}

// Credentials identify a Kia Owners account. They are never logged; String and GoString redact
// the password so that accidental formatting does not leak it.
type Credentials struct {
	UserID   string
	Password string
}

func (c Credentials) String() string {
	return c.UserID + ":<redacted>"
}

func (c Credentials) GoString() string {
	return fmt.Sprintf("account.Credentials{UserID:%q, Password:<redacted>}", c.UserID)
}

// Validate returns an error if either field is empty.
func (c Credentials) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("missing account user id")
	}
	if c.Password == "" {
		return fmt.Errorf("missing account password")
	}
	return nil
}

// Option configures an [Account].
type Option func(*Account)

// WithConnector sends portal requests through conn instead of a new inet.Connection.
func WithConnector(conn connector.Connector) Option {
	return func(a *Account) { a.conn = conn }
}

// WithServerURL overrides inet.DefaultServerURL. Ignored when WithConnector is also given.
func WithServerURL(serverURL string) Option {
	return func(a *Account) { a.serverURL = serverURL }
}

// WithStore uses store to hold sessions, e.g. to share a staleness policy.
func WithStore(store *session.Store) Option {
	return func(a *Account) { a.store = store }
}

// WithClock replaces time.Now when deciding whether the current session is fresh.
func WithClock(now func() time.Time) Option {
	return func(a *Account) { a.now = now }
}

// Account allows interaction with a Kia Owners account.
type Account struct {
	// The default UserAgent is constructed from the build info, but can be overridden.
	UserAgent string
	// LoginTimeout bounds each login exchange.
	LoginTimeout time.Duration

	serverURL string
	creds     Credentials
	conn      connector.Connector
	store     *session.Store
	flight    singleflight.Group
	now       func() time.Time
}

// New returns an [Account] for creds. No network traffic occurs until a session is needed.
// Optional userAgent can be passed in - otherwise it will be generated from code.
func New(creds Credentials, userAgent string, options ...Option) (*Account, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	a := &Account{
		UserAgent:    buildUserAgent(userAgent),
		LoginTimeout: DefaultLoginTimeout,
		creds:        creds,
		now:          time.Now,
	}
	for _, option := range options {
		option(a)
	}
	if a.store == nil {
		a.store = session.NewStore(session.DefaultMaxAge)
	}
	if a.conn == nil {
		a.conn = inet.NewConnection(a.serverURL, a.UserAgent)
	}
	return a, nil
}

// UserID returns the account identifier.
func (a *Account) UserID() string {
	return a.creds.UserID
}

// Sessions returns the store holding the account's current session.
func (a *Account) Sessions() *session.Store {
	return a.store
}

// Connector returns the connector used for portal requests.
func (a *Account) Connector() connector.Connector {
	return a.conn
}

// EnsureSession returns the current session if it is fresh; otherwise it signs in.
//
// Concurrent callers that find no fresh session share one login exchange and observe the same
// session or the same error. A caller whose ctx expires stops waiting, but the login it joined
// keeps running for the benefit of the other callers and the store.
func (a *Account) EnsureSession(ctx context.Context) (*session.Session, error) {
	if s := a.store.Current(); a.store.IsFresh(s, a.now()) {
		return s, nil
	}

	led := false
	ch := a.flight.DoChan(flightKey, func() (interface{}, error) {
		led = true
		// Another flight may have finished between the read above and this one starting.
		if s := a.store.Current(); a.store.IsFresh(s, a.now()) {
			return s, nil
		}
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.LoginTimeout)
		defer cancel()
		s, err := a.login(loginCtx)
		metrics.Logins.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			log.Warning("Login for %s failed: %s", a.creds.UserID, err)
			return nil, err
		}
		a.store.Replace(s)
		log.Info("Signed in as %s (%d vehicles)", a.creds.UserID, len(s.VINs()))
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-ch:
		if result.Shared && !led {
			metrics.CoalescedLogins.Inc()
		}
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*session.Session), nil
	}
}

func (a *Account) login(ctx context.Context) (*session.Session, error) {
	form := url.Values{}
	form.Set("userId", a.creds.UserID)
	form.Set("password", a.creds.Password)
	form.Set("userType", userTypeOwner)
	form.Set("action", loginAction)

	log.Debug("Signing in as %s...", a.creds.UserID)
	rsp, err := a.conn.PostForm(ctx, loginEndpoint, form, nil)
	if err != nil {
		return nil, rejection(err)
	}

	var reply protocol.LoginResponse
	if err := json.Unmarshal(rsp.Body, &reply); err != nil {
		return nil, &protocol.AuthenticationError{Message: fmt.Sprintf("malformed login response: %s", err)}
	}
	if !reply.Status.OK() {
		return nil, &protocol.AuthenticationError{
			StatusCode: reply.Status.StatusCode,
			ErrorType:  reply.Status.ErrorType,
			ErrorCode:  reply.Status.ErrorCode,
			Message:    reply.Status.ErrorMessage,
		}
	}
	if reply.Payload == nil {
		return nil, &protocol.AuthenticationError{Message: "login response did not include a payload"}
	}
	if len(rsp.Cookies) == 0 {
		return nil, &protocol.AuthenticationError{Message: "login response did not include session cookies"}
	}

	keys := make(map[string]string, len(reply.Payload.VehicleSummary))
	for _, v := range reply.Payload.VehicleSummary {
		if v.VIN == "" || v.VehicleKey == "" {
			log.Warning("Ignoring vehicle summary without vin or key")
			continue
		}
		keys[v.VIN] = v.VehicleKey
	}
	return session.New(rsp.Cookies, keys, a.now()), nil
}

// rejection converts a 4xx reply to the login form into an AuthenticationError, keeping the
// portal's status block when the body carries one. Other failures are returned unchanged.
func rejection(err error) error {
	var httpErr *inet.HttpError
	if !errors.As(err, &httpErr) || httpErr.Code < 400 || httpErr.Code >= 500 {
		return err
	}
	var reply protocol.LoginResponse
	if json.Unmarshal([]byte(httpErr.Message), &reply) == nil && !reply.Status.OK() {
		return &protocol.AuthenticationError{
			StatusCode: reply.Status.StatusCode,
			ErrorType:  reply.Status.ErrorType,
			ErrorCode:  reply.Status.ErrorCode,
			Message:    reply.Status.ErrorMessage,
		}
	}
	return &protocol.AuthenticationError{Message: httpErr.Error()}
}

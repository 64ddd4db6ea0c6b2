package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/internal/metrics"
	"github.com/huttotw/kia-connect/pkg/action"
	"github.com/huttotw/kia-connect/pkg/connector"
	"github.com/huttotw/kia-connect/pkg/connector/inet"
	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/session"
	"github.com/huttotw/kia-connect/pkg/transaction"
)

const (
	remoteEndpoint      = "remotevehicledata"
	vehicleListEndpoint = "get/vehiclelist"
	// The portal returns only the sub-resources flagged in the path.
	vehicleInfoEndpoint = "getvehicleinfo.html/vehicle/1/maintenance/1/vehicleFeature/1/airTempRange/1/seatHeatCoolOption/1/enrollment/1/dtc/1/vehicleStatus/1/weather/1/location/1/dsAndUbiEligibilityInfo/1"

	headerCookie     = "Cookie"
	headerVehicleKey = "vinkey"
	queryRequest     = "requestJson"
)

// SessionProvider supplies sessions to a Dispatcher.
type SessionProvider interface {
	// EnsureSession returns a fresh session, signing in if required.
	EnsureSession(ctx context.Context) (*session.Session, error)
	// Sessions returns the store that EnsureSession populates.
	Sessions() *session.Store
}

// Dispatcher sends single requests to the portal on behalf of a signed-in account. It never
// retries; a request that fails returns its error to the caller.
type Dispatcher struct {
	conn     connector.Connector
	sessions SessionProvider
}

// New creates a Dispatcher that sends requests through conn.
func New(conn connector.Connector, sessions SessionProvider) *Dispatcher {
	return &Dispatcher{conn: conn, sessions: sessions}
}

// current ensures a session exists and then returns the newest one in the store. Another caller
// may have replaced the session while EnsureSession was returning; vehicle keys from the older
// session are not valid in the newer one.
func (d *Dispatcher) current(ctx context.Context) (*session.Session, error) {
	ensured, err := d.sessions.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}
	if s := d.sessions.Sessions().Current(); s != nil {
		return s, nil
	}
	return ensured, nil
}

func headers(s *session.Session, vin string, keyRequired bool) (http.Header, error) {
	header := http.Header{}
	header.Set(headerCookie, s.CookieHeader())
	if vin == "" {
		return header, nil
	}
	key, ok := s.VehicleKey(vin)
	if !ok {
		if keyRequired {
			return nil, &protocol.NotFoundError{VIN: vin, Resource: "vehicle key"}
		}
		return header, nil
	}
	header.Set(headerVehicleKey, key)
	return header, nil
}

// get issues a GET with credentials read from the newest session.
func (d *Dispatcher) get(ctx context.Context, endpoint, vin string, keyRequired bool, query url.Values) (*connector.Response, error) {
	s, err := d.current(ctx)
	if err != nil {
		return nil, err
	}
	header, err := headers(s, vin, keyRequired)
	if err != nil {
		return nil, err
	}
	rsp, err := d.conn.Get(ctx, endpoint, query, header)
	if err != nil {
		if inet.IsUnauthorized(err) && d.sessions.Sessions().Invalidate(s) {
			log.Info("Server rejected session; discarding it")
		}
		return nil, err
	}
	return rsp, nil
}

func decode(op string, body []byte, reply interface{}, mayHaveSucceeded bool) error {
	if err := json.Unmarshal(body, reply); err != nil {
		return &protocol.ProtocolError{
			Op:              op,
			Err:             fmt.Errorf("%w: %s", protocol.ErrBadResponse, err),
			PossibleSuccess: mayHaveSucceeded,
		}
	}
	return nil
}

// Send issues req for vin and returns the decoded reply.
func (d *Dispatcher) Send(ctx context.Context, vin string, req *action.Request) (*protocol.ActionResponse, error) {
	encoded, err := req.Encode()
	if err != nil {
		return nil, err
	}
	log.Debug("Sending %s to %s", req, vin)
	rsp, err := d.get(ctx, remoteEndpoint, vin, true, url.Values{queryRequest: {encoded}})
	if err != nil {
		return nil, err
	}

	var reply protocol.ActionResponse
	if err := decode(req.String(), rsp.Body, &reply, req.Action.Mutating()); err != nil {
		return nil, err
	}
	if !reply.Status.OK() {
		return nil, &protocol.RemoteError{Status: reply.Status}
	}
	return &reply, nil
}

// Execute sends a mutating request and returns the transaction the portal opened for it.
func (d *Dispatcher) Execute(ctx context.Context, vin string, req *action.Request) (txn transaction.Transaction, err error) {
	defer func() {
		metrics.Commands.WithLabelValues(req.Action.Name(), metrics.Result(err)).Inc()
	}()
	if !req.Action.Mutating() {
		return txn, fmt.Errorf("%s does not open a transaction", req)
	}
	reply, err := d.Send(ctx, vin, req)
	if err != nil {
		return txn, err
	}
	if reply.Header == nil || reply.Header.XID == "" {
		return txn, &protocol.ProtocolError{Op: req.String(), Err: protocol.ErrNoTransactionID, PossibleSuccess: true}
	}
	log.Info("Sent %s to %s (transaction %s)", req, vin, reply.Header.XID)
	return transaction.Transaction{ID: reply.Header.XID, VIN: vin, IssuedAt: time.Now()}, nil
}

func (d *Dispatcher) Lock(ctx context.Context, vin string) (transaction.Transaction, error) {
	return d.Execute(ctx, vin, action.Lock())
}

func (d *Dispatcher) Unlock(ctx context.Context, vin string) (transaction.Transaction, error) {
	return d.Execute(ctx, vin, action.Unlock())
}

// StartClimate turns on climate control. The temperature is sent unmodified.
func (d *Dispatcher) StartClimate(ctx context.Context, vin, temperatureF string) (transaction.Transaction, error) {
	return d.Execute(ctx, vin, action.StartClimate(temperatureF))
}

func (d *Dispatcher) StopClimate(ctx context.Context, vin string) (transaction.Transaction, error) {
	return d.Execute(ctx, vin, action.StopClimate())
}

// TransactionStatus reports whether the transaction xid is still executing.
func (d *Dispatcher) TransactionStatus(ctx context.Context, vin, xid string) (transaction.Outcome, error) {
	req := action.TransactionStatus(xid)
	reply, err := d.Send(ctx, vin, req)
	if err != nil {
		return transaction.StillPending, err
	}
	var status protocol.TransactionStatus
	if len(reply.Payload) > 0 {
		if err := decode(req.String(), reply.Payload, &status, false); err != nil {
			return transaction.StillPending, err
		}
	}
	if status.RemoteStatus == nil {
		return transaction.StillPending, &protocol.ProtocolError{
			Op:  req.String(),
			Err: fmt.Errorf("%w: missing remote status", protocol.ErrBadResponse),
		}
	}
	if *status.RemoteStatus == protocol.RemoteStatusNotExecuting {
		return transaction.Completed, nil
	}
	return transaction.StillPending, nil
}

// VehicleInfo fetches the full record for vin.
func (d *Dispatcher) VehicleInfo(ctx context.Context, vin string) (*protocol.VehicleInfo, error) {
	rsp, err := d.get(ctx, vehicleInfoEndpoint, vin, false, nil)
	if err != nil {
		return nil, err
	}
	var reply protocol.VehicleInfoResponse
	if err := decode("vehicle info", rsp.Body, &reply, false); err != nil {
		return nil, err
	}
	if !reply.Status.OK() {
		return nil, &protocol.RemoteError{Status: reply.Status}
	}
	if reply.Payload == nil {
		return nil, &protocol.ProtocolError{Op: "vehicle info", Err: fmt.Errorf("%w: missing payload", protocol.ErrBadResponse)}
	}
	// Entries are keyed by an internal identifier rather than VIN.
	for i := range reply.Payload.VehicleInfoList {
		if info := &reply.Payload.VehicleInfoList[i]; info.VIN() == vin {
			return info, nil
		}
	}
	return nil, &protocol.NotFoundError{VIN: vin}
}

// VehicleList returns the vehicles registered to the account.
func (d *Dispatcher) VehicleList(ctx context.Context) ([]protocol.VehicleSummary, error) {
	rsp, err := d.get(ctx, vehicleListEndpoint, "", false, nil)
	if err != nil {
		return nil, err
	}
	var reply protocol.VehicleListResponse
	if err := decode("vehicle list", rsp.Body, &reply, false); err != nil {
		return nil, err
	}
	if !reply.Status.OK() {
		return nil, &protocol.RemoteError{Status: reply.Status}
	}
	if reply.Payload == nil {
		return nil, &protocol.ProtocolError{Op: "vehicle list", Err: fmt.Errorf("%w: missing payload", protocol.ErrBadResponse)}
	}
	return reply.Payload.VehicleSummary, nil
}

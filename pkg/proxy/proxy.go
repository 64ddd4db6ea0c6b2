package proxy

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/internal/metrics"
	"github.com/huttotw/kia-connect/pkg/action"
	"github.com/huttotw/kia-connect/pkg/connector/inet"
	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/transaction"
	"github.com/huttotw/kia-connect/pkg/vehicle"
)

const (
	// DefaultTimeout exceeds the default polling budget so that waiting commands can resolve.
	DefaultTimeout      = 90 * time.Second
	maxRequestBodyBytes = 512
	vinLength           = 17
)

//go:generate mockgen -destination=../../mocks/proxy.go -package=mocks -mock_names=Client=ProxyClient . Client

// Client is the subset of vehicle.Client used by the proxy.
type Client interface {
	VehicleList(ctx context.Context) ([]protocol.VehicleSummary, error)
	VehicleInfo(ctx context.Context, vin string) (*protocol.VehicleInfo, error)
	Dispatch(ctx context.Context, vin string, req *action.Request) (transaction.Transaction, error)
	Await(ctx context.Context, txn transaction.Transaction) (transaction.Outcome, error)
	TransactionStatus(ctx context.Context, vin, xid string) (transaction.Outcome, error)
}

// Proxy exposes an HTTP API for sending vehicle commands.
type Proxy struct {
	Timeout time.Duration
	// TargetTemperature is used by auto_conditioning_start requests without a temperature.
	TargetTemperature string

	client  Client
	token   string
	vinLock sync.Map
	router  chi.Router
}

// lockVIN locks a VIN-specific mutex, blocking until the operation succeeds or ctx expires.
func (p *Proxy) lockVIN(ctx context.Context, vin string) error {
	lock := make(chan bool, 1)
	for {
		if obj, loaded := p.vinLock.LoadOrStore(vin, lock); loaded {
			select {
			case <-obj.(chan bool):
				// The goroutine that reads from the channel doesn't necessarily own the mutex. This
				// allows the mutex owner to delete the entry from the map, limiting the size of the
				// map to the number of concurrent vehicle commands.
			case <-ctx.Done():
				return ctx.Err()
			}
		} else {
			return nil
		}
	}
}

// unlockVIN releases a VIN-specific mutex.
func (p *Proxy) unlockVIN(vin string) {
	obj, ok := p.vinLock.Load(vin)
	if !ok {
		panic("called unlock without owning mutex")
	}
	p.vinLock.Delete(vin)  // Allow someone else to claim the mutex
	close(obj.(chan bool)) // Unblock goroutines
}

// New creates an http proxy that controls vehicles through client.
//
// If token is not empty, requests must carry it as a bearer token in the Authorization header.
func New(client Client, token string) *Proxy {
	p := &Proxy{
		Timeout:           DefaultTimeout,
		TargetTemperature: vehicle.DefaultTargetTemperature,
		client:            client,
		token:             token,
	}
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/api/1/vehicles", func(r chi.Router) {
		r.Use(p.authorize)
		r.Get("/", p.handleVehicleList)
		r.Route("/{vin}", func(r chi.Router) {
			r.Use(validateVIN)
			r.Get("/vehicle_data", p.handleVehicleData)
			r.Post("/command/{command}", p.handleVehicleCommand)
			r.Get("/transactions/{xid}", p.handleTransactionStatus)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, nil)
	})
	p.router = r
	return p
}

// Response contains a server's response to a client request.
type Response struct {
	Response   interface{} `json:"response"`
	Error      string      `json:"error,omitempty"`
	ErrDetails string      `json:"error_description,omitempty"`
}

type carResponse struct {
	Result        bool   `json:"result"`
	Reason        string `json:"reason"`
	TransactionID string `json:"xid,omitempty"`
}

// VehicleData is the response to vehicle_data requests.
type VehicleData struct {
	Status *vehicle.Status       `json:"status"`
	Info   *protocol.VehicleInfo `json:"info"`
}

// TransactionState is the response to transaction status requests.
type TransactionState struct {
	TransactionID string `json:"xid"`
	Status        string `json:"status"`
}

func writeJSON(w http.ResponseWriter, code int, reply *Response) {
	jsonBytes, err := json.Marshal(reply)
	if err != nil {
		log.Error("Error serializing reply %+v: %s", reply, err)
		code = http.StatusInternalServerError
		jsonBytes = []byte("{\"error\": \"internal server error\"}")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	jsonBytes = append(jsonBytes, '\n')
	w.Write(jsonBytes)
}

// statusForError picks the HTTP status for err. Errors that originate with the portal or the
// vehicle, rather than the request, are reported as gateway errors.
func statusForError(err error) int {
	var paramErr *ParamError
	var httpErr *inet.HttpError
	switch {
	case errors.Is(err, ErrUnknownCommand), errors.As(err, &paramErr):
		return http.StatusBadRequest
	case protocol.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, transaction.ErrCancelled):
		return http.StatusGatewayTimeout
	case errors.As(err, &httpErr) && httpErr.Code == http.StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeJSONError(w http.ResponseWriter, code int, err error) {
	reply := Response{}
	var remoteErr *protocol.RemoteError
	switch {
	case err == nil:
		reply.Error = http.StatusText(code)
	case errors.As(err, &remoteErr):
		// The portal understood the request but refused it; report like a vehicle refusal.
		code = http.StatusOK
		reply.Response = &carResponse{Reason: err.Error()}
	default:
		reply.Error = http.StatusText(code)
		reply.ErrDetails = err.Error()
	}
	if code != http.StatusOK {
		log.Error("Returning error %s: %v", http.StatusText(code), err)
	}
	writeJSON(w, code, &reply)
}

func (p *Proxy) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if p.token != "" {
			token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(p.token)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, errors.New("client did not provide a valid bearer token"))
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

func validateVIN(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if len(chi.URLParam(req, "vin")) != vinLength {
			writeJSONError(w, http.StatusNotFound, errors.New("expected 17-character VIN in path"))
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Info("Received %s request for %s", req.Method, req.URL.Path)
	p.router.ServeHTTP(w, req)
}

func (p *Proxy) context(req *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(req.Context(), p.Timeout)
}

func (p *Proxy) handleVehicleList(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := p.context(req)
	defer cancel()
	vehicles, err := p.client.VehicleList(ctx)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	redacted := make([]protocol.VehicleSummary, 0, len(vehicles))
	for _, v := range vehicles {
		redacted = append(redacted, v.Redacted())
	}
	writeJSON(w, http.StatusOK, &Response{Response: redacted})
}

func (p *Proxy) handleVehicleData(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := p.context(req)
	defer cancel()
	info, err := p.client.VehicleInfo(ctx, chi.URLParam(req, "vin"))
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, &Response{Response: &VehicleData{Status: vehicle.Summarize(info), Info: info}})
}

func (p *Proxy) handleTransactionStatus(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := p.context(req)
	defer cancel()
	xid := chi.URLParam(req, "xid")
	outcome, err := p.client.TransactionStatus(ctx, chi.URLParam(req, "vin"), xid)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, &Response{Response: &TransactionState{TransactionID: xid, Status: outcome.String()}})
}

func readParameters(req *http.Request) (RequestParameters, error) {
	var params RequestParameters
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBodyBytes+1))
	if err != nil {
		return nil, &ParamError{Key: "body", Reason: "unreadable"}
	}
	if len(body) > maxRequestBodyBytes {
		return nil, &ParamError{Key: "body", Reason: "oversized"}
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			return nil, &ParamError{Key: "body", Reason: "malformed"}
		}
	}
	return params, nil
}

func (p *Proxy) handleVehicleCommand(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := p.context(req)
	defer cancel()
	vin := chi.URLParam(req, "vin")
	command := chi.URLParam(req, "command")

	params, err := readParameters(req)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	request, err := ExtractCommandAction(command, params, p.TargetTemperature)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	wait := req.URL.Query().Get("wait") != "false"

	// The portal rejects a command for a vehicle that is still executing the previous one.
	if err := p.lockVIN(ctx, vin); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err)
		return
	}
	defer p.unlockVIN(vin)

	log.Debug("Executing %s on %s", command, vin)
	txn, err := p.client.Dispatch(ctx, vin, request)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	if !wait {
		writeJSON(w, http.StatusAccepted, &Response{Response: &carResponse{Result: true, Reason: "pending", TransactionID: txn.ID}})
		return
	}

	_, err = p.client.Await(ctx, txn)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, &Response{Response: &carResponse{Result: true, TransactionID: txn.ID}})
	case protocol.IsUnresolved(err):
		writeJSON(w, http.StatusAccepted, &Response{Response: &carResponse{
			Reason:        fmt.Sprintf("outcome unknown: %s", err),
			TransactionID: txn.ID,
		}})
	default:
		writeJSONError(w, statusForError(err), err)
	}
}

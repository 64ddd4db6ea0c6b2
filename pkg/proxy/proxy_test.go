package proxy_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/huttotw/kia-connect/mocks"
	"github.com/huttotw/kia-connect/pkg/action"
	"github.com/huttotw/kia-connect/pkg/connector/inet"
	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/proxy"
	"github.com/huttotw/kia-connect/pkg/transaction"
)

const (
	vin                = "KNDJ23AU1N7000001"
	apiToken           = "s3cr3t"
	authorizationToken = "Bearer " + apiToken
)

var _ = Describe("Proxy", func() {
	var (
		ctrl       *gomock.Controller
		p          *proxy.Proxy
		mockClient *mocks.ProxyClient
		txn        transaction.Transaction
	)

	sendRequest := func(method, path string, token string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", token)
		}
		rr := httptest.NewRecorder()
		p.ServeHTTP(rr, req)
		return rr
	}

	commandPath := func(command string) string {
		return fmt.Sprintf("/api/1/vehicles/%s/command/%s", vin, command)
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		mockClient = mocks.NewProxyClient(ctrl)
		p = proxy.New(mockClient, apiToken)
		txn = transaction.Transaction{ID: "xid-1", VIN: vin, IssuedAt: time.Now()}
		DeferCleanup(func() {
			ctrl.Finish()
		})
	})

	Context("authorization", func() {
		It("rejects requests without the bearer token", func() {
			rr := sendRequest(http.MethodGet, "/api/1/vehicles", "", nil)
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects requests with the wrong bearer token", func() {
			rr := sendRequest(http.MethodGet, "/api/1/vehicles", "Bearer nope", nil)
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})

		It("allows any request when no token is configured", func() {
			p = proxy.New(mockClient, "")
			mockClient.EXPECT().VehicleList(gomock.Any()).Return(nil, nil)
			rr := sendRequest(http.MethodGet, "/api/1/vehicles", "", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
		})
	})

	Context("vehicle list", func() {
		It("hides vehicle keys", func() {
			mockClient.EXPECT().VehicleList(gomock.Any()).Return([]protocol.VehicleSummary{
				{VIN: vin, VehicleKey: "capability-key", NickName: "Telly"},
			}, nil)
			rr := sendRequest(http.MethodGet, "/api/1/vehicles", authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"response": [{"vin": "KNDJ23AU1N7000001", "nickName": "Telly"}]}`))
		})

		It("reports login failures as gateway errors", func() {
			mockClient.EXPECT().VehicleList(gomock.Any()).Return(nil, &protocol.AuthenticationError{ErrorCode: 1003})
			rr := sendRequest(http.MethodGet, "/api/1/vehicles", authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusBadGateway))
		})
	})

	Context("vehicle data", func() {
		It("returns the summary and the record", func() {
			var info protocol.VehicleInfo
			Expect(json.Unmarshal([]byte(`{"vinKey": "k", "vehicleConfig": {"vehicleDetail": {"vehicle": {"vin": "`+vin+`"}}}, "extra": 1}`), &info)).To(Succeed())
			mockClient.EXPECT().VehicleInfo(gomock.Any(), vin).Return(&info, nil)

			rr := sendRequest(http.MethodGet, fmt.Sprintf("/api/1/vehicles/%s/vehicle_data", vin), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			var reply struct {
				Response struct {
					Status map[string]interface{} `json:"status"`
					Info   map[string]interface{} `json:"info"`
				} `json:"response"`
			}
			Expect(json.Unmarshal(rr.Body.Bytes(), &reply)).To(Succeed())
			Expect(reply.Response.Status).To(HaveKeyWithValue("vin", vin))
			Expect(reply.Response.Info).To(HaveKeyWithValue("extra", float64(1)))
		})

		It("returns not found for unknown vehicles", func() {
			mockClient.EXPECT().VehicleInfo(gomock.Any(), vin).Return(nil, &protocol.NotFoundError{VIN: vin})
			rr := sendRequest(http.MethodGet, fmt.Sprintf("/api/1/vehicles/%s/vehicle_data", vin), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("vehicle commands", func() {
		Context("invalid VIN", func() {
			It("returns not found", func() {
				rr := sendRequest(http.MethodPost, "/api/1/vehicles/ABC/command/door_lock", authorizationToken, nil)
				Expect(rr.Code).To(Equal(http.StatusNotFound))
			})
		})

		It("fails for unknown command", func() {
			rr := sendRequest(http.MethodPost, commandPath("honk_horn"), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
		})

		It("fails for malformed parameters", func() {
			rr := sendRequest(http.MethodPost, commandPath("auto_conditioning_start"), authorizationToken, []byte(`{"temperature": `))
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects GET", func() {
			rr := sendRequest(http.MethodGet, commandPath("door_lock"), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusMethodNotAllowed))
		})

		It("waits for the command to complete", func() {
			gomock.InOrder(
				mockClient.EXPECT().Dispatch(gomock.Any(), vin, gomock.AssignableToTypeOf(&action.Request{})).DoAndReturn(
					func(_ context.Context, _ string, req *action.Request) (transaction.Transaction, error) {
						Expect(req.Action).To(Equal(action.TagLockDoors))
						return txn, nil
					}),
				mockClient.EXPECT().Await(gomock.Any(), txn).Return(transaction.Completed, nil),
			)
			rr := sendRequest(http.MethodPost, commandPath("door_lock"), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"response":{"result":true,"reason":"","xid":"xid-1"}}`))
		})

		It("returns immediately when asked not to wait", func() {
			mockClient.EXPECT().Dispatch(gomock.Any(), vin, gomock.Any()).Return(txn, nil)
			rr := sendRequest(http.MethodPost, commandPath("door_unlock")+"?wait=false", authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusAccepted))
			Expect(rr.Body.String()).To(MatchJSON(`{"response":{"result":true,"reason":"pending","xid":"xid-1"}}`))
		})

		It("passes the requested temperature", func() {
			mockClient.EXPECT().Dispatch(gomock.Any(), vin, gomock.Any()).DoAndReturn(
				func(_ context.Context, _ string, req *action.Request) (transaction.Transaction, error) {
					Expect(req.RemoteClimate.AirTemp.Value).To(Equal("74"))
					return txn, nil
				})
			mockClient.EXPECT().Await(gomock.Any(), txn).Return(transaction.Completed, nil)
			rr := sendRequest(http.MethodPost, commandPath("auto_conditioning_start"), authorizationToken, []byte(`{"temperature": 74}`))
			Expect(rr.Code).To(Equal(http.StatusOK))
		})

		It("does not claim success for unresolved outcomes", func() {
			mockClient.EXPECT().Dispatch(gomock.Any(), vin, gomock.Any()).Return(txn, nil)
			mockClient.EXPECT().Await(gomock.Any(), txn).Return(transaction.StillPending, &protocol.UnresolvedOutcomeError{
				VIN: vin, TransactionID: txn.ID, Attempts: 8,
			})
			rr := sendRequest(http.MethodPost, commandPath("auto_conditioning_stop"), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusAccepted))
			var reply struct {
				Response map[string]interface{} `json:"response"`
			}
			Expect(json.Unmarshal(rr.Body.Bytes(), &reply)).To(Succeed())
			Expect(reply.Response).To(HaveKeyWithValue("result", false))
			Expect(reply.Response).To(HaveKeyWithValue("xid", "xid-1"))
		})

		It("reports portal refusals in the response body", func() {
			mockClient.EXPECT().Dispatch(gomock.Any(), vin, gomock.Any()).Return(transaction.Transaction{}, &protocol.RemoteError{
				Status: protocol.Status{StatusCode: 1, ErrorCode: 1125, ErrorMessage: "vehicle is busy"},
			})
			rr := sendRequest(http.MethodPost, commandPath("door_lock"), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring("vehicle is busy"))
			Expect(rr.Body.String()).To(ContainSubstring(`"result":false`))
		})

		It("reports transport errors as bad gateway", func() {
			mockClient.EXPECT().Dispatch(gomock.Any(), vin, gomock.Any()).Return(transaction.Transaction{}, &protocol.TransportError{Err: errors.New("connection reset")})
			rr := sendRequest(http.MethodPost, commandPath("door_lock"), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusBadGateway))
		})

		It("passes through portal unavailability", func() {
			mockClient.EXPECT().Dispatch(gomock.Any(), vin, gomock.Any()).Return(transaction.Transaction{}, &inet.HttpError{Code: http.StatusServiceUnavailable})
			rr := sendRequest(http.MethodPost, commandPath("door_lock"), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("times out", func() {
			p.Timeout = 10 * time.Millisecond
			mockClient.EXPECT().Dispatch(gomock.Any(), vin, gomock.Any()).Return(txn, nil)
			mockClient.EXPECT().Await(gomock.Any(), txn).DoAndReturn(
				func(ctx context.Context, _ transaction.Transaction) (transaction.Outcome, error) {
					<-ctx.Done()
					return transaction.StillPending, fmt.Errorf("%w: %w", transaction.ErrCancelled, ctx.Err())
				})
			rr := sendRequest(http.MethodPost, commandPath("door_lock"), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusGatewayTimeout))
		})
	})

	Context("transactions", func() {
		It("reports the current status", func() {
			mockClient.EXPECT().TransactionStatus(gomock.Any(), vin, "xid-9").Return(transaction.StillPending, nil)
			rr := sendRequest(http.MethodGet, fmt.Sprintf("/api/1/vehicles/%s/transactions/xid-9", vin), authorizationToken, nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"response":{"xid":"xid-9","status":"pending"}}`))
		})
	})

	Context("metrics", func() {
		It("does not require authorization", func() {
			rr := sendRequest(http.MethodGet, "/metrics", "", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring("kia_connect_"))
		})
	})
})

package vehicle_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/huttotw/kia-connect/pkg/account"
	"github.com/huttotw/kia-connect/pkg/connector/inet"
	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/transaction"
	"github.com/huttotw/kia-connect/pkg/vehicle"
)

const (
	testVIN      = "KNDJ23AU1N7000001"
	loginURL     = inet.DefaultServerURL + "/apiGateway"
	remoteURL    = inet.DefaultServerURL + "/remotevehicledata"
	infoURL      = inet.DefaultServerURL + "/getvehicleinfo.html/vehicle/1/maintenance/1/vehicleFeature/1/airTempRange/1/seatHeatCoolOption/1/enrollment/1/dtc/1/vehicleStatus/1/weather/1/location/1/dsAndUbiEligibilityInfo/1"
	vehiclesURL  = inet.DefaultServerURL + "/get/vehiclelist"
	pendingCode  = 1
	finishedCode = 0
)

var testCreds = account.Credentials{UserID: "owner@example.com", Password: "hunter2"}

// portal imitates the remote-vehicle-data endpoint.
type portal struct {
	lock        sync.Mutex
	actions     []map[string]interface{}
	statusCalls int
	statusCodes []int
	nextXID     int
}

func (p *portal) respond(req *http.Request) (*http.Response, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(req.URL.Query().Get("requestJson")), &body); err != nil {
		return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
	}
	p.actions = append(p.actions, body)
	ok := map[string]int{"statusCode": 0}
	if body["action"] == "ACTION_GET_TRANSACTION_STATUS" {
		code := pendingCode
		if p.statusCalls < len(p.statusCodes) {
			code = p.statusCodes[p.statusCalls]
		}
		p.statusCalls++
		return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
			"status":  ok,
			"payload": map[string]int{"remoteStatus": code},
		})
	}
	p.nextXID++
	return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
		"status": ok,
		"header": map[string]string{"xid": "xid-" + strconv.Itoa(p.nextXID)},
	})
}

func (p *portal) calls() (int, []map[string]interface{}) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.statusCalls, append([]map[string]interface{}(nil), p.actions...)
}

func loginResponder(req *http.Request) (*http.Response, error) {
	rsp, err := httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
		"status": map[string]int{"statusCode": 0},
		"payload": map[string]interface{}{
			"vehicleSummary": []map[string]string{{"vin": testVIN, "vehicleKey": "key-1", "nickName": "Telly"}},
		},
	})
	if err == nil {
		rsp.Header.Add("Set-Cookie", "JSESSIONID=abc; Path=/")
	}
	return rsp, err
}

func infoReply(locked bool) map[string]interface{} {
	return map[string]interface{}{
		"status": map[string]int{"statusCode": 0},
		"payload": map[string]interface{}{
			"vehicleInfoList": []map[string]interface{}{{
				"vinKey": "internal-1",
				"vehicleConfig": map[string]interface{}{
					"vehicleDetail": map[string]interface{}{"vehicle": map[string]interface{}{"vin": testVIN}},
				},
				"lastVehicleInfo": map[string]interface{}{
					"vehicleStatusRpt": map[string]interface{}{
						"vehicleStatus": map[string]interface{}{"doorLock": locked},
					},
				},
			}},
		},
	}
}

var fastPolicy = transaction.Policy{MaxAttempts: 8, InitialDelay: 4 * time.Millisecond, Factor: 0.8}

var _ = Describe("Client", func() {
	var (
		client *vehicle.Client
		fake   *portal
		ctx    context.Context
	)

	BeforeEach(func() {
		httpmock.Activate()
		fake = &portal{}
		httpmock.RegisterResponder("POST", loginURL, loginResponder)
		httpmock.RegisterResponder("GET", remoteURL, fake.respond)
		httpmock.RegisterResponder("GET", infoURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, infoReply(true)))
		httpmock.RegisterResponder("GET", vehiclesURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"status":  map[string]int{"statusCode": 0},
			"payload": map[string]interface{}{"vehicleSummary": []map[string]string{{"vin": testVIN, "nickName": "Telly"}}},
		}))

		var err error
		client, err = vehicle.New(testCreds, vehicle.Config{Polling: fastPolicy})
		Expect(err).ToNot(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		client.Close()
		httpmock.DeactivateAndReset()
	})

	loginCalls := func() int {
		return httpmock.GetCallCountInfo()["POST "+loginURL]
	}

	It("rejects missing credentials", func() {
		_, err := vehicle.New(account.Credentials{UserID: "x"}, vehicle.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("rejects an invalid polling policy", func() {
		_, err := vehicle.New(testCreds, vehicle.Config{Polling: transaction.Policy{MaxAttempts: 1, InitialDelay: time.Second, Factor: 2}})
		Expect(err).To(HaveOccurred())
	})

	It("resolves a lock once the transaction completes", func() {
		fake.statusCodes = []int{pendingCode, pendingCode, finishedCode}
		completion, err := client.Lock(ctx, testVIN)
		Expect(err).ToNot(HaveOccurred())
		Expect(completion.Transaction.ID).To(Equal("xid-1"))

		outcome, err := completion.Wait(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(transaction.Completed))

		statusCalls, actions := fake.calls()
		Expect(statusCalls).To(Equal(3))
		Expect(actions[0]).To(HaveKeyWithValue("action", "ACTION_EXEC_REMOTE_LOCK_DOORS"))
		Expect(actions[1]).To(HaveKeyWithValue("xid", "xid-1"))
		Expect(loginCalls()).To(Equal(1))
	})

	It("reports an unresolved outcome rather than success", func() {
		completion, err := client.Unlock(ctx, testVIN)
		Expect(err).ToNot(HaveOccurred())
		Eventually(completion.Done()).Should(BeClosed())

		outcome, err := completion.Result()
		Expect(outcome).To(Equal(transaction.StillPending))
		Expect(protocol.IsUnresolved(err)).To(BeTrue())
		statusCalls, _ := fake.calls()
		Expect(statusCalls).To(Equal(8))
	})

	It("stops polling when a completion is cancelled", func() {
		slow, err := vehicle.New(testCreds, vehicle.Config{
			Polling: transaction.Policy{MaxAttempts: 8, InitialDelay: time.Hour, Factor: 0.8},
		})
		Expect(err).ToNot(HaveOccurred())
		defer slow.Close()

		completion, err := slow.StopClimate(ctx, testVIN)
		Expect(err).ToNot(HaveOccurred())
		completion.Cancel()
		_, err = completion.Result()
		Expect(errors.Is(err, transaction.ErrCancelled)).To(BeTrue())

		statusCalls, _ := fake.calls()
		Expect(statusCalls).To(BeZero())
	})

	It("cancels outstanding completions on Close", func() {
		slow, err := vehicle.New(testCreds, vehicle.Config{
			Polling: transaction.Policy{MaxAttempts: 8, InitialDelay: time.Hour, Factor: 0.8},
		})
		Expect(err).ToNot(HaveOccurred())
		completion, err := slow.Lock(ctx, testVIN)
		Expect(err).ToNot(HaveOccurred())
		slow.Close()
		Expect(completion.Done()).To(BeClosed())
		_, err = completion.Result()
		Expect(errors.Is(err, transaction.ErrCancelled)).To(BeTrue())
	})

	It("gives up waiting without cancelling the poll", func() {
		fake.statusCodes = []int{finishedCode}
		completion, err := client.Lock(ctx, testVIN)
		Expect(err).ToNot(HaveOccurred())

		expired, cancel := context.WithCancel(ctx)
		cancel()
		_, err = completion.Wait(expired)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())

		outcome, err := completion.Wait(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(transaction.Completed))
	})

	It("shares one login between concurrent operations", func() {
		var wg sync.WaitGroup
		errs := make(chan error, 6)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := client.VehicleInfo(ctx, testVIN)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(loginCalls()).To(Equal(1))
	})

	It("lists vehicles", func() {
		vehicles, err := client.VehicleList(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(vehicles).To(HaveLen(1))
		Expect(vehicles[0].NickName).To(Equal("Telly"))
	})

	It("fails for vehicles the account does not have", func() {
		_, err := client.VehicleInfo(ctx, "KNDJ23AU1N7999999")
		Expect(protocol.IsNotFound(err)).To(BeTrue())
	})

	It("summarizes vehicle status", func() {
		status, err := client.Status(ctx, testVIN)
		Expect(err).ToNot(HaveOccurred())
		Expect(status.VIN).To(Equal(testVIN))
		Expect(status.Locked).To(BeTrue())
	})

	Describe("Vehicle", func() {
		It("starts climate control at the default target temperature", func() {
			car := client.Vehicle(testVIN)
			Expect(car.VIN()).To(Equal(testVIN))
			Expect(car.TargetTemperature()).To(Equal(vehicle.DefaultTargetTemperature))

			fake.statusCodes = []int{finishedCode}
			completion, err := car.StartClimate(ctx)
			Expect(err).ToNot(HaveOccurred())
			_, err = completion.Wait(ctx)
			Expect(err).ToNot(HaveOccurred())

			_, actions := fake.calls()
			climate := actions[0]["remoteClimate"].(map[string]interface{})
			Expect(climate["airTemp"]).To(HaveKeyWithValue("value", "68"))
		})

		It("refreshes watchers after a command settles", func() {
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			refreshes := make(chan *protocol.VehicleInfo, 4)
			done := make(chan error, 1)
			go func() {
				done <- client.Vehicle(testVIN).Watch(watchCtx, time.Hour, func(info *protocol.VehicleInfo, _ error) {
					refreshes <- info
				})
			}()
			Eventually(refreshes).Should(Receive())

			fake.lock.Lock()
			fake.statusCodes = []int{finishedCode}
			fake.lock.Unlock()
			completion, err := client.Lock(ctx, testVIN)
			Expect(err).ToNot(HaveOccurred())
			Eventually(completion.Done()).Should(BeClosed())
			Eventually(refreshes).Should(Receive())

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})
	})
})

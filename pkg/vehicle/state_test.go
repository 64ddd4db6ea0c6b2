package vehicle_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/vehicle"
)

const sampleInfo = `{
	"vinKey": "internal-1",
	"vehicleConfig": {"vehicleDetail": {"vehicle": {
		"vin": "KNDJ23AU1N7000001",
		"trim": {"modelYear": "2022", "modelName": "EV6", "trimName": "GT-LINE"}
	}}},
	"lastVehicleInfo": {
		"vehicleNickName": "Telly",
		"vehicleStatusRpt": {
			"statusType": "2",
			"reportDate": {"utc": "20240301153000", "offset": -8},
			"vehicleStatus": {
				"climate": {"airCtrl": true, "defrost": false, "airTemp": {"value": "72", "unit": 1}},
				"engine": false,
				"doorLock": true,
				"doorStatus": {"frontLeft": 0, "frontRight": 0, "backLeft": 0, "backRight": 0, "trunk": 1, "hood": 0},
				"batteryStatus": {"stateOfCharge": 45, "warning": 50},
				"fuelLevel": 0,
				"distanceToEmpty": {"value": 180, "unit": 3}
			}
		},
		"weather": {"outsideTemp": [{"value": "50", "unit": 1}]}
	}
}`

func parseInfo(raw string) *protocol.VehicleInfo {
	var info protocol.VehicleInfo
	Expect(json.Unmarshal([]byte(raw), &info)).To(Succeed())
	return &info
}

var _ = Describe("Summarize", func() {
	It("flattens the vehicle status report", func() {
		status := vehicle.Summarize(parseInfo(sampleInfo))
		Expect(status.VIN).To(Equal("KNDJ23AU1N7000001"))
		Expect(status.NickName).To(Equal("Telly"))
		Expect(status.ModelName).To(Equal("EV6"))
		Expect(status.Locked).To(BeTrue())
		Expect(status.DoorsClosed).To(BeTrue())
		Expect(status.Doors).To(Equal(vehicle.Doors{FrontLeft: true, FrontRight: true, BackLeft: true, BackRight: true, Hood: true, Trunk: false}))
		Expect(status.TrunkOpen).To(BeTrue())
		Expect(status.HoodOpen).To(BeFalse())
		Expect(status.ClimateOn).To(BeTrue())
		Expect(status.ClimateSetpoint).To(Equal("72"))
		Expect(status.BatteryLevel).To(Equal(45))
		Expect(status.BatteryLow).To(BeTrue())
		Expect(status.Range).To(Equal(180.0))
		Expect(status.OutsideTemperatureC).To(BeNumerically("~", 10.0, 0.001))
		Expect(status.ReportedAt).To(Equal(time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)))
	})

	It("treats an open door as not closed", func() {
		info := parseInfo(sampleInfo)
		info.LastVehicleInfo.VehicleStatusRpt.VehicleStatus.DoorStatus.BackRight = 1
		status := vehicle.Summarize(info)
		Expect(status.DoorsClosed).To(BeFalse())
		Expect(status.Doors.BackRight).To(BeFalse())
		Expect(status.Doors.FrontLeft).To(BeTrue())
		Expect(status.Doors.FrontRight).To(BeTrue())
		Expect(status.Doors.BackLeft).To(BeTrue())
	})

	It("reports an open hood without opening the doors", func() {
		info := parseInfo(sampleInfo)
		info.LastVehicleInfo.VehicleStatusRpt.VehicleStatus.DoorStatus.Hood = 1
		status := vehicle.Summarize(info)
		Expect(status.DoorsClosed).To(BeTrue())
		Expect(status.Doors.Hood).To(BeFalse())
		Expect(status.HoodOpen).To(BeTrue())
	})

	It("tolerates missing fields", func() {
		status := vehicle.Summarize(parseInfo(`{"vehicleConfig": {"vehicleDetail": {"vehicle": {"vin": "X"}}}}`))
		Expect(status.VIN).To(Equal("X"))
		Expect(status.OutsideTemperatureC).To(BeZero())
		Expect(status.ReportedAt.IsZero()).To(BeTrue())
		Expect(status.BatteryLow).To(BeFalse())
	})

	It("reads Celsius samples as-is", func() {
		info := parseInfo(sampleInfo)
		info.LastVehicleInfo.Weather.OutsideTemp = []protocol.Temperature{{Value: "12", Unit: protocol.UnitCelsius}}
		Expect(vehicle.Summarize(info).OutsideTemperatureC).To(Equal(12.0))
	})

	It("prefers the Celsius sample", func() {
		info := parseInfo(sampleInfo)
		info.LastVehicleInfo.Weather.OutsideTemp = []protocol.Temperature{
			{Value: "70", Unit: protocol.UnitFahrenheit},
			{Value: "22", Unit: protocol.UnitCelsius},
		}
		Expect(vehicle.Summarize(info).OutsideTemperatureC).To(Equal(22.0))
	})

	It("omits the report time when the record has none", func() {
		status := vehicle.Summarize(parseInfo(`{"vehicleConfig": {"vehicleDetail": {"vehicle": {"vin": "X"}}}}`))
		encoded, err := json.Marshal(status)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(encoded)).ToNot(ContainSubstring("reported_at"))

		encoded, err = json.Marshal(vehicle.Summarize(parseInfo(sampleInfo)))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(encoded)).To(ContainSubstring(`"reported_at":"2024-03-01T15:30:00Z"`))
	})

	It("keeps the entry as received", func() {
		info := parseInfo(sampleInfo)
		encoded, err := json.Marshal(info)
		Expect(err).ToNot(HaveOccurred())
		Expect(encoded).To(MatchJSON(sampleInfo))
	})
})

package vehicle

import (
	"strconv"
	"strings"
	"time"

	"github.com/huttotw/kia-connect/pkg/protocol"
)

// reportDateLayout is the format of VehicleStatusRpt.ReportDate.UTC.
const reportDateLayout = "20060102150405"

// Status is a flattened view of the fields most callers need from a vehicle-info record.
type Status struct {
	VIN       string `json:"vin"`
	NickName  string `json:"nick_name,omitempty"`
	ModelName string `json:"model_name,omitempty"`
	ModelYear string `json:"model_year,omitempty"`

	Locked bool `json:"locked"`
	// DoorsClosed is true when all four doors are closed. Hood and trunk are reported separately.
	DoorsClosed bool  `json:"doors_closed"`
	Doors       Doors `json:"doors"`
	TrunkOpen   bool  `json:"trunk_open"`
	HoodOpen    bool  `json:"hood_open"`
	EngineOn    bool  `json:"engine_on"`
	ClimateOn   bool  `json:"climate_on"`
	DefrostOn   bool  `json:"defrost_on"`

	// ClimateSetpoint is the last requested cabin temperature, as reported.
	ClimateSetpoint string `json:"climate_setpoint,omitempty"`
	// OutsideTemperatureC is zero when the record carries no outside temperature.
	OutsideTemperatureC float64 `json:"outside_temperature_c"`

	BatteryLevel int     `json:"battery_level"`
	BatteryLow   bool    `json:"battery_low"`
	FuelLevel    int     `json:"fuel_level"`
	Range        float64 `json:"range"`

	ReportedAt time.Time `json:"reported_at,omitzero"`
}

// Doors reports each closure separately. True means closed.
type Doors struct {
	FrontLeft  bool `json:"front_left"`
	FrontRight bool `json:"front_right"`
	BackLeft   bool `json:"back_left"`
	BackRight  bool `json:"back_right"`
	Hood       bool `json:"hood"`
	Trunk      bool `json:"trunk"`
}

// Summarize extracts a Status from info.
func Summarize(info *protocol.VehicleInfo) *Status {
	vehicle := info.VehicleConfig.VehicleDetail.Vehicle
	report := info.LastVehicleInfo.VehicleStatusRpt
	state := report.VehicleStatus
	doors := state.DoorStatus

	status := &Status{
		VIN:       info.VIN(),
		NickName:  info.LastVehicleInfo.VehicleNickName,
		ModelName: vehicle.Trim.ModelName,
		ModelYear: vehicle.Trim.ModelYear,

		Locked:    state.DoorLock,
		TrunkOpen: doors.Trunk != 0,
		HoodOpen:  doors.Hood != 0,
		EngineOn:  state.Engine,
		ClimateOn: state.Climate.AirCtrl,
		DefrostOn: state.Climate.Defrost,

		ClimateSetpoint: state.Climate.AirTemp.Value,

		BatteryLevel: state.BatteryStatus.StateOfCharge,
		BatteryLow:   state.BatteryStatus.StateOfCharge < state.BatteryStatus.Warning,
		FuelLevel:    state.FuelLevel,
		Range:        state.DistanceToEmpty.Value,
	}
	status.Doors = Doors{
		FrontLeft:  doors.FrontLeft == 0,
		FrontRight: doors.FrontRight == 0,
		BackLeft:   doors.BackLeft == 0,
		BackRight:  doors.BackRight == 0,
		Hood:       doors.Hood == 0,
		Trunk:      doors.Trunk == 0,
	}
	status.DoorsClosed = status.Doors.FrontLeft && status.Doors.FrontRight && status.Doors.BackLeft && status.Doors.BackRight
	status.OutsideTemperatureC = outsideTemperature(info.LastVehicleInfo.Weather.OutsideTemp)
	if at, err := time.Parse(reportDateLayout, report.ReportDate.UTC); err == nil {
		status.ReportedAt = at
	}
	return status
}

// outsideTemperature prefers the Celsius sample and converts another unit only when none exists.
func outsideTemperature(samples []protocol.Temperature) float64 {
	for _, t := range samples {
		if t.Unit == protocol.UnitCelsius {
			return celsius(t)
		}
	}
	if len(samples) > 0 {
		return celsius(samples[0])
	}
	return 0
}

// celsius converts t, returning zero for values that are not numbers.
func celsius(t protocol.Temperature) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64)
	if err != nil {
		return 0
	}
	if t.Unit == protocol.UnitFahrenheit {
		return (value - 32) * 5 / 9
	}
	return value
}

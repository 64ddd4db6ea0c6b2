package action

import (
	"strconv"

	"github.com/huttotw/kia-connect/pkg/protocol"
)

// HeatVentType selects whether a seat heats or cools.
type HeatVentType int

const (
	HeatVentOff  HeatVentType = 0
	HeatVentCool HeatVentType = 1
	HeatVentHeat HeatVentType = 2
)

// HeatVentLevel switches a seat accessory on or off.
type HeatVentLevel int

const (
	HeatVentLevelOff HeatVentLevel = 1
	HeatVentLevelOn  HeatVentLevel = 3
)

// HeatVentStep is the intensity used when a seat accessory is on.
type HeatVentStep int

const (
	HeatVentStepLow    HeatVentStep = 0
	HeatVentStepMedium HeatVentStep = 1
	HeatVentStepHigh   HeatVentStep = 2
)

const (
	// ignitionMinutes is how long the vehicle runs climate control before shutting off.
	ignitionMinutes = 5
	// durationUnitMinutes is the portal's unit tag for minutes.
	durationUnitMinutes = 4

	// MinTemperatureF and MaxTemperatureF bound the numeric range the portal accepts.
	MinTemperatureF = 62
	MaxTemperatureF = 82

	TemperatureLow  = "LOW"
	TemperatureHigh = "HIGH"
)

type Duration struct {
	Value int `json:"value"`
	Unit  int `json:"unit"`
}

type HeatingAccessory struct {
	SteeringWheel int `json:"steeringWheel"`
	SideMirror    int `json:"sideMirror"`
	RearWindow    int `json:"rearWindow"`
}

type SeatSetting struct {
	Type  HeatVentType  `json:"heatVentType"`
	Level HeatVentLevel `json:"heatVentLevel"`
	Step  HeatVentStep  `json:"heatVentStep"`
}

type HeatVentSeats struct {
	Driver    SeatSetting `json:"driverSeat"`
	Passenger SeatSetting `json:"passengerSeat"`
	RearLeft  SeatSetting `json:"rearLeftSeat"`
	RearRight SeatSetting `json:"rearRightSeat"`
}

// RemoteClimate is the climate-on payload. The portal rejects requests that omit any field.
type RemoteClimate struct {
	AirTemp            protocol.Temperature `json:"airTemp"`
	AirCtrl            bool                 `json:"airCtrl"`
	Defrost            bool                 `json:"defrost"`
	VentilationWarning bool                 `json:"ventilationWarning"`
	IgnitionOnDuration Duration             `json:"ignitionOnDuration"`
	HeatingAccessory   HeatingAccessory     `json:"heatingAccessory"`
	HeatVentSeat       HeatVentSeats        `json:"heatVentSeat"`
}

var seatOff = SeatSetting{Type: HeatVentOff, Level: HeatVentLevelOff, Step: HeatVentStepHigh}

// StartClimate turns on automatic climate control at temperature, in Fahrenheit. The value is
// sent as given; see TemperatureF for mapping numbers onto the accepted range. Defrost and every
// seat and heating accessory are off.
func StartClimate(temperature string) *Request {
	return &Request{
		Action: TagClimateOn,
		RemoteClimate: &RemoteClimate{
			AirTemp:            protocol.Temperature{Value: temperature, Unit: protocol.UnitFahrenheit},
			AirCtrl:            true,
			Defrost:            false,
			VentilationWarning: false,
			IgnitionOnDuration: Duration{Value: ignitionMinutes, Unit: durationUnitMinutes},
			HeatVentSeat: HeatVentSeats{
				Driver:    seatOff,
				Passenger: seatOff,
				RearLeft:  seatOff,
				RearRight: seatOff,
			},
		},
	}
}

// TemperatureF formats degrees for StartClimate, replacing values outside
// [MinTemperatureF, MaxTemperatureF] with TemperatureLow or TemperatureHigh.
func TemperatureF(degrees int) string {
	switch {
	case degrees < MinTemperatureF:
		return TemperatureLow
	case degrees > MaxTemperatureF:
		return TemperatureHigh
	}
	return strconv.Itoa(degrees)
}

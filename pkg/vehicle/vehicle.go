package vehicle

import (
	"context"
	"time"

	"github.com/huttotw/kia-connect/pkg/protocol"
)

// A Vehicle addresses one VIN through a Client.
type Vehicle struct {
	client *Client
	vin    string
	target string
}

func (v *Vehicle) VIN() string {
	return v.vin
}

// TargetTemperature returns the setpoint used by StartClimate.
func (v *Vehicle) TargetTemperature() string {
	return v.target
}

// SetTargetTemperature changes the setpoint used by StartClimate on this handle.
func (v *Vehicle) SetTargetTemperature(temperatureF string) {
	v.target = temperatureF
}

func (v *Vehicle) Lock(ctx context.Context) (*Completion, error) {
	return v.client.Lock(ctx, v.vin)
}

func (v *Vehicle) Unlock(ctx context.Context) (*Completion, error) {
	return v.client.Unlock(ctx, v.vin)
}

// StartClimate turns on climate control at the handle's target temperature.
func (v *Vehicle) StartClimate(ctx context.Context) (*Completion, error) {
	return v.client.StartClimate(ctx, v.vin, v.target)
}

func (v *Vehicle) StopClimate(ctx context.Context) (*Completion, error) {
	return v.client.StopClimate(ctx, v.vin)
}

func (v *Vehicle) Info(ctx context.Context) (*protocol.VehicleInfo, error) {
	return v.client.VehicleInfo(ctx, v.vin)
}

func (v *Vehicle) Status(ctx context.Context) (*Status, error) {
	return v.client.Status(ctx, v.vin)
}

// Watch calls fn with fresh vehicle info every interval, and whenever a command sent through
// the client for this vehicle settles. See Client.Watch.
func (v *Vehicle) Watch(ctx context.Context, interval time.Duration, fn func(*protocol.VehicleInfo, error)) error {
	return v.client.Watch(ctx, v.vin, interval, fn)
}

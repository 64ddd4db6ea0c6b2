package vehicle

import (
	"context"
	"fmt"
	"time"

	"github.com/huttotw/kia-connect/internal/log"
	"github.com/huttotw/kia-connect/pkg/protocol"
)

// DefaultRefreshInterval is a reasonable Watch interval. Each refresh wakes the vehicle's modem,
// so frequent polling drains the 12V battery.
const DefaultRefreshInterval = time.Hour

// Watch fetches vehicle info for vin immediately, then every interval and after every command
// for vin settles, passing each result to fn. Errors are passed to fn rather than ending the
// watch. Watch returns ctx.Err() when ctx ends or an error if the client is closed.
func (c *Client) Watch(ctx context.Context, vin string, interval time.Duration, fn func(*protocol.VehicleInfo, error)) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive (got %s)", interval)
	}
	refresh, unsubscribe := c.subscribe(vin)
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		info, err := c.VehicleInfo(ctx, vin)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Warning("Couldn't refresh %s: %s", vin, err)
		}
		fn(info, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return fmt.Errorf("client closed")
		case <-ticker.C:
		case <-refresh:
			log.Debug("Refreshing %s after command settled", vin)
		}
	}
}

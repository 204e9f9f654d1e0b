package weather

import (
	"context"
	"time"
)

type Provider interface {
	Get(ctx context.Context) (*Data, error)
}

// Data is the ambient condition at the transformer site. Temperatures are
// always in Celsius.
type Data struct {
	Provider    string    `json:"provider"`
	Temperature float64   `json:"temperature_c"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	ObservedAt  time.Time `json:"observed_at"`
}

// OperatingTemperature estimates the winding temperature as ambient plus a
// fixed rise.
func (d *Data) OperatingTemperature(rise float64) float64 {
	if d == nil {
		return 0
	}
	return d.Temperature + rise
}

package meter

import (
	"fmt"
	"time"

	"transformer-losses/internal/losses"
	"transformer-losses/internal/modbus"
)

// Reading is one decoded snapshot of the transformer's operating point.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`

	PrimaryVoltage   float64 `json:"primary_voltage_v"`
	SecondaryVoltage float64 `json:"secondary_voltage_v"`
	Frequency        float64 `json:"frequency_hz"`
	PrimaryCurrent   float64 `json:"primary_current_a"`
	ActivePower      uint32  `json:"active_power_w"`
	WindingTemp      float64 `json:"winding_temperature_c"`

	Status       uint16 `json:"status"`
	StatusString string `json:"status_string"`
	IsOnline     bool   `json:"is_online"`
}

// Decode converts a raw register block into a Reading. regs must hold at
// least RegBlockLength registers starting at RegBlockStart.
func Decode(regs []uint16, at time.Time) (*Reading, error) {
	if len(regs) < RegBlockLength {
		return nil, fmt.Errorf("short register block: got %d, want %d", len(regs), RegBlockLength)
	}

	reg := func(addr int) uint16 { return regs[addr-RegBlockStart] }

	r := &Reading{
		Timestamp:        at,
		PrimaryVoltage:   float64(reg(RegPrimaryVoltage)) * 0.1,
		SecondaryVoltage: float64(reg(RegSecondaryVoltage)) * 0.1,
		Frequency:        float64(reg(RegFrequency)) * 0.01,
		PrimaryCurrent:   float64(reg(RegPrimaryCurrent)) * 0.01,
		// Little-endian: low word first, high word second
		ActivePower: uint32(reg(RegActivePower)) | uint32(reg(RegActivePower+1))<<16,
		WindingTemp: float64(int16(reg(RegWindingTemp))) * 0.1,
		Status:      reg(RegStatus),
		IsOnline:    true,
	}
	r.StatusString = GetStatusString(r.Status)
	return r, nil
}

// Apply overlays the measured operating point on the configured nameplate.
// The load percentage is derived from active power against the kVA rating
// and is left unclamped.
func (r *Reading) Apply(base losses.OperatingParameters) losses.OperatingParameters {
	p := base
	p.PrimaryVoltage = r.PrimaryVoltage
	p.SecondaryVoltage = r.SecondaryVoltage
	p.Frequency = r.Frequency
	if r.WindingTemp > 0 {
		p.Temperature = r.WindingTemp
	}
	p.LoadPercent = 0
	if base.RatedPower != 0 {
		p.LoadPercent = float64(r.ActivePower) / (base.RatedPower * 1000) * 100
	}
	return p
}

type Meter struct {
	client *modbus.Client
}

func NewMeter(client *modbus.Client) *Meter {
	return &Meter{client: client}
}

func (m *Meter) ReadAllData() (*Reading, error) {
	regs, err := m.client.ReadRegisters(RegBlockStart, RegBlockLength)
	if err != nil {
		return &Reading{Timestamp: time.Now(), IsOnline: false}, fmt.Errorf("failed to read meter block: %w", err)
	}
	return Decode(regs, time.Now())
}

func (m *Meter) TestConnection() error {
	if err := m.client.Connect(); err != nil {
		return err
	}

	if _, err := m.client.ReadRegisters(RegStatus, 1); err != nil {
		return fmt.Errorf("failed to read status register: %w", err)
	}

	return nil
}

func (m *Meter) Connect() error {
	return m.client.Connect()
}

func (m *Meter) Reconnect() error {
	return m.client.Reconnect()
}

func (m *Meter) Close() error {
	return m.client.Close()
}

func (m *Meter) Address() string {
	return m.client.Address()
}

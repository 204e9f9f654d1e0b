package api

import (
	"fmt"
	"math"

	"transformer-losses/internal/losses"
)

// ParameterOverrides carries the operating parameters of a request. Fields
// left out keep the server's configured nameplate values.
type ParameterOverrides struct {
	PrimaryVoltage    *float64 `json:"primary_voltage_v" form:"primary_voltage"`
	SecondaryVoltage  *float64 `json:"secondary_voltage_v" form:"secondary_voltage"`
	Frequency         *float64 `json:"frequency_hz" form:"frequency"`
	RatedPower        *float64 `json:"rated_power_kva" form:"rated_power"`
	CoreMaterial      *string  `json:"core_material" form:"core_material"`
	WindingResistance *float64 `json:"winding_resistance_ohm" form:"winding_resistance"`
	LoadPercent       *float64 `json:"load_percent" form:"load_percent"`
	Temperature       *float64 `json:"temperature_c" form:"temperature"`
}

func (o ParameterOverrides) Apply(base losses.OperatingParameters) losses.OperatingParameters {
	p := base
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.PrimaryVoltage, o.PrimaryVoltage)
	set(&p.SecondaryVoltage, o.SecondaryVoltage)
	set(&p.Frequency, o.Frequency)
	set(&p.RatedPower, o.RatedPower)
	set(&p.WindingResistance, o.WindingResistance)
	set(&p.LoadPercent, o.LoadPercent)
	set(&p.Temperature, o.Temperature)
	if o.CoreMaterial != nil {
		p.CoreMaterial = losses.CoreMaterial(*o.CoreMaterial)
	}
	return p
}

// Validate rejects NaN and infinite overrides. Any finite value is accepted.
func (o ParameterOverrides) Validate() error {
	for name, v := range map[string]*float64{
		"primary_voltage":    o.PrimaryVoltage,
		"secondary_voltage":  o.SecondaryVoltage,
		"frequency":          o.Frequency,
		"rated_power":        o.RatedPower,
		"winding_resistance": o.WindingResistance,
		"load_percent":       o.LoadPercent,
		"temperature":        o.Temperature,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	return nil
}

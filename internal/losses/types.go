package losses

import (
	"errors"
	"fmt"
)

type CoreMaterial string

const (
	CRGO    CoreMaterial = "CRGO"
	Ferrite CoreMaterial = "Ferrite"
)

// Materials lists the core materials with their own coefficient set.
var Materials = []CoreMaterial{CRGO, Ferrite}

// Coefficients are the empirical hysteresis (Kh) and eddy current (Ke)
// constants of a core material.
type Coefficients struct {
	Kh float64 `json:"kh"`
	Ke float64 `json:"ke"`
}

var coefficientTable = map[CoreMaterial]Coefficients{
	CRGO:    {Kh: 0.002, Ke: 0.0001},
	Ferrite: {Kh: 0.005, Ke: 0.0002},
}

// CoefficientsFor returns the coefficients of material, falling back to CRGO
// for anything unrecognised.
func CoefficientsFor(material CoreMaterial) Coefficients {
	if c, ok := coefficientTable[material]; ok {
		return c
	}
	return coefficientTable[CRGO]
}

type OperatingParameters struct {
	PrimaryVoltage    float64      `json:"primary_voltage_v" mapstructure:"primary_voltage"`
	SecondaryVoltage  float64      `json:"secondary_voltage_v" mapstructure:"secondary_voltage"`
	Frequency         float64      `json:"frequency_hz" mapstructure:"frequency"`
	RatedPower        float64      `json:"rated_power_kva" mapstructure:"rated_power"`
	CoreMaterial      CoreMaterial `json:"core_material" mapstructure:"core_material"`
	WindingResistance float64      `json:"winding_resistance_ohm" mapstructure:"winding_resistance"`
	LoadPercent       float64      `json:"load_percent" mapstructure:"load_percent"`
	Temperature       float64      `json:"temperature_c" mapstructure:"temperature"`
}

// DefaultParameters returns the nameplate used when a caller supplies nothing.
func DefaultParameters() OperatingParameters {
	return OperatingParameters{
		PrimaryVoltage:    230,
		SecondaryVoltage:  115,
		Frequency:         50,
		RatedPower:        100,
		CoreMaterial:      CRGO,
		WindingResistance: 0.5,
		LoadPercent:       50,
		Temperature:       75,
	}
}

// Breakdown evaluates CalculateLosses for p.
func (p OperatingParameters) Breakdown() LossBreakdown {
	return CalculateLosses(
		p.PrimaryVoltage,
		p.Frequency,
		p.RatedPower,
		p.CoreMaterial,
		p.WindingResistance,
		p.LoadPercent,
		p.Temperature,
	)
}

// Validate checks p against the control ranges. The loss model itself
// accepts any input; this is for callers that want to reject out-of-range
// values up front.
func (p OperatingParameters) Validate() error {
	var errs []error
	check := func(r Range, v float64) {
		if !r.Contains(v) {
			errs = append(errs, fmt.Errorf("%s %g outside [%g, %g] %s", r.Name, v, r.Min, r.Max, r.Unit))
		}
	}

	check(Ranges.PrimaryVoltage, p.PrimaryVoltage)
	check(Ranges.SecondaryVoltage, p.SecondaryVoltage)
	check(Ranges.Frequency, p.Frequency)
	check(Ranges.RatedPower, p.RatedPower)
	check(Ranges.WindingResistance, p.WindingResistance)
	check(Ranges.LoadPercent, p.LoadPercent)
	check(Ranges.Temperature, p.Temperature)

	if _, ok := coefficientTable[p.CoreMaterial]; !ok {
		errs = append(errs, fmt.Errorf("core material %q not one of %v", p.CoreMaterial, Materials))
	}

	return errors.Join(errs...)
}

type Range struct {
	Name    string  `json:"name"`
	Unit    string  `json:"unit"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Ranges are the bounds of the interactive controls.
var Ranges = struct {
	PrimaryVoltage    Range `json:"primary_voltage"`
	SecondaryVoltage  Range `json:"secondary_voltage"`
	Frequency         Range `json:"frequency"`
	RatedPower        Range `json:"rated_power"`
	WindingResistance Range `json:"winding_resistance"`
	LoadPercent       Range `json:"load_percent"`
	Temperature       Range `json:"temperature"`
}{
	PrimaryVoltage:    Range{Name: "primary voltage", Unit: "V", Min: 200, Max: 500, Default: 230},
	SecondaryVoltage:  Range{Name: "secondary voltage", Unit: "V", Min: 50, Max: 250, Default: 115},
	Frequency:         Range{Name: "frequency", Unit: "Hz", Min: 40, Max: 60, Default: 50},
	RatedPower:        Range{Name: "rated power", Unit: "kVA", Min: 1, Max: 1000, Default: 100},
	WindingResistance: Range{Name: "winding resistance", Unit: "ohm", Min: 0.1, Max: 5.0, Default: 0.5},
	LoadPercent:       Range{Name: "load", Unit: "%", Min: 0, Max: 100, Default: 50},
	Temperature:       Range{Name: "temperature", Unit: "°C", Min: 20, Max: 150, Default: 75},
}

// LossBreakdown holds the loss components in watts and the overall
// efficiency in percent.
type LossBreakdown struct {
	IronLoss          float64 `json:"iron_loss_w"`
	CopperLoss        float64 `json:"copper_loss_w"`
	StrayLoss         float64 `json:"stray_loss_w"`
	DielectricLoss    float64 `json:"dielectric_loss_w"`
	TotalLoss         float64 `json:"total_loss_w"`
	InputPower        float64 `json:"input_power_w"`
	OverallEfficiency float64 `json:"overall_efficiency_pct"`
}

type Report struct {
	Parameters        OperatingParameters `json:"parameters"`
	Breakdown         LossBreakdown       `json:"breakdown"`
	LoadPower         float64             `json:"load_power_w"`
	Current           float64             `json:"current_a"`
	TurnsRatio        float64             `json:"turns_ratio"`
	PartialEfficiency float64             `json:"partial_efficiency_pct"`
	EfficiencyGauge   float64             `json:"efficiency_gauge"`
	Coefficients      Coefficients        `json:"coefficients"`
}

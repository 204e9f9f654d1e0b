package losses

import (
	"encoding/json"
	"math"
)

// Finite returns a pointer to v, or nil when v is NaN or infinite, so the
// value encodes as JSON null. A negative frequency, for one, yields NaN
// iron loss.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FiniteSeries applies Finite to every value of ys.
func FiniteSeries(ys []float64) []*float64 {
	out := make([]*float64, len(ys))
	for i, y := range ys {
		out[i] = Finite(y)
	}
	return out
}

func (p OperatingParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PrimaryVoltage    *float64     `json:"primary_voltage_v"`
		SecondaryVoltage  *float64     `json:"secondary_voltage_v"`
		Frequency         *float64     `json:"frequency_hz"`
		RatedPower        *float64     `json:"rated_power_kva"`
		CoreMaterial      CoreMaterial `json:"core_material"`
		WindingResistance *float64     `json:"winding_resistance_ohm"`
		LoadPercent       *float64     `json:"load_percent"`
		Temperature       *float64     `json:"temperature_c"`
	}{
		Finite(p.PrimaryVoltage),
		Finite(p.SecondaryVoltage),
		Finite(p.Frequency),
		Finite(p.RatedPower),
		p.CoreMaterial,
		Finite(p.WindingResistance),
		Finite(p.LoadPercent),
		Finite(p.Temperature),
	})
}

func (b LossBreakdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		IronLoss          *float64 `json:"iron_loss_w"`
		CopperLoss        *float64 `json:"copper_loss_w"`
		StrayLoss         *float64 `json:"stray_loss_w"`
		DielectricLoss    *float64 `json:"dielectric_loss_w"`
		TotalLoss         *float64 `json:"total_loss_w"`
		InputPower        *float64 `json:"input_power_w"`
		OverallEfficiency *float64 `json:"overall_efficiency_pct"`
	}{
		Finite(b.IronLoss),
		Finite(b.CopperLoss),
		Finite(b.StrayLoss),
		Finite(b.DielectricLoss),
		Finite(b.TotalLoss),
		Finite(b.InputPower),
		Finite(b.OverallEfficiency),
	})
}

// NonFinite names the fields of b that are NaN or infinite, using their
// JSON names.
func (b LossBreakdown) NonFinite() []string {
	var names []string
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"iron_loss_w", b.IronLoss},
		{"copper_loss_w", b.CopperLoss},
		{"stray_loss_w", b.StrayLoss},
		{"dielectric_loss_w", b.DielectricLoss},
		{"total_loss_w", b.TotalLoss},
		{"input_power_w", b.InputPower},
		{"overall_efficiency_pct", b.OverallEfficiency},
	} {
		if Finite(f.value) == nil {
			names = append(names, f.name)
		}
	}
	return names
}

func (r Report) MarshalJSON() ([]byte, error) {
	type report Report
	return json.Marshal(struct {
		report
		LoadPower         *float64 `json:"load_power_w"`
		Current           *float64 `json:"current_a"`
		TurnsRatio        *float64 `json:"turns_ratio"`
		PartialEfficiency *float64 `json:"partial_efficiency_pct"`
		EfficiencyGauge   *float64 `json:"efficiency_gauge"`
	}{
		report(r),
		Finite(r.LoadPower),
		Finite(r.Current),
		Finite(r.TurnsRatio),
		Finite(r.PartialEfficiency),
		Finite(r.EfficiencyGauge),
	})
}

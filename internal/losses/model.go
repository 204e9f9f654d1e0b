package losses

import "math"

const (
	// DefaultTempFactor is the stray-loss scaling used when no temperature is known.
	DefaultTempFactor = 0.0005
	// DefaultInsulationFactor scales dielectric loss with voltage squared.
	DefaultInsulationFactor = 0.0005

	hysteresisExponent = 1.6
)

// IronLoss returns the core loss in watts: hysteresis plus eddy current terms.
func IronLoss(voltage, frequency float64, material CoreMaterial) float64 {
	c := CoefficientsFor(material)
	v2 := voltage * voltage
	return c.Kh*v2*math.Pow(frequency, hysteresisExponent) + c.Ke*v2*frequency
}

// CopperLoss returns the I²R winding loss in watts.
func CopperLoss(current, resistance float64) float64 {
	return current * current * resistance
}

// StrayLoss scales the load power by tempFactor and the inefficiency left
// over from efficiencyPercent.
func StrayLoss(loadPower, efficiencyPercent, tempFactor float64) float64 {
	return tempFactor * loadPower * (1 - efficiencyPercent/100)
}

// DielectricLoss returns the insulation loss in watts.
func DielectricLoss(voltage, insulationFactor float64) float64 {
	return insulationFactor * voltage * voltage
}

// Efficiency returns output/input as a percentage, or 0 when input is 0.
func Efficiency(outputPower, inputPower float64) float64 {
	if inputPower == 0 {
		return 0
	}
	return outputPower / inputPower * 100
}

// PartialEfficiency is the efficiency counting only iron and copper losses.
func PartialEfficiency(loadPower, iron, copper float64) float64 {
	return Efficiency(loadPower, loadPower+iron+copper)
}

// TempFactor converts an operating temperature in Celsius to the stray-loss
// scaling factor.
func TempFactor(celsius float64) float64 {
	return celsius / 1000
}

// LoadPower returns the delivered power in watts for a load percentage of a
// kVA rating.
func LoadPower(loadPercent, ratedPower float64) float64 {
	return loadPercent / 100 * (ratedPower * 1000)
}

// Current returns the primary current for a load power, or 0 when voltage is 0.
func Current(loadPower, voltage float64) float64 {
	if voltage == 0 {
		return 0
	}
	return loadPower / voltage
}

// TurnsRatio returns primary/secondary, or 0 when secondary is 0.
func TurnsRatio(primaryVoltage, secondaryVoltage float64) float64 {
	if secondaryVoltage == 0 {
		return 0
	}
	return primaryVoltage / secondaryVoltage
}

// CalculateLosses evaluates the full loss breakdown. A zero voltage or zero
// rated power yields an all-zero breakdown. Inputs are not validated.
//
// Stray loss is derived from the efficiency over iron and copper losses only,
// so it must be computed after both and before the dielectric term.
func CalculateLosses(voltage, frequency, ratedPower float64, material CoreMaterial, resistance, loadPercent, temperature float64) LossBreakdown {
	if voltage == 0 || ratedPower == 0 {
		return LossBreakdown{}
	}

	loadPower := LoadPower(loadPercent, ratedPower)
	current := Current(loadPower, voltage)

	iron := IronLoss(voltage, frequency, material)
	copper := CopperLoss(current, resistance)
	partial := PartialEfficiency(loadPower, iron, copper)
	stray := StrayLoss(loadPower, partial, TempFactor(temperature))
	dielectric := DielectricLoss(voltage, DefaultInsulationFactor)

	total := iron + copper + stray + dielectric
	input := loadPower + total

	return LossBreakdown{
		IronLoss:          iron,
		CopperLoss:        copper,
		StrayLoss:         stray,
		DielectricLoss:    dielectric,
		TotalLoss:         total,
		InputPower:        input,
		OverallEfficiency: Efficiency(loadPower, input),
	}
}

// Analyze computes the breakdown for p together with the auxiliary values a
// display needs.
func Analyze(p OperatingParameters) Report {
	r := Report{
		Parameters:   p,
		Breakdown:    p.Breakdown(),
		TurnsRatio:   TurnsRatio(p.PrimaryVoltage, p.SecondaryVoltage),
		Coefficients: CoefficientsFor(p.CoreMaterial),
	}
	if p.PrimaryVoltage == 0 || p.RatedPower == 0 {
		return r
	}

	r.LoadPower = LoadPower(p.LoadPercent, p.RatedPower)
	r.Current = Current(r.LoadPower, p.PrimaryVoltage)
	r.PartialEfficiency = PartialEfficiency(r.LoadPower, r.Breakdown.IronLoss, r.Breakdown.CopperLoss)
	r.EfficiencyGauge = Gauge(r.Breakdown.OverallEfficiency)
	return r
}

// Gauge maps an efficiency percentage to a progress fraction capped at 1.
func Gauge(efficiencyPercent float64) float64 {
	return math.Min(efficiencyPercent/100, 1.0)
}

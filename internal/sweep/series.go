package sweep

import (
	"context"
	"fmt"

	"transformer-losses/internal/losses"
)

type Field string

const (
	FieldIron       Field = "iron"
	FieldCopper     Field = "copper"
	FieldStray      Field = "stray"
	FieldDielectric Field = "dielectric"
	FieldTotal      Field = "total"
	FieldInput      Field = "input"
	FieldEfficiency Field = "efficiency"
	FieldLoadPower  Field = "load_power"
)

var Fields = []Field{FieldIron, FieldCopper, FieldStray, FieldDielectric, FieldTotal, FieldInput, FieldEfficiency, FieldLoadPower}

func (f Field) value(p Point) (float64, bool) {
	b := p.Breakdown
	switch f {
	case FieldIron:
		return b.IronLoss, true
	case FieldCopper:
		return b.CopperLoss, true
	case FieldStray:
		return b.StrayLoss, true
	case FieldDielectric:
		return b.DielectricLoss, true
	case FieldTotal:
		return b.TotalLoss, true
	case FieldInput:
		return b.InputPower, true
	case FieldEfficiency:
		return b.OverallEfficiency, true
	case FieldLoadPower:
		return p.LoadPower, true
	}
	return 0, false
}

// XS returns the swept input values.
func (r *Result) XS() []float64 {
	xs := make([]float64, len(r.Points))
	for i, p := range r.Points {
		xs[i] = p.X
	}
	return xs
}

// Reports re-evaluates every point as a full report, for callers that store
// or publish a sweep point by point.
func (r *Result) Reports() []losses.Report {
	reports := make([]losses.Report, len(r.Points))
	for i, p := range r.Points {
		reports[i] = losses.Analyze(r.Dimension.apply(r.Base, p.X))
	}
	return reports
}

// Series extracts one output curve from the sweep.
func (r *Result) Series(field Field) ([]float64, error) {
	if _, ok := field.value(Point{}); !ok {
		return nil, fmt.Errorf("unknown series field %q (want one of %v)", field, Fields)
	}
	ys := make([]float64, len(r.Points))
	for i, p := range r.Points {
		ys[i], _ = field.value(p)
	}
	return ys, nil
}

// EfficiencyVsLoad is the overall efficiency curve across 0-100% load.
func EfficiencyVsLoad(ctx context.Context, base losses.OperatingParameters) ([]float64, []float64, error) {
	res, err := Run(ctx, base, Request{Dimension: Load})
	if err != nil {
		return nil, nil, err
	}
	ys, _ := res.Series(FieldEfficiency)
	return res.XS(), ys, nil
}

// LossesVsVoltage returns the four component curves across the primary
// voltage range, keyed by field.
func LossesVsVoltage(ctx context.Context, base losses.OperatingParameters) ([]float64, map[Field][]float64, error) {
	res, err := Run(ctx, base, Request{Dimension: Voltage})
	if err != nil {
		return nil, nil, err
	}
	curves := make(map[Field][]float64, 4)
	for _, f := range []Field{FieldIron, FieldCopper, FieldStray, FieldDielectric} {
		curves[f], _ = res.Series(f)
	}
	return res.XS(), curves, nil
}

// StrayVsTemperature is the stray loss curve across the temperature range.
func StrayVsTemperature(ctx context.Context, base losses.OperatingParameters) ([]float64, []float64, error) {
	res, err := Run(ctx, base, Request{Dimension: Temperature})
	if err != nil {
		return nil, nil, err
	}
	ys, _ := res.Series(FieldStray)
	return res.XS(), ys, nil
}

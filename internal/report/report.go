package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"transformer-losses/internal/losses"
	"transformer-losses/internal/sweep"
)

const gaugeWidth = 40

// Line is one labeled value of the breakdown display.
type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

func (l Line) String() string {
	if l.Unit == "%" {
		return fmt.Sprintf("%s: %s%%", l.Label, l.Value)
	}
	if l.Unit == "" {
		return fmt.Sprintf("%s: %s", l.Label, l.Value)
	}
	return fmt.Sprintf("%s: %s %s", l.Label, l.Value, l.Unit)
}

// Format renders a value with two decimals.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func Lines(r losses.Report) []Line {
	b := r.Breakdown
	return []Line{
		{"Iron Losses", Format(b.IronLoss), "W"},
		{"Copper Losses", Format(b.CopperLoss), "W"},
		{"Stray Losses", Format(b.StrayLoss), "W"},
		{"Dielectric Losses", Format(b.DielectricLoss), "W"},
		{"Total Losses", Format(b.TotalLoss), "W"},
		{"Load Power", Format(r.LoadPower), "W"},
		{"Input Power", Format(b.InputPower), "W"},
		{"Overall Efficiency", Format(b.OverallEfficiency), "%"},
		{"Turns Ratio (N1/N2)", Format(r.TurnsRatio), ""},
	}
}

// Bar draws the efficiency gauge as a fixed-width text bar.
func Bar(fraction float64, width int) string {
	switch {
	case math.IsNaN(fraction) || fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// WriteTable prints the breakdown lines aligned in two columns followed by
// the efficiency gauge.
func WriteTable(w io.Writer, r losses.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, l := range Lines(r) {
		fmt.Fprintf(tw, "%s:\t%s\t %s\t\n", l.Label, l.Value, l.Unit)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s%%\n", Bar(r.EfficiencyGauge, gaugeWidth), Format(r.EfficiencyGauge*100))
	return err
}

// WriteCalculations writes each formula with the values substituted.
func WriteCalculations(w io.Writer, r losses.Report) error {
	p := r.Parameters
	b := r.Breakdown
	c := r.Coefficients

	var sb strings.Builder
	sb.WriteString("Iron Losses\n")
	sb.WriteString("  P_iron = kh * V^2 * f^1.6 + ke * V^2 * f\n")
	fmt.Fprintf(&sb, "  kh = %g, ke = %g (%s core), V = %g V, f = %g Hz\n", c.Kh, c.Ke, p.CoreMaterial, p.PrimaryVoltage, p.Frequency)
	fmt.Fprintf(&sb, "  P_iron = %s W\n\n", Format(b.IronLoss))

	sb.WriteString("Copper Losses\n")
	sb.WriteString("  P_cu = I^2 * R\n")
	fmt.Fprintf(&sb, "  I = %s A, R = %g ohm\n", Format(r.Current), p.WindingResistance)
	fmt.Fprintf(&sb, "  P_cu = %s W\n\n", Format(b.CopperLoss))

	sb.WriteString("Stray Losses\n")
	sb.WriteString("  P_stray = k_t * P_load * (1 - eta_partial / 100)\n")
	fmt.Fprintf(&sb, "  k_t = %g, P_load = %s W, eta_partial = %s%%\n", losses.TempFactor(p.Temperature), Format(r.LoadPower), Format(r.PartialEfficiency))
	fmt.Fprintf(&sb, "  P_stray = %s W\n\n", Format(b.StrayLoss))

	sb.WriteString("Dielectric Losses\n")
	sb.WriteString("  P_diel = k_i * V^2\n")
	fmt.Fprintf(&sb, "  k_i = %g, V = %g V\n", losses.DefaultInsulationFactor, p.PrimaryVoltage)
	fmt.Fprintf(&sb, "  P_diel = %s W\n\n", Format(b.DielectricLoss))

	sb.WriteString("Efficiency\n")
	sb.WriteString("  eta = P_load / (P_load + P_total) * 100\n")
	fmt.Fprintf(&sb, "  eta = %s / (%s + %s) * 100 = %s%%\n",
		Format(r.LoadPower), Format(r.LoadPower), Format(b.TotalLoss), Format(b.OverallEfficiency))

	_, err := io.WriteString(w, sb.String())
	return err
}

var sweepHeader = []string{"x", "load_power_w", "iron_loss_w", "copper_loss_w", "stray_loss_w", "dielectric_loss_w", "total_loss_w", "input_power_w", "overall_efficiency_pct"}

// WriteSweepCSV writes one row per sweep point. The first column is named
// after the swept dimension.
func WriteSweepCSV(w io.Writer, res *sweep.Result) error {
	cw := csv.NewWriter(w)
	header := append([]string{string(res.Dimension)}, sweepHeader[1:]...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range res.Points {
		b := p.Breakdown
		row := []string{
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.LoadPower, 'f', -1, 64),
			strconv.FormatFloat(b.IronLoss, 'f', -1, 64),
			strconv.FormatFloat(b.CopperLoss, 'f', -1, 64),
			strconv.FormatFloat(b.StrayLoss, 'f', -1, 64),
			strconv.FormatFloat(b.DielectricLoss, 'f', -1, 64),
			strconv.FormatFloat(b.TotalLoss, 'f', -1, 64),
			strconv.FormatFloat(b.InputPower, 'f', -1, 64),
			strconv.FormatFloat(b.OverallEfficiency, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSweepTable prints the sweep with two-decimal values.
func WriteSweepTable(w io.Writer, res *sweep.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s (%s)\tload W\tiron W\tcopper W\tstray W\tdielectric W\ttotal W\tinput W\teff %%\t\n", res.Dimension, res.Unit)
	for _, p := range res.Points {
		b := p.Breakdown
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			Format(p.X), Format(p.LoadPower), Format(b.IronLoss), Format(b.CopperLoss),
			Format(b.StrayLoss), Format(b.DielectricLoss), Format(b.TotalLoss),
			Format(b.InputPower), Format(b.OverallEfficiency))
	}
	return tw.Flush()
}

package sweep

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"

	"transformer-losses/internal/losses"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultPoints = 100
	MaxPoints     = 10000
)

type Dimension string

const (
	Load        Dimension = "load"
	Voltage     Dimension = "voltage"
	Temperature Dimension = "temperature"
	Frequency   Dimension = "frequency"
	Resistance  Dimension = "resistance"
)

var Dimensions = []Dimension{Load, Voltage, Temperature, Frequency, Resistance}

// ParseDimension accepts a dimension name case-insensitively.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := dimensionRanges[d]; !ok {
		return "", fmt.Errorf("unknown sweep dimension %q (want one of %v)", s, Dimensions)
	}
	return d, nil
}

var dimensionRanges = map[Dimension]losses.Range{
	Load:        losses.Ranges.LoadPercent,
	Voltage:     losses.Ranges.PrimaryVoltage,
	Temperature: losses.Ranges.Temperature,
	Frequency:   losses.Ranges.Frequency,
	Resistance:  losses.Ranges.WindingResistance,
}

// DefaultRange returns the control range swept when no bounds are given.
func (d Dimension) DefaultRange() (from, to float64) {
	r := dimensionRanges[d]
	return r.Min, r.Max
}

// Unit returns the unit label of the swept axis.
func (d Dimension) Unit() string {
	return dimensionRanges[d].Unit
}

func (d Dimension) apply(p losses.OperatingParameters, x float64) losses.OperatingParameters {
	switch d {
	case Load:
		p.LoadPercent = x
	case Voltage:
		p.PrimaryVoltage = x
	case Temperature:
		p.Temperature = x
	case Frequency:
		p.Frequency = x
	case Resistance:
		p.WindingResistance = x
	}
	return p
}

// Linspace returns n evenly spaced values over [from, to], both included.
func Linspace(from, to float64, n int) []float64 {
	switch {
	case n <= 0:
		return []float64{}
	case n == 1:
		return []float64{from}
	}
	xs := floats.Span(make([]float64, n), from, to)
	xs[n-1] = to
	return xs
}

type Request struct {
	Dimension Dimension
	// From and To are used as given when RangeSet is true. Otherwise the
	// dimension's control range is swept.
	From     float64
	To       float64
	RangeSet bool
	Points   int
	Workers  int
}

// WithRange returns r sweeping [from, to].
func (r Request) WithRange(from, to float64) Request {
	r.From, r.To, r.RangeSet = from, to, true
	return r
}

// WithDefaults fills the unset fields of r.
func (r Request) WithDefaults() Request {
	if !r.RangeSet {
		r.From, r.To = r.Dimension.DefaultRange()
		r.RangeSet = true
	}
	if r.Points == 0 {
		r.Points = DefaultPoints
	}
	if r.Workers <= 0 {
		r.Workers = runtime.NumCPU()
	}
	return r
}

type Point struct {
	X         float64              `json:"x"`
	LoadPower float64              `json:"load_power_w"`
	Breakdown losses.LossBreakdown `json:"breakdown"`
}

type Result struct {
	ID        string                     `json:"id"`
	Dimension Dimension                  `json:"dimension"`
	Unit      string                     `json:"unit"`
	Base      losses.OperatingParameters `json:"base"`
	Points    []Point                    `json:"points"`
}

// Run evaluates the loss model at every value of the swept dimension while
// holding the rest of base fixed. Points come back in ascending input order.
func Run(ctx context.Context, base losses.OperatingParameters, req Request) (*Result, error) {
	if _, ok := dimensionRanges[req.Dimension]; !ok {
		return nil, fmt.Errorf("unknown sweep dimension %q", req.Dimension)
	}
	req = req.WithDefaults()
	if req.Points < 1 || req.Points > MaxPoints {
		return nil, fmt.Errorf("points must be between 1 and %d, got %d", MaxPoints, req.Points)
	}
	if math.IsNaN(req.From) || math.IsInf(req.From, 0) || math.IsNaN(req.To) || math.IsInf(req.To, 0) {
		return nil, fmt.Errorf("sweep range [%g, %g] is not finite", req.From, req.To)
	}

	xs := Linspace(req.From, req.To, req.Points)
	points := make([]Point, len(xs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(req.Workers)
	for i, x := range xs {
		i, x := i, x
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := req.Dimension.apply(base, x)
			points[i] = Point{
				X:         x,
				LoadPower: pointLoadPower(p),
				Breakdown: p.Breakdown(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sweep %s: %w", req.Dimension, err)
	}

	return &Result{
		ID:        uuid.NewString(),
		Dimension: req.Dimension,
		Unit:      req.Dimension.Unit(),
		Base:      base,
		Points:    points,
	}, nil
}

func pointLoadPower(p losses.OperatingParameters) float64 {
	if p.PrimaryVoltage == 0 || p.RatedPower == 0 {
		return 0
	}
	return losses.LoadPower(p.LoadPercent, p.RatedPower)
}

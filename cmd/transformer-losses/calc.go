package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"

	"transformer-losses/config"
	"transformer-losses/internal/losses"
	"transformer-losses/internal/report"
	"transformer-losses/internal/storage"
	"transformer-losses/internal/sweep"

	"github.com/spf13/cobra"
)

// parameterFlags holds the per-parameter overrides shared by calc and sweep.
type parameterFlags struct {
	primaryVoltage    float64
	secondaryVoltage  float64
	frequency         float64
	ratedPower        float64
	coreMaterial      string
	windingResistance float64
	loadPercent       float64
	temperature       float64
}

func (f *parameterFlags) register(cmd *cobra.Command) {
	d := losses.DefaultParameters()
	fs := cmd.Flags()
	fs.Float64Var(&f.primaryVoltage, "primary-voltage", d.PrimaryVoltage, "primary voltage (V)")
	fs.Float64Var(&f.secondaryVoltage, "secondary-voltage", d.SecondaryVoltage, "secondary voltage (V)")
	fs.Float64Var(&f.frequency, "frequency", d.Frequency, "frequency (Hz)")
	fs.Float64Var(&f.ratedPower, "rated-power", d.RatedPower, "rated power (kVA)")
	fs.StringVar(&f.coreMaterial, "core-material", string(d.CoreMaterial), "core material: CRGO or Ferrite")
	fs.Float64Var(&f.windingResistance, "winding-resistance", d.WindingResistance, "winding resistance (ohm)")
	fs.Float64Var(&f.loadPercent, "load", d.LoadPercent, "load (% of rated power)")
	fs.Float64Var(&f.temperature, "temperature", d.Temperature, "operating temperature (°C)")
}

// parameters starts from the configured nameplate and applies only the
// flags given on the command line.
func (f *parameterFlags) parameters(cmd *cobra.Command) (losses.OperatingParameters, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return losses.OperatingParameters{}, fmt.Errorf("failed to load config: %w", err)
	}
	p := cfg.Transformer.Parameters()

	fs := cmd.Flags()
	for name, set := range map[string]func(){
		"primary-voltage":    func() { p.PrimaryVoltage = f.primaryVoltage },
		"secondary-voltage":  func() { p.SecondaryVoltage = f.secondaryVoltage },
		"frequency":          func() { p.Frequency = f.frequency },
		"rated-power":        func() { p.RatedPower = f.ratedPower },
		"core-material":      func() { p.CoreMaterial = losses.CoreMaterial(f.coreMaterial) },
		"winding-resistance": func() { p.WindingResistance = f.windingResistance },
		"load":               func() { p.LoadPercent = f.loadPercent },
		"temperature":        func() { p.Temperature = f.temperature },
	} {
		if fs.Changed(name) {
			set()
		}
	}
	for name, v := range map[string]float64{
		"primary-voltage":    p.PrimaryVoltage,
		"secondary-voltage":  p.SecondaryVoltage,
		"frequency":          p.Frequency,
		"rated-power":        p.RatedPower,
		"winding-resistance": p.WindingResistance,
		"load":               p.LoadPercent,
		"temperature":        p.Temperature,
	} {
		if losses.Finite(v) == nil {
			return losses.OperatingParameters{}, fmt.Errorf("--%s must be a finite number", name)
		}
	}
	return p, nil
}

func calcCmd() *cobra.Command {
	var (
		flags   parameterFlags
		output  string
		details bool
		strict  bool
	)

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute the loss breakdown for one operating point",
		Long:  "Compute iron, copper, stray and dielectric losses and the overall efficiency. Unset parameters come from the config file, then the built-in defaults.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.parameters(cmd)
			if err != nil {
				return err
			}
			if strict {
				if err := p.Validate(); err != nil {
					return fmt.Errorf("invalid parameters: %w", err)
				}
			}

			r := losses.Analyze(p)
			w := cmd.OutOrStdout()

			switch output {
			case "json":
				return writeJSON(w, r)
			case "table":
				if err := report.WriteTable(w, r); err != nil {
					return err
				}
				if details {
					fmt.Fprintln(w)
					return report.WriteCalculations(w, r)
				}
				return nil
			}
			return fmt.Errorf("unknown output format %q", output)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	cmd.Flags().BoolVar(&details, "details", false, "show the formulas with values substituted")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject parameters outside the control ranges")
	return cmd
}

func sweepCmd() *cobra.Command {
	var (
		flags   parameterFlags
		from    float64
		to      float64
		points  int
		output  string
		field   string
		persist bool
	)

	cmd := &cobra.Command{
		Use:       "sweep <dimension>",
		Short:     "Evaluate the losses across a range of one parameter",
		Long:      "Sweep one of load, voltage, temperature, frequency or resistance over a range while holding the other parameters fixed",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"load", "voltage", "temperature", "frequency", "resistance"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dim, err := sweep.ParseDimension(args[0])
			if err != nil {
				return err
			}
			base, err := flags.parameters(cmd)
			if err != nil {
				return err
			}

			if points < 1 {
				return fmt.Errorf("--points must be at least 1, got %d", points)
			}
			req := sweep.Request{Dimension: dim, Points: points}
			if cmd.Flags().Changed("from") || cmd.Flags().Changed("to") {
				lo, hi := dim.DefaultRange()
				if cmd.Flags().Changed("from") {
					lo = from
				}
				if cmd.Flags().Changed("to") {
					hi = to
				}
				req = req.WithRange(lo, hi)
			}

			res, err := sweep.Run(cmd.Context(), base, req)
			if err != nil {
				return err
			}

			if persist {
				if err := persistSweep(res); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if field != "" {
				ys, err := res.Series(sweep.Field(field))
				if err != nil {
					return err
				}
				return writeJSON(w, map[string]interface{}{"x": res.XS(), "y": losses.FiniteSeries(ys), "field": field})
			}

			switch output {
			case "table":
				return report.WriteSweepTable(w, res)
			case "csv":
				return report.WriteSweepCSV(w, res)
			case "json":
				return writeJSON(w, res)
			}
			return fmt.Errorf("unknown output format %q", output)
		},
	}

	flags.register(cmd)
	cmd.Flags().Float64Var(&from, "from", 0, "start of the swept range (default: control range minimum)")
	cmd.Flags().Float64Var(&to, "to", 0, "end of the swept range (default: control range maximum)")
	cmd.Flags().IntVarP(&points, "points", "n", sweep.DefaultPoints, "number of evaluated points")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, csv or json")
	cmd.Flags().StringVar(&field, "field", "", "print a single series as JSON (iron, copper, stray, dielectric, total, input, efficiency, load_power)")
	cmd.Flags().BoolVar(&persist, "persist", false, "store every point in the database")
	return cmd
}

func persistSweep(res *sweep.Result) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	records, err := db.SaveRecords(res.ID, res.Reports(), storage.SourceSweep)
	if err != nil {
		return err
	}
	log.Printf("Stored %d sweep points under run %s", len(records), res.ID)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

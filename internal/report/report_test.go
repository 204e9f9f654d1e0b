package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"strings"
	"testing"

	"transformer-losses/internal/losses"
	"transformer-losses/internal/sweep"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "26.45", Format(26.45))
	assert.Equal(t, "0.00", Format(0))
	assert.Equal(t, "217.39", Format(50000.0/230))
}

func TestLines(t *testing.T) {
	r := losses.Analyze(losses.DefaultParameters())
	lines := Lines(r)
	require.Len(t, lines, 9)

	assert.Equal(t, "Dielectric Losses: 26.45 W", lines[3].String())
	assert.Equal(t, "Load Power: 50000.00 W", lines[5].String())
	assert.Equal(t, "Turns Ratio (N1/N2): 2.00", lines[8].String())
	assert.True(t, strings.HasSuffix(lines[7].String(), "%"))
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[##########]", Bar(1, 10))
	assert.Equal(t, "[#####.....]", Bar(0.5, 10))
	assert.Equal(t, "[..........]", Bar(-0.2, 10))
	assert.Equal(t, "[##########]", Bar(3, 10))
	assert.Equal(t, "[..........]", Bar(math.NaN(), 10))
	assert.Equal(t, "[##########]", Bar(math.Inf(1), 10))
	assert.Equal(t, "[..........]", Bar(math.Inf(-1), 10))
}

func TestWriteTable_NegativeFrequency(t *testing.T) {
	p := losses.DefaultParameters()
	p.Frequency = -50
	r := losses.Analyze(p)

	var buf bytes.Buffer
	require.NotPanics(t, func() {
		require.NoError(t, WriteTable(&buf, r))
	})
	out := buf.String()
	assert.Contains(t, out, "["+strings.Repeat(".", gaugeWidth)+"]")
	assert.Contains(t, out, "Copper Losses")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, losses.Analyze(losses.DefaultParameters())))

	out := buf.String()
	assert.Contains(t, out, "Iron Losses:")
	assert.Contains(t, out, "26.45")
	assert.Contains(t, out, "[")
}

func TestWriteCalculations(t *testing.T) {
	p := losses.DefaultParameters()
	p.CoreMaterial = losses.Ferrite

	var buf bytes.Buffer
	require.NoError(t, WriteCalculations(&buf, losses.Analyze(p)))

	out := buf.String()
	assert.Contains(t, out, "kh = 0.005, ke = 0.0002 (Ferrite core)")
	assert.Contains(t, out, "k_t = 0.075")
	assert.Contains(t, out, "P_diel = 26.45 W")
}

func TestWriteSweepCSV(t *testing.T) {
	res, err := sweep.Run(context.Background(), losses.DefaultParameters(), sweep.Request{Dimension: sweep.Load, Points: 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSweepCSV(&buf, res))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "load", rows[0][0])
	assert.Equal(t, "overall_efficiency_pct", rows[0][8])
	assert.Equal(t, []string{"0", "0"}, rows[1][:2])
	assert.Equal(t, "100", rows[3][0])
}

func TestWriteSweepTable(t *testing.T) {
	res, err := sweep.Run(context.Background(), losses.DefaultParameters(), sweep.Request{Dimension: sweep.Voltage, Points: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSweepTable(&buf, res))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "voltage (V)")
	assert.Contains(t, lines[2], "500.00")
}

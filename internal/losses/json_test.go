package losses

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportJSON_RoundTrip(t *testing.T) {
	want := Analyze(DefaultParameters())

	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, got)
}

func TestReportJSON_NonFinite(t *testing.T) {
	p := DefaultParameters()
	p.Frequency = -50
	r := Analyze(p)
	require.True(t, math.IsNaN(r.Breakdown.IronLoss))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	assert.JSONEq(t, "null", string(top["partial_efficiency_pct"]))
	assert.JSONEq(t, "null", string(top["efficiency_gauge"]))
	assert.JSONEq(t, "50000", string(top["load_power_w"]))

	var breakdown, params map[string]interface{}
	require.NoError(t, json.Unmarshal(top["breakdown"], &breakdown))
	require.NoError(t, json.Unmarshal(top["parameters"], &params))
	assert.Nil(t, breakdown["iron_loss_w"])
	assert.Nil(t, breakdown["total_loss_w"])
	assert.InDelta(t, 26.45, breakdown["dielectric_loss_w"], 1e-9)
	assert.Equal(t, -50.0, params["frequency_hz"])

	assert.ElementsMatch(t,
		[]string{"iron_loss_w", "stray_loss_w", "total_loss_w", "input_power_w", "overall_efficiency_pct"},
		r.Breakdown.NonFinite())
	assert.Empty(t, Analyze(DefaultParameters()).Breakdown.NonFinite())
}

func TestFiniteSeries(t *testing.T) {
	got := FiniteSeries([]float64{1, math.NaN(), math.Inf(-1)})
	require.Len(t, got, 3)
	assert.Equal(t, 1.0, *got[0])
	assert.Nil(t, got[1])
	assert.Nil(t, got[2])
}

package reconciler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/predictor/internal/model"
)

func TestReconcileDrawOverridesLabel(t *testing.T) {
	raw := model.RawPrediction{
		Label:         model.AwayWin,
		Probabilities: [3]float64{0.1, 0.2, 0.7},
		HomeScore:     1.4,
		AwayScore:     0.6,
	}

	got, err := Reconcile(raw, "France", "Italy")
	require.NoError(t, err)

	assert.Equal(t, 1, got.HomeScore)
	assert.Equal(t, 1, got.AwayScore)
	assert.Equal(t, model.WinnerDraw, got.Winner)
	assert.InDelta(t, 20.0, got.Confidence, 1e-9)
	assert.Equal(t, "France", got.HomeTeam)
	assert.Equal(t, "Italy", got.AwayTeam)
}

func TestReconcileHomeWin(t *testing.T) {
	raw := model.RawPrediction{
		Label:         model.HomeWin,
		Probabilities: [3]float64{0.15, 0.25, 0.40},
		HomeScore:     2.6,
		AwayScore:     0.4,
	}

	got, err := Reconcile(raw, "Spain", "Croatia")
	require.NoError(t, err)

	assert.Equal(t, 3, got.HomeScore)
	assert.Equal(t, 0, got.AwayScore)
	assert.Equal(t, "Spain", got.Winner)
	assert.InDelta(t, 50.0, got.Confidence, 1e-9)
	assert.InDelta(t, got.Probabilities.Home, got.Confidence, 1e-9)
}

func TestReconcileAwayWin(t *testing.T) {
	raw := model.RawPrediction{
		Label:         model.HomeWin,
		Probabilities: [3]float64{0.5, 0.3, 0.2},
		HomeScore:     -0.7,
		AwayScore:     1.5,
	}

	got, err := Reconcile(raw, "Albania", "England")
	require.NoError(t, err)

	assert.Equal(t, 0, got.HomeScore)
	assert.Equal(t, 2, got.AwayScore)
	assert.Equal(t, "England", got.Winner)
	assert.InDelta(t, 50.0, got.Confidence, 1e-9)
}

func TestReconcileZeroProbabilities(t *testing.T) {
	raw := model.RawPrediction{Label: model.Draw, HomeScore: 0.2, AwayScore: 0.1}

	got, err := Reconcile(raw, "Wales", "Scotland")
	require.NoError(t, err)

	assert.Equal(t, model.WinnerDraw, got.Winner)
	assert.Equal(t, 33.33, got.Confidence)
	assert.Equal(t, 33.33, got.Probabilities.Home)
	assert.Equal(t, 33.33, got.Probabilities.Draw)
	assert.Equal(t, 33.33, got.Probabilities.Away)
}

func TestReconcileWinnerIgnoresLabel(t *testing.T) {
	base := model.RawPrediction{
		Probabilities: [3]float64{0.3, 0.3, 0.4},
		HomeScore:     0.9,
		AwayScore:     2.2,
	}
	var winners []string
	for _, label := range []model.Outcome{model.AwayWin, model.Draw, model.HomeWin} {
		raw := base
		raw.Label = label
		got, err := Reconcile(raw, "Germany", "Scotland")
		require.NoError(t, err)
		winners = append(winners, got.Winner)
	}
	assert.Equal(t, []string{"Scotland", "Scotland", "Scotland"}, winners)
}

func TestReconcileInvalidInputs(t *testing.T) {
	tests := []struct {
		name string
		raw  model.RawPrediction
	}{
		{"nan home score", model.RawPrediction{Label: model.Draw, HomeScore: math.NaN()}},
		{"inf away score", model.RawPrediction{Label: model.Draw, AwayScore: math.Inf(1)}},
		{"bad label", model.RawPrediction{Label: model.Outcome(7)}},
		{"huge home score", model.RawPrediction{Label: model.HomeWin, Probabilities: [3]float64{0.1, 0.2, 0.7}, HomeScore: 1e300, AwayScore: 0.4}},
		{"score above int32", model.RawPrediction{Label: model.AwayWin, AwayScore: float64(MaxScore) + 1}},
		{"nan probability", model.RawPrediction{Label: model.Draw, Probabilities: [3]float64{math.NaN(), 0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reconcile(tt.raw, "A", "B")
			assert.ErrorIs(t, err, ErrInvalidPrediction)
		})
	}
}

func TestRenormalizeSumsTo100(t *testing.T) {
	cases := [][3]float64{
		{0.1, 0.2, 0.7},
		{0.33, 0.33, 0.33},
		{2, 5, 1},
		{1e-9, 0, 0},
		{0.05, 0.9, 0.05},
		{0, 0, 1e307},
		{1e308, 1e308, 0},
		{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		{5e-324, 0, 5e-324},
	}
	for _, p := range cases {
		out := Renormalize(p)
		assert.InDelta(t, 100.0, out[0]+out[1]+out[2], 1e-6, "input %v", p)
		for _, v := range out {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	}
}

func TestRenormalizeHugeEntries(t *testing.T) {
	out := Renormalize([3]float64{1e308, 1e308, 0})
	assert.InDelta(t, 50.0, out[0], 1e-9)
	assert.InDelta(t, 50.0, out[1], 1e-9)
	assert.Equal(t, 0.0, out[2])
}

func TestReconcileHugeProbability(t *testing.T) {
	raw := model.RawPrediction{
		Label:         model.HomeWin,
		Probabilities: [3]float64{0, 0, 1e307},
		HomeScore:     2,
		AwayScore:     0,
	}

	got, err := Reconcile(raw, "Portugal", "Czechia")
	require.NoError(t, err)

	assert.Equal(t, "Portugal", got.Winner)
	assert.Equal(t, 100.0, got.Confidence)
	assert.Equal(t, 100.0, got.Probabilities.Home)
	assert.Equal(t, 0.0, got.Probabilities.Away)
}

func TestClampScoreTooLarge(t *testing.T) {
	for _, x := range []float64{1e300, float64(MaxScore) + 0.6} {
		_, err := ClampScore(x)
		assert.ErrorIs(t, err, ErrInvalidPrediction, "ClampScore(%v)", x)
	}
	got, err := ClampScore(float64(MaxScore))
	require.NoError(t, err)
	assert.Equal(t, MaxScore, got)
}

func TestRenormalizeDegenerate(t *testing.T) {
	for _, p := range [][3]float64{{0, 0, 0}, {-1, 0.5, 0.5}, {math.Inf(1), 0, 0}} {
		out := Renormalize(p)
		for _, v := range out {
			assert.InDelta(t, 100.0/3, v, 1e-9, "input %v", p)
		}
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.4, 0},
		{0.5, 1},
		{1.5, 2},
		{2.5, 3},
		{-0.4, 0},
		{-3.2, 0},
		{4.49, 4},
	}
	for _, tt := range tests {
		got, err := ClampScore(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "ClampScore(%v)", tt.in)
	}
}

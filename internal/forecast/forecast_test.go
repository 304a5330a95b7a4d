package forecast

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/FlavioCFOliveira/pricecast/internal/activations"
	"github.com/FlavioCFOliveira/pricecast/internal/net"
	"github.com/FlavioCFOliveira/pricecast/internal/normalize"
	"github.com/FlavioCFOliveira/pricecast/internal/series"
	"github.com/FlavioCFOliveira/pricecast/internal/window"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rising(n int, from, to float64, step time.Duration) series.Series {
	s := make(series.Series, n)
	for i := range s {
		s[i] = series.Point{
			Time:  start.Add(time.Duration(i) * step),
			Value: from + (to-from)*float64(i)/float64(n-1),
		}
	}
	return s
}

func newForecaster(t *testing.T, p Profile, seed int64) *Forecaster {
	t.Helper()
	f, err := New(p, rand.New(rand.NewSource(seed)), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestProfileByName(t *testing.T) {
	for _, name := range []string{"", "daily", "simple", "HOURLY"} {
		p, err := ProfileByName(name)
		if err != nil {
			t.Fatalf("ProfileByName(%q): %v", name, err)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("profile %q invalid: %v", name, err)
		}
	}
	if _, err := ProfileByName("weekly"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Profile)
	}{
		{"activation", func(p *Profile) { p.Activation = "sigmoid" }},
		{"horizon", func(p *Profile) { p.Horizon = 0 }},
		{"max move", func(p *Profile) { p.MaxMove = 1 }},
		{"min price", func(p *Profile) { p.MinPrice = 0 }},
		{"floor", func(p *Profile) { p.FloorFraction = 1 }},
		{"jitter", func(p *Profile) { p.FallbackJitter = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DailyProfile()
			tt.modify(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseBlendAndGranularity(t *testing.T) {
	if b, err := ParseBlend("network_only"); err != nil || b != NetworkOnly {
		t.Errorf("ParseBlend(network_only) = %v, %v", b, err)
	}
	if b, err := ParseBlend("blended"); err != nil || b != Blended {
		t.Errorf("ParseBlend(blended) = %v, %v", b, err)
	}
	if _, err := ParseBlend("lstm"); err == nil {
		t.Error("expected error")
	}
	if g, err := ParseGranularity("hourly"); err != nil || g != Hourly {
		t.Errorf("ParseGranularity(hourly) = %v, %v", g, err)
	}
}

func TestProfileStep(t *testing.T) {
	s := rising(10, 1, 2, 15*time.Minute)
	if got := DailyProfile().Step(s); got != 24*time.Hour {
		t.Errorf("daily step = %v", got)
	}
	if got := HourlyProfile().Step(s); got != 15*time.Minute {
		t.Errorf("hourly inferred step = %v", got)
	}
	if got := HourlyProfile().Step(s[:1]); got != time.Hour {
		t.Errorf("hourly default step = %v", got)
	}
}

func TestComputeStats(t *testing.T) {
	prices := []float64{100, 110, 99, 108.9}
	norm, _ := normalize.Normalize(prices, normalize.UnitRange)
	st := ComputeStats(prices, norm, 30, 2)

	// returns: 0.1, -0.1, 0.1
	if math.Abs(st.Trend) > 1e-12 {
		t.Errorf("trend = %v, want 0", st.Trend)
	}
	wantVol := math.Sqrt(((0.1-1.0/30)*(0.1-1.0/30)*2 + (-0.1-1.0/30)*(-0.1-1.0/30)) / 3)
	if math.Abs(st.Volatility-wantVol) > 1e-9 {
		t.Errorf("volatility = %v, want %v", st.Volatility, wantVol)
	}
	if math.Abs(st.MeanPrice-104.475) > 1e-9 {
		t.Errorf("mean = %v", st.MeanPrice)
	}
	if st.NormVolatility <= 0 {
		t.Errorf("normalized volatility = %v", st.NormVolatility)
	}
}

func TestComputeStatsShortSeries(t *testing.T) {
	st := ComputeStats([]float64{5}, []float64{0}, 30, 7)
	if st.Volatility != 0 || st.Trend != 0 || st.NormVolatility != 0 || st.MeanPrice != 5 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestRolloutBlendedClampInvariant(t *testing.T) {
	wild := Stats{Volatility: 3, Trend: 2, MeanPrice: 1e6}
	for _, p := range []Profile{DailyProfile(), HourlyProfile()} {
		for seed := int64(0); seed < 50; seed++ {
			rng := rand.New(rand.NewSource(seed))
			last := 50.0
			for _, dir := range []float64{-1, 0, 1} {
				out := RolloutBlended(last, wild, dir, p, rng)
				if len(out) != p.Horizon {
					t.Fatalf("%s: got %d values, want %d", p.Name, len(out), p.Horizon)
				}
				current := last
				for i, v := range out {
					if !(v > 0) {
						t.Fatalf("%s seed %d step %d: non-positive %v", p.Name, seed, i, v)
					}
					if math.Abs(v-current) > current*p.MaxMove*(1+1e-12) {
						t.Fatalf("%s seed %d step %d: move %v exceeds %v", p.Name, seed, i, v-current, current*p.MaxMove)
					}
					current = v
				}
			}
		}
	}
}

func TestRolloutBlendedNonPositiveStart(t *testing.T) {
	p := DailyProfile()
	out := RolloutBlended(0, Stats{Volatility: 0.5}, -1, p, rand.New(rand.NewSource(1)))
	current := p.MinPrice
	for i, v := range out {
		if v < p.MinPrice {
			t.Fatalf("step %d below floor: %v", i, v)
		}
		if math.Abs(v-current) > current*p.MaxMove*(1+1e-12) {
			t.Fatalf("step %d: move too large", i)
		}
		current = v
	}
}

func TestRolloutBlendedHourlyFloor(t *testing.T) {
	p := HourlyProfile()
	p.MaxMove = 0.9
	out := RolloutBlended(100, Stats{Trend: -5}, -1, p, rand.New(rand.NewSource(3)))
	current := 100.0
	for i, v := range out {
		if v < current*p.FloorFraction {
			t.Fatalf("step %d: %v below half of %v", i, v, current)
		}
		current = v
	}
}

type recordingPredictor struct {
	windows [][]float64
	next    float64
}

func (r *recordingPredictor) Predict(w []float64) float64 {
	r.windows = append(r.windows, append([]float64(nil), w...))
	v := r.next
	r.next += 0.1
	return v
}

func TestRolloutNetworkSlidesWindow(t *testing.T) {
	params := normalize.Fit([]float64{10, 20}, normalize.UnitRange)
	pred := &recordingPredictor{next: 0.5}
	out := RolloutNetwork(pred, []float64{0.1, 0.2, 0.3}, params, 3, 0, 1, rand.New(rand.NewSource(1)))

	want := [][]float64{{0.1, 0.2, 0.3}, {0.2, 0.3, 0.5}, {0.3, 0.5, 0.6}}
	for i, w := range want {
		for j := range w {
			if math.Abs(pred.windows[i][j]-w[j]) > 1e-12 {
				t.Fatalf("window %d = %v, want %v", i, pred.windows[i], w)
			}
		}
	}
	for i, v := range []float64{15, 16, 17} {
		if math.Abs(out[i]-v) > 1e-9 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}

type constPredictor float64

func (c constPredictor) Predict([]float64) float64 { return float64(c) }

func TestRolloutNetworkClamps(t *testing.T) {
	params := normalize.Fit([]float64{10, 20}, normalize.UnitRange)
	high := RolloutNetwork(constPredictor(9), []float64{0.5}, params, 2, 0, 1, rand.New(rand.NewSource(1)))
	if high[0] != 25 {
		t.Errorf("upper clamp: got %v, want 25", high[0])
	}
	low := RolloutNetwork(constPredictor(-9), []float64{0.5}, params, 2, 0, 1, rand.New(rand.NewSource(1)))
	if low[0] != 10 {
		t.Errorf("lower clamp: got %v, want 10", low[0])
	}
	floored := RolloutNetwork(constPredictor(0), []float64{0.5}, params, 1, 0, 12, rand.New(rand.NewSource(1)))
	if floored[0] != 12 {
		t.Errorf("floor: got %v, want 12", floored[0])
	}
}

func TestDirection(t *testing.T) {
	if d := Direction(constPredictor(0.8), []float64{0.5}, 0.5, -1); d != 1 {
		t.Errorf("up: %v", d)
	}
	if d := Direction(constPredictor(0.2), []float64{0.5}, 0.5, 1); d != -1 {
		t.Errorf("down: %v", d)
	}
	if d := Direction(nil, nil, 0.5, -0.01); d != -1 {
		t.Errorf("trend fallback: %v", d)
	}
	if d := Direction(nil, nil, 0.5, 0); d != 0 {
		t.Errorf("flat trend: %v", d)
	}
}

func TestFallbackJitter(t *testing.T) {
	out := Fallback(200, 14, 0.02, 1e-8, rand.New(rand.NewSource(9)))
	if len(out) != 14 {
		t.Fatalf("got %d values", len(out))
	}
	for i, v := range out {
		if v < 196 || v > 204 {
			t.Errorf("value %d = %v outside ±2%%", i, v)
		}
	}
	zero := Fallback(0, 3, 0.02, 1e-8, rand.New(rand.NewSource(9)))
	for _, v := range zero {
		if v <= 0 {
			t.Errorf("fallback from zero price produced %v", v)
		}
	}
}

func TestRunEmpty(t *testing.T) {
	f := newForecaster(t, DailyProfile(), 1)
	if _, err := f.Run(nil); !errors.Is(err, series.ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData", err)
	}
}

func TestRunFallback(t *testing.T) {
	s := rising(5, 100, 104, 24*time.Hour)
	run := func() Result {
		res, err := newForecaster(t, DailyProfile(), 42).Run(s)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}
	a, b := run(), run()
	if a.Method != MethodFallback {
		t.Fatalf("method = %s", a.Method)
	}
	if len(a.Values) != 14 {
		t.Fatalf("got %d values", len(a.Values))
	}
	for i, v := range a.Values {
		if math.Abs(v-104) > 104*0.02 {
			t.Errorf("value %d = %v not within 2%% of 104", i, v)
		}
		if v != b.Values[i] {
			t.Errorf("seeded fallback not deterministic at %d", i)
		}
	}
}

func TestRunBlendedDaily(t *testing.T) {
	s := rising(30, 100, 130, 24*time.Hour)
	res, err := newForecaster(t, DailyProfile(), 7).Run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Method != MethodBlended {
		t.Fatalf("method = %s", res.Method)
	}
	if res.Window != 14 || res.Network == nil || res.Network.State() != net.Trained {
		t.Errorf("unexpected model: window %d", res.Window)
	}
	if len(res.TrainingLoss) != 200 {
		t.Errorf("loss history has %d entries", len(res.TrainingLoss))
	}
	if len(res.Values) != 14 {
		t.Fatalf("got %d values", len(res.Values))
	}
	lo, hi := 130.0, 130.0
	for i, v := range res.Values {
		lo *= 0.7
		hi *= 1.3
		if !(v > 0) || v < lo || v > hi {
			t.Errorf("value %d = %v outside (%v, %v)", i, v, lo, hi)
		}
	}
}

func TestRunNetworkOnly(t *testing.T) {
	s := rising(40, 50, 90, 24*time.Hour)
	res, err := newForecaster(t, SimpleProfile(), 3).Run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Method != MethodNetwork {
		t.Fatalf("method = %s", res.Method)
	}
	// normalized clamp [0, 1.5] maps to [50, 110]; floor is 5.
	for i, v := range res.Values {
		if v < 50-1e-9 || v > 110+1e-9 {
			t.Errorf("value %d = %v outside [50, 110]", i, v)
		}
	}
}

func TestRunHourly(t *testing.T) {
	p := HourlyProfile()
	p.Horizon = 48
	p.Epochs = 50
	s := rising(60, 1000, 1100, time.Hour)
	res, err := newForecaster(t, p, 11).Run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Values) != 48 || res.Window != 24 {
		t.Fatalf("got %d values, window %d", len(res.Values), res.Window)
	}
	current := 1100.0
	for i, v := range res.Values {
		if math.Abs(v-current) > current*0.02*(1+1e-12) {
			t.Fatalf("step %d moved more than 2%%", i)
		}
		current = v
	}
}

func TestRunDeterministic(t *testing.T) {
	s := rising(30, 100, 130, 24*time.Hour)
	a, err := newForecaster(t, DailyProfile(), 5).Run(s)
	if err != nil {
		t.Fatal(err)
	}
	b, err := newForecaster(t, DailyProfile(), 5).Run(s)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Fatalf("value %d differs: %v vs %v", i, a.Values[i], b.Values[i])
		}
	}
}

func trainedModel(t *testing.T, width int, act activations.Activation, r normalize.Range, epochs int) *net.Network {
	t.Helper()
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	norm, _ := normalize.Normalize(prices, r)
	model := net.New(net.Config{
		InputSize:    width,
		HiddenSize:   4,
		Activation:   act,
		LearningRate: 0.1,
		Epochs:       epochs,
		ClipValue:    1,
		Range:        r,
	}, rand.New(rand.NewSource(1)))
	if epochs > 0 {
		model.Train(window.Make(norm, width))
	}
	return model
}

func TestRunPretrained(t *testing.T) {
	s := rising(30, 100, 130, 24*time.Hour)
	tests := []struct {
		name   string
		model  *net.Network
		reused bool
	}{
		{"matching", trainedModel(t, 14, activations.ReLU{}, normalize.UnitRange, 5), true},
		{"wrong width", trainedModel(t, 3, activations.ReLU{}, normalize.UnitRange, 5), false},
		{"wrong range", trainedModel(t, 14, activations.ReLU{}, normalize.SymmetricRange, 5), false},
		{"wrong activation", trainedModel(t, 14, activations.Tanh{}, normalize.UnitRange, 5), false},
		{"untrained", trainedModel(t, 14, activations.ReLU{}, normalize.UnitRange, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newForecaster(t, DailyProfile(), 5)
			f.UsePretrained(tt.model)
			res, err := f.Run(s)
			if err != nil {
				t.Fatal(err)
			}
			if tt.reused {
				if res.Network != tt.model || res.TrainingLoss != nil {
					t.Error("expected the pretrained model to be used without training")
				}
				return
			}
			if res.Network == tt.model || len(res.TrainingLoss) != 200 {
				t.Error("expected a freshly trained model")
			}
			if res.Network.Range() != normalize.UnitRange {
				t.Errorf("fresh model range = %v", res.Network.Range())
			}
		})
	}
}

func TestProfileTrainingHalvesLoss(t *testing.T) {
	for _, p := range []Profile{DailyProfile(), HourlyProfile()} {
		t.Run(p.Name, func(t *testing.T) {
			n := p.WindowSize * 3
			prices := make([]float64, n)
			for i := range prices {
				prices[i] = 100 + 20*math.Sin(float64(i)/4) + float64(i)
			}
			norm, _ := normalize.Normalize(prices, p.Range)
			act, err := activations.Parse(p.Activation)
			if err != nil {
				t.Fatal(err)
			}
			model := net.New(net.Config{
				InputSize:    p.WindowSize,
				HiddenSize:   p.HiddenSize,
				Activation:   act,
				LearningRate: p.LearningRate,
				Epochs:       p.Epochs,
				ClipValue:    p.ClipValue,
				Range:        p.Range,
			}, rand.New(rand.NewSource(42)))
			history := model.Train(window.Make(norm, p.WindowSize))
			if len(history) != p.Epochs {
				t.Fatalf("history has %d entries, want %d", len(history), p.Epochs)
			}
			if first, last := history[0], history[len(history)-1]; last > 0.5*first {
				t.Errorf("loss went from %v to %v, want at least a halving", first, last)
			}
		})
	}
}

func TestRunCallbacks(t *testing.T) {
	cb := &countingCallback{}
	f := newForecaster(t, DailyProfile(), 5)
	f.AddCallback(cb)
	if _, err := f.Run(rising(30, 100, 130, 24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if cb.epochs != 200 {
		t.Errorf("callback saw %d epochs", cb.epochs)
	}
}

type countingCallback struct {
	net.BaseCallback
	epochs int
}

func (c *countingCallback) OnEpochEnd(int, float64, *net.Network) { c.epochs++ }

func TestNewRejectsInvalid(t *testing.T) {
	p := DailyProfile()
	p.Horizon = 0
	if _, err := New(p, rand.New(rand.NewSource(1)), zerolog.Nop()); err == nil {
		t.Error("expected error for invalid profile")
	}
	if _, err := New(DailyProfile(), nil, zerolog.Nop()); err == nil {
		t.Error("expected error for nil rng")
	}
}

func TestProfileFingerprint(t *testing.T) {
	if DailyProfile().Fingerprint() != DailyProfile().Fingerprint() {
		t.Error("fingerprint not stable")
	}
	seen := map[string]string{}
	for _, p := range []Profile{DailyProfile(), SimpleProfile(), HourlyProfile()} {
		fp := p.Fingerprint()
		if other, ok := seen[fp]; ok {
			t.Errorf("%s and %s share fingerprint %s", p.Name, other, fp)
		}
		seen[fp] = p.Name
	}
	p := DailyProfile()
	p.Horizon = 7
	if p.Fingerprint() == DailyProfile().Fingerprint() {
		t.Error("horizon change kept the fingerprint")
	}
}

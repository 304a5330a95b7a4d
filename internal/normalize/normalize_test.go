package normalize

import (
	"math"
	"math/rand"
	"testing"
)

func TestNormalizeUnitRange(t *testing.T) {
	got, p := Normalize([]float64{10, 20, 30}, UnitRange)
	want := []float64{0, 0.5, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("normalized[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if p.Min != 10 || p.Max != 30 {
		t.Errorf("params = %+v, want min 10 max 30", p)
	}
}

func TestNormalizeSymmetricRange(t *testing.T) {
	got, _ := Normalize([]float64{10, 20, 30}, SymmetricRange)
	want := []float64{-1, 0, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("normalized[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, r := range []Range{UnitRange, SymmetricRange} {
		for trial := 0; trial < 50; trial++ {
			values := make([]float64, 2+rng.Intn(60))
			for i := range values {
				values[i] = rng.Float64() * math.Pow(10, float64(rng.Intn(8)))
			}
			values[0], values[1] = 0.5, 1.5 // guarantee non-degenerate

			norm, p := Normalize(values, r)
			back := p.Denormalize(norm)
			for i := range values {
				// Tolerance is relative to the series scale.
				tol := 1e-9 * math.Max(1, p.Max)
				if math.Abs(back[i]-values[i]) > tol {
					t.Fatalf("range %v: round trip[%d] = %v, want %v", r, i, back[i], values[i])
				}
			}
		}
	}
}

func TestDegenerateSeries(t *testing.T) {
	for _, r := range []Range{UnitRange, SymmetricRange} {
		norm, p := Normalize([]float64{100, 100, 100, 100}, r)
		for i, v := range norm {
			if v != 0 {
				t.Errorf("range %v: normalized[%d] = %v, want 0", r, i, v)
			}
		}

		back := Params{Min: 100, Max: 100, Range: r}.Denormalize([]float64{0, 0, 0})
		for i, v := range back {
			if v != 100 {
				t.Errorf("range %v: denormalized[%d] = %v, want 100", r, i, v)
			}
		}
		if !p.Degenerate() {
			t.Error("constant series must report degenerate")
		}
	}
}

func TestNormalizeEmpty(t *testing.T) {
	norm, _ := Normalize(nil, UnitRange)
	if len(norm) != 0 {
		t.Errorf("expected empty output, got %v", norm)
	}
}

func TestNormalizeValueMatchesSlice(t *testing.T) {
	values := []float64{3, 9, 4, 7}
	norm, p := Normalize(values, SymmetricRange)
	for i, v := range values {
		if math.Abs(p.NormalizeValue(v)-norm[i]) > 1e-12 {
			t.Errorf("NormalizeValue(%v) = %v, want %v", v, p.NormalizeValue(v), norm[i])
		}
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"0,1", UnitRange, false},
		{"[-1, 1]", SymmetricRange, false},
		{"symmetric", SymmetricRange, false},
		{"0,2", UnitRange, true},
	}
	for _, tt := range tests {
		got, err := ParseRange(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseRange(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package window

import (
	"reflect"
	"testing"
)

func TestMake(t *testing.T) {
	got := Make([]float64{1, 2, 3, 4, 5}, 2)

	wantInputs := [][]float64{{1, 2}, {2, 3}, {3, 4}}
	wantTargets := []float64{3, 4, 5}
	if !reflect.DeepEqual(got.Inputs, wantInputs) {
		t.Errorf("inputs = %v, want %v", got.Inputs, wantInputs)
	}
	if !reflect.DeepEqual(got.Targets, wantTargets) {
		t.Errorf("targets = %v, want %v", got.Targets, wantTargets)
	}
}

func TestMakeCardinality(t *testing.T) {
	series := make([]float64, 40)
	for i := range series {
		series[i] = float64(i)
	}

	for w := 1; w < len(series); w++ {
		got := Make(series, w)
		if got.Len() != len(series)-w {
			t.Fatalf("w=%d: %d windows, want %d", w, got.Len(), len(series)-w)
		}
		for i, in := range got.Inputs {
			if len(in) != w {
				t.Fatalf("w=%d: window %d has length %d", w, i, len(in))
			}
			for k := range in {
				if in[k] != series[i+k] {
					t.Fatalf("w=%d: window %d not contiguous", w, i)
				}
			}
			if got.Targets[i] != series[i+w] {
				t.Fatalf("w=%d: target %d = %v, want %v", w, i, got.Targets[i], series[i+w])
			}
		}
	}
}

func TestMakeEmpty(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		w      int
	}{
		{"series shorter than window", []float64{1, 2}, 3},
		{"series equal to window", []float64{1, 2, 3}, 3},
		{"empty series", nil, 2},
		{"zero width", []float64{1, 2, 3}, 0},
	}
	for _, tt := range tests {
		if got := Make(tt.series, tt.w); got.Len() != 0 {
			t.Errorf("%s: got %d windows, want 0", tt.name, got.Len())
		}
	}
}

func TestMakeDoesNotAlias(t *testing.T) {
	series := []float64{1, 2, 3, 4}
	got := Make(series, 2)
	series[0] = 99
	if got.Inputs[0][0] != 1 {
		t.Error("windows must not share memory with the series")
	}
}

func TestWidth(t *testing.T) {
	tests := []struct {
		configured, n, want int
	}{
		{14, 30, 14},
		{14, 10, 9},
		{14, 1, 0},
		{14, 0, 0},
	}
	for _, tt := range tests {
		if got := Width(tt.configured, tt.n); got != tt.want {
			t.Errorf("Width(%d, %d) = %d, want %d", tt.configured, tt.n, got, tt.want)
		}
	}
}

func TestMatrices(t *testing.T) {
	x, y := Make([]float64{1, 2, 3, 4, 5}, 2).Matrices()
	if r, c := x.Dims(); r != 3 || c != 2 {
		t.Fatalf("x dims = %dx%d, want 3x2", r, c)
	}
	if r, c := y.Dims(); r != 3 || c != 1 {
		t.Fatalf("y dims = %dx%d, want 3x1", r, c)
	}
	if x.At(2, 1) != 4 || y.At(2, 0) != 5 {
		t.Errorf("unexpected matrix contents: x[2][1]=%v y[2]=%v", x.At(2, 1), y.At(2, 0))
	}
}

func TestLast(t *testing.T) {
	if got := Last([]float64{1, 2, 3, 4}, 2); !reflect.DeepEqual(got, []float64{3, 4}) {
		t.Errorf("Last = %v, want [3 4]", got)
	}
	if got := Last([]float64{1}, 3); !reflect.DeepEqual(got, []float64{1}) {
		t.Errorf("Last = %v, want [1]", got)
	}
}

package clock

import "testing"

func TestSecondsToMicros(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{0.01, 10_000},
		{1.5, 1_500_000},
		{-0.25, -250_000},
	}
	for _, tt := range tests {
		if got := SecondsToMicros(tt.in); got != tt.want {
			t.Errorf("SecondsToMicros(%v) = %d, ожидали %d", tt.in, got, tt.want)
		}
	}
}

func TestMicros_Monotonic(t *testing.T) {
	a := Micros()
	b := Micros()
	if b < a {
		t.Errorf("часы пошли назад: %d -> %d", a, b)
	}
}

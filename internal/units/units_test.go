package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name  string
		mps   float64
		unit  string
		want  float64
		delta float64
	}{
		{"mps passthrough", 10, MPS, 10, 0},
		{"kph", 10, KPH, 36, 1e-9},
		{"mph", 10, MPH, 22.369362920544, 1e-9},
		{"unknown unit falls back", 10, "furlongs", 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertSpeed(tt.mps, tt.unit)
			if math.Abs(got-tt.want) > tt.delta {
				t.Errorf("ConvertSpeed(%v, %q) = %v, want %v", tt.mps, tt.unit, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
		{-50, -45, 45, -45},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		name string
		deg  float64
		want float64
	}{
		{"zero", 0, 0},
		{"wraparound positive", 340, -20},
		{"wraparound negative", -340, 20},
		{"boundary 180 stays", 180, 180},
		{"boundary -180 wraps", -180, 180},
		{"multiple turns", 720 + 30, 30},
		{"target 10 current 350", 10 - 350, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeHeading(tt.deg); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizeHeading(%v) = %v, want %v", tt.deg, got, tt.want)
			}
		})
	}
}

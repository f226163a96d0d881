package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	t.Run("Zero for identical points", func(t *testing.T) {
		d := Distance(52.5200, 13.4050, 52.5200, 13.4050)
		if d != 0 {
			t.Errorf("expected 0, got %v", d)
		}
	})

	t.Run("Known city pair", func(t *testing.T) {
		// Berlin to Hamburg, roughly 255 km great-circle
		d := Distance(52.5200, 13.4050, 53.5511, 9.9937)
		if d < 250000 || d > 260000 {
			t.Errorf("expected ~255km, got %v m", d)
		}
	})

	t.Run("Short hop is meter-accurate", func(t *testing.T) {
		// ~0.001 degree of latitude is ~111 m
		d := Distance(52.0, 13.0, 52.001, 13.0)
		if math.Abs(d-111.2) > 1.0 {
			t.Errorf("expected ~111.2m, got %v", d)
		}
	})

	t.Run("Symmetric", func(t *testing.T) {
		a := Distance(48.8566, 2.3522, 51.5074, -0.1278)
		b := Distance(51.5074, -0.1278, 48.8566, 2.3522)
		if math.Abs(a-b) > 1e-6 {
			t.Errorf("distance not symmetric: %v vs %v", a, b)
		}
	})
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
	}{
		{"Due north", 52.0, 13.0, 53.0, 13.0, 0},
		{"Due east", 0.0, 13.0, 0.0, 14.0, 90},
		{"Due south", 53.0, 13.0, 52.0, 13.0, 180},
		{"Due west", 0.0, 14.0, 0.0, 13.0, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.want) > 0.5 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 10) != 5 {
		t.Error("in-range value should pass through")
	}
	if Clamp(-1, 0, 10) != 0 {
		t.Error("below range should clamp to min")
	}
	if Clamp(11, 0, 10) != 10 {
		t.Error("above range should clamp to max")
	}
}

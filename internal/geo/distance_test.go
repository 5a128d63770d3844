package geo

import (
	"math"
	"testing"
)

func TestDistanceMeters_Identity(t *testing.T) {
	points := []Point{
		{Lat: 0, Lon: 0},
		{Lat: -23.5505, Lon: -46.6333},
		{Lat: 89.9, Lon: 179.9},
		{Lat: -89.9, Lon: -179.9},
	}

	for _, p := range points {
		if d := DistanceMeters(p, p); d != 0 {
			t.Errorf("DistanceMeters(%v, %v) = %f, want 0", p, p, d)
		}
	}
}

func TestDistanceMeters_Symmetry(t *testing.T) {
	a := Point{Lat: -23.5505, Lon: -46.6333} // São Paulo
	b := Point{Lat: -22.9068, Lon: -43.1729} // Rio de Janeiro

	ab := DistanceMeters(a, b)
	ba := DistanceMeters(b, a)

	if ab != ba {
		t.Errorf("distance not symmetric: a->b = %f, b->a = %f", ab, ba)
	}
}

func TestDistanceMeters_KnownDistance(t *testing.T) {
	// São Paulo to Rio de Janeiro is roughly 360 km.
	a := Point{Lat: -23.5505, Lon: -46.6333}
	b := Point{Lat: -22.9068, Lon: -43.1729}

	d := DistanceMeters(a, b)
	if d < 350000 || d > 370000 {
		t.Errorf("DistanceMeters = %f, want roughly 360km", d)
	}
}

func TestDistanceMeters_SmallDisplacement(t *testing.T) {
	// One thousandth of a degree of latitude is about 111 m.
	a := Point{Lat: 0, Lon: 0}
	b := Point{Lat: 0.001, Lon: 0}

	d := DistanceMeters(a, b)
	if d < 100 || d > 125 {
		t.Errorf("DistanceMeters = %f, want ~111m", d)
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		want  bool
	}{
		{name: "origin", point: Point{Lat: 0, Lon: 0}, want: true},
		{name: "normal", point: Point{Lat: -23.55, Lon: -46.63}, want: true},
		{name: "nan_lat", point: Point{Lat: math.NaN(), Lon: 0}, want: false},
		{name: "nan_lon", point: Point{Lat: 0, Lon: math.NaN()}, want: false},
		{name: "inf_lat", point: Point{Lat: math.Inf(1), Lon: 0}, want: false},
		{name: "neg_inf_lon", point: Point{Lat: 0, Lon: math.Inf(-1)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBearingDegrees(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
	}{
		{name: "due_north", a: Point{0, 0}, b: Point{1, 0}, want: 0},
		{name: "due_east", a: Point{0, 0}, b: Point{0, 1}, want: 90},
		{name: "due_south", a: Point{1, 0}, b: Point{0, 0}, want: 180},
		{name: "due_west", a: Point{0, 1}, b: Point{0, 0}, want: 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingDegrees(tt.a, tt.b)
			if math.Abs(got-tt.want) > 0.5 {
				t.Errorf("BearingDegrees = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestGridKey(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		same bool
	}{
		{
			name: "same_cell",
			a:    Point{Lat: -23.55051, Lon: -46.63331},
			b:    Point{Lat: -23.55049, Lon: -46.63329},
			same: true,
		},
		{
			name: "different_cell",
			a:    Point{Lat: -23.550, Lon: -46.633},
			b:    Point{Lat: -23.560, Lon: -46.633},
			same: false,
		},
		{
			name: "trailing_zero_canonical",
			a:    Point{Lat: 0.1, Lon: 0.2},
			b:    Point{Lat: 0.100, Lon: 0.200},
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, kb := GridKey(tt.a), GridKey(tt.b)
			if (ka == kb) != tt.same {
				t.Errorf("GridKey(%v)=%q GridKey(%v)=%q, same=%v want %v",
					tt.a, ka, tt.b, kb, ka == kb, tt.same)
			}
		})
	}
}

func TestRoundToGrid(t *testing.T) {
	if got := RoundToGrid(-23.55051); got != -23.551 {
		t.Errorf("RoundToGrid(-23.55051) = %v, want -23.551", got)
	}
	if got := RoundToGrid(10.1234); got != 10.123 {
		t.Errorf("RoundToGrid(10.1234) = %v, want 10.123", got)
	}
}

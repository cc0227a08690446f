package frame

import "testing"

func TestRotateRoundTrip(t *testing.T) {
	f := ZoneFrame{
		{R: 1, G: 2, B: 3},
		{R: 4, G: 5, B: 6},
		{R: 7, G: 8, B: 9},
		{R: 10, G: 11, B: 12},
	}
	if got := f.RotateLeft().RotateRight(); got != f {
		t.Fatalf("RotateLeft+RotateRight = %v, want %v", got, f)
	}
	if got := f.RotateRight().RotateLeft(); got != f {
		t.Fatalf("RotateRight+RotateLeft = %v, want %v", got, f)
	}
}

func TestRotateRight(t *testing.T) {
	f := ZoneFrame{{R: 1}, {R: 2}, {R: 3}, {R: 4}}
	want := ZoneFrame{{R: 4}, {R: 1}, {R: 2}, {R: 3}}
	if got := f.RotateRight(); got != want {
		t.Fatalf("RotateRight = %v, want %v", got, want)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	f := ZoneFrame{
		{R: 255, G: 0, B: 127},
		{R: 0, G: 255, B: 0},
		{R: 12, G: 34, B: 56},
		{R: 0, G: 0, B: 0},
	}
	b := f.Bytes()
	if b[0] != 255 || b[1] != 0 || b[2] != 127 || b[5] != 0 || b[4] != 255 {
		t.Fatalf("unexpected byte layout: %v", b)
	}
	if got := FromBytes(b); got != f {
		t.Fatalf("FromBytes(Bytes()) = %v, want %v", got, f)
	}
}

func TestLerpEndpoints(t *testing.T) {
	start := RGBColor{R: 0, G: 100, B: 200}
	target := RGBColor{R: 200, G: 0, B: 100}
	if got := start.Lerp(target, 0); got != start {
		t.Fatalf("progress=0: got %v, want %v", got, start)
	}
	if got := start.Lerp(target, 1); got != target {
		t.Fatalf("progress=1: got %v, want %v", got, target)
	}
	mid := start.Lerp(target, 0.5)
	want := RGBColor{R: 100, G: 50, B: 150}
	if mid != want {
		t.Fatalf("progress=0.5: got %v, want %v", mid, want)
	}
}

func TestLerpQuarters(t *testing.T) {
	start := RGBColor{R: 0, G: 0, B: 0}
	target := RGBColor{R: 200, G: 100, B: 40}
	for _, tc := range []struct {
		progress float64
		want     RGBColor
	}{
		{0.25, RGBColor{R: 50, G: 25, B: 10}},
		{0.50, RGBColor{R: 100, G: 50, B: 20}},
		{0.75, RGBColor{R: 150, G: 75, B: 30}},
		{1.00, RGBColor{R: 200, G: 100, B: 40}},
	} {
		if got := start.Lerp(target, tc.progress); got != tc.want {
			t.Fatalf("progress=%v: got %v, want %v", tc.progress, got, tc.want)
		}
	}
}

func TestSaturate(t *testing.T) {
	// 浅红 → 纯红（明度保留）
	c := RGBColor{R: 200, G: 100, B: 100}
	got := c.Saturate()
	if got.R != 200 || got.G != 0 || got.B != 0 {
		t.Fatalf("Saturate(%v) = %v, want {200 0 0}", c, got)
	}
	// 灰色没有色相，原样返回
	grey := RGBColor{R: 80, G: 80, B: 80}
	if got := grey.Saturate(); got != grey {
		t.Fatalf("Saturate(grey) = %v, want %v", got, grey)
	}
}

func TestScaleClamps(t *testing.T) {
	c := RGBColor{R: 100, G: 200, B: 50}
	if got := c.Scale(2); got != c {
		t.Fatalf("factor>1 should clamp to 1: got %v", got)
	}
	if got := c.Scale(-1); got != Black {
		t.Fatalf("factor<0 should clamp to 0: got %v", got)
	}
	want := RGBColor{R: 50, G: 100, B: 25}
	if got := c.Scale(0.5); got != want {
		t.Fatalf("Scale(0.5) = %v, want %v", got, want)
	}
}

func TestFromHSVPrimaries(t *testing.T) {
	if got := FromHSV(0, 1, 1); got != (RGBColor{R: 255}) {
		t.Fatalf("hue 0 = %v, want pure red", got)
	}
	if got := FromHSV(120, 1, 1); got != (RGBColor{G: 255}) {
		t.Fatalf("hue 120 = %v, want pure green", got)
	}
	if got := FromHSV(240, 1, 1); got != (RGBColor{B: 255}) {
		t.Fatalf("hue 240 = %v, want pure blue", got)
	}
}

package bundle

import "testing"

func TestSizeArithmetic(t *testing.T) {
	a := Size{Raw: 100, Gzip: 40, Brotli: 30}
	b := Size{Raw: 150, Gzip: 10, Brotli: 50}

	if got := a.Add(b); got != (Size{Raw: 250, Gzip: 50, Brotli: 80}) {
		t.Errorf("unexpected sum %+v", got)
	}
	if got := a.Sub(b); got != (Size{Raw: 0, Gzip: 30, Brotli: 0}) {
		t.Errorf("subtraction must clamp at zero, got %+v", got)
	}
}

func TestSizePortion(t *testing.T) {
	asset := Size{Raw: 1000, Gzip: 300, Brotli: 250}
	if got := asset.Portion(100); got != (Size{Raw: 100, Gzip: 30, Brotli: 25}) {
		t.Errorf("unexpected portion %+v", got)
	}
	if got := (Size{}).Portion(10); got != (Size{Raw: 10}) {
		t.Errorf("uncompressed asset portion should be raw only, got %+v", got)
	}
	if !asset.Portion(0).IsZero() {
		t.Error("empty portion should be zero")
	}
}

func TestTypeOf(t *testing.T) {
	tests := map[string]ContentType{
		"main.js":         TypeJS,
		"main.abc123.mjs": TypeJS,
		"style.css?v=1":   TypeCSS,
		"index.html":      TypeHTML,
		"logo.SVG":        TypeImage,
		"font.woff2":      TypeFont,
		"intro.mp4":       TypeMedia,
		"LICENSE.txt":     TypeOther,
		"main.js.map":     TypeOther,
	}
	for name, want := range tests {
		if got := TypeOf(name); got != want {
			t.Errorf("TypeOf(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{1, LevelGood}, {0.9, LevelGood}, {0.75, LevelNotice}, {0.4, LevelWarn}, {0.1, LevelBad},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.score); got != tt.want {
			t.Errorf("LevelFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

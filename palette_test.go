package tsplot

import (
	"image/color"
	"sync"
	"testing"
)

func TestLookupPalette(t *testing.T) {
	p, err := LookupPalette(DefaultPaletteName)
	if err != nil {
		t.Fatalf("LookupPalette(%q) returned error: %v", DefaultPaletteName, err)
	}
	if len(p) != 7 {
		t.Fatalf("pong7 has %d colors, want 7", len(p))
	}

	if _, err := LookupPalette("does-not-exist"); err == nil {
		t.Fatal("LookupPalette accepted an unknown name")
	}
}

func TestRegisterPaletteIsIdempotent(t *testing.T) {
	red := Palette{color.RGBA{R: 0xff, A: 0xff}}
	blue := Palette{color.RGBA{B: 0xff, A: 0xff}}

	RegisterPalette("idempotency-check", red)
	// Re-registering the same name must be a no-op, not an overwrite.
	RegisterPalette("idempotency-check", blue)

	p, err := LookupPalette("idempotency-check")
	if err != nil {
		t.Fatalf("LookupPalette returned error: %v", err)
	}
	if p.Color(0) != red[0] {
		t.Fatalf("palette was overwritten: got %v, want %v", p.Color(0), red[0])
	}
}

func TestRegisterPaletteConcurrent(t *testing.T) {
	p := Palette{color.RGBA{G: 0xff, A: 0xff}}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RegisterPalette("concurrency-check", p)
			if _, err := LookupPalette("concurrency-check"); err != nil {
				t.Errorf("LookupPalette returned error: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestPaletteColorWrapsAround(t *testing.T) {
	p := Palette{color.RGBA{R: 1, A: 0xff}, color.RGBA{R: 2, A: 0xff}}

	if p.Color(0) != p.Color(2) {
		t.Fatal("color index did not wrap around")
	}
	if p.Color(0) == p.Color(1) {
		t.Fatal("distinct indices returned the same color")
	}

	var empty Palette
	if empty.Color(3) != color.Black {
		t.Fatal("empty palette should fall back to black")
	}
}

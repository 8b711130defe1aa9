package tsplot

import (
	"fmt"
	"image/color"
	"sync"
)

// Palette is an ordered list of series colors. Colors are assigned to
// series in order, wrapping around when there are more series than colors.
type Palette []color.Color

// DefaultPaletteName is the palette BuildPlot uses when none is given.
//
// The pong7 palette exists because lines that frequently intersect are hard
// to tell apart with the usual sequential colormaps. These seven colors
// were picked for high mutual contrast.
const DefaultPaletteName = "pong7"

var pong7 = Palette{
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}, // tab10 blue
	color.RGBA{R: 0xd6, G: 0x8d, B: 0x04, A: 0xff}, // ochre orange
	color.RGBA{R: 0xde, G: 0x18, B: 0x2c, A: 0xff}, // lava red
	color.RGBA{R: 0x2c, G: 0x8a, B: 0x0f, A: 0xff}, // mint green
	color.RGBA{R: 0xff, G: 0x0f, B: 0xd7, A: 0xff}, // fuchsia pink
	color.RGBA{R: 0x04, G: 0xd6, B: 0x8d, A: 0xff}, // sky green
	color.RGBA{R: 0x56, G: 0x3d, B: 0x61, A: 0xff}, // plum purple
}

var (
	paletteMutex    sync.Mutex
	paletteRegistry = map[string]Palette{}
	builtinsOnce    sync.Once
)

func registerBuiltinPalettes() {
	builtinsOnce.Do(func() {
		paletteMutex.Lock()
		defer paletteMutex.Unlock()
		paletteRegistry[DefaultPaletteName] = pong7
	})
}

// RegisterPalette adds a named palette to the process-wide registry.
// Registering a name that already exists is a no-op, so it is safe to call
// repeatedly and from multiple goroutines.
func RegisterPalette(name string, p Palette) {
	registerBuiltinPalettes()

	paletteMutex.Lock()
	defer paletteMutex.Unlock()
	if _, ok := paletteRegistry[name]; ok {
		return
	}
	paletteRegistry[name] = append(Palette(nil), p...)
}

// LookupPalette returns the named palette from the registry.
func LookupPalette(name string) (Palette, error) {
	registerBuiltinPalettes()

	paletteMutex.Lock()
	defer paletteMutex.Unlock()
	p, ok := paletteRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown palette %q", name)
	}
	return p, nil
}

// Color returns the i-th series color, wrapping around the palette.
func (p Palette) Color(i int) color.Color {
	if len(p) == 0 {
		return color.Black
	}
	return p[mod(i, len(p))]
}

package plot

import (
	"fmt"
	"math"
)

// Two-series colors.
const (
	colorRed  = "#FF0000"
	colorBlue = "#0000FF"
)

// spectral holds the ColorBrewer "Spectral" diverging palettes keyed by size.
var spectral = map[int][]string{
	3:  {"#99d594", "#ffffbf", "#fc8d59"},
	4:  {"#2b83ba", "#abdda4", "#fdae61", "#d7191c"},
	5:  {"#2b83ba", "#abdda4", "#ffffbf", "#fdae61", "#d7191c"},
	6:  {"#3288bd", "#99d594", "#e6f598", "#fee08b", "#fc8d59", "#d53e4f"},
	7:  {"#3288bd", "#99d594", "#e6f598", "#ffffbf", "#fee08b", "#fc8d59", "#d53e4f"},
	8:  {"#3288bd", "#66c2a5", "#abdda4", "#e6f598", "#fee08b", "#fdae61", "#f46d43", "#d53e4f"},
	9:  {"#3288bd", "#66c2a5", "#abdda4", "#e6f598", "#ffffbf", "#fee08b", "#fdae61", "#f46d43", "#d53e4f"},
	10: {"#5e4fa2", "#3288bd", "#66c2a5", "#abdda4", "#e6f598", "#fee08b", "#fdae61", "#f46d43", "#d53e4f", "#9e0142"},
	11: {"#5e4fa2", "#3288bd", "#66c2a5", "#abdda4", "#e6f598", "#ffffbf", "#fee08b", "#fdae61", "#f46d43", "#d53e4f", "#9e0142"},
}

// Hue wheel layout for counts past the Spectral palettes. Hues are kept at
// least 5 degrees apart so they stay distinct after 8-bit rounding; more
// colors than one turn holds go onto further turns at other lightnesses.
const (
	huesPerTurn = 72
	saturation  = 0.65
)

var turnLightness = []float64{0.5, 0.35, 0.65, 0.25, 0.75}

// MaxDistinctColors is the largest n for which Colors returns no repeats.
var MaxDistinctColors = huesPerTurn * len(turnLightness)

// Colors returns n hex colors, one per series, all distinct for n up to
// MaxDistinctColors and repeating in order past it.
//
// One or two series get pure red and blue; three to eleven get the
// Spectral palette of that size; larger counts walk the hue wheel.
func Colors(n int) []string {
	switch {
	case n <= 0:
		return []string{}
	case n <= 2:
		return []string{colorRed, colorBlue}[:n]
	case n <= 11:
		out := make([]string, n)
		copy(out, spectral[n])
		return out
	case n > MaxDistinctColors:
		base := Colors(MaxDistinctColors)
		out := make([]string, n)
		for i := range out {
			out[i] = base[i%len(base)]
		}
		return out
	}

	turns := (n + huesPerTurn - 1) / huesPerTurn
	perTurn := (n + turns - 1) / turns

	out := make([]string, n)
	for i := range out {
		turn, step := i/perTurn, i%perTurn
		out[i] = hslToHex(float64(step)*360/float64(perTurn), saturation, turnLightness[turn])
	}
	return out
}

// hslToHex converts hue (degrees), saturation and lightness (0-1) to #rrggbb.
func hslToHex(h, s, l float64) string {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	m := l - c/2
	return fmt.Sprintf("#%02x%02x%02x", toByte(r+m), toByte(g+m), toByte(b+m))
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

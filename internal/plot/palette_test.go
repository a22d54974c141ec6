package plot_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aqplot/aqplot/internal/plot"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func TestColors_SmallCounts(t *testing.T) {
	assert.Empty(t, plot.Colors(0))
	assert.Empty(t, plot.Colors(-1))
	assert.Equal(t, []string{"#FF0000"}, plot.Colors(1))
	assert.Equal(t, []string{"#FF0000", "#0000FF"}, plot.Colors(2))
}

func TestColors_Spectral(t *testing.T) {
	assert.Equal(t, []string{"#99d594", "#ffffbf", "#fc8d59"}, plot.Colors(3))
	assert.Equal(t, []string{"#2b83ba", "#abdda4", "#ffffbf", "#fdae61", "#d7191c"}, plot.Colors(5))
}

func TestColors_ReturnsCopy(t *testing.T) {
	first := plot.Colors(4)
	first[0] = "#000000"

	assert.Equal(t, "#2b83ba", plot.Colors(4)[0])
}

func TestColors_DistinctForEveryCount(t *testing.T) {
	for n := 1; n <= 20; n++ {
		colors := plot.Colors(n)
		assert.Len(t, colors, n)

		seen := make(map[string]bool, n)
		for _, c := range colors {
			assert.Regexp(t, hexColor, c)
			assert.False(t, seen[c], "duplicate color %s for n=%d", c, n)
			seen[c] = true
		}
	}
}

func TestColors_DistinctUpToMax(t *testing.T) {
	for _, n := range []int{12, 71, 72, 73, 144, 145, 250, plot.MaxDistinctColors} {
		colors := plot.Colors(n)
		assert.Len(t, colors, n)

		seen := make(map[string]bool, n)
		for _, c := range colors {
			assert.Regexp(t, hexColor, c)
			seen[c] = true
		}
		assert.Len(t, seen, n, "duplicate colors for n=%d", n)
	}
}

func TestColors_RepeatsPastMax(t *testing.T) {
	n := 2*plot.MaxDistinctColors + 5
	colors := plot.Colors(n)
	assert.Len(t, colors, n)

	base := plot.Colors(plot.MaxDistinctColors)
	assert.Equal(t, base, colors[:plot.MaxDistinctColors])
	assert.Equal(t, base[:5], colors[2*plot.MaxDistinctColors:])
}

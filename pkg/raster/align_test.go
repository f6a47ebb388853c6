package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBoundsWideRaster(t *testing.T) {
	cfg := AlignConfig{CenterLat: 10, CenterLon: 20, BaseCoverageDeg: 0.06}

	// aspect > 1: coverage width is the base, height shrinks by aspect.
	b := computeBounds(cfg, 200, 100)
	assert.InDelta(t, 0.06, b.maxLon-b.minLon, 1e-12)
	assert.InDelta(t, 0.03, b.maxLat-b.minLat, 1e-12)
	assert.InDelta(t, 20.0, (b.minLon+b.maxLon)/2, 1e-12)
	assert.InDelta(t, 10.0, (b.minLat+b.maxLat)/2, 1e-12)
}

func TestComputeBoundsTallRaster(t *testing.T) {
	cfg := AlignConfig{BaseCoverageDeg: 0.06}

	// aspect <= 1: coverage height is base * 1.5, width shrinks by aspect.
	b := computeBounds(cfg, 100, 200)
	assert.InDelta(t, 0.09, b.maxLat-b.minLat, 1e-12)
	assert.InDelta(t, 0.045, b.maxLon-b.minLon, 1e-12)
}

func TestPixelMappingInvertsYAxis(t *testing.T) {
	cfg := AlignConfig{BaseCoverageDeg: 0.06}
	b := computeBounds(cfg, 100, 100)

	// The northernmost in-bounds latitude maps to row 0.
	row, _, ok := pixelFor(b, b.maxLat-1e-9, 0, 100, 100)
	require.True(t, ok)
	assert.Equal(t, 0, row)

	// The southernmost maps to the last row.
	row, _, ok = pixelFor(b, b.minLat, 0, 100, 100)
	require.True(t, ok)
	assert.Equal(t, 99, row)
}

func TestPixelMappingOutOfBounds(t *testing.T) {
	cfg := AlignConfig{BaseCoverageDeg: 0.06}
	b := computeBounds(cfg, 100, 100)

	_, _, ok := pixelFor(b, 1.0, 0, 100, 100)
	assert.False(t, ok)
	_, _, ok = pixelFor(b, 0, 1.0, 100, 100)
	assert.False(t, ok)
}

func TestPixelRoundTripExactOnPixelIndex(t *testing.T) {
	cfg := AlignConfig{CenterLat: -6.2, CenterLon: 106.8, BaseCoverageDeg: 0.06}
	const w, h = 120, 80
	b := computeBounds(cfg, w, h)

	lonSpan := b.maxLon - b.minLon
	latSpan := b.maxLat - b.minLat

	// For a sample of pixels: the pixel-center coordinate maps back to the
	// same (row, col). Sub-pixel position is lossy, the index is not.
	for _, rc := range [][2]int{{0, 0}, {1, 1}, {40, 60}, {79, 119}, {12, 97}} {
		row, col := rc[0], rc[1]

		lon := b.minLon + (float64(col)+0.5)/float64(w)*lonSpan
		lat := b.maxLat - (float64(row)+0.5)/float64(h)*latSpan

		gotRow, gotCol, ok := pixelFor(b, lat, lon, w, h)
		require.True(t, ok)
		assert.Equal(t, row, gotRow, "row for pixel (%d,%d)", row, col)
		assert.Equal(t, col, gotCol, "col for pixel (%d,%d)", row, col)
	}
}

func TestGridAppliesDepthFloor(t *testing.T) {
	cfg := AlignConfig{BaseCoverageDeg: 0.06}
	grid, err := newGrid(Scenario{ReturnPeriod: RR01, TimeStep: 1}, cfg,
		[]float64{0.005, 0.5, 0.01, 2.0}, 2, 2)
	require.NoError(t, err)

	// Depths at or below 0.01 m are zeroed on load.
	b := grid.bounds
	depth, ok := grid.depthAt(b.maxLat-1e-9, b.minLon)
	require.True(t, ok)
	assert.Equal(t, 0.0, depth)
}

func TestGridRejectsShapeMismatch(t *testing.T) {
	cfg := AlignConfig{BaseCoverageDeg: 0.06}
	_, err := newGrid(Scenario{ReturnPeriod: RR01, TimeStep: 1}, cfg, []float64{1, 2, 3}, 2, 2)
	require.ErrorIs(t, err, ErrDecodeFailed)
}

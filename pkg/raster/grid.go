package raster

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Grid is one loaded depth raster: a dense matrix of depth-in-meters plus
// the geo-bounds computed for it at load time. Backed by gonum/mat.Dense
// rather than a hand-rolled [][]float64, matching how the rest of the pack
// stores dense numeric arrays.
type Grid struct {
	Scenario Scenario
	bounds   bounds
	data     *mat.Dense
	rows     int
	cols     int
}

// newGrid builds a Grid from a flat row-major depth array of shape w×h,
// applying the depth-zero floor (values ≤ 0.01 m are treated as zero)
// while loading.
func newGrid(scenario Scenario, cfg AlignConfig, flat []float64, w, h int) (*Grid, error) {
	if len(flat) != w*h {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrDecodeFailed, w*h, len(flat))
	}

	d := mat.NewDense(h, w, nil)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			v := flat[row*w+col]
			if v <= depthZeroFloor {
				v = 0
			}
			d.Set(row, col, v)
		}
	}

	return &Grid{
		Scenario: scenario,
		bounds:   computeBounds(cfg, w, h),
		data:     d,
		rows:     h,
		cols:     w,
	}, nil
}

// depthAt returns the depth in meters at (lat, lon), or ok=false if the
// point falls outside this grid's bounds.
func (g *Grid) depthAt(lat, lon float64) (depth float64, ok bool) {
	row, col, inBounds := pixelFor(g.bounds, lat, lon, g.cols, g.rows)
	if !inBounds {
		return 0, false
	}
	return g.data.At(row, col), true
}

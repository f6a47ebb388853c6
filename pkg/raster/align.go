package raster

import "math"

// computeBounds derives the lon/lat extent of a W×H raster from the manual
// alignment configuration. The raster's own CRS, if any, is never
// consulted: the manual center/coverage is authoritative.
func computeBounds(cfg AlignConfig, w, h int) bounds {
	aspect := float64(w) / float64(h)

	var covW, covH float64
	if aspect > 1 {
		covW = cfg.BaseCoverageDeg
		covH = cfg.BaseCoverageDeg / aspect
	} else {
		covH = cfg.BaseCoverageDeg * 1.5
		covW = covH * aspect
	}

	return bounds{
		minLon: cfg.CenterLon - covW/2,
		maxLon: cfg.CenterLon + covW/2,
		minLat: cfg.CenterLat - covH/2,
		maxLat: cfg.CenterLat + covH/2,
	}
}

// pixelFor maps a (lat, lon) to a (row, col) pixel index, inverting the
// y-axis since raster row 0 is the northernmost row. ok is false when the
// point falls outside b.
func pixelFor(b bounds, lat, lon float64, w, h int) (row, col int, ok bool) {
	if lon < b.minLon || lon > b.maxLon || lat < b.minLat || lat > b.maxLat {
		return 0, 0, false
	}
	col = int(math.Floor((lon - b.minLon) / (b.maxLon - b.minLon) * float64(w)))
	row = int(math.Floor((1 - (lat-b.minLat)/(b.maxLat-b.minLat)) * float64(h)))

	if col >= w {
		col = w - 1
	}
	if row >= h {
		row = h - 1
	}
	if col < 0 || row < 0 {
		return 0, 0, false
	}
	return row, col, true
}

const depthZeroFloor = 0.01

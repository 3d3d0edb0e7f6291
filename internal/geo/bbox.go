// Package geo holds the bounding-box and slippy-tile math shared by the
// importer, the changeset applier and the tile assembler.
package geo

// BBox is a geographic bounding box in the store's native orientation:
// LatT >= LatB and LonL <= LonR.
type BBox struct {
	LatT float64 // top (north)
	LonL float64 // left (west)
	LatB float64 // bottom (south)
	LonR float64 // right (east)
}

// NewEmptyBBox returns an inverted bbox that snaps to the first point
// or box expanded into it. It reads as invalid until then.
func NewEmptyBBox() BBox {
	return BBox{LatT: -90, LonL: 180, LatB: 90, LonR: -180}
}

// NewBBoxFromPoint creates a zero-size bbox at a point.
func NewBBoxFromPoint(lat, lon float64) BBox {
	return BBox{LatT: lat, LonL: lon, LatB: lat, LonR: lon}
}

// IsValid checks orientation and world bounds.
func (b BBox) IsValid() bool {
	return b.LatB <= b.LatT && b.LonL <= b.LonR &&
		b.LatB >= -90 && b.LatT <= 90 &&
		b.LonL >= -180 && b.LonR <= 180
}

// IsPoint reports whether the bbox has zero extent.
func (b BBox) IsPoint() bool {
	return b.LatT == b.LatB && b.LonL == b.LonR
}

// Expand grows the bbox to include another bbox.
func (b *BBox) Expand(other BBox) {
	if other.LatT > b.LatT {
		b.LatT = other.LatT
	}
	if other.LonL < b.LonL {
		b.LonL = other.LonL
	}
	if other.LatB < b.LatB {
		b.LatB = other.LatB
	}
	if other.LonR > b.LonR {
		b.LonR = other.LonR
	}
}

// ExpandPoint grows the bbox to include a point.
func (b *BBox) ExpandPoint(lat, lon float64) {
	if lat > b.LatT {
		b.LatT = lat
	}
	if lat < b.LatB {
		b.LatB = lat
	}
	if lon < b.LonL {
		b.LonL = lon
	}
	if lon > b.LonR {
		b.LonR = lon
	}
}

// Overlaps reports whether two bboxes intersect, boundary included.
func (b BBox) Overlaps(other BBox) bool {
	return b.LonL <= other.LonR && other.LonL <= b.LonR &&
		b.LatB <= other.LatT && other.LatB <= b.LatT
}

// Contains reports whether a point falls inside the bbox.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.LatB && lat <= b.LatT && lon >= b.LonL && lon <= b.LonR
}

// Center returns the bbox midpoint.
func (b BBox) Center() (lat, lon float64) {
	return (b.LatT + b.LatB) / 2, (b.LonL + b.LonR) / 2
}

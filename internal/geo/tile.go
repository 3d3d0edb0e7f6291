package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Web Mercator latitude limits.
const (
	MaxMercatorLat = 85.0511287798
	MinMercatorLat = -85.0511287798
)

// refBorder is the fraction of a tile added around a range when
// computing tile references, so thin lines are not clipped at seams.
const refBorder = 1.0 / 16.0

// CoordToTile converts a coordinate to fractional tile coordinates at a
// zoom level. The integer parts identify the containing tile; the
// fractions place the point within it.
func CoordToTile(lat, lon float64, zoom int) (x, y float64) {
	if lat > MaxMercatorLat {
		lat = MaxMercatorLat
	}
	if lat < MinMercatorLat {
		lat = MinMercatorLat
	}
	if lon < -180 {
		lon = -180
	}
	if lon > 180 {
		lon = 180
	}

	n := float64(int64(1) << zoom)
	x = (lon + 180.0) / 360.0 * n
	latRad := lat * math.Pi / 180.0
	y = (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n
	return x, y
}

// PointTile returns the tile containing a point.
func PointTile(lat, lon float64, zoom int) maptile.Tile {
	if lat > MaxMercatorLat {
		lat = MaxMercatorLat
	}
	if lat < MinMercatorLat {
		lat = MinMercatorLat
	}
	return maptile.At(orb.Point{lon, lat}, maptile.Zoom(zoom))
}

// TileID packs a tile into the store key: row * 2^zoom + col.
func TileID(x, y uint32, zoom int) int64 {
	return int64(y)*(int64(1)<<zoom) + int64(x)
}

// TileIDOf packs a maptile.Tile into the store key.
func TileIDOf(t maptile.Tile) int64 {
	return TileID(t.X, t.Y, int(t.Z))
}

// UnpackTileID recovers (x, y) from a packed tile id.
func UnpackTileID(tid int64, zoom int) (x, y uint32) {
	n := int64(1) << zoom
	return uint32(tid % n), uint32(tid / n)
}

// TileBounds returns the geographic extent of a tile.
func TileBounds(zoom int, x, y uint32) BBox {
	b := maptile.New(x, y, maptile.Zoom(zoom)).Bound()
	return BBox{
		LatT: b.Max[1],
		LonL: b.Min[0],
		LatB: b.Min[1],
		LonR: b.Max[0],
	}
}

// TileRange is an inclusive rectangle of tiles at one zoom level.
type TileRange struct {
	Z          int
	X0, X1     uint32
	Y0, Y1     uint32
}

// Count returns the number of tiles in the range.
func (r TileRange) Count() int {
	return int(r.X1-r.X0+1) * int(r.Y1-r.Y0+1)
}

// Each calls fn for every (x, y) cell in the range.
func (r TileRange) Each(fn func(x, y uint32)) {
	for y := r.Y0; ; y++ {
		for x := r.X0; ; x++ {
			fn(x, y)
			if x == r.X1 {
				break
			}
		}
		if y == r.Y1 {
			break
		}
	}
}

// RefRange computes the tiles that must reference an object with range
// b at the given zoom. Non-point ranges are enlarged by a 1/16-tile
// border on every side; a point lands only in its containing tile. The
// result is clamped to the grid.
func RefRange(b BBox, zoom int) TileRange {
	if b.IsPoint() {
		t := PointTile(b.LatT, b.LonL, zoom)
		return TileRange{Z: zoom, X0: t.X, X1: t.X, Y0: t.Y, Y1: t.Y}
	}

	x0, y0 := CoordToTile(b.LatT, b.LonL, zoom)
	x1, y1 := CoordToTile(b.LatB, b.LonR, zoom)

	x0 -= refBorder
	y0 -= refBorder
	x1 += refBorder
	y1 += refBorder

	max := float64(int64(1)<<zoom) - 1
	return TileRange{
		Z:  zoom,
		X0: clampTile(math.Floor(x0), max),
		X1: clampTile(math.Floor(x1), max),
		Y0: clampTile(math.Floor(y0), max),
		Y1: clampTile(math.Floor(y1), max),
	}
}

func clampTile(v, max float64) uint32 {
	if v < 0 {
		return 0
	}
	if v > max {
		return uint32(max)
	}
	return uint32(v)
}

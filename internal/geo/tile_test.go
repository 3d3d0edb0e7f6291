package geo

import (
	"math"
	"testing"
)

func TestCoordToTile(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zoom     int
		wantX    int
		wantY    int
	}{
		{"London at zoom 10", 51.5074, -0.1278, 10, 511, 340},
		{"Monaco at zoom 12", 43.7384, 7.4246, 12, 2132, 1493},
		{"New York at zoom 10", 40.7128, -74.0060, 10, 301, 385},
		{"Origin at zoom 0", 0, 0, 0, 0, 0},
		{"Origin at zoom 1", 0, 0, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := CoordToTile(tt.lat, tt.lon, tt.zoom)
			if int(math.Floor(x)) != tt.wantX || int(math.Floor(y)) != tt.wantY {
				t.Errorf("CoordToTile(%f, %f, %d) = (%f, %f), want tile (%d, %d)",
					tt.lat, tt.lon, tt.zoom, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestPointTileMatchesCoordToTile(t *testing.T) {
	coords := []struct{ lat, lon float64 }{
		{40.0, -105.0},
		{51.5074, -0.1278},
		{-33.8688, 151.2093},
	}
	for _, c := range coords {
		for _, zoom := range []int{9, 11, 14, 15} {
			x, y := CoordToTile(c.lat, c.lon, zoom)
			tile := PointTile(c.lat, c.lon, zoom)
			if uint32(x) != tile.X || uint32(y) != tile.Y {
				t.Errorf("PointTile(%f, %f, %d) = (%d, %d), CoordToTile floor = (%d, %d)",
					c.lat, c.lon, zoom, tile.X, tile.Y, uint32(x), uint32(y))
			}
		}
	}
}

func TestTileIDRoundTrip(t *testing.T) {
	for _, zoom := range []int{9, 11, 14} {
		tid := TileID(100, 200, zoom)
		want := int64(200)*(int64(1)<<zoom) + 100
		if tid != want {
			t.Errorf("TileID(100, 200, %d) = %d, want %d", zoom, tid, want)
		}
		x, y := UnpackTileID(tid, zoom)
		if x != 100 || y != 200 {
			t.Errorf("UnpackTileID(%d, %d) = (%d, %d), want (100, 200)", tid, zoom, x, y)
		}
	}
}

func TestRefRangeEnlargement(t *testing.T) {
	// A bbox exactly coinciding with tile 14/100/200 must reference the
	// 3x3 neighborhood around it.
	b := TileBounds(14, 100, 200)
	r := RefRange(b, 14)

	if r.X0 != 99 || r.X1 != 101 || r.Y0 != 199 || r.Y1 != 201 {
		t.Errorf("RefRange = x[%d..%d] y[%d..%d], want x[99..101] y[199..201]",
			r.X0, r.X1, r.Y0, r.Y1)
	}
	if r.Count() != 9 {
		t.Errorf("Count = %d, want 9", r.Count())
	}
}

func TestRefRangePoint(t *testing.T) {
	// A point gets no border: only the containing tile.
	b := NewBBoxFromPoint(40.0, -105.0)
	r := RefRange(b, 14)
	if r.Count() != 1 {
		t.Fatalf("point range covers %d tiles, want 1", r.Count())
	}
	tile := PointTile(40.0, -105.0, 14)
	if r.X0 != tile.X || r.Y0 != tile.Y {
		t.Errorf("point range tile = (%d, %d), want (%d, %d)", r.X0, r.Y0, tile.X, tile.Y)
	}
}

func TestRefRangeClampsAtGridEdge(t *testing.T) {
	b := TileBounds(2, 0, 0)
	r := RefRange(b, 2)
	if r.X0 != 0 || r.Y0 != 0 {
		t.Errorf("range must clamp at 0, got x0=%d y0=%d", r.X0, r.Y0)
	}
	if r.X1 != 1 || r.Y1 != 1 {
		t.Errorf("range = x1=%d y1=%d, want 1, 1", r.X1, r.Y1)
	}
}

func TestTileRangeEach(t *testing.T) {
	r := TileRange{Z: 14, X0: 99, X1: 101, Y0: 199, Y1: 201}
	seen := make(map[[2]uint32]bool)
	r.Each(func(x, y uint32) {
		seen[[2]uint32{x, y}] = true
	})
	if len(seen) != 9 {
		t.Errorf("Each visited %d cells, want 9", len(seen))
	}
	for x := uint32(99); x <= 101; x++ {
		for y := uint32(199); y <= 201; y++ {
			if !seen[[2]uint32{x, y}] {
				t.Errorf("cell (%d, %d) not visited", x, y)
			}
		}
	}
}

func TestBBoxOverlaps(t *testing.T) {
	a := BBox{LatT: 2, LonL: 1, LatB: 1, LonR: 2}
	tests := []struct {
		name string
		b    BBox
		want bool
	}{
		{"identical", a, true},
		{"disjoint", BBox{LatT: 10, LonL: 10, LatB: 9, LonR: 11}, false},
		{"touching edge", BBox{LatT: 3, LonL: 2, LatB: 2, LonR: 3}, true},
		{"contained", BBox{LatT: 1.8, LonL: 1.2, LatB: 1.2, LonR: 1.8}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBBoxExpand(t *testing.T) {
	// Multipolygon range: member bboxes (1,1)-(2,2) and (3,0)-(4,3)
	// union to top=4 left=0 bottom=1 right=3.
	a := BBox{LatT: 2, LonL: 1, LatB: 1, LonR: 2}
	a.Expand(BBox{LatT: 4, LonL: 0, LatB: 3, LonR: 3})
	if a.LatT != 4 || a.LonL != 0 || a.LatB != 1 || a.LonR != 3 {
		t.Errorf("Expand = %+v, want {4 0 1 3}", a)
	}
}

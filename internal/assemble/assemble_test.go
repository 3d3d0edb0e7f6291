package assemble

import (
	"bytes"
	"encoding/xml"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeffboody/osmdb-sub000/internal/blob"
	"github.com/jeffboody/osmdb-sub000/internal/class"
	"github.com/jeffboody/osmdb-sub000/internal/geo"
	"github.com/jeffboody/osmdb-sub000/internal/store"
)

// seedStore builds a store with a named peak, a road through two
// nodes (one with a missing coordinate), and a relation holding the
// road, all indexed in the tile containing (40, -105).
func seedStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenWriter(filepath.Join(t.TempDir(), "test.store"), []int{11, 14}, 1000, 1<<20)
	if err != nil {
		t.Fatalf("OpenWriter failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.Begin(); err != nil {
		t.Fatal(err)
	}
	add := func(rec blob.Record) {
		if err := st.Add(rec); err != nil {
			t.Fatal(err)
		}
	}

	peak, _ := class.OfName("natural:peak")
	road, _ := class.OfName("highway:residential")
	water, _ := class.OfName("natural:water")

	add(&blob.NodeCoord{ID: 1, Lat: 40.0, Lon: -105.0})
	add(&blob.NodeInfo{ID: 1, Class: peak, Name: "Long Peak", Ele: 14255, MinZoom: 11})
	add(&blob.NodeCoord{ID: 2, Lat: 40.001, Lon: -105.001})
	// Node 3 is referenced by the way but has no stored coordinate.
	add(&blob.WayInfo{ID: 10, Class: road, Name: "North Broadway Street", Abbrev: "N Broadway St", Flags: blob.FlagForward, MinZoom: 14})
	add(&blob.WayNds{ID: 10, Nds: []int64{1, 2, 3}})
	add(&blob.RelInfo{ID: 30, Class: water, Type: blob.RelMultipolygon, Center: blob.InvalidID, Name: "Lake", MinZoom: 11})
	add(&blob.RelMembers{ID: 30, Members: []blob.Member{{Type: blob.MemberWay, Ref: 10, Role: "outer"}}})

	for _, z := range []int{11, 14} {
		tile := geo.PointTile(40.0, -105.0, z)
		tid := geo.TileIDOf(tile)
		if err := st.AddTileRef(store.RefNode, z, tid, 1); err != nil {
			t.Fatal(err)
		}
		if err := st.AddTileRef(store.RefWay, z, tid, 10); err != nil {
			t.Fatal(err)
		}
		if err := st.AddTileRef(store.RefRel, z, tid, 30); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.End(); err != nil {
		t.Fatal(err)
	}
	return st
}

// payload mirrors the assembler's output for assertions.
type payload struct {
	Zoom  int `xml:"zoom,attr"`
	Nodes []struct {
		ID   int64   `xml:"id,attr"`
		Lat  float64 `xml:"lat,attr"`
		Name string  `xml:"name,attr"`
	} `xml:"node"`
	Ways []struct {
		ID  int64  `xml:"id,attr"`
		Nds []struct {
			Ref int64 `xml:"ref,attr"`
		} `xml:"nd"`
	} `xml:"way"`
	Rels []struct {
		ID      int64 `xml:"id,attr"`
		Members []struct {
			Ref int64 `xml:"ref,attr"`
		} `xml:"member"`
	} `xml:"relation"`
}

func assembleTile(t *testing.T, a *Assembler, zoom int, x, y uint32) (*payload, string) {
	t.Helper()
	var buf bytes.Buffer
	if err := a.Tile(zoom, x, y, &buf); err != nil {
		t.Fatalf("Tile failed: %v", err)
	}
	var p payload
	if err := xml.Unmarshal(buf.Bytes(), &p); err != nil {
		t.Fatalf("payload is not well-formed XML: %v\n%s", err, buf.String())
	}
	return &p, buf.String()
}

func TestTileResolvesTransitively(t *testing.T) {
	st := seedStore(t)
	a := New(st)

	tile := geo.PointTile(40.0, -105.0, 14)
	p, raw := assembleTile(t, a, 14, tile.X, tile.Y)

	// Node 1 (indexed), node 2 (via the way); node 3 has no coord and
	// is silently dropped.
	if len(p.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2\n%s", len(p.Nodes), raw)
	}
	if p.Nodes[0].ID != 1 || p.Nodes[1].ID != 2 {
		t.Errorf("node ids = %d, %d; want ascending 1, 2", p.Nodes[0].ID, p.Nodes[1].ID)
	}
	if p.Nodes[0].Name != "Long Peak" {
		t.Errorf("node name = %q", p.Nodes[0].Name)
	}

	if len(p.Ways) != 1 || p.Ways[0].ID != 10 {
		t.Fatalf("ways = %+v", p.Ways)
	}
	// The nd list keeps its order, including the missing node's ref.
	refs := p.Ways[0].Nds
	if len(refs) != 3 || refs[0].Ref != 1 || refs[1].Ref != 2 || refs[2].Ref != 3 {
		t.Errorf("nd refs = %+v", refs)
	}

	if len(p.Rels) != 1 || p.Rels[0].ID != 30 {
		t.Fatalf("rels = %+v", p.Rels)
	}
	if !strings.Contains(raw, `oneway="1"`) {
		t.Error("way flags missing from payload")
	}
}

func TestTileZoomMapping(t *testing.T) {
	st := seedStore(t)
	a := New(st)

	// A zoom-16 request maps down to the zoom-14 grid.
	tile := geo.PointTile(40.0, -105.0, 16)
	p, _ := assembleTile(t, a, 16, tile.X, tile.Y)
	if len(p.Nodes) == 0 || len(p.Ways) == 0 {
		t.Error("zoom 16 request found nothing via the zoom 14 bucket")
	}
	if p.Zoom != 16 {
		t.Errorf("payload zoom = %d, want the requested 16", p.Zoom)
	}

	// A zoom-12 request maps down to the zoom-11 grid.
	tile = geo.PointTile(40.0, -105.0, 12)
	p, _ = assembleTile(t, a, 12, tile.X, tile.Y)
	if len(p.Nodes) == 0 {
		t.Error("zoom 12 request found nothing via the zoom 11 bucket")
	}
}

func TestTileBelowGrid(t *testing.T) {
	st := seedStore(t)
	a := New(st)

	var buf bytes.Buffer
	err := a.Tile(5, 0, 0, &buf)
	if !errors.Is(err, ErrZoom) {
		t.Errorf("err = %v, want ErrZoom", err)
	}
}

func TestTileEmpty(t *testing.T) {
	st := seedStore(t)
	a := New(st)

	// A far-away tile yields a well-formed empty payload.
	tile := geo.PointTile(-33.0, 151.0, 14)
	p, _ := assembleTile(t, a, 14, tile.X, tile.Y)
	if len(p.Nodes)+len(p.Ways)+len(p.Rels) != 0 {
		t.Errorf("unexpected content: %+v", p)
	}
}

func TestTileMissingRelation(t *testing.T) {
	st := seedStore(t)

	// Index a relation id with no blobs behind it; it must be omitted
	// without error.
	if err := st.Begin(); err != nil {
		t.Fatal(err)
	}
	tile := geo.PointTile(40.0, -105.0, 14)
	if err := st.AddTileRef(store.RefRel, 14, geo.TileIDOf(tile), 999); err != nil {
		t.Fatal(err)
	}
	if err := st.End(); err != nil {
		t.Fatal(err)
	}

	p, _ := assembleTile(t, New(st), 14, tile.X, tile.Y)
	for _, r := range p.Rels {
		if r.ID == 999 {
			t.Error("dangling relation appeared in payload")
		}
	}
}

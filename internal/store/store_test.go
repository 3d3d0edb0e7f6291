package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/jeffboody/osmdb-sub000/internal/blob"
	"github.com/jeffboody/osmdb-sub000/internal/geo"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenWriter(filepath.Join(t.TempDir(), "test.store"), []int{11, 14}, 100, 1<<20)
	if err != nil {
		t.Fatalf("OpenWriter failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustAdd(t *testing.T, s *Store, rec blob.Record) {
	t.Helper()
	if err := s.Add(rec); err != nil {
		t.Fatalf("Add(%v, %d) failed: %v", rec.Kind(), rec.BlobID(), err)
	}
}

func TestAddAndGet(t *testing.T) {
	s := openTestStore(t)

	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, s, &blob.NodeCoord{ID: 1, Lat: 40.0, Lon: -105.0})
	mustAdd(t, s, &blob.NodeInfo{ID: 1, Class: 10, Name: "Long Peak", Ele: 14255, MinZoom: 11})
	mustAdd(t, s, &blob.WayInfo{ID: 2, Class: 20, Layer: 1, Flags: blob.FlagForward | blob.FlagBridge, Name: "North Broadway Street", Abbrev: "N Broadway St", MinZoom: 11})
	mustAdd(t, s, &blob.WayNds{ID: 2, Nds: []int64{1, 5, 3}})
	mustAdd(t, s, &blob.WayRange{ID: 2, Range: geo.BBox{LatT: 41, LonL: -106, LatB: 40, LonR: -105}})
	mustAdd(t, s, &blob.RelInfo{ID: 3, Class: 30, Type: blob.RelMultipolygon, Center: blob.InvalidID, Name: "Park"})
	mustAdd(t, s, &blob.RelMembers{ID: 3, Members: []blob.Member{
		{Type: blob.MemberWay, Ref: 2, Role: "outer"},
	}})
	if err := s.End(); err != nil {
		t.Fatal(err)
	}

	h, err := s.Get(blob.KindNodeCoord, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if h == nil {
		t.Fatal("Get returned nil for stored record")
	}
	nc := h.Rec.(*blob.NodeCoord)
	if nc.Lat != 40.0 || nc.Lon != -105.0 {
		t.Errorf("coord = (%f, %f), want (40, -105)", nc.Lat, nc.Lon)
	}
	h.Release()

	h, err = s.Get(blob.KindWayNds, 2)
	if err != nil || h == nil {
		t.Fatalf("Get way_nds failed: %v", err)
	}
	nds := h.Rec.(*blob.WayNds).Nds
	if len(nds) != 3 || nds[0] != 1 || nds[1] != 5 || nds[2] != 3 {
		t.Errorf("nds = %v, want [1 5 3]", nds)
	}
	h.Release()

	h, err = s.Get(blob.KindWayInfo, 2)
	if err != nil || h == nil {
		t.Fatalf("Get way_info failed: %v", err)
	}
	wi := h.Rec.(*blob.WayInfo)
	if wi.Flags&blob.FlagForward == 0 || wi.Flags&blob.FlagBridge == 0 {
		t.Errorf("flags = %b, want forward|bridge", wi.Flags)
	}
	if wi.Abbrev != "N Broadway St" {
		t.Errorf("abbrev = %q", wi.Abbrev)
	}
	h.Release()

	h, err = s.Get(blob.KindRelMembers, 3)
	if err != nil || h == nil {
		t.Fatalf("Get rel_members failed: %v", err)
	}
	members := h.Rec.(*blob.RelMembers).Members
	if len(members) != 1 || members[0].Ref != 2 || members[0].Role != "outer" {
		t.Errorf("members = %+v", members)
	}
	h.Release()
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	h, err := s.Get(blob.KindNodeCoord, 12345)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if h != nil {
		t.Error("expected nil handle for missing blob")
	}
}

func TestAddDeduplicates(t *testing.T) {
	s := openTestStore(t)

	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, s, &blob.NodeCoord{ID: 1, Lat: 40.0, Lon: -105.0})
	mustAdd(t, s, &blob.NodeCoord{ID: 1, Lat: 41.0, Lon: -106.0})
	if err := s.End(); err != nil {
		t.Fatal(err)
	}

	// First write wins; blobs are immutable.
	h, err := s.Get(blob.KindNodeCoord, 1)
	if err != nil || h == nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer h.Release()
	if h.Rec.(*blob.NodeCoord).Lat != 40.0 {
		t.Errorf("lat = %f, want 40.0 (first append wins)", h.Rec.(*blob.NodeCoord).Lat)
	}
}

func TestRollbackDiscards(t *testing.T) {
	s := openTestStore(t)

	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, s, &blob.NodeCoord{ID: 9, Lat: 1, Lon: 2})
	s.Rollback()

	h, err := s.Get(blob.KindNodeCoord, 9)
	if err != nil {
		t.Fatal(err)
	}
	if h != nil {
		t.Error("rolled-back write must not be visible")
	}
}

func TestBatchRollover(t *testing.T) {
	s, err := OpenWriter(filepath.Join(t.TempDir(), "batch.store"), []int{11, 14}, 3, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}
	for i := int64(1); i <= 10; i++ {
		mustAdd(t, s, &blob.NodeCoord{ID: i, Lat: float64(i), Lon: 0})
	}
	if err := s.End(); err != nil {
		t.Fatal(err)
	}

	for i := int64(1); i <= 10; i++ {
		h, err := s.Get(blob.KindNodeCoord, i)
		if err != nil || h == nil {
			t.Fatalf("node %d missing after batched commit", i)
		}
		h.Release()
	}
}

func TestTileRefs(t *testing.T) {
	s := openTestStore(t)

	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}
	tid := geo.TileID(100, 200, 14)
	if err := s.AddTileRef(RefWay, 14, tid, 42); err != nil {
		t.Fatal(err)
	}
	if err := s.AddTileRef(RefWay, 14, tid, 43); err != nil {
		t.Fatal(err)
	}
	// Duplicate membership row is a no-op.
	if err := s.AddTileRef(RefWay, 14, tid, 42); err != nil {
		t.Fatal(err)
	}
	if err := s.End(); err != nil {
		t.Fatal(err)
	}

	refs, err := s.TileRefs(RefWay, 14, tid)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Errorf("got %d refs, want 2", len(refs))
	}

	refs, err = s.TileRefs(RefWay, 11, tid)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 0 {
		t.Errorf("zoom 11 should have no refs, got %d", len(refs))
	}
}

func TestAttrAndZoomsPersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.store")

	s, err := OpenWriter(path, []int{9, 12, 15}, 100, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAttr(AttrChangeset, "12345"); err != nil {
		t.Fatal(err)
	}
	if err := s.End(); err != nil {
		t.Fatal(err)
	}
	s.Close()

	r, err := OpenReader(path, 1<<20)
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer r.Close()

	zooms := r.Zooms()
	if len(zooms) != 3 || zooms[0] != 9 || zooms[1] != 12 || zooms[2] != 15 {
		t.Errorf("zooms = %v, want [9 12 15]", zooms)
	}
	id, err := r.ChangesetID()
	if err != nil {
		t.Fatal(err)
	}
	if id != 12345 {
		t.Errorf("changeset = %d, want 12345", id)
	}
}

func TestOpenWriterRejectsZoomMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zooms.store")
	s, err := OpenWriter(path, []int{11, 14}, 100, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := OpenWriter(path, []int{9, 12, 15}, 100, 1<<20); err == nil {
		t.Error("expected error reopening store with a different zoom set")
	}
}

func TestConcurrentGetSharesOneLoad(t *testing.T) {
	s := openTestStore(t)

	if err := s.Begin(); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, s, &blob.NodeCoord{ID: 1, Lat: 40, Lon: -105})
	if err := s.End(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := s.Get(blob.KindNodeCoord, 1)
			if err != nil || h == nil {
				t.Errorf("concurrent Get failed: %v", err)
				return
			}
			if h.Rec.(*blob.NodeCoord).Lat != 40 {
				t.Error("wrong record")
			}
			h.Release()
		}()
	}
	wg.Wait()

	if _, entries := s.CacheStats(); entries != 1 {
		t.Errorf("cache holds %d entries, want 1", entries)
	}
}

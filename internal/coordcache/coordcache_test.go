package coordcache

import (
	"path/filepath"
	"testing"
)

func newTestCache(t *testing.T, budget int64) *Paged {
	t.Helper()
	c, err := NewPaged(filepath.Join(t.TempDir(), "coords.bin"), budget)
	if err != nil {
		t.Fatalf("NewPaged failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t, 1<<20)

	if err := c.Set(1, 40.0, -105.0); err != nil {
		t.Fatal(err)
	}
	lat, lon, ok, err := c.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("node 1 should be present")
	}
	if lat != 40.0 || lon != -105.0 {
		t.Errorf("got (%f, %f), want (40, -105)", lat, lon)
	}
}

func TestGetAbsent(t *testing.T) {
	c := newTestCache(t, 1<<20)
	if _, _, ok, err := c.Get(999); err != nil || ok {
		t.Errorf("Get(999) = ok=%v err=%v, want absent", ok, err)
	}
}

func TestNegativeIDsIgnored(t *testing.T) {
	c := newTestCache(t, 1<<20)
	if err := c.Set(-5, 1, 2); err != nil {
		t.Fatal(err)
	}
	if _, _, ok, _ := c.Get(-5); ok {
		t.Error("negative ids must read as absent")
	}
}

func TestSparseIDsAcrossPages(t *testing.T) {
	c := newTestCache(t, 1<<20)

	// Node ids far enough apart to land on distinct pages.
	ids := []int64{0, 255, 256, 100_000, 3_000_000_000}
	for i, id := range ids {
		if err := c.Set(id, float64(i+1), float64(-i-1)); err != nil {
			t.Fatal(err)
		}
	}
	for i, id := range ids {
		lat, lon, ok, err := c.Get(id)
		if err != nil || !ok {
			t.Fatalf("node %d missing: ok=%v err=%v", id, ok, err)
		}
		if lat != float64(i+1) || lon != float64(-i-1) {
			t.Errorf("node %d = (%f, %f), want (%d, %d)", id, lat, lon, i+1, -i-1)
		}
	}
}

func TestEvictionIsWriteThrough(t *testing.T) {
	// Budget of two pages forces eviction traffic.
	c := newTestCache(t, 2*PageSize)

	const n = 10
	for i := int64(0); i < n; i++ {
		// One node per page.
		if err := c.Set(i*entriesPerPage, float64(i)+0.5, float64(i)-0.5); err != nil {
			t.Fatal(err)
		}
	}
	if c.Resident() > 2 {
		t.Errorf("resident pages = %d, want <= 2", c.Resident())
	}

	// Evicted pages must read back from disk intact.
	for i := int64(0); i < n; i++ {
		lat, lon, ok, err := c.Get(i * entriesPerPage)
		if err != nil || !ok {
			t.Fatalf("node on page %d missing after eviction", i)
		}
		if lat != float64(i)+0.5 || lon != float64(i)-0.5 {
			t.Errorf("page %d = (%f, %f)", i, lat, lon)
		}
	}
}

func TestSyncWritesBackingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coords.bin")

	c, err := NewPaged(path, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set(12345, 39.7392, -104.9903); err != nil {
		t.Fatal(err)
	}
	if err := c.Sync(); err != nil {
		t.Fatal(err)
	}

	lat, lon, ok, err := c.Get(12345)
	if err != nil || !ok {
		t.Fatalf("node missing after sync: ok=%v err=%v", ok, err)
	}
	if lat != 39.7392 || lon != -104.9903 {
		t.Errorf("got (%f, %f)", lat, lon)
	}
}

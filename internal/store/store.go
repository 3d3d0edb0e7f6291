// Package store is the tiled blob index: a SQLite-backed map from
// (blob kind, id) to typed records, plus per-zoom tile membership
// tables. Reads go through a byte-budgeted LRU of decoded records with
// at-most-one concurrent materialization per key; writes are grouped
// into batched transactions owned by a single writer.
package store

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"

	"github.com/jeffboody/osmdb-sub000/internal/blob"
	"github.com/jeffboody/osmdb-sub000/internal/class"
	"github.com/jeffboody/osmdb-sub000/internal/config"
	"github.com/jeffboody/osmdb-sub000/internal/geo"
	"github.com/jeffboody/osmdb-sub000/internal/osmerr"
)

// Well-known attr keys.
const (
	AttrZooms     = "zooms"
	AttrChangeset = "changeset"
	AttrBounds    = "bounds"
	// AttrSynth is the next synthetic negative id, persisted so later
	// appends (KML overlays) cannot collide with earlier ones.
	AttrSynth = "synth"
)

// Store is the persistent blob index. One writer at a time; readers
// are safe concurrently once the writer has committed.
type Store struct {
	db    *sql.DB
	zooms []int

	cache *cache
	group singleflight.Group

	// Writer state. The importer is single-threaded, so no lock.
	batchSize int
	tx        *sql.Tx
	pending   int
}

// OpenWriter opens or creates a store for import. The zoom set is
// persisted in attr so later readers use the same grid; reopening an
// existing store with a different set is an error.
func OpenWriter(path string, zooms []int, batchSize int, cacheBytes int64) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, osmerr.Wrap(osmerr.KindIo, err)
	}

	if err := ensureSchema(db, zooms); err != nil {
		db.Close()
		return nil, osmerr.Wrap(osmerr.KindStore, err)
	}

	s := &Store{
		db:        db,
		zooms:     append([]int(nil), zooms...),
		cache:     newCache(cacheBytes),
		batchSize: batchSize,
	}

	existing, ok, err := s.GetAttr(AttrZooms)
	if err != nil {
		db.Close()
		return nil, err
	}
	want := config.FormatZooms(zooms)
	if ok && existing != want {
		db.Close()
		return nil, osmerr.New(osmerr.KindStore,
			"store was built with zooms %s, requested %s", existing, want)
	}
	if !ok {
		if _, err := db.Exec(`INSERT INTO attr (k, v) VALUES (?, ?)`, AttrZooms, want); err != nil {
			db.Close()
			return nil, osmerr.Wrap(osmerr.KindStore, err)
		}
	}
	return s, nil
}

// OpenReader opens an existing store for tile assembly. The zoom set
// comes from attr; a store without one cannot be served.
func OpenReader(path string, cacheBytes int64) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, osmerr.Wrap(osmerr.KindIo, err)
	}

	s := &Store{db: db, cache: newCache(cacheBytes)}

	zoomsStr, ok, err := s.GetAttr(AttrZooms)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !ok {
		db.Close()
		return nil, osmerr.New(osmerr.KindStore, "store has no zoom set; not an import output?")
	}
	zooms, err := config.ParseZooms(zoomsStr)
	if err != nil {
		db.Close()
		return nil, osmerr.Wrap(osmerr.KindStore, err)
	}
	s.zooms = zooms
	return s, nil
}

// OpenUpdater opens an existing store for appends and invalidation.
// Like OpenReader the zoom set comes from attr, but batched mutations
// are allowed.
func OpenUpdater(path string, batchSize int, cacheBytes int64) (*Store, error) {
	s, err := OpenReader(path, cacheBytes)
	if err != nil {
		return nil, err
	}
	s.batchSize = batchSize
	return s, nil
}

// Close rolls back any open transaction and closes the database.
func (s *Store) Close() error {
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}

// Zooms returns the store's tile grid, ascending.
func (s *Store) Zooms() []int { return s.zooms }

// --- write path ---

// Begin opens a batched transaction. Mutations accumulate until End,
// Rollback, or the batch size is reached (which commits and reopens).
func (s *Store) Begin() error {
	if s.tx != nil {
		return osmerr.New(osmerr.KindInvariant, "transaction already open")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return osmerr.Wrap(osmerr.KindStore, err)
	}
	s.tx = tx
	s.pending = 0
	return nil
}

// End commits the open transaction.
func (s *Store) End() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	s.pending = 0
	if err != nil {
		return osmerr.Wrap(osmerr.KindStore, err)
	}
	return nil
}

// Rollback discards the open transaction.
func (s *Store) Rollback() {
	if s.tx == nil {
		return
	}
	s.tx.Rollback()
	s.tx = nil
	s.pending = 0
}

// bump counts a mutation and rolls the batch over at the boundary.
func (s *Store) bump() error {
	s.pending++
	if s.pending < s.batchSize {
		return nil
	}
	if err := s.End(); err != nil {
		return err
	}
	return s.Begin()
}

// exec runs a mutation inside the batch, rolling back on failure.
func (s *Store) exec(query string, args ...interface{}) error {
	if s.tx == nil {
		return osmerr.New(osmerr.KindInvariant, "no open transaction")
	}
	if _, err := s.tx.Exec(query, args...); err != nil {
		s.Rollback()
		return osmerr.Wrap(osmerr.KindStore, err)
	}
	return s.bump()
}

// Add appends a blob. A second append under the same (kind, id) is a
// de-duplicated no-op.
func (s *Store) Add(rec blob.Record) error {
	query := insertQuery(rec.Kind())
	switch r := rec.(type) {
	case *blob.NodeCoord:
		return s.exec(query, r.ID, r.Lat, r.Lon)
	case *blob.NodeInfo:
		return s.exec(query, r.ID, int(r.Class), r.Name, r.Abbrev, r.Ele, r.St, r.MinZoom)
	case *blob.WayInfo:
		return s.exec(query, r.ID, int(r.Class), r.Layer, r.Flags, r.Name, r.Abbrev, r.MinZoom)
	case *blob.WayRange:
		return s.exec(query, r.ID, r.Range.LatT, r.Range.LonL, r.Range.LatB, r.Range.LonR)
	case *blob.WayNds:
		return s.exec(query, r.ID, blob.EncodeNds(r.Nds))
	case *blob.RelInfo:
		return s.exec(query, r.ID, int(r.Class), int(r.Type), r.Center, r.Name, r.Abbrev, r.MinZoom)
	case *blob.RelRange:
		return s.exec(query, r.ID, r.Range.LatT, r.Range.LonL, r.Range.LatB, r.Range.LonR)
	case *blob.RelMembers:
		return s.exec(query, r.ID, blob.EncodeMembers(r.Members))
	}
	return osmerr.New(osmerr.KindInvariant, "unknown blob kind %v", rec.Kind())
}

// AddTileRef records that an object belongs to a tile bucket.
func (s *Store) AddTileRef(kind RefKind, zoom int, tid, ref int64) error {
	query := fmt.Sprintf(`INSERT OR IGNORE INTO %s (tid, ref) VALUES (?, ?)`,
		tileRefTable(kind, zoom))
	return s.exec(query, tid, ref)
}

// SetAttr stores process-wide metadata. Unlike blobs, attrs may be
// overwritten.
func (s *Store) SetAttr(key, value string) error {
	return s.exec(`INSERT OR REPLACE INTO attr (k, v) VALUES (?, ?)`, key, value)
}

// DeleteWayRange removes a way's range row.
func (s *Store) DeleteWayRange(wid int64) error {
	return s.exec(`DELETE FROM way_range WHERE wid = ?`, wid)
}

// DeleteRelRange removes a relation's range row.
func (s *Store) DeleteRelRange(rid int64) error {
	return s.exec(`DELETE FROM rel_range WHERE rid = ?`, rid)
}

// DeleteTileRefs removes every membership row for an object across the
// configured zooms.
func (s *Store) DeleteTileRefs(kind RefKind, ref int64) error {
	for _, z := range s.zooms {
		query := fmt.Sprintf(`DELETE FROM %s WHERE ref = ?`, tileRefTable(kind, z))
		if err := s.exec(query, ref); err != nil {
			return err
		}
	}
	return nil
}

// --- read path ---

// GetAttr reads process-wide metadata outside any cache.
func (s *Store) GetAttr(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT v FROM attr WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, osmerr.Wrap(osmerr.KindStore, err)
	}
	return v, true, nil
}

// ChangesetID returns the persisted largest changeset id, 0 when unset.
func (s *Store) ChangesetID() (int64, error) {
	v, ok, err := s.GetAttr(AttrChangeset)
	if err != nil || !ok {
		return 0, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, osmerr.Wrap(osmerr.KindStore, err)
	}
	return id, nil
}

// Handle pins a cached record. The record stays valid until Release.
type Handle struct {
	Rec blob.Record

	s *Store
	e *entry
}

// Release unpins the record; it must not be used afterwards.
func (h *Handle) Release() {
	if h.e != nil {
		h.s.cache.release(h.e)
		h.e = nil
	}
}

// Get looks up a blob. Returns (nil, nil) when the key is absent;
// missing blobs are an expected condition for the tile assembler.
// Concurrent gets of the same key share one materialization.
func (s *Store) Get(kind blob.Kind, id int64) (*Handle, error) {
	key := cacheKey{kind: kind, id: id}
	if e := s.cache.acquire(key); e != nil {
		return &Handle{Rec: e.rec, s: s, e: e}, nil
	}

	v, err, _ := s.group.Do(fmt.Sprintf("%d:%d", kind, id), func() (interface{}, error) {
		return s.load(kind, id)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	rec := v.(blob.Record)

	e := s.cache.insert(key, rec)
	return &Handle{Rec: e.rec, s: s, e: e}, nil
}

// load materializes a record from the engine. Returns (nil, nil) on a
// missing row.
func (s *Store) load(kind blob.Kind, id int64) (blob.Record, error) {
	row := s.db.QueryRow(selectQuery(kind), id)

	var rec blob.Record
	var err error
	switch kind {
	case blob.KindNodeCoord:
		r := &blob.NodeCoord{ID: id}
		err = row.Scan(&r.Lat, &r.Lon)
		rec = r
	case blob.KindNodeInfo:
		r := &blob.NodeInfo{ID: id}
		var cls int
		err = row.Scan(&cls, &r.Name, &r.Abbrev, &r.Ele, &r.St, &r.MinZoom)
		r.Class = class.Code(cls)
		rec = r
	case blob.KindWayInfo:
		r := &blob.WayInfo{ID: id}
		var cls int
		err = row.Scan(&cls, &r.Layer, &r.Flags, &r.Name, &r.Abbrev, &r.MinZoom)
		r.Class = class.Code(cls)
		rec = r
	case blob.KindWayRange:
		r := &blob.WayRange{ID: id}
		err = row.Scan(&r.Range.LatT, &r.Range.LonL, &r.Range.LatB, &r.Range.LonR)
		rec = r
	case blob.KindWayNds:
		r := &blob.WayNds{ID: id}
		var buf []byte
		err = row.Scan(&buf)
		if err == nil {
			r.Nds, err = blob.DecodeNds(buf)
		}
		rec = r
	case blob.KindRelInfo:
		r := &blob.RelInfo{ID: id}
		var cls, typ int
		err = row.Scan(&cls, &typ, &r.Center, &r.Name, &r.Abbrev, &r.MinZoom)
		r.Class = class.Code(cls)
		r.Type = blob.RelType(typ)
		rec = r
	case blob.KindRelRange:
		r := &blob.RelRange{ID: id}
		err = row.Scan(&r.Range.LatT, &r.Range.LonL, &r.Range.LatB, &r.Range.LonR)
		rec = r
	case blob.KindRelMembers:
		r := &blob.RelMembers{ID: id}
		var buf []byte
		err = row.Scan(&buf)
		if err == nil {
			r.Members, err = blob.DecodeMembers(buf)
		}
		rec = r
	default:
		return nil, osmerr.New(osmerr.KindInvariant, "unknown blob kind %v", kind)
	}

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, osmerr.Wrap(osmerr.KindStore, err)
	}
	return rec, nil
}

// TileRefs lists the object ids referenced by a tile bucket. Order is
// unspecified.
func (s *Store) TileRefs(kind RefKind, zoom int, tid int64) ([]int64, error) {
	query := fmt.Sprintf(`SELECT ref FROM %s WHERE tid = ?`, tileRefTable(kind, zoom))
	rows, err := s.db.Query(query, tid)
	if err != nil {
		return nil, osmerr.Wrap(osmerr.KindStore, err)
	}
	defer rows.Close()

	var refs []int64
	for rows.Next() {
		var ref int64
		if err := rows.Scan(&ref); err != nil {
			return nil, osmerr.Wrap(osmerr.KindStore, err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, osmerr.Wrap(osmerr.KindStore, err)
	}
	return refs, nil
}

// EachWayRange iterates every stored way range. Order is unspecified.
func (s *Store) EachWayRange(fn func(wid int64, b geo.BBox) error) error {
	return s.eachRange(`SELECT wid, latt, lonl, latb, lonr FROM way_range`, fn)
}

// EachRelRange iterates every stored relation range.
func (s *Store) EachRelRange(fn func(rid int64, b geo.BBox) error) error {
	return s.eachRange(`SELECT rid, latt, lonl, latb, lonr FROM rel_range`, fn)
}

func (s *Store) eachRange(query string, fn func(id int64, b geo.BBox) error) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return osmerr.Wrap(osmerr.KindStore, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var b geo.BBox
		if err := rows.Scan(&id, &b.LatT, &b.LonL, &b.LatB, &b.LonR); err != nil {
			return osmerr.Wrap(osmerr.KindStore, err)
		}
		if err := fn(id, b); err != nil {
			return err
		}
	}
	return osmerr.Wrap(osmerr.KindStore, rows.Err())
}

// HasWayRange reports whether a way already has a stored range. Used by
// the importer's second pass; bypasses the cache.
func (s *Store) HasWayRange(wid int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM way_range WHERE wid = ?`, wid).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, osmerr.Wrap(osmerr.KindStore, err)
	}
	return true, nil
}

// CacheStats exposes resident cache bytes and entries for logging.
func (s *Store) CacheStats() (bytes int64, entries int) {
	return s.cache.stats()
}

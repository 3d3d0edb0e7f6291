// Package changeset invalidates the parts of a store touched by OSM
// edits. Given a changeset metadata stream and a baseline id, it drops
// the range rows and tile references of every way and relation whose
// bbox overlaps a newer changeset's bbox. Dropped objects simply stop
// being served; a fresh import rebuilds them.
package changeset

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/jeffboody/osmdb-sub000/internal/geo"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
	"github.com/jeffboody/osmdb-sub000/internal/osmerr"
	"github.com/jeffboody/osmdb-sub000/internal/store"
)

// Stats counts what an apply did.
type Stats struct {
	Changesets   int64 // changesets newer than the baseline with a bbox
	DroppedWays  int64
	DroppedRels  int64
	NewChangeset int64 // persisted changeset id after the apply
}

// Applier drops invalidated ranges from a store.
type Applier struct {
	st  *store.Store
	log *zap.Logger
}

// New builds an applier over an open writable store.
func New(st *store.Store) *Applier {
	return &Applier{st: st, log: logger.Get()}
}

// Apply reads changeset metadata and invalidates overlapping objects.
// The persisted changeset id advances to the largest id seen, and only
// if every delete succeeds; it never decreases.
func (a *Applier) Apply(r io.Reader, baseline int64) (*Stats, error) {
	boxes, maxID, err := collect(r, baseline)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Changesets: int64(len(boxes))}
	current, err := a.st.ChangesetID()
	if err != nil {
		return nil, err
	}
	stats.NewChangeset = current

	if len(boxes) == 0 {
		// Nothing spatial to invalidate; the high-water mark still
		// advances past bbox-less changesets.
		if maxID > current {
			if err := a.st.Begin(); err != nil {
				return nil, err
			}
			if err := a.st.SetAttr(store.AttrChangeset, strconv.FormatInt(maxID, 10)); err != nil {
				return nil, err
			}
			if err := a.st.End(); err != nil {
				return nil, err
			}
			stats.NewChangeset = maxID
		}
		a.log.Info("no changesets newer than baseline",
			zap.Int64("baseline", baseline))
		return stats, nil
	}

	// Victims are gathered before the write transaction opens, since
	// range scans and batched deletes share the store.
	var ways, rels []int64
	err = a.st.EachWayRange(func(wid int64, b geo.BBox) error {
		if overlapsAny(b, boxes) {
			ways = append(ways, wid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = a.st.EachRelRange(func(rid int64, b geo.BBox) error {
		if overlapsAny(b, boxes) {
			rels = append(rels, rid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := a.st.Begin(); err != nil {
		return nil, err
	}
	for _, wid := range ways {
		if err := a.st.DeleteWayRange(wid); err != nil {
			return nil, err
		}
		if err := a.st.DeleteTileRefs(store.RefWay, wid); err != nil {
			return nil, err
		}
	}
	for _, rid := range rels {
		if err := a.st.DeleteRelRange(rid); err != nil {
			return nil, err
		}
		if err := a.st.DeleteTileRefs(store.RefRel, rid); err != nil {
			return nil, err
		}
	}
	if maxID > current {
		if err := a.st.SetAttr(store.AttrChangeset, strconv.FormatInt(maxID, 10)); err != nil {
			return nil, err
		}
		stats.NewChangeset = maxID
	}
	if err := a.st.End(); err != nil {
		return nil, err
	}

	stats.DroppedWays = int64(len(ways))
	stats.DroppedRels = int64(len(rels))
	a.log.Info("changesets applied",
		zap.Int64("changesets", stats.Changesets),
		zap.Int64("dropped_ways", stats.DroppedWays),
		zap.Int64("dropped_rels", stats.DroppedRels),
		zap.Int64("changeset", stats.NewChangeset))
	return stats, nil
}

// collect streams the metadata and keeps the bbox of every changeset
// newer than the baseline. Changesets without a bbox carry no edits and
// are skipped, though their ids still advance the high-water mark.
func collect(r io.Reader, baseline int64) ([]geo.BBox, int64, error) {
	dec := xml.NewDecoder(r)
	var boxes []geo.BBox
	var maxID int64

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, osmerr.Wrap(osmerr.KindParse, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "changeset" {
			continue
		}

		var cs osm.Changeset
		if err := dec.DecodeElement(&cs, &se); err != nil {
			return nil, 0, osmerr.Wrap(osmerr.KindParse, err)
		}
		id := int64(cs.ID)
		if id <= baseline {
			continue
		}
		if id > maxID {
			maxID = id
		}
		if cs.MinLat == 0 && cs.MaxLat == 0 && cs.MinLon == 0 && cs.MaxLon == 0 {
			continue
		}
		boxes = append(boxes, geo.BBox{
			LatT: cs.MaxLat,
			LonL: cs.MinLon,
			LatB: cs.MinLat,
			LonR: cs.MaxLon,
		})
	}
	return boxes, maxID, nil
}

func overlapsAny(b geo.BBox, boxes []geo.BBox) bool {
	for _, box := range boxes {
		if b.Overlaps(box) {
			return true
		}
	}
	return false
}

// Package importer turns parsed OSM entities into stored blobs. It
// applies the classifier to each entity's tags, runs the style sheet's
// selection rules, and emits the blob families plus per-zoom tile
// references. The import is two-pass: the streaming pass writes raw
// data and remembers which relations were selected; the finish pass
// computes ranges for transitively referenced ways and the relation
// ranges derived from them.
package importer

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/jeffboody/osmdb-sub000/internal/blob"
	"github.com/jeffboody/osmdb-sub000/internal/class"
	"github.com/jeffboody/osmdb-sub000/internal/config"
	"github.com/jeffboody/osmdb-sub000/internal/coordcache"
	"github.com/jeffboody/osmdb-sub000/internal/geo"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
	"github.com/jeffboody/osmdb-sub000/internal/osmxml"
	"github.com/jeffboody/osmdb-sub000/internal/store"
	"github.com/jeffboody/osmdb-sub000/internal/style"
)

// Stats counts what an import did.
type Stats struct {
	Nodes         int64
	Ways          int64
	Relations     int64
	SelectedNodes int64
	SelectedWays  int64
	SelectedRels  int64
	RangedWays    int64 // ways ranged transitively in the finish pass
}

// pendingRel is a selected relation whose range must be derived from
// member way ranges once the stream has been fully consumed.
type pendingRel struct {
	id      int64
	minZoom int
	ways    []int64
}

// Importer consumes parsed entities and writes the store. It is an
// osmxml.Sink; the PBF scanner feeds the same methods.
type Importer struct {
	sheet  *style.Sheet
	st     *store.Store
	coords coordcache.Cache
	log    *zap.Logger

	skip map[string]bool

	// Synthetic ids for centered ways count down from -2; -1 is the
	// reserved null id.
	nextSynth int64

	maxChangeset int64
	bounds       *osmxml.Bounds
	pending      []pendingRel

	stats Stats
}

// New builds an importer over an open store and coord cache. The store
// must not have an open transaction; Begin starts the batch.
func New(cfg *config.Config, sheet *style.Sheet, st *store.Store, coords coordcache.Cache) *Importer {
	skip := make(map[string]bool, len(cfg.SkipNames))
	for _, n := range cfg.SkipNames {
		skip[n] = true
	}
	return &Importer{
		sheet:     sheet,
		st:        st,
		coords:    coords,
		log:       logger.Get(),
		skip:      skip,
		nextSynth: -2,
	}
}

// Begin opens the store's batched transaction.
func (im *Importer) Begin() error {
	return im.st.Begin()
}

// Stats returns the counters accumulated so far.
func (im *Importer) Stats() Stats { return im.stats }

// feature is the classifier's per-entity scratch output.
type feature struct {
	class   class.Code
	name    string
	abbrev  string
	nameEn  bool
	ele     int32
	st      int
	layer   int
	flags   uint8
	relType blob.RelType
}

// classify applies tags in document order. A catalogue match overwrites
// the class only while the current class is generic; name:en takes
// precedence over name once seen.
func classify(tags []osmxml.Tag) feature {
	f := feature{class: class.None}
	var raw string
	for _, t := range tags {
		if code, ok := class.Of(t.K, t.V); ok {
			if class.IsGeneric(f.class) {
				f.class = code
			}
			continue
		}
		switch t.K {
		case "name":
			if !f.nameEn {
				raw = t.V
			}
		case "name:en":
			f.nameEn = true
			raw = t.V
		case "ele":
			f.ele = class.ParseElevation(t.V, false)
		case "ele:ft":
			f.ele = class.ParseElevation(t.V, true)
		case "gnis:ST_alpha", "gnis:state_id":
			f.st = class.ParseState(t.V)
		case "layer":
			f.layer, _ = strconv.Atoi(t.V)
		case "oneway":
			switch t.V {
			case "yes":
				f.flags |= blob.FlagForward
			case "-1":
				f.flags |= blob.FlagReverse
			}
		case "bridge":
			if truthy(t.V) {
				f.flags |= blob.FlagBridge
			}
		case "tunnel":
			if truthy(t.V) {
				f.flags |= blob.FlagTunnel
			}
		case "cutting":
			if truthy(t.V) {
				f.flags |= blob.FlagCutting
			}
		case "type":
			f.relType = blob.ParseRelType(t.V)
		}
	}
	f.name, f.abbrev = class.AbbreviateName(raw)
	return f
}

func truthy(v string) bool {
	return v == "yes" || v == "true" || v == "1"
}

// refZooms selects the configured zooms a feature with the given
// min_zoom is indexed at: every configured zoom at or below the
// feature's detail level, after clamping min_zoom up to the coarsest
// configured zoom. A min_zoom finer than the whole grid still gets the
// finest zoom so the feature stays reachable.
func (im *Importer) refZooms(minZoom int) []int {
	zooms := im.st.Zooms()
	eff := minZoom
	if eff < zooms[0] {
		eff = zooms[0]
	}
	var out []int
	for _, z := range zooms {
		if z >= eff {
			out = append(out, z)
		}
	}
	if len(out) == 0 {
		out = zooms[len(zooms)-1:]
	}
	return out
}

// addRangeRefs indexes a range at every applicable zoom.
func (im *Importer) addRangeRefs(kind store.RefKind, id int64, r geo.BBox, minZoom int) error {
	for _, z := range im.refZooms(minZoom) {
		tr := geo.RefRange(r, z)
		var err error
		tr.Each(func(x, y uint32) {
			if err != nil {
				return
			}
			err = im.st.AddTileRef(kind, z, geo.TileID(x, y, z), id)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// addPointRefs indexes a point in exactly its containing tile.
func (im *Importer) addPointRefs(kind store.RefKind, id int64, lat, lon float64, minZoom int) error {
	for _, z := range im.refZooms(minZoom) {
		t := geo.PointTile(lat, lon, z)
		if err := im.st.AddTileRef(kind, z, geo.TileIDOf(t), id); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) trackChangeset(cs int64) {
	if cs > im.maxChangeset {
		im.maxChangeset = cs
	}
}

// Bounds records the planet extent for attr persistence.
func (im *Importer) Bounds(b osmxml.Bounds) error {
	im.bounds = &b
	return nil
}

// Node handles a parsed node. Every node's coordinate goes to the coord
// cache; only style-selected named points get blobs.
func (im *Importer) Node(n *osmxml.Node) error {
	im.stats.Nodes++
	im.trackChangeset(n.Changeset)

	if err := im.coords.Set(n.ID, n.Lat, n.Lon); err != nil {
		return err
	}

	if len(n.Tags) == 0 {
		return nil
	}
	f := classify(n.Tags)
	if im.skip[f.name] {
		return nil
	}
	rule := im.sheet.Point(f.class)
	if rule == nil || f.name == "" {
		return nil
	}

	im.stats.SelectedNodes++
	if err := im.st.Add(&blob.NodeCoord{ID: n.ID, Lat: n.Lat, Lon: n.Lon}); err != nil {
		return err
	}
	info := &blob.NodeInfo{
		ID:      n.ID,
		Class:   f.class,
		Name:    f.name,
		Abbrev:  f.abbrev,
		Ele:     f.ele,
		St:      f.st,
		MinZoom: rule.MinZoom,
	}
	if err := im.st.Add(info); err != nil {
		return err
	}
	return im.addPointRefs(store.RefNode, n.ID, n.Lat, n.Lon, rule.MinZoom)
}

// Way handles a parsed way. way_info and way_nds are always stored;
// selection decides range, tile refs, and the centered point.
func (im *Importer) Way(w *osmxml.Way) error {
	im.stats.Ways++
	im.trackChangeset(w.Changeset)

	f := classify(w.Tags)
	if im.skip[f.name] {
		return nil
	}

	line := im.sheet.Line(f.class)
	poly := im.sheet.Poly(f.class)
	point := im.sheet.Point(f.class)

	minZoom, selected := minRuleZoom(line, poly)

	info := &blob.WayInfo{
		ID:      w.ID,
		Class:   f.class,
		Layer:   f.layer,
		Flags:   f.flags,
		Name:    f.name,
		Abbrev:  f.abbrev,
		MinZoom: minZoom,
	}
	if err := im.st.Add(info); err != nil {
		return err
	}
	if err := im.st.Add(&blob.WayNds{ID: w.ID, Nds: w.Nds}); err != nil {
		return err
	}

	// The range unions every node with a known coordinate. Missing
	// coords (upstream clipping) are skipped, never fatal.
	r := geo.NewEmptyBBox()
	for _, nid := range w.Nds {
		lat, lon, ok, err := im.coords.Get(nid)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		r.ExpandPoint(lat, lon)
		if err := im.st.Add(&blob.NodeCoord{ID: nid, Lat: lat, Lon: lon}); err != nil {
			return err
		}
	}

	if selected && r.IsValid() {
		im.stats.SelectedWays++
		if err := im.st.Add(&blob.WayRange{ID: w.ID, Range: r}); err != nil {
			return err
		}
		if err := im.addRangeRefs(store.RefWay, w.ID, r, minZoom); err != nil {
			return err
		}
	}

	// A point rule plus a name turns the way into a centered point at
	// the middle of its range, under a synthetic node id.
	if point != nil && f.name != "" && r.IsValid() {
		lat, lon := r.Center()
		nid := im.nextSynth
		im.nextSynth--
		if err := im.st.Add(&blob.NodeCoord{ID: nid, Lat: lat, Lon: lon}); err != nil {
			return err
		}
		center := &blob.NodeInfo{
			ID:      nid,
			Class:   f.class,
			Name:    f.name,
			Abbrev:  f.abbrev,
			Ele:     f.ele,
			St:      f.st,
			MinZoom: point.MinZoom,
		}
		if err := im.st.Add(center); err != nil {
			return err
		}
		if err := im.addPointRefs(store.RefNode, nid, lat, lon, point.MinZoom); err != nil {
			return err
		}
	}
	return nil
}

// Relation handles a parsed relation. Only recognized types with a
// selecting style rule are kept; their ranges are settled in Finish.
func (im *Importer) Relation(rel *osmxml.Relation) error {
	im.stats.Relations++
	im.trackChangeset(rel.Changeset)

	f := classify(rel.Tags)
	if im.skip[f.name] {
		return nil
	}
	if f.relType == blob.RelNone {
		return nil
	}

	line := im.sheet.Line(f.class)
	poly := im.sheet.Poly(f.class)
	point := im.sheet.Point(f.class)

	minZoom, selected := minRuleZoom(line, poly)
	if !selected {
		if point == nil || f.name == "" {
			return nil
		}
		minZoom = point.MinZoom
	}

	center := blob.InvalidID
	var members []blob.Member
	var ways []int64
	for _, m := range rel.Members {
		mt, ok := blob.ParseMemberType(m.Type)
		if !ok {
			continue
		}
		if mt == blob.MemberNode && m.Role == "admin_centre" {
			center = m.Ref
		}
		if mt == blob.MemberWay {
			ways = append(ways, m.Ref)
		}
		members = append(members, blob.Member{Type: mt, Ref: m.Ref, Role: m.Role})
	}

	im.stats.SelectedRels++
	info := &blob.RelInfo{
		ID:      rel.ID,
		Class:   f.class,
		Type:    f.relType,
		Center:  center,
		Name:    f.name,
		Abbrev:  f.abbrev,
		MinZoom: minZoom,
	}
	if err := im.st.Add(info); err != nil {
		return err
	}
	if err := im.st.Add(&blob.RelMembers{ID: rel.ID, Members: members}); err != nil {
		return err
	}

	if center != blob.InvalidID {
		if lat, lon, ok, err := im.coords.Get(center); err != nil {
			return err
		} else if ok {
			if err := im.st.Add(&blob.NodeCoord{ID: center, Lat: lat, Lon: lon}); err != nil {
				return err
			}
		}
	}

	im.pending = append(im.pending, pendingRel{id: rel.ID, minZoom: minZoom, ways: ways})
	return nil
}

// minRuleZoom returns the smallest min_zoom among the non-nil rules.
func minRuleZoom(rules ...*style.Rule) (int, bool) {
	minZoom := 0
	found := false
	for _, r := range rules {
		if r == nil {
			continue
		}
		if !found || r.MinZoom < minZoom {
			minZoom = r.MinZoom
		}
		found = true
	}
	return minZoom, found
}

// Finish runs the second pass: range transitively referenced member
// ways, derive relation ranges, persist attrs, and commit. The stream
// pass's batch is committed first so its rows are readable.
func (im *Importer) Finish() error {
	if err := im.st.End(); err != nil {
		return err
	}
	if err := im.st.Begin(); err != nil {
		return err
	}

	// Ranges resolved during this pass, so a way shared by two
	// relations is only computed once even though its row is not yet
	// committed.
	ranged := make(map[int64]geo.BBox)

	for _, pr := range im.pending {
		union := geo.NewEmptyBBox()
		for _, wid := range pr.ways {
			r, ok, err := im.wayRange(wid, ranged)
			if err != nil {
				return err
			}
			if ok {
				union.Expand(r)
			}
		}
		if !union.IsValid() {
			continue
		}
		if err := im.st.Add(&blob.RelRange{ID: pr.id, Range: union}); err != nil {
			return err
		}
		if err := im.addRangeRefs(store.RefRel, pr.id, union, pr.minZoom); err != nil {
			return err
		}
	}

	if im.maxChangeset > 0 {
		if err := im.st.SetAttr(store.AttrChangeset, strconv.FormatInt(im.maxChangeset, 10)); err != nil {
			return err
		}
	}
	if err := im.st.SetAttr(store.AttrSynth, strconv.FormatInt(im.nextSynth, 10)); err != nil {
		return err
	}
	if im.bounds != nil {
		v := fmt.Sprintf("%g,%g,%g,%g",
			im.bounds.MinLat, im.bounds.MinLon, im.bounds.MaxLat, im.bounds.MaxLon)
		if err := im.st.SetAttr(store.AttrBounds, v); err != nil {
			return err
		}
	}
	if err := im.st.End(); err != nil {
		return err
	}

	im.log.Info("import complete",
		zap.Int64("nodes", im.stats.Nodes),
		zap.Int64("ways", im.stats.Ways),
		zap.Int64("relations", im.stats.Relations),
		zap.Int64("selected_nodes", im.stats.SelectedNodes),
		zap.Int64("selected_ways", im.stats.SelectedWays),
		zap.Int64("selected_rels", im.stats.SelectedRels),
		zap.Int64("ranged_ways", im.stats.RangedWays),
		zap.Int64("changeset", im.maxChangeset))
	return nil
}

// wayRange returns a member way's range, computing and storing it from
// way_nds and the coord cache when the stream pass did not select the
// way.
func (im *Importer) wayRange(wid int64, ranged map[int64]geo.BBox) (geo.BBox, bool, error) {
	if r, ok := ranged[wid]; ok {
		return r, true, nil
	}

	has, err := im.st.HasWayRange(wid)
	if err != nil {
		return geo.BBox{}, false, err
	}
	if has {
		h, err := im.st.Get(blob.KindWayRange, wid)
		if err != nil {
			return geo.BBox{}, false, err
		}
		if h != nil {
			r := h.Rec.(*blob.WayRange).Range
			h.Release()
			ranged[wid] = r
			return r, true, nil
		}
	}

	h, err := im.st.Get(blob.KindWayNds, wid)
	if err != nil {
		return geo.BBox{}, false, err
	}
	if h == nil {
		// Member way absent from the input; tolerated like missing
		// coords.
		return geo.BBox{}, false, nil
	}
	nds := h.Rec.(*blob.WayNds).Nds
	h.Release()

	r := geo.NewEmptyBBox()
	for _, nid := range nds {
		lat, lon, ok, err := im.coords.Get(nid)
		if err != nil {
			return geo.BBox{}, false, err
		}
		if ok {
			r.ExpandPoint(lat, lon)
		}
	}
	if !r.IsValid() {
		return geo.BBox{}, false, nil
	}
	if err := im.st.Add(&blob.WayRange{ID: wid, Range: r}); err != nil {
		return geo.BBox{}, false, err
	}
	ranged[wid] = r
	im.stats.RangedWays++
	return r, true, nil
}

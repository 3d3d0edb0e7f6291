// Package kml appends auxiliary KML overlays (wilderness areas,
// national monuments and similar designations) to an existing store.
// Placemark polygons are materialized as synthetic ways with negative
// ids, split at the per-way node budget, and linked under one covering
// relation per placemark.
package kml

import (
	"encoding/xml"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jeffboody/osmdb-sub000/internal/blob"
	"github.com/jeffboody/osmdb-sub000/internal/class"
	"github.com/jeffboody/osmdb-sub000/internal/geo"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
	"github.com/jeffboody/osmdb-sub000/internal/osmerr"
	"github.com/jeffboody/osmdb-sub000/internal/store"
	"github.com/jeffboody/osmdb-sub000/internal/style"
)

// maxWayNodes is the per-way node budget; longer rings are split into
// consecutive ways of at most this many nodes.
const maxWayNodes = 64

// designations maps the overlay's classification strings to catalogue
// classes. The PROPOSAL field prefixes a designation with "Proposed".
var designations = map[string]string{
	"Wilderness":                       "kml:wilderness",
	"Special Management Area":          "kml:special_management_area",
	"National Monument":                "kml:national_monument",
	"Wild and Scenic River":            "kml:wild_and_scenic_river",
	"Proposed Wilderness":              "kml:proposed_wilderness",
	"Proposed Special Management Area": "kml:proposed_special_management_area",
}

// On-disk KML layout, reduced to the elements consumed.
type kmlFile struct {
	Document document `xml:"Document"`
}

type document struct {
	Folders    []folder    `xml:"Folder"`
	Placemarks []placemark `xml:"Placemark"`
}

type folder struct {
	Folders    []folder    `xml:"Folder"`
	Placemarks []placemark `xml:"Placemark"`
}

type placemark struct {
	Name       string       `xml:"name"`
	SimpleData []simpleData `xml:"ExtendedData>SchemaData>SimpleData"`
	Polygons   []polygon    `xml:"Polygon"`
	MultiGeo   []polygon    `xml:"MultiGeometry>Polygon"`
}

type simpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type polygon struct {
	Outer []linearRing `xml:"outerBoundaryIs>LinearRing"`
	Inner []linearRing `xml:"innerBoundaryIs>LinearRing"`
}

type linearRing struct {
	Coordinates string `xml:"coordinates"`
}

// Stats counts what an overlay import did.
type Stats struct {
	Placemarks int64
	Ways       int64
	Nodes      int64
	Skipped    int64
}

// Importer appends overlays to an open store.
type Importer struct {
	sheet *style.Sheet
	st    *store.Store
	log   *zap.Logger

	nextSynth int64
	stats     Stats
}

// New builds an overlay importer. The synthetic id counter resumes from
// the store's attr so ids from earlier imports are never reused.
func New(sheet *style.Sheet, st *store.Store) (*Importer, error) {
	im := &Importer{
		sheet:     sheet,
		st:        st,
		log:       logger.Get(),
		nextSynth: -2,
	}
	v, ok, err := st.GetAttr(store.AttrSynth)
	if err != nil {
		return nil, err
	}
	if ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, osmerr.Wrap(osmerr.KindStore, err)
		}
		im.nextSynth = n
	}
	return im, nil
}

// Stats returns the counters accumulated so far.
func (im *Importer) Stats() Stats { return im.stats }

// Run imports every file inside one batched transaction and persists
// the advanced synthetic id counter.
func (im *Importer) Run(paths ...string) error {
	if err := im.st.Begin(); err != nil {
		return err
	}
	for _, path := range paths {
		if err := im.importFile(path); err != nil {
			im.st.Rollback()
			return err
		}
	}
	if err := im.st.SetAttr(store.AttrSynth, strconv.FormatInt(im.nextSynth, 10)); err != nil {
		return err
	}
	if err := im.st.End(); err != nil {
		return err
	}
	im.log.Info("kml import complete",
		zap.Int64("placemarks", im.stats.Placemarks),
		zap.Int64("ways", im.stats.Ways),
		zap.Int64("nodes", im.stats.Nodes),
		zap.Int64("skipped", im.stats.Skipped))
	return nil
}

func (im *Importer) importFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return osmerr.Wrap(osmerr.KindIo, err)
	}
	var file kmlFile
	if err := xml.Unmarshal(data, &file); err != nil {
		return osmerr.Wrap(osmerr.KindParse, err)
	}

	for i := range file.Document.Placemarks {
		if err := im.placemark(&file.Document.Placemarks[i]); err != nil {
			return err
		}
	}
	return im.folders(file.Document.Folders)
}

func (im *Importer) folders(folders []folder) error {
	for i := range folders {
		for j := range folders[i].Placemarks {
			if err := im.placemark(&folders[i].Placemarks[j]); err != nil {
				return err
			}
		}
		if err := im.folders(folders[i].Folders); err != nil {
			return err
		}
	}
	return nil
}

// classOf resolves the placemark's designation, honoring a PROPOSAL
// marker. Unknown designations are a classify warning, not an error.
func (im *Importer) classOf(p *placemark) (class.Code, bool) {
	var designation string
	proposed := false
	for _, sd := range p.SimpleData {
		switch sd.Name {
		case "Designation":
			designation = strings.TrimSpace(sd.Value)
		case "PROPOSAL":
			proposed = truthy(strings.TrimSpace(sd.Value))
		}
	}
	if designation == "" {
		return class.None, false
	}
	if proposed {
		designation = "Proposed " + designation
	}
	name, ok := designations[designation]
	if !ok {
		im.log.Warn("unknown kml designation", zap.String("designation", designation))
		return class.None, false
	}
	code, ok := class.OfName(name)
	if !ok {
		im.log.Warn("kml designation missing from catalogue", zap.String("class", name))
		return class.None, false
	}
	return code, true
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

// ring is one boundary with its member role.
type ring struct {
	coords []coord
	role   string
}

type coord struct {
	lat, lon float64
}

func (im *Importer) placemark(p *placemark) error {
	code, ok := im.classOf(p)
	if !ok {
		im.stats.Skipped++
		return nil
	}

	var rings []ring
	polys := append(append([]polygon(nil), p.Polygons...), p.MultiGeo...)
	for _, poly := range polys {
		for _, lr := range poly.Outer {
			coords, err := parseCoordinates(lr.Coordinates)
			if err != nil {
				return err
			}
			rings = append(rings, ring{coords: coords, role: "outer"})
		}
		for _, lr := range poly.Inner {
			coords, err := parseCoordinates(lr.Coordinates)
			if err != nil {
				return err
			}
			rings = append(rings, ring{coords: coords, role: "inner"})
		}
	}
	if len(rings) == 0 {
		im.stats.Skipped++
		return nil
	}
	im.stats.Placemarks++

	name, abbrev := class.AbbreviateName(p.Name)
	minZoom, _ := minRuleZoom(im.sheet.Line(code), im.sheet.Poly(code))

	// Repeated coordinates share one synthetic node, so closed rings
	// reference the same node at both ends.
	nodeIDs := make(map[coord]int64)

	union := geo.NewEmptyBBox()
	var members []blob.Member
	for _, rg := range rings {
		wids, r, err := im.emitRing(rg, code, name, abbrev, minZoom, nodeIDs)
		if err != nil {
			return err
		}
		union.Expand(r)
		for _, wid := range wids {
			members = append(members, blob.Member{Type: blob.MemberWay, Ref: wid, Role: rg.role})
		}
	}
	if !union.IsValid() {
		return nil
	}

	rid := im.nextSynth
	im.nextSynth--
	info := &blob.RelInfo{
		ID:      rid,
		Class:   code,
		Type:    blob.RelMultipolygon,
		Center:  blob.InvalidID,
		Name:    name,
		Abbrev:  abbrev,
		MinZoom: minZoom,
	}
	if err := im.st.Add(info); err != nil {
		return err
	}
	if err := im.st.Add(&blob.RelMembers{ID: rid, Members: members}); err != nil {
		return err
	}
	if err := im.st.Add(&blob.RelRange{ID: rid, Range: union}); err != nil {
		return err
	}
	return im.addRangeRefs(store.RefRel, rid, union, minZoom)
}

// emitRing materializes one ring as consecutive synthetic ways of at
// most maxWayNodes nodes each.
func (im *Importer) emitRing(rg ring, code class.Code, name, abbrev string, minZoom int, nodeIDs map[coord]int64) ([]int64, geo.BBox, error) {
	nds := make([]int64, 0, len(rg.coords))
	r := geo.NewEmptyBBox()
	for _, c := range rg.coords {
		nid, seen := nodeIDs[c]
		if !seen {
			nid = im.nextSynth
			im.nextSynth--
			nodeIDs[c] = nid
			if err := im.st.Add(&blob.NodeCoord{ID: nid, Lat: c.lat, Lon: c.lon}); err != nil {
				return nil, r, err
			}
			im.stats.Nodes++
		}
		nds = append(nds, nid)
		r.ExpandPoint(c.lat, c.lon)
	}

	var wids []int64
	for start := 0; start < len(nds); start += maxWayNodes {
		end := start + maxWayNodes
		if end > len(nds) {
			end = len(nds)
		}
		wid := im.nextSynth
		im.nextSynth--
		wids = append(wids, wid)
		im.stats.Ways++

		seg := nds[start:end]
		segRange := geo.NewEmptyBBox()
		for _, c := range rg.coords[start:end] {
			segRange.ExpandPoint(c.lat, c.lon)
		}

		info := &blob.WayInfo{
			ID:      wid,
			Class:   code,
			Name:    name,
			Abbrev:  abbrev,
			MinZoom: minZoom,
		}
		if err := im.st.Add(info); err != nil {
			return nil, r, err
		}
		if err := im.st.Add(&blob.WayNds{ID: wid, Nds: seg}); err != nil {
			return nil, r, err
		}
		if err := im.st.Add(&blob.WayRange{ID: wid, Range: segRange}); err != nil {
			return nil, r, err
		}
	}
	return wids, r, nil
}

func (im *Importer) addRangeRefs(kind store.RefKind, id int64, r geo.BBox, minZoom int) error {
	zooms := im.st.Zooms()
	eff := minZoom
	if eff < zooms[0] {
		eff = zooms[0]
	}
	indexed := false
	for _, z := range zooms {
		if z < eff {
			continue
		}
		if err := im.addRefsAt(kind, id, r, z); err != nil {
			return err
		}
		indexed = true
	}
	if !indexed {
		return im.addRefsAt(kind, id, r, zooms[len(zooms)-1])
	}
	return nil
}

func (im *Importer) addRefsAt(kind store.RefKind, id int64, r geo.BBox, z int) error {
	tr := geo.RefRange(r, z)
	var err error
	tr.Each(func(x, y uint32) {
		if err != nil {
			return
		}
		err = im.st.AddTileRef(kind, z, geo.TileID(x, y, z), id)
	})
	return err
}

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

// parseCoordinates splits the whitespace-separated "lon,lat[,alt]"
// triples of a <coordinates> element.
func parseCoordinates(text string) ([]coord, error) {
	fields := strings.Fields(text)
	coords := make([]coord, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) < 2 {
			return nil, osmerr.New(osmerr.KindParse, "malformed kml coordinate %q", f)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, osmerr.New(osmerr.KindParse, "malformed kml longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, osmerr.New(osmerr.KindParse, "malformed kml latitude %q", parts[1])
		}
		coords = append(coords, coord{lat: lat, lon: lon})
	}
	return coords, nil
}

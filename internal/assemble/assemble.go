// Package assemble answers tile requests: it resolves every object a
// tile bucket references, transitively pulls the ways and nodes those
// objects need, and streams the result as one XML payload. Missing
// blobs are an expected condition (upstream clipping, changeset
// invalidation) and are silently omitted.
package assemble

import (
	"encoding/xml"
	"errors"
	"io"
	"sort"
	"strconv"

	"github.com/jeffboody/osmdb-sub000/internal/blob"
	"github.com/jeffboody/osmdb-sub000/internal/class"
	"github.com/jeffboody/osmdb-sub000/internal/geo"
	"github.com/jeffboody/osmdb-sub000/internal/store"
)

// ErrZoom is returned for a requested zoom coarser than the store's
// whole grid; there is no tile to assemble there.
var ErrZoom = errors.New("no supported zoom at or below the requested zoom")

// Assembler resolves tile requests against a store. Safe for
// concurrent use; each request is synchronous on its caller.
type Assembler struct {
	st *store.Store
}

// New builds an assembler over an open store.
func New(st *store.Store) *Assembler {
	return &Assembler{st: st}
}

// node is a resolved node: always a coordinate, sometimes info.
type node struct {
	id       int64
	lat, lon float64
	info     *blob.NodeInfo
}

// way is a resolved way with its ordered node list.
type way struct {
	id   int64
	info *blob.WayInfo
	nds  []int64
}

// rel is a resolved relation with its member list.
type rel struct {
	id   int64
	info *blob.RelInfo
	mems []blob.Member
}

// Tile assembles one tile and writes the payload. The request zoom is
// mapped to the nearest supported zoom at or below it; x and y are in
// the requested zoom's grid.
func (a *Assembler) Tile(zoom int, x, y uint32, w io.Writer) error {
	zooms := a.st.Zooms()
	if zoom < zooms[0] {
		return ErrZoom
	}
	zs := zooms[0]
	for _, z := range zooms {
		if z <= zoom {
			zs = z
		}
	}
	shift := uint(zoom - zs)
	tid := geo.TileID(x>>shift, y>>shift, zs)

	nodes := make(map[int64]*node)
	ways := make(map[int64]*way)
	rels := make(map[int64]*rel)

	relRefs, err := a.st.TileRefs(store.RefRel, zs, tid)
	if err != nil {
		return err
	}
	for _, rid := range relRefs {
		if err := a.pullRel(rid, rels, ways, nodes); err != nil {
			return err
		}
	}

	wayRefs, err := a.st.TileRefs(store.RefWay, zs, tid)
	if err != nil {
		return err
	}
	for _, wid := range wayRefs {
		if err := a.pullWay(wid, ways, nodes); err != nil {
			return err
		}
	}

	nodeRefs, err := a.st.TileRefs(store.RefNode, zs, tid)
	if err != nil {
		return err
	}
	for _, nid := range nodeRefs {
		if err := a.pullNode(nid, true, nodes); err != nil {
			return err
		}
	}

	return write(w, zoom, x, y, nodes, ways, rels)
}

func (a *Assembler) pullRel(rid int64, rels map[int64]*rel, ways map[int64]*way, nodes map[int64]*node) error {
	if _, ok := rels[rid]; ok {
		return nil
	}
	h, err := a.st.Get(blob.KindRelInfo, rid)
	if err != nil {
		return err
	}
	if h == nil {
		return nil
	}
	info := *h.Rec.(*blob.RelInfo)
	h.Release()

	r := &rel{id: rid, info: &info}
	rels[rid] = r

	h, err = a.st.Get(blob.KindRelMembers, rid)
	if err != nil {
		return err
	}
	if h != nil {
		r.mems = append([]blob.Member(nil), h.Rec.(*blob.RelMembers).Members...)
		h.Release()
	}

	for _, m := range r.mems {
		switch m.Type {
		case blob.MemberWay:
			if err := a.pullWay(m.Ref, ways, nodes); err != nil {
				return err
			}
		case blob.MemberNode:
			if err := a.pullNode(m.Ref, true, nodes); err != nil {
				return err
			}
		}
	}
	if info.Center != blob.InvalidID {
		return a.pullNode(info.Center, true, nodes)
	}
	return nil
}

func (a *Assembler) pullWay(wid int64, ways map[int64]*way, nodes map[int64]*node) error {
	if _, ok := ways[wid]; ok {
		return nil
	}
	h, err := a.st.Get(blob.KindWayInfo, wid)
	if err != nil {
		return err
	}
	if h == nil {
		return nil
	}
	info := *h.Rec.(*blob.WayInfo)
	h.Release()

	wy := &way{id: wid, info: &info}
	ways[wid] = wy

	h, err = a.st.Get(blob.KindWayNds, wid)
	if err != nil {
		return err
	}
	if h != nil {
		wy.nds = append([]int64(nil), h.Rec.(*blob.WayNds).Nds...)
		h.Release()
	}

	for _, nid := range wy.nds {
		if err := a.pullNode(nid, false, nodes); err != nil {
			return err
		}
	}
	return nil
}

// pullNode resolves a node's coordinate and, when wantInfo is set or
// the node was already pulled with info, its node_info.
func (a *Assembler) pullNode(nid int64, wantInfo bool, nodes map[int64]*node) error {
	n, ok := nodes[nid]
	if ok && (!wantInfo || n.info != nil) {
		return nil
	}
	if !ok {
		h, err := a.st.Get(blob.KindNodeCoord, nid)
		if err != nil {
			return err
		}
		if h == nil {
			return nil
		}
		coord := h.Rec.(*blob.NodeCoord)
		n = &node{id: nid, lat: coord.Lat, lon: coord.Lon}
		h.Release()
		nodes[nid] = n
	}
	if wantInfo && n.info == nil {
		h, err := a.st.Get(blob.KindNodeInfo, nid)
		if err != nil {
			return err
		}
		if h != nil {
			info := *h.Rec.(*blob.NodeInfo)
			n.info = &info
			h.Release()
		}
	}
	return nil
}

// write streams the payload: nodes, then ways, then relations, each
// category in ascending id order.
func write(w io.Writer, zoom int, x, y uint32, nodes map[int64]*node, ways map[int64]*way, rels map[int64]*rel) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", " ")

	root := elem("osmdb",
		attr("v", "4"),
		attr("zoom", strconv.Itoa(zoom)),
		attr("x", strconv.FormatUint(uint64(x), 10)),
		attr("y", strconv.FormatUint(uint64(y), 10)))
	if err := enc.EncodeToken(root); err != nil {
		return err
	}

	nodeIDs := make([]int64, 0, len(nodes))
	for id := range nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sortIDs(nodeIDs)
	for _, id := range nodeIDs {
		if err := writeNode(enc, nodes[id]); err != nil {
			return err
		}
	}

	wayIDs := make([]int64, 0, len(ways))
	for id := range ways {
		wayIDs = append(wayIDs, id)
	}
	sortIDs(wayIDs)
	for _, id := range wayIDs {
		if err := writeWay(enc, ways[id]); err != nil {
			return err
		}
	}

	relIDs := make([]int64, 0, len(rels))
	for id := range rels {
		relIDs = append(relIDs, id)
	}
	sortIDs(relIDs)
	for _, id := range relIDs {
		if err := writeRel(enc, rels[id]); err != nil {
			return err
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	return enc.Flush()
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func writeNode(enc *xml.Encoder, n *node) error {
	attrs := []xml.Attr{
		attr("id", strconv.FormatInt(n.id, 10)),
		attr("lat", strconv.FormatFloat(n.lat, 'f', -1, 64)),
		attr("lon", strconv.FormatFloat(n.lon, 'f', -1, 64)),
	}
	if info := n.info; info != nil {
		attrs = append(attrs, attr("class", class.Name(info.Class)))
		if info.Name != "" {
			attrs = append(attrs, attr("name", info.Name))
		}
		if info.Abbrev != "" {
			attrs = append(attrs, attr("abbrev", info.Abbrev))
		}
		if info.Ele != 0 {
			attrs = append(attrs, attr("ele", strconv.FormatInt(int64(info.Ele), 10)))
		}
		if info.St != 0 {
			attrs = append(attrs, attr("st", strconv.Itoa(info.St)))
		}
		attrs = append(attrs, attr("minzoom", strconv.Itoa(info.MinZoom)))
	}
	se := xml.StartElement{Name: xml.Name{Local: "node"}, Attr: attrs}
	if err := enc.EncodeToken(se); err != nil {
		return err
	}
	return enc.EncodeToken(se.End())
}

func writeWay(enc *xml.Encoder, wy *way) error {
	info := wy.info
	attrs := []xml.Attr{
		attr("id", strconv.FormatInt(wy.id, 10)),
		attr("class", class.Name(info.Class)),
	}
	if info.Name != "" {
		attrs = append(attrs, attr("name", info.Name))
	}
	if info.Abbrev != "" {
		attrs = append(attrs, attr("abbrev", info.Abbrev))
	}
	if info.Layer != 0 {
		attrs = append(attrs, attr("layer", strconv.Itoa(info.Layer)))
	}
	if info.Flags&blob.FlagForward != 0 {
		attrs = append(attrs, attr("oneway", "1"))
	}
	if info.Flags&blob.FlagReverse != 0 {
		attrs = append(attrs, attr("oneway", "-1"))
	}
	if info.Flags&blob.FlagBridge != 0 {
		attrs = append(attrs, attr("bridge", "1"))
	}
	if info.Flags&blob.FlagTunnel != 0 {
		attrs = append(attrs, attr("tunnel", "1"))
	}
	if info.Flags&blob.FlagCutting != 0 {
		attrs = append(attrs, attr("cutting", "1"))
	}
	attrs = append(attrs, attr("minzoom", strconv.Itoa(info.MinZoom)))

	se := xml.StartElement{Name: xml.Name{Local: "way"}, Attr: attrs}
	if err := enc.EncodeToken(se); err != nil {
		return err
	}
	for _, nid := range wy.nds {
		nd := xml.StartElement{
			Name: xml.Name{Local: "nd"},
			Attr: []xml.Attr{attr("ref", strconv.FormatInt(nid, 10))},
		}
		if err := enc.EncodeToken(nd); err != nil {
			return err
		}
		if err := enc.EncodeToken(nd.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(se.End())
}

func writeRel(enc *xml.Encoder, r *rel) error {
	info := r.info
	attrs := []xml.Attr{
		attr("id", strconv.FormatInt(r.id, 10)),
		attr("class", class.Name(info.Class)),
		attr("type", info.Type.String()),
	}
	if info.Name != "" {
		attrs = append(attrs, attr("name", info.Name))
	}
	if info.Abbrev != "" {
		attrs = append(attrs, attr("abbrev", info.Abbrev))
	}
	if info.Center != blob.InvalidID {
		attrs = append(attrs, attr("center", strconv.FormatInt(info.Center, 10)))
	}
	attrs = append(attrs, attr("minzoom", strconv.Itoa(info.MinZoom)))

	se := xml.StartElement{Name: xml.Name{Local: "relation"}, Attr: attrs}
	if err := enc.EncodeToken(se); err != nil {
		return err
	}
	for _, m := range r.mems {
		me := xml.StartElement{
			Name: xml.Name{Local: "member"},
			Attr: []xml.Attr{
				attr("type", m.Type.String()),
				attr("ref", strconv.FormatInt(m.Ref, 10)),
				attr("role", m.Role),
			},
		}
		if err := enc.EncodeToken(me); err != nil {
			return err
		}
		if err := enc.EncodeToken(me.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(se.End())
}

func elem(name string, attrs ...xml.Attr) xml.StartElement {
	return xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

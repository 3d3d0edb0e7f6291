// Package blob defines the typed record families the store persists.
// Every record is immutable once built and keyed by (kind, id).
package blob

import (
	"github.com/jeffboody/osmdb-sub000/internal/class"
	"github.com/jeffboody/osmdb-sub000/internal/geo"
)

// InvalidID is the reserved null object id.
const InvalidID int64 = -1

// Kind identifies a blob family.
type Kind int

const (
	KindNodeCoord Kind = iota
	KindNodeInfo
	KindWayInfo
	KindWayRange
	KindWayNds
	KindRelInfo
	KindRelRange
	KindRelMembers
)

func (k Kind) String() string {
	switch k {
	case KindNodeCoord:
		return "node_coord"
	case KindNodeInfo:
		return "node_info"
	case KindWayInfo:
		return "way_info"
	case KindWayRange:
		return "way_range"
	case KindWayNds:
		return "way_nds"
	case KindRelInfo:
		return "rel_info"
	case KindRelRange:
		return "rel_range"
	case KindRelMembers:
		return "rel_members"
	}
	return "unknown"
}

// Way flag bits.
const (
	FlagForward uint8 = 1 << iota
	FlagReverse
	FlagBridge
	FlagTunnel
	FlagCutting
)

// RelType is the recognized relation type.
type RelType int

const (
	RelNone RelType = iota
	RelBoundary
	RelMultipolygon
)

func (t RelType) String() string {
	switch t {
	case RelBoundary:
		return "boundary"
	case RelMultipolygon:
		return "multipolygon"
	}
	return "none"
}

// ParseRelType maps an OSM type tag value to a RelType.
func ParseRelType(s string) RelType {
	switch s {
	case "boundary":
		return RelBoundary
	case "multipolygon":
		return RelMultipolygon
	}
	return RelNone
}

// MemberType is the kind of object a relation member references.
type MemberType int

const (
	MemberNode MemberType = iota
	MemberWay
	MemberRelation
)

func (t MemberType) String() string {
	switch t {
	case MemberNode:
		return "node"
	case MemberWay:
		return "way"
	case MemberRelation:
		return "relation"
	}
	return "unknown"
}

// ParseMemberType maps the member type attribute to a MemberType. The
// second return is false for unrecognized types.
func ParseMemberType(s string) (MemberType, bool) {
	switch s {
	case "node":
		return MemberNode, true
	case "way":
		return MemberWay, true
	case "relation":
		return MemberRelation, true
	}
	return MemberNode, false
}

// Record is any stored blob.
type Record interface {
	Kind() Kind
	BlobID() int64
	// Cost is the approximate resident byte size, used by the store's
	// cache for LRU accounting.
	Cost() int64
}

// NodeCoord is the coordinate of a referenced node.
type NodeCoord struct {
	ID  int64
	Lat float64
	Lon float64
}

func (*NodeCoord) Kind() Kind      { return KindNodeCoord }
func (r *NodeCoord) BlobID() int64 { return r.ID }
func (r *NodeCoord) Cost() int64   { return 24 }

// NodeInfo describes a node selected by the style as a named point.
type NodeInfo struct {
	ID      int64
	Class   class.Code
	Name    string
	Abbrev  string
	Ele     int32 // elevation in feet
	St      int   // FIPS state code, 0 when unknown
	MinZoom int
}

func (*NodeInfo) Kind() Kind      { return KindNodeInfo }
func (r *NodeInfo) BlobID() int64 { return r.ID }
func (r *NodeInfo) Cost() int64   { return 40 + int64(len(r.Name)+len(r.Abbrev)) }

// WayInfo describes a way; one exists for every way seen.
type WayInfo struct {
	ID      int64
	Class   class.Code
	Layer   int
	Flags   uint8
	Name    string
	Abbrev  string
	MinZoom int
}

func (*WayInfo) Kind() Kind      { return KindWayInfo }
func (r *WayInfo) BlobID() int64 { return r.ID }
func (r *WayInfo) Cost() int64   { return 48 + int64(len(r.Name)+len(r.Abbrev)) }

// WayRange is the bounding box of a selected or transitively
// referenced way.
type WayRange struct {
	ID    int64
	Range geo.BBox
}

func (*WayRange) Kind() Kind      { return KindWayRange }
func (r *WayRange) BlobID() int64 { return r.ID }
func (r *WayRange) Cost() int64   { return 40 }

// WayNds is the ordered node list of a way. Order is preserved exactly.
type WayNds struct {
	ID  int64
	Nds []int64
}

func (*WayNds) Kind() Kind      { return KindWayNds }
func (r *WayNds) BlobID() int64 { return r.ID }
func (r *WayNds) Cost() int64   { return 16 + int64(len(r.Nds))*8 }

// RelInfo describes a relation selected by the style.
type RelInfo struct {
	ID      int64
	Class   class.Code
	Type    RelType
	Center  int64 // admin_centre node id, InvalidID when absent
	Name    string
	Abbrev  string
	MinZoom int
}

func (*RelInfo) Kind() Kind      { return KindRelInfo }
func (r *RelInfo) BlobID() int64 { return r.ID }
func (r *RelInfo) Cost() int64   { return 56 + int64(len(r.Name)+len(r.Abbrev)) }

// RelRange is the bounding box of a relation, derived from member way
// ranges.
type RelRange struct {
	ID    int64
	Range geo.BBox
}

func (*RelRange) Kind() Kind      { return KindRelRange }
func (r *RelRange) BlobID() int64 { return r.ID }
func (r *RelRange) Cost() int64   { return 40 }

// Member is one relation member.
type Member struct {
	Type MemberType
	Ref  int64
	Role string
}

// RelMembers is a relation's member list.
type RelMembers struct {
	ID      int64
	Members []Member
}

func (*RelMembers) Kind() Kind      { return KindRelMembers }
func (r *RelMembers) BlobID() int64 { return r.ID }
func (r *RelMembers) Cost() int64 {
	cost := int64(16)
	for _, m := range r.Members {
		cost += 24 + int64(len(m.Role))
	}
	return cost
}

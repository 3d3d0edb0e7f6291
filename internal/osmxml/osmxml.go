// Package osmxml turns the XML tokenizer's event stream into typed OSM
// entities via an explicit state machine. Unknown elements are dropped
// with a counted subtree discard, so unknown nodes nested inside
// unknown nodes cannot corrupt the state.
package osmxml

// Tag is one k/v tag in document order. Order matters: classification
// is sensitive to which tag is seen first.
type Tag struct {
	K, V string
}

// Node is a parsed <node> element.
type Node struct {
	ID        int64
	Lat, Lon  float64
	Changeset int64
	Tags      []Tag
}

// Way is a parsed <way> element. Nds preserves document order exactly.
type Way struct {
	ID        int64
	Changeset int64
	Tags      []Tag
	Nds       []int64
}

// Member is one <member> of a relation, with the raw type string.
type Member struct {
	Type string
	Ref  int64
	Role string
}

// Relation is a parsed <relation> element.
type Relation struct {
	ID        int64
	Changeset int64
	Tags      []Tag
	Members   []Member
}

// Bounds is the planet extent from the <bounds> header.
type Bounds struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Sink receives entities as they complete. The entity values are
// scratch storage owned by the parser and reused between calls; a sink
// that retains data must copy it.
type Sink interface {
	Bounds(b Bounds) error
	Node(n *Node) error
	Way(w *Way) error
	Relation(r *Relation) error
}

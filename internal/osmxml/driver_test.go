package osmxml

import (
	"errors"
	"strings"
	"testing"

	"github.com/jeffboody/osmdb-sub000/internal/osmerr"
)

// recordingSink copies every entity it receives.
type recordingSink struct {
	bounds []Bounds
	nodes  []Node
	ways   []Way
	rels   []Relation
}

func (s *recordingSink) Bounds(b Bounds) error {
	s.bounds = append(s.bounds, b)
	return nil
}

func (s *recordingSink) Node(n *Node) error {
	c := *n
	c.Tags = append([]Tag(nil), n.Tags...)
	s.nodes = append(s.nodes, c)
	return nil
}

func (s *recordingSink) Way(w *Way) error {
	c := *w
	c.Tags = append([]Tag(nil), w.Tags...)
	c.Nds = append([]int64(nil), w.Nds...)
	s.ways = append(s.ways, c)
	return nil
}

func (s *recordingSink) Relation(r *Relation) error {
	c := *r
	c.Tags = append([]Tag(nil), r.Tags...)
	c.Members = append([]Member(nil), r.Members...)
	s.rels = append(s.rels, c)
	return nil
}

func parse(t *testing.T, doc string) *recordingSink {
	t.Helper()
	sink := &recordingSink{}
	if err := Parse(strings.NewReader(doc), sink); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return sink
}

func TestParseNode(t *testing.T) {
	sink := parse(t, `<osm>
		<node id="1" lat="40.0" lon="-105.0" changeset="77">
			<tag k="natural" v="peak"/>
			<tag k="name" v="Long Peak"/>
			<tag k="ele" v="4345"/>
		</node>
	</osm>`)

	if len(sink.nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(sink.nodes))
	}
	n := sink.nodes[0]
	if n.ID != 1 || n.Lat != 40.0 || n.Lon != -105.0 || n.Changeset != 77 {
		t.Errorf("node = %+v", n)
	}
	want := []Tag{{"natural", "peak"}, {"name", "Long Peak"}, {"ele", "4345"}}
	if len(n.Tags) != len(want) {
		t.Fatalf("got %d tags, want %d", len(n.Tags), len(want))
	}
	for i, tag := range want {
		if n.Tags[i] != tag {
			t.Errorf("tag[%d] = %v, want %v", i, n.Tags[i], tag)
		}
	}
}

func TestParseWayPreservesNdOrder(t *testing.T) {
	sink := parse(t, `<osm>
		<way id="10">
			<nd ref="5"/><nd ref="3"/><nd ref="9"/><nd ref="3"/>
			<tag k="highway" v="residential"/>
		</way>
	</osm>`)

	if len(sink.ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(sink.ways))
	}
	w := sink.ways[0]
	want := []int64{5, 3, 9, 3}
	if len(w.Nds) != len(want) {
		t.Fatalf("nds = %v, want %v", w.Nds, want)
	}
	for i := range want {
		if w.Nds[i] != want[i] {
			t.Errorf("nds[%d] = %d, want %d", i, w.Nds[i], want[i])
		}
	}
}

func TestParseRelation(t *testing.T) {
	sink := parse(t, `<osm>
		<relation id="30">
			<tag k="type" v="multipolygon"/>
			<member type="way" ref="10" role="outer"/>
			<member type="node" ref="1" role="admin_centre"/>
		</relation>
	</osm>`)

	if len(sink.rels) != 1 {
		t.Fatalf("got %d relations, want 1", len(sink.rels))
	}
	r := sink.rels[0]
	if len(r.Members) != 2 {
		t.Fatalf("members = %+v", r.Members)
	}
	if r.Members[0] != (Member{Type: "way", Ref: 10, Role: "outer"}) {
		t.Errorf("member[0] = %+v", r.Members[0])
	}
	if r.Members[1] != (Member{Type: "node", Ref: 1, Role: "admin_centre"}) {
		t.Errorf("member[1] = %+v", r.Members[1])
	}
}

func TestParseBounds(t *testing.T) {
	sink := parse(t, `<osm>
		<bounds minlat="39" minlon="-106" maxlat="41" maxlon="-104"/>
		<node id="1" lat="40" lon="-105"/>
	</osm>`)
	if len(sink.bounds) != 1 {
		t.Fatalf("got %d bounds, want 1", len(sink.bounds))
	}
	b := sink.bounds[0]
	if b.MinLat != 39 || b.MaxLon != -104 {
		t.Errorf("bounds = %+v", b)
	}
	if len(sink.nodes) != 1 {
		t.Error("node after bounds was lost")
	}
}

func TestUnknownSubtreesDiscarded(t *testing.T) {
	// Unknown elements nested inside unknown elements must not corrupt
	// the state machine.
	sink := parse(t, `<osm>
		<mystery><deeper><deepest/></deeper></mystery>
		<node id="1" lat="40" lon="-105">
			<oddity><tag k="ignored" v="yes"/></oddity>
			<tag k="natural" v="peak"/>
		</node>
	</osm>`)

	if len(sink.nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(sink.nodes))
	}
	n := sink.nodes[0]
	if len(n.Tags) != 1 || n.Tags[0].K != "natural" {
		t.Errorf("tags = %+v, want only natural=peak", n.Tags)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown top-level element", `<planet></planet>`},
		{"nd ref zero", `<osm><way id="1"><nd ref="0"/></way></osm>`},
		{"malformed node id", `<osm><node id="abc" lat="1" lon="2"/></osm>`},
		{"malformed lat", `<osm><node id="1" lat="north" lon="2"/></osm>`},
		{"node without id", `<osm><node lat="1" lon="2"/></osm>`},
		{"truncated input", `<osm><node id="1" lat="1" lon="2">`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse(strings.NewReader(tt.doc), &recordingSink{})
			if err == nil {
				t.Fatal("expected parse error")
			}
			if osmerr.KindOf(err) != osmerr.KindParse {
				t.Errorf("kind = %v, want parse", osmerr.KindOf(err))
			}
		})
	}
}

func TestSinkErrorPropagates(t *testing.T) {
	want := errors.New("sink rejected")
	err := Parse(strings.NewReader(`<osm><node id="1" lat="1" lon="2"/></osm>`),
		&failingSink{err: want})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want sink error", err)
	}
}

type failingSink struct {
	recordingSink
	err error
}

func (s *failingSink) Node(*Node) error { return s.err }

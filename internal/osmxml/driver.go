package osmxml

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/jeffboody/osmdb-sub000/internal/osmerr"
)

// Parser states. The pair (state, element name) drives every
// transition; anything else is either a discard or a parse error.
type state int

const (
	stInit state = iota
	stOsm
	stNode
	stNodeTag
	stWay
	stWayTag
	stWayNd
	stRel
	stRelTag
	stRelMember
	stDone
)

// lineReader counts newlines flowing to the tokenizer so parse errors
// can name an input line. Accurate to the tokenizer's read-ahead.
type lineReader struct {
	r    io.Reader
	line int
}

func (lr *lineReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	for _, b := range p[:n] {
		if b == '\n' {
			lr.line++
		}
	}
	return n, err
}

// Driver consumes one XML stream and feeds a Sink. Not reusable.
type Driver struct {
	dec  *xml.Decoder
	lr   *lineReader
	sink Sink
	st   state

	// Discarded subtree depth. Counted, not stacked: nesting unknown
	// elements inside unknown elements just moves the counter.
	discard int

	// Scratch entities, cleared and reused between elements to keep
	// allocations bounded.
	node Node
	way  Way
	rel  Relation
}

// Parse runs the driver over an XML stream until </osm> or an error.
func Parse(r io.Reader, sink Sink) error {
	lr := &lineReader{r: r, line: 1}
	d := &Driver{
		dec:  xml.NewDecoder(lr),
		lr:   lr,
		sink: sink,
		st:   stInit,
	}
	return d.run()
}

// line reports the current input line for error messages.
func (d *Driver) line() int {
	return d.lr.line
}

func (d *Driver) parseErr(id int64, format string, args ...interface{}) error {
	return osmerr.New(osmerr.KindParse, format, args...).WithID(id).WithLine(d.line())
}

func (d *Driver) run() error {
	for {
		tok, err := d.dec.Token()
		if err == io.EOF {
			if d.st != stDone {
				return d.parseErr(-1, "unexpected end of input in state %d", d.st)
			}
			return nil
		}
		if err != nil {
			return osmerr.Wrap(osmerr.KindParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if d.discard > 0 {
				d.discard++
				continue
			}
			if err := d.start(t); err != nil {
				return err
			}
		case xml.EndElement:
			if d.discard > 0 {
				d.discard--
				continue
			}
			if err := d.end(t); err != nil {
				return err
			}
		}
	}
}

func (d *Driver) start(t xml.StartElement) error {
	name := t.Name.Local
	switch d.st {
	case stInit:
		if name != "osm" {
			return d.parseErr(-1, "unknown top-level element <%s>", name)
		}
		d.st = stOsm

	case stOsm:
		switch name {
		case "bounds":
			b, err := d.parseBounds(t.Attr)
			if err != nil {
				return err
			}
			if err := d.sink.Bounds(b); err != nil {
				return err
			}
			d.discard = 1
		case "node":
			if err := d.beginNode(t.Attr); err != nil {
				return err
			}
			d.st = stNode
		case "way":
			if err := d.beginWay(t.Attr); err != nil {
				return err
			}
			d.st = stWay
		case "relation":
			if err := d.beginRelation(t.Attr); err != nil {
				return err
			}
			d.st = stRel
		default:
			d.discard = 1
		}

	case stNode:
		if name == "tag" {
			d.node.Tags = appendTag(d.node.Tags, t.Attr)
			d.st = stNodeTag
		} else {
			d.discard = 1
		}

	case stWay:
		switch name {
		case "tag":
			d.way.Tags = appendTag(d.way.Tags, t.Attr)
			d.st = stWayTag
		case "nd":
			ref, err := d.parseNdRef(t.Attr)
			if err != nil {
				return err
			}
			d.way.Nds = append(d.way.Nds, ref)
			d.st = stWayNd
		default:
			d.discard = 1
		}

	case stRel:
		switch name {
		case "tag":
			d.rel.Tags = appendTag(d.rel.Tags, t.Attr)
			d.st = stRelTag
		case "member":
			d.rel.Members = append(d.rel.Members, parseMember(t.Attr))
			d.st = stRelMember
		default:
			d.discard = 1
		}

	case stNodeTag, stWayTag, stWayNd, stRelTag, stRelMember:
		// Leaf elements have no known children.
		d.discard = 1

	case stDone:
		return d.parseErr(-1, "element <%s> after </osm>", name)
	}
	return nil
}

func (d *Driver) end(t xml.EndElement) error {
	name := t.Name.Local
	switch d.st {
	case stOsm:
		if name != "osm" {
			return d.parseErr(-1, "mismatched </%s>", name)
		}
		d.st = stDone

	case stNode:
		if name != "node" {
			return d.parseErr(d.node.ID, "mismatched </%s>", name)
		}
		if err := d.sink.Node(&d.node); err != nil {
			return err
		}
		d.st = stOsm

	case stNodeTag:
		if name != "tag" {
			return d.parseErr(d.node.ID, "mismatched </%s>", name)
		}
		d.st = stNode

	case stWay:
		if name != "way" {
			return d.parseErr(d.way.ID, "mismatched </%s>", name)
		}
		if err := d.sink.Way(&d.way); err != nil {
			return err
		}
		d.st = stOsm

	case stWayTag:
		if name != "tag" {
			return d.parseErr(d.way.ID, "mismatched </%s>", name)
		}
		d.st = stWay

	case stWayNd:
		if name != "nd" {
			return d.parseErr(d.way.ID, "mismatched </%s>", name)
		}
		d.st = stWay

	case stRel:
		if name != "relation" {
			return d.parseErr(d.rel.ID, "mismatched </%s>", name)
		}
		if err := d.sink.Relation(&d.rel); err != nil {
			return err
		}
		d.st = stOsm

	case stRelTag:
		if name != "tag" {
			return d.parseErr(d.rel.ID, "mismatched </%s>", name)
		}
		d.st = stRel

	case stRelMember:
		if name != "member" {
			return d.parseErr(d.rel.ID, "mismatched </%s>", name)
		}
		d.st = stRel

	default:
		return d.parseErr(-1, "mismatched </%s> in state %d", name, d.st)
	}
	return nil
}

func (d *Driver) beginNode(attrs []xml.Attr) error {
	d.node = Node{ID: -1, Tags: d.node.Tags[:0]}
	for _, a := range attrs {
		var err error
		switch a.Name.Local {
		case "id":
			d.node.ID, err = strconv.ParseInt(a.Value, 10, 64)
		case "lat":
			d.node.Lat, err = strconv.ParseFloat(a.Value, 64)
		case "lon":
			d.node.Lon, err = strconv.ParseFloat(a.Value, 64)
		case "changeset":
			d.node.Changeset, err = strconv.ParseInt(a.Value, 10, 64)
		}
		if err != nil {
			return d.parseErr(d.node.ID, "malformed node attribute %s=%q", a.Name.Local, a.Value)
		}
	}
	if d.node.ID == -1 {
		return d.parseErr(-1, "node without id")
	}
	return nil
}

func (d *Driver) beginWay(attrs []xml.Attr) error {
	d.way = Way{ID: -1, Tags: d.way.Tags[:0], Nds: d.way.Nds[:0]}
	for _, a := range attrs {
		var err error
		switch a.Name.Local {
		case "id":
			d.way.ID, err = strconv.ParseInt(a.Value, 10, 64)
		case "changeset":
			d.way.Changeset, err = strconv.ParseInt(a.Value, 10, 64)
		}
		if err != nil {
			return d.parseErr(d.way.ID, "malformed way attribute %s=%q", a.Name.Local, a.Value)
		}
	}
	if d.way.ID == -1 {
		return d.parseErr(-1, "way without id")
	}
	return nil
}

func (d *Driver) beginRelation(attrs []xml.Attr) error {
	d.rel = Relation{ID: -1, Tags: d.rel.Tags[:0], Members: d.rel.Members[:0]}
	for _, a := range attrs {
		var err error
		switch a.Name.Local {
		case "id":
			d.rel.ID, err = strconv.ParseInt(a.Value, 10, 64)
		case "changeset":
			d.rel.Changeset, err = strconv.ParseInt(a.Value, 10, 64)
		}
		if err != nil {
			return d.parseErr(d.rel.ID, "malformed relation attribute %s=%q", a.Name.Local, a.Value)
		}
	}
	if d.rel.ID == -1 {
		return d.parseErr(-1, "relation without id")
	}
	return nil
}

func (d *Driver) parseNdRef(attrs []xml.Attr) (int64, error) {
	for _, a := range attrs {
		if a.Name.Local == "ref" {
			ref, err := strconv.ParseInt(a.Value, 10, 64)
			if err != nil {
				return 0, d.parseErr(d.way.ID, "malformed nd ref=%q", a.Value)
			}
			if ref == 0 {
				return 0, d.parseErr(d.way.ID, "nd with ref=0")
			}
			return ref, nil
		}
	}
	return 0, d.parseErr(d.way.ID, "nd without ref")
}

func (d *Driver) parseBounds(attrs []xml.Attr) (Bounds, error) {
	var b Bounds
	for _, a := range attrs {
		var err error
		switch a.Name.Local {
		case "minlat":
			b.MinLat, err = strconv.ParseFloat(a.Value, 64)
		case "minlon":
			b.MinLon, err = strconv.ParseFloat(a.Value, 64)
		case "maxlat":
			b.MaxLat, err = strconv.ParseFloat(a.Value, 64)
		case "maxlon":
			b.MaxLon, err = strconv.ParseFloat(a.Value, 64)
		}
		if err != nil {
			return b, d.parseErr(-1, "malformed bounds attribute %s=%q", a.Name.Local, a.Value)
		}
	}
	return b, nil
}

func appendTag(tags []Tag, attrs []xml.Attr) []Tag {
	var k, v string
	for _, a := range attrs {
		switch a.Name.Local {
		case "k":
			k = a.Value
		case "v":
			v = a.Value
		}
	}
	if k == "" {
		return tags
	}
	return append(tags, Tag{K: k, V: v})
}

func parseMember(attrs []xml.Attr) Member {
	var m Member
	for _, a := range attrs {
		switch a.Name.Local {
		case "type":
			m.Type = a.Value
		case "ref":
			m.Ref, _ = strconv.ParseInt(a.Value, 10, 64)
		case "role":
			m.Role = a.Value
		}
	}
	return m
}

// Package pbf feeds PBF extracts into the same entity sink the XML
// driver targets, so the importer does not care which container the
// planet arrived in.
package pbf

import (
	"context"
	"io"
	"runtime"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"github.com/jeffboody/osmdb-sub000/internal/osmerr"
	"github.com/jeffboody/osmdb-sub000/internal/osmxml"
)

// Parse scans a PBF stream and replays it into sink. The scanner
// decodes blocks in parallel internally; entities are delivered to the
// sink serially, in file order.
func Parse(ctx context.Context, r io.Reader, sink osmxml.Sink) error {
	scanner := osmpbf.New(ctx, r, runtime.NumCPU())
	defer scanner.Close()

	// Scratch entities, reused like the XML driver's.
	var node osmxml.Node
	var way osmxml.Way
	var rel osmxml.Relation

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			node = osmxml.Node{
				ID:        int64(o.ID),
				Lat:       o.Lat,
				Lon:       o.Lon,
				Changeset: int64(o.ChangesetID),
				Tags:      convertTags(o.Tags, node.Tags[:0]),
			}
			if err := sink.Node(&node); err != nil {
				return err
			}
		case *osm.Way:
			nds := way.Nds[:0]
			for _, wn := range o.Nodes {
				nds = append(nds, int64(wn.ID))
			}
			way = osmxml.Way{
				ID:        int64(o.ID),
				Changeset: int64(o.ChangesetID),
				Tags:      convertTags(o.Tags, way.Tags[:0]),
				Nds:       nds,
			}
			if err := sink.Way(&way); err != nil {
				return err
			}
		case *osm.Relation:
			members := rel.Members[:0]
			for _, m := range o.Members {
				members = append(members, osmxml.Member{
					Type: string(m.Type),
					Ref:  m.Ref,
					Role: m.Role,
				})
			}
			rel = osmxml.Relation{
				ID:        int64(o.ID),
				Changeset: int64(o.ChangesetID),
				Tags:      convertTags(o.Tags, rel.Tags[:0]),
				Members:   members,
			}
			if err := sink.Relation(&rel); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return osmerr.Wrap(osmerr.KindParse, err)
	}
	return nil
}

func convertTags(tags osm.Tags, dst []osmxml.Tag) []osmxml.Tag {
	for _, t := range tags {
		dst = append(dst, osmxml.Tag{K: t.Key, V: t.Value})
	}
	return dst
}

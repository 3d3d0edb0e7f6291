package store

import (
	"database/sql"
	"fmt"

	"github.com/jeffboody/osmdb-sub000/internal/blob"
)

// RefKind selects one of the three tile reference families.
type RefKind int

const (
	RefNode RefKind = iota
	RefWay
	RefRel
)

func (k RefKind) String() string {
	switch k {
	case RefNode:
		return "node"
	case RefWay:
		return "way"
	case RefRel:
		return "rel"
	}
	return "unknown"
}

// tileRefTable names the membership table for a ref kind and zoom,
// e.g. tile_ref_way_14.
func tileRefTable(kind RefKind, zoom int) string {
	return fmt.Sprintf("tile_ref_%s_%d", kind, zoom)
}

var blobTables = []string{
	`CREATE TABLE IF NOT EXISTS attr (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS node_coord (
		nid  INTEGER PRIMARY KEY,
		lat  REAL NOT NULL,
		lon  REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS node_info (
		nid      INTEGER PRIMARY KEY,
		class    INTEGER NOT NULL,
		name     TEXT NOT NULL,
		abbrev   TEXT NOT NULL,
		ele      INTEGER NOT NULL,
		st       INTEGER NOT NULL,
		min_zoom INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS way_info (
		wid      INTEGER PRIMARY KEY,
		class    INTEGER NOT NULL,
		layer    INTEGER NOT NULL,
		flags    INTEGER NOT NULL,
		name     TEXT NOT NULL,
		abbrev   TEXT NOT NULL,
		min_zoom INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS way_range (
		wid  INTEGER PRIMARY KEY,
		latt REAL NOT NULL,
		lonl REAL NOT NULL,
		latb REAL NOT NULL,
		lonr REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS way_nds (
		wid INTEGER PRIMARY KEY,
		nds BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rel_info (
		rid      INTEGER PRIMARY KEY,
		class    INTEGER NOT NULL,
		type     INTEGER NOT NULL,
		center   INTEGER NOT NULL,
		name     TEXT NOT NULL,
		abbrev   TEXT NOT NULL,
		min_zoom INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rel_range (
		rid  INTEGER PRIMARY KEY,
		latt REAL NOT NULL,
		lonl REAL NOT NULL,
		latb REAL NOT NULL,
		lonr REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rel_members (
		rid     INTEGER PRIMARY KEY,
		members BLOB NOT NULL
	)`,
}

// ensureSchema creates the fixed blob tables plus one tile reference
// table per (kind, zoom).
func ensureSchema(db *sql.DB, zooms []int) error {
	for _, stmt := range blobTables {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, z := range zooms {
		for _, kind := range []RefKind{RefNode, RefWay, RefRel} {
			stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				tid INTEGER NOT NULL,
				ref INTEGER NOT NULL,
				PRIMARY KEY (tid, ref)
			) WITHOUT ROWID`, tileRefTable(kind, z))
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to create tile ref table: %w", err)
			}
		}
	}
	return nil
}

// insertQuery returns the INSERT OR IGNORE statement for a blob kind.
// The OR IGNORE clause is the content de-duplication: a second append
// of the same (kind, id) is a no-op.
func insertQuery(kind blob.Kind) string {
	switch kind {
	case blob.KindNodeCoord:
		return `INSERT OR IGNORE INTO node_coord (nid, lat, lon) VALUES (?, ?, ?)`
	case blob.KindNodeInfo:
		return `INSERT OR IGNORE INTO node_info (nid, class, name, abbrev, ele, st, min_zoom)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	case blob.KindWayInfo:
		return `INSERT OR IGNORE INTO way_info (wid, class, layer, flags, name, abbrev, min_zoom)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	case blob.KindWayRange:
		return `INSERT OR IGNORE INTO way_range (wid, latt, lonl, latb, lonr) VALUES (?, ?, ?, ?, ?)`
	case blob.KindWayNds:
		return `INSERT OR IGNORE INTO way_nds (wid, nds) VALUES (?, ?)`
	case blob.KindRelInfo:
		return `INSERT OR IGNORE INTO rel_info (rid, class, type, center, name, abbrev, min_zoom)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	case blob.KindRelRange:
		return `INSERT OR IGNORE INTO rel_range (rid, latt, lonl, latb, lonr) VALUES (?, ?, ?, ?, ?)`
	case blob.KindRelMembers:
		return `INSERT OR IGNORE INTO rel_members (rid, members) VALUES (?, ?)`
	}
	return ""
}

// selectQuery returns the point-lookup statement for a blob kind.
func selectQuery(kind blob.Kind) string {
	switch kind {
	case blob.KindNodeCoord:
		return `SELECT lat, lon FROM node_coord WHERE nid = ?`
	case blob.KindNodeInfo:
		return `SELECT class, name, abbrev, ele, st, min_zoom FROM node_info WHERE nid = ?`
	case blob.KindWayInfo:
		return `SELECT class, layer, flags, name, abbrev, min_zoom FROM way_info WHERE wid = ?`
	case blob.KindWayRange:
		return `SELECT latt, lonl, latb, lonr FROM way_range WHERE wid = ?`
	case blob.KindWayNds:
		return `SELECT nds FROM way_nds WHERE wid = ?`
	case blob.KindRelInfo:
		return `SELECT class, type, center, name, abbrev, min_zoom FROM rel_info WHERE rid = ?`
	case blob.KindRelRange:
		return `SELECT latt, lonl, latb, lonr FROM rel_range WHERE rid = ?`
	case blob.KindRelMembers:
		return `SELECT members FROM rel_members WHERE rid = ?`
	}
	return ""
}

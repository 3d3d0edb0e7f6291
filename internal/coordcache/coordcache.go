// Package coordcache remembers node coordinates during import. A planet
// has more nodes than fit in memory, so rows live in fixed-size pages
// backed by a single file, with a byte-budgeted LRU of resident pages.
package coordcache

import (
	"container/list"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/jeffboody/osmdb-sub000/internal/osmerr"
)

const (
	// PageSize is the fixed on-disk page size.
	PageSize = 4096
	// entrySize is the per-node payload: lat and lon as float64.
	entrySize = 16
	// entriesPerPage is PageSize / entrySize.
	entriesPerPage = PageSize / entrySize
)

// Cache is the node id -> coordinate map used by the importer.
type Cache interface {
	// Set stores a node's coordinates. Negative ids are ignored.
	Set(nid int64, lat, lon float64) error
	// Get retrieves a node's coordinates; ok is false when absent.
	Get(nid int64) (lat, lon float64, ok bool, err error)
	// Sync flushes dirty state to disk.
	Sync() error
	Close() error
}

// page is one resident 4 KiB page.
type page struct {
	base  int64 // file offset, PageSize-aligned
	buf   []byte
	dirty bool
	elem  *list.Element
}

// Paged is the default write-through paged backend.
type Paged struct {
	file   *os.File
	size   int64 // current file size
	budget int64 // resident page byte budget
	used   int64
	lru    *list.List // front = most recently used
	pages  map[int64]*page
}

// NewPaged creates or truncates the backing file. budget is the byte
// budget for resident pages.
func NewPaged(path string, budget int64) (*Paged, error) {
	if budget < PageSize {
		budget = PageSize
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, osmerr.Wrap(osmerr.KindIo, err)
	}
	return &Paged{
		file:   f,
		budget: budget,
		lru:    list.New(),
		pages:  make(map[int64]*page),
	}, nil
}

// pageBase returns the aligned file offset of the page holding nid.
func pageBase(nid int64) int64 {
	return (nid * entrySize) &^ (PageSize - 1)
}

// fetch returns the resident page for base, loading or zero-filling it.
func (c *Paged) fetch(base int64) (*page, error) {
	if p, ok := c.pages[base]; ok {
		c.lru.MoveToFront(p.elem)
		return p, nil
	}

	p := &page{base: base, buf: make([]byte, PageSize)}
	if base < c.size {
		if _, err := c.file.ReadAt(p.buf, base); err != nil && err != io.EOF {
			return nil, osmerr.Wrap(osmerr.KindIo, err)
		}
	}

	p.elem = c.lru.PushFront(p)
	c.pages[base] = p
	c.used += PageSize

	if err := c.evict(); err != nil {
		return nil, err
	}
	return p, nil
}

// evict flushes and drops cold pages until the budget is met.
func (c *Paged) evict() error {
	for c.used > c.budget && c.lru.Len() > 1 {
		elem := c.lru.Back()
		p := elem.Value.(*page)
		if err := c.flush(p); err != nil {
			return err
		}
		c.lru.Remove(elem)
		delete(c.pages, p.base)
		c.used -= PageSize
	}
	return nil
}

// flush writes a dirty page back. Writing past EOF zero-extends the
// file up to the page's offset.
func (c *Paged) flush(p *page) error {
	if !p.dirty {
		return nil
	}
	if _, err := c.file.WriteAt(p.buf, p.base); err != nil {
		return osmerr.Wrap(osmerr.KindIo, err)
	}
	if end := p.base + PageSize; end > c.size {
		c.size = end
	}
	p.dirty = false
	return nil
}

// Set stores a node's coordinates.
func (c *Paged) Set(nid int64, lat, lon float64) error {
	if nid < 0 {
		return nil
	}
	p, err := c.fetch(pageBase(nid))
	if err != nil {
		return err
	}
	off := (nid % entriesPerPage) * entrySize
	binary.LittleEndian.PutUint64(p.buf[off:], math.Float64bits(lat))
	binary.LittleEndian.PutUint64(p.buf[off+8:], math.Float64bits(lon))
	p.dirty = true
	return nil
}

// Get retrieves a node's coordinates. An all-zero row reads as absent;
// a node at exactly (0, 0) is indistinguishable, the same trade the
// rest of the pipeline makes.
func (c *Paged) Get(nid int64) (lat, lon float64, ok bool, err error) {
	if nid < 0 {
		return 0, 0, false, nil
	}
	p, err := c.fetch(pageBase(nid))
	if err != nil {
		return 0, 0, false, err
	}
	off := (nid % entriesPerPage) * entrySize
	latBits := binary.LittleEndian.Uint64(p.buf[off:])
	lonBits := binary.LittleEndian.Uint64(p.buf[off+8:])
	if latBits == 0 && lonBits == 0 {
		return 0, 0, false, nil
	}
	return math.Float64frombits(latBits), math.Float64frombits(lonBits), true, nil
}

// Sync flushes every dirty page.
func (c *Paged) Sync() error {
	for _, p := range c.pages {
		if err := c.flush(p); err != nil {
			return err
		}
	}
	return osmerr.Wrap(osmerr.KindIo, c.file.Sync())
}

// Close flushes and closes the backing file.
func (c *Paged) Close() error {
	if err := c.Sync(); err != nil {
		c.file.Close()
		return err
	}
	return osmerr.Wrap(osmerr.KindIo, c.file.Close())
}

// Resident returns the number of resident pages, for logging.
func (c *Paged) Resident() int {
	return c.lru.Len()
}

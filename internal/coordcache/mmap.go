package coordcache

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/jeffboody/osmdb-sub000/internal/osmerr"
)

// maxNodeID bounds the mmap backend's address space. The file is
// sparse, so disk usage tracks only the pages actually written.
const maxNodeID = 10_000_000_000

// Mmap is an alternative coord cache backend that maps one giant
// sparse file and lets the kernel do the paging. Faster on machines
// with plenty of RAM; the paged backend is the predictable default.
type Mmap struct {
	file *os.File
	data mmap.MMap
}

// NewMmap creates a sparse mmap-backed cache.
func NewMmap(path string) (*Mmap, error) {
	size := int64(maxNodeID) * entrySize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, osmerr.Wrap(osmerr.KindIo, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, osmerr.Wrap(osmerr.KindIo, err)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, osmerr.Wrap(osmerr.KindIo, err)
	}
	return &Mmap{file: f, data: data}, nil
}

// Set stores a node's coordinates.
func (m *Mmap) Set(nid int64, lat, lon float64) error {
	if nid < 0 || nid >= maxNodeID {
		return nil
	}
	off := nid * entrySize
	binary.LittleEndian.PutUint64(m.data[off:], math.Float64bits(lat))
	binary.LittleEndian.PutUint64(m.data[off+8:], math.Float64bits(lon))
	return nil
}

// Get retrieves a node's coordinates.
func (m *Mmap) Get(nid int64) (lat, lon float64, ok bool, err error) {
	if nid < 0 || nid >= maxNodeID {
		return 0, 0, false, nil
	}
	off := nid * entrySize
	latBits := binary.LittleEndian.Uint64(m.data[off:])
	lonBits := binary.LittleEndian.Uint64(m.data[off+8:])
	if latBits == 0 && lonBits == 0 {
		return 0, 0, false, nil
	}
	return math.Float64frombits(latBits), math.Float64frombits(lonBits), true, nil
}

// Sync flushes mapped pages to disk.
func (m *Mmap) Sync() error {
	return osmerr.Wrap(osmerr.KindIo, m.data.Flush())
}

// Close unmaps and closes the backing file.
func (m *Mmap) Close() error {
	if err := m.data.Unmap(); err != nil {
		m.file.Close()
		return osmerr.Wrap(osmerr.KindIo, err)
	}
	return osmerr.Wrap(osmerr.KindIo, m.file.Close())
}

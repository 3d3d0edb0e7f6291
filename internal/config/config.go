package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ZoomsCurrent is the tile grid used by osmdbv4 stores.
var ZoomsCurrent = []int{11, 14}

// ZoomsLegacy is the grid older stores were built with.
var ZoomsLegacy = []int{9, 12, 15}

// ParseZooms parses a comma-separated zoom list, e.g. "11,14" or "9,12,15".
// The result is sorted ascending and must be non-empty with all zooms in
// [0, 21] and no duplicates.
func ParseZooms(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("zoom set must not be empty")
	}
	parts := strings.Split(s, ",")
	zooms := make([]int, 0, len(parts))
	for _, p := range parts {
		z, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid zoom %q: %w", p, err)
		}
		if z < 0 || z > 21 {
			return nil, fmt.Errorf("zoom %d out of range [0, 21]", z)
		}
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)
	for i := 1; i < len(zooms); i++ {
		if zooms[i] == zooms[i-1] {
			return nil, fmt.Errorf("duplicate zoom %d", zooms[i])
		}
	}
	return zooms, nil
}

// FormatZooms renders a zoom set back to the "11,14" form stored in attr.
func FormatZooms(zooms []int) string {
	parts := make([]string, len(zooms))
	for i, z := range zooms {
		parts[i] = strconv.Itoa(z)
	}
	return strings.Join(parts, ",")
}

// Config holds the global configuration for import and serving
type Config struct {
	// Input settings
	InputFile string
	StyleFile string

	// Store settings
	StorePath  string
	BatchSize  int   // Mutations per store transaction
	CacheBytes int64 // Byte budget for the store's record cache

	// Coord cache settings
	CoordCachePath  string
	CoordCacheBytes int64  // Byte budget for resident pages
	CoordIndex      string // "paged" (default) or "mmap"

	// Tile grid; persisted in the store so reads cannot diverge
	Zooms []int

	// Importer behavior
	SkipNames []string // Feature names discarded at the CLI layer

	// Server settings
	ListenAddr string

	// Logging and metrics
	Verbose         bool
	LogFile         string
	MetricsInterval time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BatchSize:       10000,
		CacheBytes:      256 << 20, // 256 MB record cache
		CoordCacheBytes: 4 << 30,   // 4 GB page budget
		CoordIndex:      "paged",
		Zooms:           append([]int(nil), ZoomsCurrent...),
		ListenAddr:      ":8080",
		MetricsInterval: 30 * time.Second,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("store path is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if len(c.Zooms) == 0 {
		return fmt.Errorf("at least one tile zoom is required")
	}
	if c.CoordIndex != "paged" && c.CoordIndex != "mmap" {
		return fmt.Errorf("coord index must be \"paged\" or \"mmap\", got %q", c.CoordIndex)
	}
	return nil
}

// MinZoom returns the coarsest configured tile zoom.
func (c *Config) MinZoom() int {
	return c.Zooms[0]
}

// MaxZoom returns the finest configured tile zoom.
func (c *Config) MaxZoom() int {
	return c.Zooms[len(c.Zooms)-1]
}

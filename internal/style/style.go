// Package style loads the rendering style sheet that drives feature
// selection. Each class may carry point, line and poly rules; the rule's
// min_zoom is the finest zoom the feature must be indexed down to.
package style

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jeffboody/osmdb-sub000/internal/class"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
)

// Rule is one geometry rule for a class.
type Rule struct {
	MinZoom int `yaml:"min_zoom"`
}

// Rules holds the optional geometry rules for one class.
type Rules struct {
	Point *Rule `yaml:"point,omitempty"`
	Line  *Rule `yaml:"line,omitempty"`
	Poly  *Rule `yaml:"poly,omitempty"`
}

// sheetFile is the on-disk YAML layout.
type sheetFile struct {
	Classes map[string]*Rules `yaml:"classes"`
}

// Sheet is the loaded style sheet, indexed by class code. Immutable
// after construction and safe to share across goroutines.
type Sheet struct {
	rules []*Rules // indexed by class.Code
}

// Load reads a style sheet from a YAML file. Classes not present in the
// catalogue are logged as classify warnings and skipped, so a newer
// style can be used against an older build.
func Load(path string) (*Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}

	var file sheetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}

	log := logger.Get()
	sheet := &Sheet{rules: make([]*Rules, class.Count())}
	for name, r := range file.Classes {
		code, ok := class.OfName(name)
		if !ok {
			log.Warn("style sheet references unknown class",
				zap.String("class", name))
			continue
		}
		sheet.rules[code] = r
	}
	return sheet, nil
}

// New builds a sheet directly from a rules map; used by tests and by
// the KML importer's fixed designations.
func New(rules map[class.Code]*Rules) *Sheet {
	sheet := &Sheet{rules: make([]*Rules, class.Count())}
	for code, r := range rules {
		if int(code) < len(sheet.rules) {
			sheet.rules[code] = r
		}
	}
	return sheet
}

// Rules returns the rules for a class, or nil when the style does not
// mention it.
func (s *Sheet) Rules(code class.Code) *Rules {
	if int(code) >= len(s.rules) {
		return nil
	}
	return s.rules[code]
}

// Point returns the point rule for a class, or nil.
func (s *Sheet) Point(code class.Code) *Rule {
	if r := s.Rules(code); r != nil {
		return r.Point
	}
	return nil
}

// Line returns the line rule for a class, or nil.
func (s *Sheet) Line(code class.Code) *Rule {
	if r := s.Rules(code); r != nil {
		return r.Line
	}
	return nil
}

// Poly returns the poly rule for a class, or nil.
func (s *Sheet) Poly(code class.Code) *Rule {
	if r := s.Rules(code); r != nil {
		return r.Poly
	}
	return nil
}

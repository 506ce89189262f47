package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"ska-importer/internal/skeleton"
)

// Rule maps input file stems matching a glob pattern to a skeleton path.
type Rule struct {
	Match string
	Path  string
}

// Selector picks the skeleton an input file is imported onto. Rules are
// tried in order against the lowercase file stem; Default applies when
// none match.
type Selector struct {
	Default  string
	Rules    []Rule
	Resolver skeleton.Resolver
}

// Path returns the skeleton description path for an input file stem.
func (s *Selector) Path(stem string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("no skeleton configured for %q", stem)
	}
	lower := strings.ToLower(stem)
	for _, r := range s.Rules {
		ok, err := filepath.Match(strings.ToLower(r.Match), lower)
		if err != nil {
			return "", fmt.Errorf("skeleton rule %q: %w", r.Match, err)
		}
		if ok {
			return r.Path, nil
		}
	}
	if s.Default == "" {
		return "", fmt.Errorf("no skeleton configured for %q", stem)
	}
	return s.Default, nil
}

// Select resolves the skeleton for an input file stem.
func (s *Selector) Select(stem string) (*skeleton.Skeleton, error) {
	p, err := s.Path(stem)
	if err != nil {
		return nil, err
	}
	return s.Resolver.Resolve(p)
}

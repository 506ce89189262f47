package importer

import (
	"fmt"
	"strings"
	"sync"
)

// outputClaims records which input owns each clip name of a run. Names are
// compared case-insensitively so outputs never collide on case-folding
// filesystems.
type outputClaims struct {
	mu    sync.Mutex
	paths []string
	owner map[string]int
}

func newOutputClaims(paths []string) *outputClaims {
	return &outputClaims{paths: paths, owner: make(map[string]int)}
}

// claim reserves every name for input idx, or none of them when one is
// already owned by another input.
func (c *outputClaims) claim(idx int, names []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range names {
		if o, ok := c.owner[strings.ToLower(n)]; ok && o != idx {
			return fmt.Errorf("clip %q is already produced by %s", n, c.paths[o])
		}
	}
	for _, n := range names {
		c.owner[strings.ToLower(n)] = idx
	}
	return nil
}

// uniqueNames renames animations that do not start with the file stem to
// <stem>_<kind>, then numbers repeated names within the file.
func uniqueNames(anims []Named, stem, kind string) {
	seen := make(map[string]bool, len(anims))
	lowerStem := strings.ToLower(stem)
	for i := range anims {
		name := anims[i].Name
		if !strings.HasPrefix(strings.ToLower(name), lowerStem) {
			name = stem + "_" + kind
		}
		base := name
		for n := 1; seen[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[strings.ToLower(name)] = true
		anims[i].Name = name
	}
}

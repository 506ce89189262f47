package skeleton

// MappingMode says how SKA bone indices were assigned to skeleton bones.
type MappingMode int

const (
	// MapPositional maps SKA bone i to the i-th bone of the list.
	MapPositional MappingMode = iota
	// MapExplicit maps SKA bone indices through Bone.ID.
	MapExplicit
)

func (m MappingMode) String() string {
	switch m {
	case MapExplicit:
		return "explicit"
	case MapPositional:
		return "positional"
	}
	return "unknown"
}

// BoneMap returns SKA bone index → skeleton bone index.
//
// If any bone carries an explicit ID, only explicit IDs are used; bones
// without one are unreachable. Otherwise every bone is mapped by its position.
// When two bones share an ID the later one wins.
func (s *Skeleton) BoneMap() (map[int]int, MappingMode) {
	m := make(map[int]int, len(s.bones))
	for i := range s.bones {
		if s.bones[i].HasID {
			m[s.bones[i].ID] = i
		}
	}
	if len(m) > 0 {
		return m, MapExplicit
	}

	for i := range s.bones {
		m[i] = i
	}
	return m, MapPositional
}

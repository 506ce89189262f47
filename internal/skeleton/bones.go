package skeleton

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"ska-importer/internal/mathutil"
)

const errPrefix = "skeleton: "

func newErr(format string, args ...any) error {
	return errors.New(errPrefix + fmt.Sprintf(format, args...))
}

// Transform is a rigid rotation + translation.
type Transform struct {
	Rotation    mgl64.Quat
	Translation mgl64.Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// Mat4 returns the transform as T·R.
func (t Transform) Mat4() mgl64.Mat4 {
	return mathutil.Compose(t.Rotation, t.Translation)
}

// Bone describes one bone of a target skeleton.
// A hierarchy is defined by setting Parent to another bone's index within
// the slice passed to New; -1 or less means the bone is a root.
//
// The zero Parent is index 0, not "no parent": a zero Bone is a child of
// the first bone, and New rejects one placed at index 0. Start roots from
// Root.
type Bone struct {
	Name   string
	ID     int // explicit SKA bone index, valid only when HasID
	HasID  bool
	Parent int
	Rest   Transform // rest pose relative to the parent
}

// Root returns a root bone with an identity rest pose.
func Root(name string) Bone {
	return Bone{Name: name, Parent: -1, Rest: Identity()}
}

// Skeleton is an immutable snapshot of a bone hierarchy and its rest pose.
type Skeleton struct {
	bones []Bone
	// Armature-space rest matrix per bone (parent chain composed).
	rest []mgl64.Mat4
}

// New validates a bone hierarchy and precomputes its rest matrices.
// Parents may appear after their children.
func New(bones []Bone) (*Skeleton, error) {
	n := len(bones)
	bs := make([]Bone, n)
	copy(bs, bones)

	for i := range bs {
		p := bs[i].Parent
		switch {
		case p >= n:
			return nil, newErr("bone %d (%q): parent %d out of bounds", i, bs[i].Name, p)
		case p == i:
			return nil, newErr("bone %d (%q): parent refers to itself", i, bs[i].Name)
		case p < 0:
			bs[i].Parent = -1
		}
	}

	rest, err := buildRestMatrices(bs)
	if err != nil {
		return nil, err
	}
	return &Skeleton{bones: bs, rest: rest}, nil
}

// buildRestMatrices composes each bone's local rest transform with its
// parent chain. It fails on cycles.
func buildRestMatrices(bones []Bone) ([]mgl64.Mat4, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(bones))
	rest := make([]mgl64.Mat4, len(bones))

	var stk []int
	for i := range bones {
		if state[i] == done {
			continue
		}
		// Walk up to the first resolved ancestor, then unwind.
		for b := i; b >= 0 && state[b] != done; b = bones[b].Parent {
			if state[b] == visiting {
				return nil, newErr("bone %d (%q): parent cycle", b, bones[b].Name)
			}
			state[b] = visiting
			stk = append(stk, b)
		}
		for j := len(stk) - 1; j >= 0; j-- {
			b := stk[j]
			local := bones[b].Rest.Mat4()
			if p := bones[b].Parent; p >= 0 {
				rest[b] = rest[p].Mul4(local)
			} else {
				rest[b] = local
			}
			state[b] = done
		}
		stk = stk[:0]
	}
	return rest, nil
}

// Len returns the number of bones.
func (s *Skeleton) Len() int { return len(s.bones) }

// Bone returns the i-th bone.
func (s *Skeleton) Bone(i int) Bone { return s.bones[i] }

// Bones returns a copy of the bone list.
func (s *Skeleton) Bones() []Bone {
	bs := make([]Bone, len(s.bones))
	copy(bs, s.bones)
	return bs
}

// Rest returns the armature-space rest matrix of bone i.
func (s *Skeleton) Rest(i int) mgl64.Mat4 { return s.rest[i] }

// ParentRest returns the armature-space rest matrix of bone i's parent, or
// identity for a root.
func (s *Skeleton) ParentRest(i int) mgl64.Mat4 {
	if p := s.bones[i].Parent; p >= 0 {
		return s.rest[p]
	}
	return mgl64.Ident4()
}

// RestMatrices returns the armature-space rest matrix of every bone.
func (s *Skeleton) RestMatrices() []mgl64.Mat4 {
	m := make([]mgl64.Mat4, len(s.rest))
	copy(m, s.rest)
	return m
}

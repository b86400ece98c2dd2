package marrow

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// --- Built-in HitVolume types ---

// HitVolume is a ray-testable region in world space.
type HitVolume interface {
	// IntersectRay returns the distance along the ray (in multiples of dir,
	// assumed unit length) to the nearest intersection at or in front of the
	// origin. ok is false when the ray misses.
	IntersectRay(origin, dir mgl64.Vec3) (distance float64, ok bool)
}

// HitSphere is a spherical hit volume, typical for round handles and orbs.
type HitSphere struct {
	Center mgl64.Vec3
	Radius float64
}

// IntersectRay solves the ray/sphere quadratic and returns the nearest
// non-negative root. A ray starting inside the sphere hits the far surface.
func (s HitSphere) IntersectRay(origin, dir mgl64.Vec3) (float64, bool) {
	return raySphere(origin, dir, s.Center, s.Radius)
}

// HitQuad is a bounded planar rectangle, the hit volume of a floating UI
// panel or button. Center is the rectangle's middle; U and V are the half-
// extent vectors along its two edges (not necessarily axis-aligned, but
// expected to be perpendicular to each other).
type HitQuad struct {
	Center mgl64.Vec3
	U, V   mgl64.Vec3
}

// IntersectRay intersects the ray with the quad's plane, then bounds-checks
// the hit point against the half extents. Rays parallel to the plane miss.
func (q HitQuad) IntersectRay(origin, dir mgl64.Vec3) (float64, bool) {
	normal := q.U.Cross(q.V)
	nl := normal.Len()
	if nl < 1e-12 {
		return 0, false // degenerate extents
	}
	normal = normal.Mul(1 / nl)

	denom := dir.Dot(normal)
	if math.Abs(denom) < 1e-9 {
		return 0, false
	}
	t := q.Center.Sub(origin).Dot(normal) / denom
	if t < 0 {
		return 0, false
	}

	d := origin.Add(dir.Mul(t)).Sub(q.Center)
	ul := q.U.Len()
	vl := q.V.Len()
	if ul < 1e-12 || vl < 1e-12 {
		return 0, false
	}
	if math.Abs(d.Dot(q.U)/ul) > ul || math.Abs(d.Dot(q.V)/vl) > vl {
		return 0, false
	}
	return t, true
}

// raySphere returns the nearest non-negative intersection parameter of a unit
// ray with a sphere.
func raySphere(origin, dir, center mgl64.Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq // origin inside the sphere
	}
	if t < 0 {
		return 0, false // sphere entirely behind the origin
	}
	return t, true
}

// --- UI pickable layer ---

// UIPickable is one ray-testable UI target bound to an action. Pickables are
// owned by the UI layer; the router only reads them.
type UIPickable struct {
	Name    string
	Action  UIAction
	Volume  HitVolume
	Enabled bool // disabled pickables are skipped by hit testing
}

// UIHit is the result of testing a ray against the UI pickable layer.
// At most one hit is reported per ray: the closest by distance.
type UIHit struct {
	Pickable *UIPickable
	Point    mgl64.Vec3
	Distance float64
}

// PickableSet is the flat registry of UI pickables tested by every selection
// ray. UI is always evaluated before content: a gesture that begins on a
// panel must never drag the anchor underneath it.
type PickableSet struct {
	items []*UIPickable
}

// NewPickableSet returns an empty registry.
func NewPickableSet() *PickableSet {
	return &PickableSet{}
}

// Add registers a pickable for the given action and returns it for further
// configuration (naming, disabling) or later removal.
func (s *PickableSet) Add(action UIAction, volume HitVolume) *UIPickable {
	p := &UIPickable{Action: action, Volume: volume, Enabled: true}
	s.items = append(s.items, p)
	return p
}

// Remove unregisters a pickable. No-op if it is not in the set.
func (s *PickableSet) Remove(p *UIPickable) {
	for i := range s.items {
		if s.items[i] == p {
			copy(s.items[i:], s.items[i+1:])
			s.items[len(s.items)-1] = nil
			s.items = s.items[:len(s.items)-1]
			return
		}
	}
}

// Clear removes all pickables.
func (s *PickableSet) Clear() {
	for i := range s.items {
		s.items[i] = nil
	}
	s.items = s.items[:0]
}

// Len returns the number of registered pickables, enabled or not.
func (s *PickableSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// IntersectRay tests the ray against every enabled pickable and returns the
// closest hit. ok is false when nothing is hit (or the set is nil/empty).
func (s *PickableSet) IntersectRay(origin, dir mgl64.Vec3) (UIHit, bool) {
	if s == nil {
		return UIHit{}, false
	}
	best := UIHit{Distance: math.Inf(1)}
	for _, p := range s.items {
		if !p.Enabled || p.Volume == nil {
			continue
		}
		t, ok := p.Volume.IntersectRay(origin, dir)
		if !ok || t >= best.Distance {
			continue
		}
		best = UIHit{Pickable: p, Point: origin.Add(dir.Mul(t)), Distance: t}
	}
	if best.Pickable == nil {
		return UIHit{}, false
	}
	return best, true
}

// --- Sphere-indexed content layer ---

// ContentSphere is one pickable content structure approximated by its
// bounding sphere, in anchor-local coordinates.
type ContentSphere struct {
	ID     StructureID
	Center mgl64.Vec3
	Radius float64
}

// SphereIndex is a ContentPicker backed by labeled bounding spheres. The real
// anatomy renderer supplies its own mesh-accurate picker; SphereIndex serves
// replay worlds, the desktop emulator, and tests. When Anchor is set, sphere
// centers are interpreted in anchor-local space and transformed through the
// anchor's world matrix at pick time.
type SphereIndex struct {
	Anchor  *BasicAnchor // optional; nil means spheres are world-space
	spheres []ContentSphere
}

// NewSphereIndex returns an empty index attached to the given anchor
// (which may be nil for world-space spheres).
func NewSphereIndex(anchor *BasicAnchor) *SphereIndex {
	return &SphereIndex{Anchor: anchor}
}

// Add registers a structure's bounding sphere.
func (x *SphereIndex) Add(id StructureID, center mgl64.Vec3, radius float64) {
	x.spheres = append(x.spheres, ContentSphere{ID: id, Center: center, Radius: radius})
}

// Len returns the number of indexed spheres.
func (x *SphereIndex) Len() int { return len(x.spheres) }

// Pick returns the id of the closest sphere hit by the ray. Satisfies
// ContentPicker. With a non-uniform anchor scale the largest component is
// used for the radius, treating the sphere as its own bounding sphere.
func (x *SphereIndex) Pick(origin, dir mgl64.Vec3) (StructureID, bool) {
	var bestID StructureID
	bestT := math.Inf(1)
	for i := range x.spheres {
		sp := &x.spheres[i]
		center := sp.Center
		radius := sp.Radius
		if x.Anchor != nil {
			center = x.Anchor.TransformPoint(center)
			s := x.Anchor.Scale()
			radius *= math.Max(s[0], math.Max(s[1], s[2]))
		}
		t, ok := raySphere(origin, dir, center, radius)
		if ok && t < bestT {
			bestT = t
			bestID = sp.ID
		}
	}
	if math.IsInf(bestT, 1) {
		return "", false
	}
	return bestID, true
}

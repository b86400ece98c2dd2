package marrow

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// worldUp is the vertical axis used for yaw rotations and horizontal
// flattening.
var worldUp = mgl64.Vec3{0, 1, 0}

// defaultForward is the fallback forward direction when the viewer is looking
// straight up or down and the flattened forward vector degenerates.
var defaultForward = mgl64.Vec3{0, 0, -1}

// AnchorTransform is a value snapshot of an anchor's rigid transform.
// Capture and restore are a lossless round trip.
type AnchorTransform struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	Scale       mgl64.Vec3
}

// CaptureTransform snapshots the anchor's current transform. The returned
// value is independent of the anchor: mutating the anchor afterwards does not
// change the captured value.
func CaptureTransform(a Anchor) AnchorTransform {
	return AnchorTransform{
		Position:    a.Position(),
		Orientation: a.Orientation(),
		Scale:       a.Scale(),
	}
}

// RestoreTransform applies a previously captured transform to the anchor and
// forces a world-matrix recomputation so dependent hit testing sees the
// update immediately, with no stale-matrix window.
func RestoreTransform(a Anchor, t AnchorTransform) {
	a.SetPosition(t.Position)
	a.SetOrientation(t.Orientation)
	a.SetScale(t.Scale)
	a.UpdateWorldMatrix()
}

// FrontTransform computes the transform that places content of the given
// scale in front of the viewer, without applying it. See PlaceInFront.
func FrontTransform(viewer Pose, distance, verticalOffset float64, yawOnly bool, scale mgl64.Vec3) AnchorTransform {
	forward := viewer.Orientation.Rotate(defaultForward)

	var orientation mgl64.Quat
	if yawOnly {
		flat, ok := flattenToHorizontal(forward)
		if !ok {
			// Viewer looking straight up/down: no usable horizontal heading.
			flat = defaultForward
		}
		forward = flat
		// Yaw of the forward ray turned 180°, so the content's front faces
		// back toward the viewer.
		orientation = yawQuat(yawOf(forward) + math.Pi)
	} else {
		orientation = viewer.Orientation
	}

	position := viewer.Position.Add(forward.Mul(distance))
	position[1] += verticalOffset

	return AnchorTransform{Position: position, Orientation: orientation, Scale: scale}
}

// PlaceInFront repositions the anchor at the given distance along the
// viewer's forward direction, raised by verticalOffset. With yawOnly the
// forward vector is flattened to the horizontal plane (falling back to a
// fixed forward if the viewer is looking straight up/down) and the anchor is
// oriented by yaw alone, turned 180° from the forward ray so it faces the
// viewer; otherwise the anchor adopts the viewer's full orientation. Scale is
// preserved. Callable independently of any session, e.g. for a non-XR
// recenter action.
func PlaceInFront(a Anchor, viewer Pose, distance, verticalOffset float64, yawOnly bool) {
	RestoreTransform(a, FrontTransform(viewer, distance, verticalOffset, yawOnly, a.Scale()))
}

// --- Rotation helpers ---

// yawOf returns the heading of v about the vertical axis, in radians.
// Follows the atan2(x, z) convention: 0 along +Z, π/2 along +X.
func yawOf(v mgl64.Vec3) float64 {
	return math.Atan2(v[0], v[2])
}

// yawQuat returns a rotation of angle radians about the world vertical axis.
func yawQuat(angle float64) mgl64.Quat {
	return mgl64.QuatRotate(angle, worldUp)
}

// flattenToHorizontal projects v onto the horizontal plane and normalizes.
// ok is false when the projection is degenerate (|xz| ≈ 0).
func flattenToHorizontal(v mgl64.Vec3) (mgl64.Vec3, bool) {
	flat := mgl64.Vec3{v[0], 0, v[2]}
	l := flat.Len()
	if l < 1e-9 {
		return mgl64.Vec3{}, false
	}
	return flat.Mul(1 / l), true
}

// clamp limits v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --- BasicAnchor ---

// BasicAnchor is a self-contained Anchor backed by a cached world matrix.
// Hosts with a real scene graph wrap their own node type instead; BasicAnchor
// serves headless replay, the desktop emulator, and tests.
type BasicAnchor struct {
	position    mgl64.Vec3
	orientation mgl64.Quat
	scale       mgl64.Vec3

	world      mgl64.Mat4
	worldDirty bool
}

// NewBasicAnchor returns an anchor at the origin with identity orientation
// and unit scale.
func NewBasicAnchor() *BasicAnchor {
	return &BasicAnchor{
		orientation: mgl64.QuatIdent(),
		scale:       mgl64.Vec3{1, 1, 1},
		world:       mgl64.Ident4(),
	}
}

// Position returns the anchor's world position.
func (a *BasicAnchor) Position() mgl64.Vec3 { return a.position }

// SetPosition moves the anchor and marks its world matrix dirty.
func (a *BasicAnchor) SetPosition(p mgl64.Vec3) {
	a.position = p
	a.worldDirty = true
}

// Orientation returns the anchor's world orientation.
func (a *BasicAnchor) Orientation() mgl64.Quat { return a.orientation }

// SetOrientation rotates the anchor and marks its world matrix dirty.
func (a *BasicAnchor) SetOrientation(q mgl64.Quat) {
	a.orientation = q
	a.worldDirty = true
}

// Scale returns the anchor's scale.
func (a *BasicAnchor) Scale() mgl64.Vec3 { return a.scale }

// SetScale resizes the anchor and marks its world matrix dirty.
func (a *BasicAnchor) SetScale(s mgl64.Vec3) {
	a.scale = s
	a.worldDirty = true
}

// UpdateWorldMatrix recomputes the cached world matrix immediately.
//
// Composition order: Translate * Rotate * Scale.
func (a *BasicAnchor) UpdateWorldMatrix() {
	t := mgl64.Translate3D(a.position[0], a.position[1], a.position[2])
	r := a.orientation.Mat4()
	s := mgl64.Scale3D(a.scale[0], a.scale[1], a.scale[2])
	a.world = t.Mul4(r).Mul4(s)
	a.worldDirty = false
}

// Matrix returns the anchor's world matrix, recomputing it first if any
// transform field changed since the last UpdateWorldMatrix.
func (a *BasicAnchor) Matrix() mgl64.Mat4 {
	if a.worldDirty {
		a.UpdateWorldMatrix()
	}
	return a.world
}

// TransformPoint maps an anchor-local point to world space.
func (a *BasicAnchor) TransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return a.Matrix().Mul4x1(p.Vec4(1)).Vec3()
}

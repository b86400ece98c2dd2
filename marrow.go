package marrow

import "github.com/go-gl/mathgl/mgl64"

// SourceID is the opaque stable identity of a tracked input source (a
// controller or hand). It is valid for the lifetime of one session
// attachment; the same physical device may carry a different SourceID after
// a reattach.
type SourceID string

// StructureID identifies a selectable structure owned by the external
// content layer. The empty string means "nothing selected".
type StructureID string

// UIAction is the action tag bound to a UI pickable. Dispatched when a tap
// resolves on that pickable.
type UIAction string

// Pose is a rigid position + orientation pair in world space.
// The zero value carries an invalid (all-zero) quaternion; construct
// orientations with mgl64.QuatIdent or the mgl64.Quat* helpers.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// PoseAt returns a Pose at the given position with identity orientation.
func PoseAt(x, y, z float64) Pose {
	return Pose{Position: mgl64.Vec3{x, y, z}, Orientation: mgl64.QuatIdent()}
}

// Ray is a pointing ray used for selection raycasts, distinct from the grip
// pose of the same source. Dir is expected to be unit length; hit distances
// are measured in multiples of Dir.
type Ray struct {
	Origin mgl64.Vec3
	Dir    mgl64.Vec3
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// EventType identifies a kind of router callback registration.
type EventType uint8

const (
	EventUIAction        EventType = iota // a tap resolved on a UI pickable
	EventSelectStructure                  // a tap resolved on content (or on nothing)
	EventAnchorScale                      // bimanual manipulation changed the anchor scale
	EventHoverEnter                       // a target ray moved onto a UI pickable
	EventHoverLeave                       // a target ray moved off a UI pickable
)

// QualityTier is a discrete render-quality level consumed by the renderer.
// Tiers are totally ordered: TierLow < TierMedium < TierHigh. The mapping to
// concrete renderer settings (framebuffer scale, instance density) is owned
// by the renderer, not by this package.
type QualityTier uint8

const (
	TierLow QualityTier = iota
	TierMedium
	TierHigh
)

// String returns the lowercase tier name.
func (t QualityTier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Anchor is the externally owned movable transform that gestures manipulate:
// the root of the user-positionable content group. Implementations wrap
// whatever scene-graph object the host uses. UpdateWorldMatrix must make the
// new transform observable to hit testing immediately; it is invoked by
// RestoreTransform and PlaceInFront, not by per-frame drag updates (hosts
// refresh matrices in their own render pass).
type Anchor interface {
	Position() mgl64.Vec3
	SetPosition(mgl64.Vec3)
	Orientation() mgl64.Quat
	SetOrientation(mgl64.Quat)
	Scale() mgl64.Vec3
	SetScale(mgl64.Vec3)
	UpdateWorldMatrix()
}

// ContentPicker is the external content raycast: given a ray it returns the
// id of the closest structure hit, or ok=false when the ray misses all
// content. The router never inspects content geometry itself.
type ContentPicker func(origin, dir mgl64.Vec3) (StructureID, bool)

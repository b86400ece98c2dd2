package marrow

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// --- Constants ---

const (
	// defaultScaleMin / defaultScaleMax clamp the uniform anchor scale
	// produced by bimanual resizing.
	defaultScaleMin = 0.25
	defaultScaleMax = 0.7
)

// --- Pair state ---

// bimanualState is the pair-level baseline captured on the first qualifying
// frame of a two-handed gesture. All combined scale/translate/yaw math is
// relative to this baseline; disqualification discards it, and a later
// re-qualification captures a fresh one rather than reusing stale values.
type bimanualState struct {
	active  bool
	source0 SourceID // lexically smaller id, keeps the yaw vector stable
	source1 SourceID

	startGrip0   mgl64.Vec3
	startGrip1   mgl64.Vec3
	startDist    float64
	startMid     mgl64.Vec3
	startHandYaw float64
	startAnchor  AnchorTransform

	lastScale float64 // last dispatched scale, NaN until the first update
}

// bimanualQualified reports whether exactly two sources are mid-gesture and
// both permit dragging. A gesture that began on UI or content disqualifies
// the pair: no accidental whole-scene transforms while pressing a button.
func (r *Router) bimanualQualified() bool {
	if len(r.records) != 2 {
		return false
	}
	for _, rec := range r.records {
		if !rec.allowDrag {
			return false
		}
	}
	return true
}

// bimanualParticipant reports whether the source is half of the engaged pair.
func (r *Router) bimanualParticipant(source SourceID) bool {
	return r.bimanual.active && (source == r.bimanual.source0 || source == r.bimanual.source1)
}

// engageBimanual captures the pair baseline from this frame's grip poses and
// advances per-hand movement tracking. Returns false (retry next frame) when
// either grip is unavailable.
func (r *Router) engageBimanual(frame Frame) bool {
	ids := r.sortedSources()
	s0, s1 := ids[0], ids[1]

	g0, ok0 := frame.GripPose(s0)
	g1, ok1 := frame.GripPose(s1)
	if !ok0 || !ok1 {
		return false
	}

	b := &r.bimanual
	b.active = true
	b.source0, b.source1 = s0, s1
	b.startGrip0 = g0.Position
	b.startGrip1 = g1.Position
	b.startDist = g1.Position.Sub(g0.Position).Len()
	b.startMid = midpoint(g0.Position, g1.Position)
	b.startHandYaw = handYaw(g0.Position, g1.Position)
	b.startAnchor = CaptureTransform(r.anchor)
	b.lastScale = math.NaN()

	r.updateGesture(r.records[s0], g0.Position, false)
	r.updateGesture(r.records[s1], g1.Position, false)

	r.debugf("bimanual engage %s+%s dist=%.3f yaw=%.3f", s0, s1, b.startDist, b.startHandYaw)
	return true
}

// updateBimanual applies one frame of combined scale/translate/yaw. Per-hand
// movement tracking still runs so a later select on either hand is not
// mistaken for a tap.
func (r *Router) updateBimanual(frame Frame) {
	b := &r.bimanual
	g0, ok0 := frame.GripPose(b.source0)
	g1, ok1 := frame.GripPose(b.source1)
	if !ok0 || !ok1 {
		return // transient tracking loss: skip the frame, keep the baseline
	}

	r.updateGesture(r.records[b.source0], g0.Position, false)
	r.updateGesture(r.records[b.source1], g1.Position, false)

	// Scale from the inter-hand distance ratio, clamped, applied uniformly.
	dist := g1.Position.Sub(g0.Position).Len()
	ratio := 1.0
	if b.startDist > 0 {
		ratio = dist / b.startDist
	}
	scale := clamp(b.startAnchor.Scale[0]*ratio, r.scaleMin, r.scaleMax)

	// Translate by the midpoint displacement.
	mid := midpoint(g0.Position, g1.Position)
	position := b.startAnchor.Position.Add(mid.Sub(b.startMid))

	// Yaw from the change in inter-hand heading, premultiplied as a
	// world-vertical-axis rotation on the captured orientation.
	deltaYaw := handYaw(g0.Position, g1.Position) - b.startHandYaw
	orientation := yawQuat(deltaYaw).Mul(b.startAnchor.Orientation)

	// One combined transform write per frame; interleaved partial writes
	// show up as visible jitter.
	r.anchor.SetPosition(position)
	r.anchor.SetOrientation(orientation)
	r.anchor.SetScale(mgl64.Vec3{scale, scale, scale})

	if scale != b.lastScale {
		b.lastScale = scale
		r.fireAnchorScale(scale, ratio)
	}
}

// disengageBimanual drops the pair baseline and resets the surviving
// records' drag capture so a single-hand resume derives a fresh offset
// instead of jumping to a stale one.
func (r *Router) disengageBimanual() {
	if !r.bimanual.active {
		return
	}
	r.bimanual = bimanualState{}
	for _, rec := range r.records {
		rec.haveDragOffset = false
		rec.haveAnchorStart = false
	}
	r.debugf("bimanual disengage records=%d", len(r.records))
}

// --- Pair math helpers ---

// midpoint returns the point halfway between a and b.
func midpoint(a, b mgl64.Vec3) mgl64.Vec3 {
	return a.Add(b).Mul(0.5)
}

// handYaw returns the heading of the horizontal vector from hand 0 to hand 1.
func handYaw(g0, g1 mgl64.Vec3) float64 {
	return yawOf(mgl64.Vec3{g1[0] - g0[0], 0, g1[2] - g0[2]})
}

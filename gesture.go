package marrow

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// --- Constants ---

const (
	// defaultMoveThreshold is the cumulative grip displacement, in world
	// units, beyond which a gesture counts as moved and is no longer a tap
	// candidate.
	defaultMoveThreshold = 0.02

	// defaultTapWindow is the longest press-to-select interval recognized
	// as a tap.
	defaultTapWindow = 250 * time.Millisecond
)

// --- Per-source gesture state ---

// gestureRecord tracks one source between select-start and select-end.
// A record exists iff its source is mid-gesture; session detach destroys
// all records unconditionally.
//
// Pose-derived fields are captured lazily: a record created from an event
// callback has no pose context until the next frame update samples one.
// Unset fields are valid at any point, including at cleanup.
type gestureRecord struct {
	source    SourceID
	startTime time.Time

	// allowDrag is decided once, at gesture start: false when the initiating
	// ray struck UI or content. A press that begins on a button must not
	// also translate the anchor underneath it.
	allowDrag bool

	haveStartGrip bool
	startGrip     mgl64.Vec3
	lastGrip      mgl64.Vec3

	// moved latches true once displacement from startGrip exceeds the move
	// threshold. Never reset for the lifetime of the record.
	moved bool

	haveAnchorStart bool
	anchorStart     AnchorTransform

	haveDragOffset bool
	dragOffset     mgl64.Vec3
}

// --- Session event handlers ---

// SelectStart implements Listener. It opens a gesture record for the source
// and decides drag eligibility for the whole gesture from the initiating
// ray: a ray that strikes UI or content disables anchor dragging. No ray
// available (nil frame, tracking loss) counts as striking nothing.
func (r *Router) SelectStart(source SourceID, frame Frame) {
	if _, exists := r.records[source]; exists {
		return
	}

	allowDrag := true
	if frame != nil {
		if ray, ok := frame.TargetRay(source); ok {
			if _, hit := r.ui.IntersectRay(ray.Origin, ray.Dir); hit {
				allowDrag = false
			} else if r.pickContent != nil {
				if _, hit := r.pickContent(ray.Origin, ray.Dir); hit {
					allowDrag = false
				}
			}
		}
	}

	r.records[source] = &gestureRecord{
		source:    source,
		startTime: r.now(),
		allowDrag: allowDrag,
	}
	r.debugf("select start %s allowDrag=%t records=%d", source, allowDrag, len(r.records))
	r.debugCheckSourceCount()
}

// Select implements Listener. It resolves a tap: the gesture must not have
// moved and must complete within the tap window. UI pickables win over
// content; a tap over neither still dispatches an empty StructureID so hosts
// can clear their selection. Disabling drag never disables tap-through.
func (r *Router) Select(source SourceID, frame Frame) {
	rec, ok := r.records[source]
	if !ok {
		return // no gesture in progress for this source
	}

	duration := r.now().Sub(rec.startTime)
	if rec.moved || duration > r.tapWindow {
		// The gesture was a drag, already applied frame by frame.
		return
	}
	if frame == nil {
		return
	}
	ray, ok := frame.TargetRay(source)
	if !ok {
		return // no ray this frame: the tap resolves nothing
	}

	if hit, ok := r.ui.IntersectRay(ray.Origin, ray.Dir); ok {
		r.debugf("tap %s -> ui action %q", source, hit.Pickable.Action)
		r.fireUIAction(source, hit)
		return
	}

	var id StructureID
	if r.pickContent != nil {
		id, _ = r.pickContent(ray.Origin, ray.Dir)
	}
	r.debugf("tap %s -> structure %q", source, id)
	r.fireSelectStructure(source, id)
}

// SelectEnd implements Listener. It deletes the source's record
// unconditionally; a select-end with no record is a no-op.
//
// Ending either half of an engaged pair disengages it here, not at the next
// update: events arriving between frames can return the record count to two
// (a re-press, or another source pressing), and the update's qualification
// check would then run the stale baseline against the wrong records.
func (r *Router) SelectEnd(source SourceID, _ Frame) {
	if _, ok := r.records[source]; !ok {
		return
	}
	delete(r.records, source)
	r.debugf("select end %s records=%d", source, len(r.records))
	if r.bimanualParticipant(source) {
		r.disengageBimanual()
	}
}

// --- Per-frame single-source update ---

// updateGesture advances movement tracking for one record from this frame's
// grip position. The anchor write is gated by applyDrag: the caller enables
// it only on the single-source path, keeping the anchor's writer unique
// per frame.
func (r *Router) updateGesture(rec *gestureRecord, grip mgl64.Vec3, applyDrag bool) {
	if !rec.haveStartGrip {
		rec.startGrip = grip
		rec.haveStartGrip = true
	}
	if !rec.haveAnchorStart {
		rec.anchorStart = CaptureTransform(r.anchor)
		rec.haveAnchorStart = true
	}
	rec.lastGrip = grip

	if !rec.moved && grip.Sub(rec.startGrip).Len() > r.moveThreshold {
		rec.moved = true
	}

	if !applyDrag || !rec.moved || !rec.allowDrag {
		return
	}
	if !rec.haveDragOffset {
		// Hand→anchor offset at drag start: the anchor stays rigidly
		// attached to the hand instead of snapping to the grip position.
		rec.dragOffset = r.anchor.Position().Sub(grip)
		rec.haveDragOffset = true
	}
	r.anchor.SetPosition(grip.Add(rec.dragOffset))
}

package marrow

import (
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// --- Callback contexts ---

// UIActionContext carries a tap resolved on a UI pickable.
type UIActionContext struct {
	Source   SourceID
	Action   UIAction
	Pickable *UIPickable
	Point    mgl64.Vec3 // world-space hit point on the pickable
	Distance float64    // ray distance to the hit
}

// SelectContext carries a tap resolved against content. Structure is empty
// when the tap hit neither UI nor content; hosts typically clear their
// selection in response.
type SelectContext struct {
	Source    SourceID
	Structure StructureID
}

// ScaleContext carries a bimanual scale change.
type ScaleContext struct {
	Scale float64 // uniform anchor scale after clamping
	Ratio float64 // raw inter-hand distance ratio that produced it
}

// HoverContext carries a hover transition on a UI pickable.
type HoverContext struct {
	Source   SourceID
	Pickable *UIPickable
}

// --- Handler registry ---

type actionHandler struct {
	id uint32
	fn func(UIActionContext)
}

type structureHandler struct {
	id uint32
	fn func(SelectContext)
}

type scaleHandler struct {
	id uint32
	fn func(ScaleContext)
}

type hoverHandler struct {
	id uint32
	fn func(HoverContext)
}

type handlerRegistry struct {
	uiAction   []actionHandler
	structure  []structureHandler
	scale      []scaleHandler
	hoverEnter []hoverHandler
	hoverLeave []hoverHandler
	nextID     uint32
}

// CallbackHandle allows removing a registered router callback.
type CallbackHandle struct {
	id    uint32
	reg   *handlerRegistry
	event EventType
}

// Remove unregisters this callback so it no longer fires.
// The entry is removed from the slice to avoid nil iteration waste.
func (h CallbackHandle) Remove() {
	if h.reg == nil {
		return
	}
	switch h.event {
	case EventUIAction:
		h.reg.uiAction = removeActionHandler(h.reg.uiAction, h.id)
	case EventSelectStructure:
		h.reg.structure = removeStructureHandler(h.reg.structure, h.id)
	case EventAnchorScale:
		h.reg.scale = removeScaleHandler(h.reg.scale, h.id)
	case EventHoverEnter:
		h.reg.hoverEnter = removeHoverHandler(h.reg.hoverEnter, h.id)
	case EventHoverLeave:
		h.reg.hoverLeave = removeHoverHandler(h.reg.hoverLeave, h.id)
	}
}

func removeActionHandler(s []actionHandler, id uint32) []actionHandler {
	for i := range s {
		if s[i].id == id {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = actionHandler{}
			return s[:len(s)-1]
		}
	}
	return s
}

func removeStructureHandler(s []structureHandler, id uint32) []structureHandler {
	for i := range s {
		if s[i].id == id {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = structureHandler{}
			return s[:len(s)-1]
		}
	}
	return s
}

func removeScaleHandler(s []scaleHandler, id uint32) []scaleHandler {
	for i := range s {
		if s[i].id == id {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = scaleHandler{}
			return s[:len(s)-1]
		}
	}
	return s
}

func removeHoverHandler(s []hoverHandler, id uint32) []hoverHandler {
	for i := range s {
		if s[i].id == id {
			copy(s[i:], s[i+1:])
			s[len(s)-1] = hoverHandler{}
			return s[:len(s)-1]
		}
	}
	return s
}

// --- Router ---

// RouterConfig configures a Router. Anchor is required; the UI pickable set
// and the content picker are optional layers.
type RouterConfig struct {
	// Anchor is the movable content transform that gestures manipulate.
	Anchor Anchor
	// UI is the pickable registry tested before content on every selection
	// ray. Nil means no UI layer.
	UI *PickableSet
	// PickContent is the external content raycast. Nil means no content
	// layer.
	PickContent ContentPicker
}

// Router owns the map of active input sources to gesture state, subscribes
// to session lifecycle events, drives the per-frame update, and dispatches
// resolved actions to registered callbacks.
//
// Router is single-threaded by design: session callbacks and Update must run
// on the same goroutine (the host render loop). Event callbacks arriving
// between updates only mutate the record map; the next Update consumes the
// result.
type Router struct {
	anchor      Anchor
	ui          *PickableSet
	pickContent ContentPicker

	moveThreshold float64
	tapWindow     time.Duration
	scaleMin      float64
	scaleMax      float64

	records   map[SourceID]*gestureRecord
	bimanual  bimanualState
	hover     map[SourceID]*UIPickable
	sourceBuf []SourceID // reused scratch for sorted record iteration

	session     Session
	unsubscribe func()

	handlers handlerRegistry

	glide      *recenterGlide
	lastUpdate time.Time
	haveLast   bool

	now   func() time.Time
	debug bool
}

// NewRouter creates a router manipulating the given anchor. Panics if
// cfg.Anchor is nil; everything else is optional.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Anchor == nil {
		panic("marrow: RouterConfig.Anchor is required")
	}
	return &Router{
		anchor:        cfg.Anchor,
		ui:            cfg.UI,
		pickContent:   cfg.PickContent,
		moveThreshold: defaultMoveThreshold,
		tapWindow:     defaultTapWindow,
		scaleMin:      defaultScaleMin,
		scaleMax:      defaultScaleMax,
		records:       make(map[SourceID]*gestureRecord),
		hover:         make(map[SourceID]*UIPickable),
		now:           time.Now,
	}
}

// SetMoveThreshold sets the grip displacement, in world units, beyond which
// a gesture stops being a tap candidate.
func (r *Router) SetMoveThreshold(units float64) {
	r.moveThreshold = units
}

// SetTapWindow sets the longest press-to-select interval recognized as a tap.
func (r *Router) SetTapWindow(d time.Duration) {
	r.tapWindow = d
}

// SetScaleClamp sets the bounds applied to the bimanual uniform scale.
func (r *Router) SetScaleClamp(min, max float64) {
	r.scaleMin = min
	r.scaleMax = max
}

// Anchor returns the anchor this router manipulates.
func (r *Router) Anchor() Anchor { return r.anchor }

// --- Session lifecycle ---

// AttachSession subscribes the router to a session's select lifecycle. Any
// previously attached session is detached first; gesture state never crosses
// sessions.
func (r *Router) AttachSession(s Session) {
	if r.session != nil {
		r.DetachSession()
	}
	r.session = s
	r.unsubscribe = s.Subscribe(r)
	r.debugf("session attached")
}

// DetachSession unsubscribes from the current session and clears the entire
// gesture-record map atomically. A dangling record referencing a now-invalid
// source would corrupt the next session's bimanual baseline capture.
func (r *Router) DetachSession() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.session = nil
	r.clearSessionState()
	r.debugf("session detached")
}

// SessionEnded implements Listener. A session that ends abnormally is
// treated exactly as a detach.
func (r *Router) SessionEnded() {
	r.debugf("session ended")
	r.DetachSession()
}

// Attached reports whether a session is currently attached.
func (r *Router) Attached() bool { return r.session != nil }

func (r *Router) clearSessionState() {
	for id := range r.records {
		delete(r.records, id)
	}
	r.bimanual = bimanualState{}
	for id := range r.hover {
		delete(r.hover, id)
	}
	r.glide = nil
	r.haveLast = false
}

// --- Per-frame update ---

// Update advances all gesture state for one presentation frame. The host
// calls it exactly once per frame with that frame's pose-lookup capability;
// every anchor write for the frame happens inside this call.
func (r *Router) Update(frame Frame) {
	now := r.now()
	var dt float64
	if r.haveLast {
		dt = now.Sub(r.lastUpdate).Seconds()
	}
	r.lastUpdate = now
	r.haveLast = true

	r.updateGlide(dt)
	r.updateHover(frame)

	// Reconcile the bimanual pair before moving anything. A participant's
	// select-end already disengaged in SelectEnd; the check here catches the
	// remaining disqualifier, a third press since the last update.
	if r.bimanual.active && !r.bimanualQualified() {
		r.disengageBimanual()
	}
	if !r.bimanual.active && r.bimanualQualified() {
		if r.engageBimanual(frame) {
			return // baseline frame: capture only, transform next frame
		}
	}

	if r.bimanual.active {
		r.updateBimanual(frame)
		return
	}

	// Single-source path. Movement tracking runs for every record; the
	// anchor write is enabled only when exactly one gesture is active.
	applyDrag := len(r.records) == 1
	for _, id := range r.sortedSources() {
		rec := r.records[id]
		grip, ok := frame.GripPose(id)
		if !ok {
			continue // transient tracking loss: reconsider next frame
		}
		r.updateGesture(rec, grip.Position, applyDrag)
	}
}

// sortedSources returns the record map's keys in lexical order, reusing a
// scratch slice. Map iteration order must not leak into anchor math.
func (r *Router) sortedSources() []SourceID {
	r.sourceBuf = r.sourceBuf[:0]
	for id := range r.records {
		r.sourceBuf = append(r.sourceBuf, id)
	}
	sort.Slice(r.sourceBuf, func(i, j int) bool { return r.sourceBuf[i] < r.sourceBuf[j] })
	return r.sourceBuf
}

// --- Hover tracking ---

// updateHover retests each source's target ray against the UI layer and
// fires enter/leave transitions. Content is never hover-tested: per-frame
// mesh picking is a cost this core must not impose on the content layer.
func (r *Router) updateHover(frame Frame) {
	sources := frame.Sources()

	// Sources gone from the frame lose their hover.
	for id, p := range r.hover {
		if !containsSource(sources, id) {
			r.fireHoverLeave(id, p)
			delete(r.hover, id)
		}
	}

	for _, id := range sources {
		ray, ok := frame.TargetRay(id)
		if !ok {
			continue // keep the last hover through transient ray loss
		}
		var target *UIPickable
		if hit, ok := r.ui.IntersectRay(ray.Origin, ray.Dir); ok {
			target = hit.Pickable
		}
		prev := r.hover[id]
		if target == prev {
			continue
		}
		if prev != nil {
			r.fireHoverLeave(id, prev)
		}
		if target != nil {
			r.hover[id] = target
			r.fireHoverEnter(id, target)
		} else {
			delete(r.hover, id)
		}
	}
}

func containsSource(ids []SourceID, id SourceID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// --- Recenter ---

// RecenterOptions configures Recenter.
type RecenterOptions struct {
	// Distance along the viewer's forward direction to place the anchor.
	Distance float64
	// VerticalOffset is added to the anchor's Y after placement.
	VerticalOffset float64
	// YawOnly flattens the forward direction and orients by yaw alone,
	// facing the viewer. See PlaceInFront.
	YawOnly bool
	// Duration animates the move when positive; zero snaps immediately.
	Duration time.Duration
	// Ease shapes the animation. Nil uses ease.OutQuad.
	Ease ease.TweenFunc
}

// recenterGlide interpolates the anchor toward a recenter target.
type recenterGlide struct {
	tween *gween.Tween // progress 0→1
	from  AnchorTransform
	to    AnchorTransform
}

// Recenter places the anchor in front of the viewer. A zero Duration applies
// PlaceInFront immediately; otherwise position, orientation, and scale glide
// to the target over the duration, and any select gesture cancels the
// animation in favor of direct manipulation.
func (r *Router) Recenter(viewer Pose, opts RecenterOptions) {
	if opts.Duration <= 0 {
		r.glide = nil
		PlaceInFront(r.anchor, viewer, opts.Distance, opts.VerticalOffset, opts.YawOnly)
		return
	}
	easeFn := opts.Ease
	if easeFn == nil {
		easeFn = ease.OutQuad
	}
	r.glide = &recenterGlide{
		tween: gween.New(0, 1, float32(opts.Duration.Seconds()), easeFn),
		from:  CaptureTransform(r.anchor),
		to:    FrontTransform(viewer, opts.Distance, opts.VerticalOffset, opts.YawOnly, r.anchor.Scale()),
	}
	r.debugf("recenter glide over %v", opts.Duration)
}

// Recentering reports whether a recenter animation is in progress.
func (r *Router) Recentering() bool { return r.glide != nil }

func (r *Router) updateGlide(dt float64) {
	if r.glide == nil {
		return
	}
	if len(r.records) > 0 {
		// A gesture took over the anchor; drop the animation.
		r.glide = nil
		return
	}
	g := r.glide
	v, done := g.tween.Update(float32(dt))
	if done {
		r.glide = nil
		RestoreTransform(r.anchor, g.to)
		return
	}
	t := float64(v)
	// Slerp along the shorter arc: q and -q are the same rotation, and
	// interpolating toward the antipodal form degenerates.
	to := g.to.Orientation
	if g.from.Orientation.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	r.anchor.SetPosition(g.from.Position.Add(g.to.Position.Sub(g.from.Position).Mul(t)))
	r.anchor.SetOrientation(mgl64.QuatSlerp(g.from.Orientation, to, t))
	r.anchor.SetScale(g.from.Scale.Add(g.to.Scale.Sub(g.from.Scale).Mul(t)))
}

// --- Callback registration ---

// OnUIAction registers a callback fired when a tap resolves on a UI
// pickable.
func (r *Router) OnUIAction(fn func(UIActionContext)) CallbackHandle {
	r.handlers.nextID++
	id := r.handlers.nextID
	r.handlers.uiAction = append(r.handlers.uiAction, actionHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &r.handlers, event: EventUIAction}
}

// OnSelectStructure registers a callback fired when a tap resolves against
// content. The context's Structure is empty when the tap hit nothing.
func (r *Router) OnSelectStructure(fn func(SelectContext)) CallbackHandle {
	r.handlers.nextID++
	id := r.handlers.nextID
	r.handlers.structure = append(r.handlers.structure, structureHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &r.handlers, event: EventSelectStructure}
}

// OnAnchorScale registers a callback fired when bimanual manipulation
// changes the anchor's uniform scale.
func (r *Router) OnAnchorScale(fn func(ScaleContext)) CallbackHandle {
	r.handlers.nextID++
	id := r.handlers.nextID
	r.handlers.scale = append(r.handlers.scale, scaleHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &r.handlers, event: EventAnchorScale}
}

// OnHoverEnter registers a callback fired when a source's target ray moves
// onto a UI pickable.
func (r *Router) OnHoverEnter(fn func(HoverContext)) CallbackHandle {
	r.handlers.nextID++
	id := r.handlers.nextID
	r.handlers.hoverEnter = append(r.handlers.hoverEnter, hoverHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &r.handlers, event: EventHoverEnter}
}

// OnHoverLeave registers a callback fired when a source's target ray moves
// off a UI pickable.
func (r *Router) OnHoverLeave(fn func(HoverContext)) CallbackHandle {
	r.handlers.nextID++
	id := r.handlers.nextID
	r.handlers.hoverLeave = append(r.handlers.hoverLeave, hoverHandler{id: id, fn: fn})
	return CallbackHandle{id: id, reg: &r.handlers, event: EventHoverLeave}
}

// --- Dispatch ---

func (r *Router) fireUIAction(source SourceID, hit UIHit) {
	ctx := UIActionContext{
		Source:   source,
		Action:   hit.Pickable.Action,
		Pickable: hit.Pickable,
		Point:    hit.Point,
		Distance: hit.Distance,
	}
	for _, h := range r.handlers.uiAction {
		h.fn(ctx)
	}
}

func (r *Router) fireSelectStructure(source SourceID, id StructureID) {
	ctx := SelectContext{Source: source, Structure: id}
	for _, h := range r.handlers.structure {
		h.fn(ctx)
	}
}

func (r *Router) fireAnchorScale(scale, ratio float64) {
	ctx := ScaleContext{Scale: scale, Ratio: ratio}
	for _, h := range r.handlers.scale {
		h.fn(ctx)
	}
}

func (r *Router) fireHoverEnter(source SourceID, p *UIPickable) {
	ctx := HoverContext{Source: source, Pickable: p}
	for _, h := range r.handlers.hoverEnter {
		h.fn(ctx)
	}
}

func (r *Router) fireHoverLeave(source SourceID, p *UIPickable) {
	ctx := HoverContext{Source: source, Pickable: p}
	for _, h := range r.handlers.hoverLeave {
		h.fn(ctx)
	}
}

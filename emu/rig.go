// Package emu is a desktop stand-in for an XR device: a mouse- and
// keyboard-driven rig that feeds a marrow router through the same
// Session/Frame interfaces a headset adapter would, with a top-down 2D view
// of the interaction plane so gestures can be exercised and debugged without
// hardware.
//
// Controls:
//
//   - Mouse moves the right hand; the pointing ray runs from the viewer
//     through the hand.
//   - Left mouse button presses and releases the hand (tap or drag).
//   - Holding Shift tracks a second, left hand at a fixed gap from the
//     right; pressing while both are tracked engages bimanual manipulation.
//   - Mouse wheel widens or narrows the hand gap (bimanual scale).
//   - Q / E turn the hand pair (bimanual yaw).
//   - R recenters the model instantly; T recenters with a short glide.
//   - Space holds a synthetic 40 ms frame time against the quality governor.
//   - 1 / 2 / 3 reset the governor to low / medium / high.
//   - D toggles debug logging.
package emu

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/marrow"
)

const (
	// HandHeight is the Y of the horizontal plane all emulated interaction
	// happens in: hands, rays, panels, and content share it so every ray can
	// reach every target.
	HandHeight = 1.4

	// viewerOffset is the viewer's Z. Hands and content extend toward -Z.
	viewerOffset = 1.2

	defaultWidth  = 800
	defaultHeight = 600
	defaultPPU    = 150.0 // pixels per world unit

	minHandGap  = 0.08
	maxHandGap  = 1.2
	handGapStep = 0.05
	turnRate    = 1.2 // hand-pair turn, radians per second

	// slowFrame is the synthetic frame time reported while Space is held,
	// pushing the p95 over the step-down threshold.
	slowFrame = 40 * time.Millisecond
)

const (
	sourceRight = marrow.SourceID("right")
	sourceLeft  = marrow.SourceID("left")
)

// Config sizes the window and the projection.
type Config struct {
	Title         string
	Width, Height int
	PixelsPerUnit float64 // world-to-screen scale; 0 selects a default
	ShowHelp      bool    // append the control legend to the HUD
}

// Rig is an ebiten.Game that owns a synthetic session, a router, and a
// quality governor, converting desktop input into spatial input every tick.
type Rig struct {
	cfg Config

	session  *marrow.SyntheticSession
	router   *marrow.Router
	governor *marrow.PerfGovernor
	anchor   *marrow.BasicAnchor
	ui       *marrow.PickableSet
	index    *marrow.SphereIndex

	panels     []panelShape
	structures []structureShape

	// display state fed by router callbacks
	hovered    map[*marrow.UIPickable]bool
	selected   marrow.StructureID
	lastAction marrow.UIAction
	actionAge  int

	// input state
	right      mgl64.Vec3
	left       mgl64.Vec3
	handGap    float64
	handAngle  float64
	buttonDown bool
	leftActive bool
	leftDown   bool
	prevKeys   map[ebiten.Key]bool
	debugOn    bool

	lastTick time.Time
	haveTick bool
	sample   marrow.PerfSample
}

type panelShape struct {
	pickable *marrow.UIPickable
	center   mgl64.Vec3
	u, v     mgl64.Vec3 // quad half extents; zero for round buttons
	radius   float64
}

type structureShape struct {
	id     marrow.StructureID
	center mgl64.Vec3 // anchor-local
	radius float64
}

// NewRig assembles an empty world: an anchor two units in front of the
// viewer, no panels, no structures. Populate it with AddPanel, AddButton,
// and AddStructure before running.
func NewRig(cfg Config) *Rig {
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	if cfg.PixelsPerUnit <= 0 {
		cfg.PixelsPerUnit = defaultPPU
	}

	anchor := marrow.NewBasicAnchor()
	anchor.SetPosition(mgl64.Vec3{0, HandHeight, -2})
	anchor.UpdateWorldMatrix()

	ui := marrow.NewPickableSet()
	index := marrow.NewSphereIndex(anchor)

	session := marrow.NewSyntheticSession()
	session.SetViewerPose(marrow.PoseAt(0, HandHeight, viewerOffset))

	router := marrow.NewRouter(marrow.RouterConfig{
		Anchor:      anchor,
		UI:          ui,
		PickContent: index.Pick,
	})
	router.AttachSession(session)

	rig := &Rig{
		cfg:      cfg,
		session:  session,
		router:   router,
		governor: marrow.NewPerfGovernor(marrow.TierHigh),
		anchor:   anchor,
		ui:       ui,
		index:    index,
		hovered:  make(map[*marrow.UIPickable]bool),
		handGap:  0.3,
		prevKeys: make(map[ebiten.Key]bool),
	}
	rig.sample.Tier = rig.governor.Tier()

	router.OnHoverEnter(func(ctx marrow.HoverContext) { rig.hovered[ctx.Pickable] = true })
	router.OnHoverLeave(func(ctx marrow.HoverContext) { delete(rig.hovered, ctx.Pickable) })
	router.OnSelectStructure(func(ctx marrow.SelectContext) { rig.selected = ctx.Structure })
	router.OnUIAction(func(ctx marrow.UIActionContext) {
		rig.lastAction = ctx.Action
		rig.actionAge = 0
	})
	return rig
}

// Router returns the rig's router, for registering host callbacks.
func (r *Rig) Router() *marrow.Router { return r.router }

// Governor returns the rig's quality governor.
func (r *Rig) Governor() *marrow.PerfGovernor { return r.governor }

// Session returns the synthetic session the rig drives.
func (r *Rig) Session() *marrow.SyntheticSession { return r.session }

// Anchor returns the movable content anchor.
func (r *Rig) Anchor() *marrow.BasicAnchor { return r.anchor }

// AddPanel registers a rectangular UI panel. u and v are the half-extent
// vectors of the quad. The emulator's pointing rays run in the interaction
// plane, so a panel lying flat in that plane is parallel to every ray and
// can never be hit: stand panels upright, u in the plane and v vertical.
// The returned pickable can be named or disabled.
func (r *Rig) AddPanel(action marrow.UIAction, center, u, v mgl64.Vec3) *marrow.UIPickable {
	p := r.ui.Add(action, marrow.HitQuad{Center: center, U: u, V: v})
	r.panels = append(r.panels, panelShape{pickable: p, center: center, u: u, v: v})
	return p
}

// AddButton registers a round UI button.
func (r *Rig) AddButton(action marrow.UIAction, center mgl64.Vec3, radius float64) *marrow.UIPickable {
	p := r.ui.Add(action, marrow.HitSphere{Center: center, Radius: radius})
	r.panels = append(r.panels, panelShape{pickable: p, center: center, radius: radius})
	return p
}

// AddStructure registers a selectable content sphere, in anchor-local
// coordinates, so it travels with the anchor as gestures move it.
func (r *Rig) AddStructure(id marrow.StructureID, center mgl64.Vec3, radius float64) {
	r.index.Add(id, center, radius)
	r.structures = append(r.structures, structureShape{id: id, center: center, radius: radius})
}

// Update implements ebiten.Game: it polls desktop input into the synthetic
// session, advances the router, and feeds the governor one frame time.
func (r *Rig) Update() error {
	r.pollInput()
	r.router.Update(r.session)

	frameTime := r.measureFrame()
	if ebiten.IsKeyPressed(ebiten.KeySpace) {
		frameTime = slowFrame
	}
	r.sample = r.governor.RecordFrame(frameTime)

	r.actionAge++
	return nil
}

// Layout implements ebiten.Game.
func (r *Rig) Layout(int, int) (int, int) {
	return r.cfg.Width, r.cfg.Height
}

func (r *Rig) measureFrame() time.Duration {
	now := time.Now()
	if !r.haveTick {
		r.haveTick = true
		r.lastTick = now
		return time.Second / time.Duration(ebiten.TPS())
	}
	ft := now.Sub(r.lastTick)
	r.lastTick = now
	return ft
}

func (r *Rig) pollInput() {
	dt := 1.0 / float64(ebiten.TPS())

	mx, my := ebiten.CursorPosition()
	r.right = r.screenToWorld(mx, my)

	if ebiten.IsKeyPressed(ebiten.KeyQ) {
		r.handAngle += turnRate * dt
	}
	if ebiten.IsKeyPressed(ebiten.KeyE) {
		r.handAngle -= turnRate * dt
	}

	_, wheelY := ebiten.Wheel()
	if wheelY != 0 {
		r.handGap += wheelY * handGapStep
		if r.handGap < minHandGap {
			r.handGap = minHandGap
		}
		if r.handGap > maxHandGap {
			r.handGap = maxHandGap
		}
	}
	r.left = r.right.Add(mgl64.Vec3{
		-r.handGap * math.Cos(r.handAngle),
		0,
		r.handGap * math.Sin(r.handAngle),
	})

	r.session.SetGripPosition(sourceRight, r.right)
	r.session.SetTargetRay(sourceRight, r.rayThrough(r.right))

	shift := ebiten.IsKeyPressed(ebiten.KeyShift) ||
		ebiten.IsKeyPressed(ebiten.KeyShiftLeft) ||
		ebiten.IsKeyPressed(ebiten.KeyShiftRight)
	switch {
	case shift && !r.leftActive:
		r.leftActive = true
		r.session.SetGripPosition(sourceLeft, r.left)
		r.session.SetTargetRay(sourceLeft, r.rayThrough(r.left))
		if r.buttonDown {
			// Modifier joined mid-press: the left hand presses too, so the
			// pair can engage without re-clicking.
			r.session.StartSelect(sourceLeft)
			r.leftDown = true
		}
	case !shift && r.leftActive:
		if r.leftDown {
			r.session.CancelSelect(sourceLeft)
			r.leftDown = false
		}
		r.session.RemoveSource(sourceLeft)
		r.leftActive = false
	case r.leftActive:
		r.session.SetGripPosition(sourceLeft, r.left)
		r.session.SetTargetRay(sourceLeft, r.rayThrough(r.left))
	}

	down := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	if down != r.buttonDown {
		r.buttonDown = down
		if down {
			r.session.StartSelect(sourceRight)
			if r.leftActive {
				r.session.StartSelect(sourceLeft)
				r.leftDown = true
			}
		} else {
			r.session.CompleteSelect(sourceRight)
			if r.leftDown {
				r.session.CompleteSelect(sourceLeft)
				r.leftDown = false
			}
		}
	}

	r.keyEdge(ebiten.KeyR, func() { r.recenter(0) })
	r.keyEdge(ebiten.KeyT, func() { r.recenter(800 * time.Millisecond) })
	r.keyEdge(ebiten.KeyD, func() {
		r.debugOn = !r.debugOn
		r.router.SetDebugMode(r.debugOn)
		r.governor.SetDebugMode(r.debugOn)
	})
	r.keyEdge(ebiten.KeyDigit1, func() { r.governor.Reset(marrow.TierLow) })
	r.keyEdge(ebiten.KeyDigit2, func() { r.governor.Reset(marrow.TierMedium) })
	r.keyEdge(ebiten.KeyDigit3, func() { r.governor.Reset(marrow.TierHigh) })
}

// keyEdge runs fn on the pressed edge of key.
func (r *Rig) keyEdge(key ebiten.Key, fn func()) {
	down := ebiten.IsKeyPressed(key)
	if down && !r.prevKeys[key] {
		fn()
	}
	r.prevKeys[key] = down
}

func (r *Rig) recenter(d time.Duration) {
	viewer, ok := r.session.ViewerPose()
	if !ok {
		return
	}
	r.router.Recenter(viewer, marrow.RecenterOptions{
		Distance: 1.6,
		YawOnly:  true,
		Duration: d,
	})
}

// rayThrough returns the pointing ray for a hand: originating at the hand,
// aimed from the viewer through it, so mouse position reads as aim.
func (r *Rig) rayThrough(hand mgl64.Vec3) marrow.Ray {
	dir := hand.Sub(mgl64.Vec3{0, HandHeight, viewerOffset})
	if dir.Len() < 1e-9 {
		dir = mgl64.Vec3{0, 0, -1}
	}
	return marrow.Ray{Origin: hand, Dir: dir}
}

func (r *Rig) screenToWorld(mx, my int) mgl64.Vec3 {
	ppu := r.cfg.PixelsPerUnit
	x := (float64(mx) - float64(r.cfg.Width)/2) / ppu
	z := viewerOffset - (float64(r.cfg.Height)-float64(my))/ppu
	return mgl64.Vec3{x, HandHeight, z}
}

func (r *Rig) worldToScreen(p mgl64.Vec3) (float32, float32) {
	ppu := r.cfg.PixelsPerUnit
	sx := float64(r.cfg.Width)/2 + p[0]*ppu
	sy := float64(r.cfg.Height) - (viewerOffset-p[2])*ppu
	return float32(sx), float32(sy)
}

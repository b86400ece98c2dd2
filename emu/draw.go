package emu

import (
	"fmt"
	"strings"
	"time"

	"image/color"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

var (
	colorBackground = color.RGBA{16, 17, 22, 255}
	colorPanel      = color.RGBA{92, 122, 160, 255}
	colorPanelHot   = color.RGBA{168, 204, 255, 255}
	colorPanelOff   = color.RGBA{60, 64, 72, 255}
	colorStructure  = color.RGBA{76, 116, 138, 255}
	colorSelected   = color.RGBA{235, 188, 84, 255}
	colorAnchor     = color.RGBA{120, 216, 160, 255}
	colorRightHand  = color.RGBA{236, 238, 240, 255}
	colorLeftHand   = color.RGBA{255, 164, 122, 255}
	colorRay        = color.RGBA{88, 92, 110, 255}
	colorGapLine    = color.RGBA{200, 180, 120, 255}
)

// Draw implements ebiten.Game: a top-down view of the interaction plane.
// North on screen is -Z in world space; the viewer sits at the bottom edge.
func (r *Rig) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)
	r.drawStructures(screen)
	r.drawPanels(screen)
	r.drawAnchor(screen)
	r.drawHands(screen)
	r.drawHUD(screen)
}

func (r *Rig) drawStructures(screen *ebiten.Image) {
	scale := r.anchor.Scale()[0]
	for _, s := range r.structures {
		cx, cy := r.worldToScreen(r.anchor.TransformPoint(s.center))
		rad := float32(s.radius * scale * r.cfg.PixelsPerUnit)
		clr := colorStructure
		if s.id == r.selected {
			clr = colorSelected
		}
		vector.DrawFilledCircle(screen, cx, cy, rad, fade(clr, 72), true)
		vector.StrokeCircle(screen, cx, cy, rad, 1.5, clr, true)
		ebitenutil.DebugPrintAt(screen, string(s.id), int(cx)-3*len(s.id), int(cy+rad)+2)
	}
}

func (r *Rig) drawPanels(screen *ebiten.Image) {
	for _, p := range r.panels {
		clr := colorPanel
		width := float32(1.5)
		switch {
		case !p.pickable.Enabled:
			clr = colorPanelOff
		case r.hovered[p.pickable]:
			clr = colorPanelHot
			width = 3
		}
		cx, cy := r.worldToScreen(p.center)
		if p.radius > 0 {
			vector.StrokeCircle(screen, cx, cy, float32(p.radius*r.cfg.PixelsPerUnit), width, clr, true)
		} else {
			corners := [4]mgl64.Vec3{
				p.center.Sub(p.u).Sub(p.v),
				p.center.Add(p.u).Sub(p.v),
				p.center.Add(p.u).Add(p.v),
				p.center.Sub(p.u).Add(p.v),
			}
			var xs, ys [4]float32
			for i, c := range corners {
				xs[i], ys[i] = r.worldToScreen(c)
			}
			for i := 0; i < 4; i++ {
				j := (i + 1) % 4
				vector.StrokeLine(screen, xs[i], ys[i], xs[j], ys[j], width, clr, true)
			}
		}
		label := p.pickable.Name
		if label == "" {
			label = string(p.pickable.Action)
		}
		ebitenutil.DebugPrintAt(screen, label, int(cx)-3*len(label), int(cy)-8)
	}
}

// drawAnchor marks the anchor origin and its forward direction, so yaw from
// bimanual turns and recenter glides reads directly off the screen.
func (r *Rig) drawAnchor(screen *ebiten.Image) {
	pos := r.anchor.Position()
	cx, cy := r.worldToScreen(pos)
	vector.StrokeCircle(screen, cx, cy, 5, 1.5, colorAnchor, true)
	fwd := r.anchor.Orientation().Rotate(mgl64.Vec3{0, 0, -1}).Mul(0.25)
	fx, fy := r.worldToScreen(pos.Add(fwd))
	vector.StrokeLine(screen, cx, cy, fx, fy, 1.5, colorAnchor, true)
}

func (r *Rig) drawHands(screen *ebiten.Image) {
	rx, ry := r.worldToScreen(r.right)
	r.drawRay(screen, r.right)
	size := float32(4)
	if r.buttonDown {
		size = 7
	}
	vector.DrawFilledCircle(screen, rx, ry, size, colorRightHand, true)

	if !r.leftActive {
		return
	}
	lx, ly := r.worldToScreen(r.left)
	r.drawRay(screen, r.left)
	size = 4
	if r.leftDown {
		size = 7
	}
	vector.DrawFilledCircle(screen, lx, ly, size, colorLeftHand, true)
	if r.buttonDown && r.leftDown {
		vector.StrokeLine(screen, rx, ry, lx, ly, 1, colorGapLine, true)
	}
}

func (r *Rig) drawRay(screen *ebiten.Image, hand mgl64.Vec3) {
	ray := r.rayThrough(hand)
	tip := ray.Origin.Add(ray.Dir.Normalize().Mul(4))
	hx, hy := r.worldToScreen(hand)
	tx, ty := r.worldToScreen(tip)
	vector.StrokeLine(screen, hx, hy, tx, ty, 1, fade(colorRay, 140), true)
}

func (r *Rig) drawHUD(screen *ebiten.Image) {
	var b strings.Builder
	fmt.Fprintf(&b, "FPS %5.1f  TPS %5.1f\n", ebiten.ActualFPS(), ebiten.ActualTPS())
	fmt.Fprintf(&b, "tier %s  p95 %.1fms  scale %.2f\n",
		r.sample.Tier, float64(r.sample.P95)/float64(time.Millisecond), r.anchor.Scale()[0])
	for _, g := range r.router.ActiveGestures() {
		state := "pending"
		switch {
		case g.Bimanual:
			state = "bimanual"
		case g.Moved:
			state = "drag"
		case !g.AllowDrag:
			state = "ui"
		}
		fmt.Fprintf(&b, "%s %s %dms\n", g.Source, state, g.Duration.Milliseconds())
	}
	if r.selected != "" {
		fmt.Fprintf(&b, "selected %s\n", r.selected)
	}
	if r.lastAction != "" && r.actionAge < 120 {
		fmt.Fprintf(&b, "ui %s\n", r.lastAction)
	}
	if r.router.Recentering() {
		b.WriteString("recentering\n")
	}
	if r.cfg.ShowHelp {
		b.WriteString("\nclick tap/drag  shift both hands  wheel gap  Q/E turn\nR/T recenter  space load  1-3 tier  D debug")
	}
	ebitenutil.DebugPrint(screen, b.String())
}

// fade dims a color to the given alpha, keeping it premultiplied.
func fade(c color.RGBA, a uint8) color.RGBA {
	f := uint32(a)
	return color.RGBA{
		R: uint8(uint32(c.R) * f / 255),
		G: uint8(uint32(c.G) * f / 255),
		B: uint8(uint32(c.B) * f / 255),
		A: a,
	}
}

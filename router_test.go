package marrow

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween/ease"
)

// --- Hover tracking ---

func TestHoverEnterAndLeave(t *testing.T) {
	rig := newTestRig()
	rig.ui.Add("reset", HitSphere{Center: mgl64.Vec3{0, 1.4, -0.5}, Radius: 0.04})
	var entered, left []HoverContext
	rig.router.OnHoverEnter(func(ctx HoverContext) { entered = append(entered, ctx) })
	rig.router.OnHoverLeave(func(ctx HoverContext) { left = append(left, ctx) })

	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{0, 1.4, 0}, Dir: mgl64.Vec3{0, 0, -1}})
	rig.frame()
	if len(entered) != 1 || len(left) != 0 {
		t.Fatalf("after pointing at button: entered %d left %d, want 1/0", len(entered), len(left))
	}
	if entered[0].Source != "right" || entered[0].Pickable.Action != "reset" {
		t.Errorf("enter ctx = %+v", entered[0])
	}

	// Holding still fires nothing further.
	rig.frame()
	if len(entered) != 1 || len(left) != 0 {
		t.Fatalf("hover must not refire while held: entered %d left %d", len(entered), len(left))
	}

	// Pointing away leaves.
	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{0, 1.4, 0}, Dir: mgl64.Vec3{0, 1, 0}})
	rig.frame()
	if len(left) != 1 {
		t.Fatalf("expected 1 leave, got %d", len(left))
	}
	if left[0].Pickable.Action != "reset" {
		t.Errorf("leave ctx = %+v", left[0])
	}
}

func TestHoverSwitchesPickable(t *testing.T) {
	rig := newTestRig()
	rig.ui.Add("a", HitSphere{Center: mgl64.Vec3{-0.2, 1.4, -0.5}, Radius: 0.05})
	rig.ui.Add("b", HitSphere{Center: mgl64.Vec3{0.2, 1.4, -0.5}, Radius: 0.05})
	var events []string
	rig.router.OnHoverEnter(func(ctx HoverContext) { events = append(events, "enter "+string(ctx.Pickable.Action)) })
	rig.router.OnHoverLeave(func(ctx HoverContext) { events = append(events, "leave "+string(ctx.Pickable.Action)) })

	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{-0.2, 1.4, 0}, Dir: mgl64.Vec3{0, 0, -1}})
	rig.frame()
	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{0.2, 1.4, 0}, Dir: mgl64.Vec3{0, 0, -1}})
	rig.frame()

	want := []string{"enter a", "leave a", "enter b"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestHoverSurvivesRayLoss(t *testing.T) {
	rig := newTestRig()
	rig.ui.Add("reset", HitSphere{Center: mgl64.Vec3{0, 1.4, -0.5}, Radius: 0.04})
	var leaves int
	rig.router.OnHoverLeave(func(HoverContext) { leaves++ })

	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{0, 1.4, 0}, Dir: mgl64.Vec3{0, 0, -1}})
	rig.frame()

	// Transient ray loss keeps the last hover rather than flickering.
	rig.session.ClearTargetRay("right")
	rig.frame()
	if leaves != 0 {
		t.Errorf("ray loss should not fire leave, got %d", leaves)
	}
}

func TestHoverLeaveWhenSourceVanishes(t *testing.T) {
	rig := newTestRig()
	rig.ui.Add("reset", HitSphere{Center: mgl64.Vec3{0, 1.4, -0.5}, Radius: 0.04})
	var leaves int
	rig.router.OnHoverLeave(func(HoverContext) { leaves++ })

	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{0, 1.4, 0}, Dir: mgl64.Vec3{0, 0, -1}})
	rig.frame()

	rig.session.RemoveSource("right")
	rig.frame()
	if leaves != 1 {
		t.Errorf("vanished source should fire leave, got %d", leaves)
	}
}

func TestHoverIgnoresContent(t *testing.T) {
	rig := newTestRig()
	rig.index.Add("heart", mgl64.Vec3{0, 1.4, -2}, 0.5)
	var enters int
	rig.router.OnHoverEnter(func(HoverContext) { enters++ })

	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{0, 1.4, 0}, Dir: mgl64.Vec3{0, 0, -1}})
	rig.frame()
	if enters != 0 {
		t.Errorf("content must not produce hover events, got %d", enters)
	}
}

func TestHoverClearedOnDetach(t *testing.T) {
	rig := newTestRig()
	rig.ui.Add("reset", HitSphere{Center: mgl64.Vec3{0, 1.4, -0.5}, Radius: 0.04})
	var enters, leaves int
	rig.router.OnHoverEnter(func(HoverContext) { enters++ })
	rig.router.OnHoverLeave(func(HoverContext) { leaves++ })

	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{0, 1.4, 0}, Dir: mgl64.Vec3{0, 0, -1}})
	rig.frame()

	// Detach drops hover silently; the next attachment starts clean and the
	// same pickable can be entered again.
	rig.router.DetachSession()
	if leaves != 0 {
		t.Errorf("detach should not fire leave, got %d", leaves)
	}
	rig.router.AttachSession(rig.session)
	rig.frame()
	if enters != 2 {
		t.Errorf("re-entering after detach should fire again, enters = %d", enters)
	}
}

// --- Recenter ---

func TestRecenterImmediate(t *testing.T) {
	rig := newTestRig()
	rig.anchor.SetPosition(mgl64.Vec3{5, 5, 5})

	rig.router.Recenter(PoseAt(0, 1.6, 0), RecenterOptions{
		Distance:       0.6,
		VerticalOffset: -0.1,
		YawOnly:        true,
	})

	assertVec3(t, "anchor position", rig.anchor.Position(), mgl64.Vec3{0, 1.5, -0.6})
	if rig.router.Recentering() {
		t.Error("immediate recenter should not leave an animation running")
	}
	if rig.anchor.worldDirty {
		t.Error("immediate recenter should refresh the world matrix")
	}
}

func TestRecenterGlide(t *testing.T) {
	rig := newTestRig()
	rig.frame() // prime the update clock

	rig.router.Recenter(PoseAt(0, 1.6, 0), RecenterOptions{
		Distance: 0.6,
		YawOnly:  true,
		Duration: time.Second,
		Ease:     ease.Linear,
	})
	if !rig.router.Recentering() {
		t.Fatal("glide should be in progress after Recenter with a duration")
	}

	rig.advance(500 * time.Millisecond)
	rig.router.Update(rig.session)
	assertVec3(t, "midway position", rig.anchor.Position(), mgl64.Vec3{0, 0.8, -0.3})
	if !rig.router.Recentering() {
		t.Fatal("glide should still be in progress at the midpoint")
	}

	rig.advance(600 * time.Millisecond)
	rig.router.Update(rig.session)
	assertVec3(t, "final position", rig.anchor.Position(), mgl64.Vec3{0, 1.6, -0.6})
	assertFacing(t, "final orientation", rig.anchor.Orientation(), mgl64.Vec3{0, 0, -1})
	if rig.router.Recentering() {
		t.Error("glide should be finished")
	}
	if rig.anchor.worldDirty {
		t.Error("glide completion should refresh the world matrix")
	}
}

func TestRecenterGlidePreservesScale(t *testing.T) {
	rig := newTestRig()
	rig.anchor.SetScale(mgl64.Vec3{0.3, 0.3, 0.3})
	rig.frame()

	rig.router.Recenter(PoseAt(0, 1.6, 0), RecenterOptions{
		Distance: 0.6,
		YawOnly:  true,
		Duration: time.Second,
		Ease:     ease.Linear,
	})
	rig.advance(500 * time.Millisecond)
	rig.router.Update(rig.session)
	assertVec3(t, "midway scale", rig.anchor.Scale(), mgl64.Vec3{0.3, 0.3, 0.3})

	rig.advance(600 * time.Millisecond)
	rig.router.Update(rig.session)
	assertVec3(t, "final scale", rig.anchor.Scale(), mgl64.Vec3{0.3, 0.3, 0.3})
}

func TestRecenterCancelledByGesture(t *testing.T) {
	rig := newTestRig()
	rig.frame()

	rig.router.Recenter(PoseAt(0, 1.6, 0), RecenterOptions{
		Distance: 0.6,
		Duration: time.Second,
	})

	// A press before the next update cancels the animation outright: direct
	// manipulation wins over automated placement.
	rig.session.StartSelect("right")
	rig.frame()

	if rig.router.Recentering() {
		t.Error("gesture should cancel the recenter glide")
	}
	assertVec3(t, "anchor position", rig.anchor.Position(), mgl64.Vec3{})
}

func TestRecenterDefaultEase(t *testing.T) {
	rig := newTestRig()
	rig.frame()

	rig.router.Recenter(PoseAt(0, 1.6, 0), RecenterOptions{
		Distance: 0.6,
		Duration: 100 * time.Millisecond,
	})
	rig.advance(200 * time.Millisecond)
	rig.router.Update(rig.session)

	assertVec3(t, "final position", rig.anchor.Position(), mgl64.Vec3{0, 1.6, -0.6})
	if rig.router.Recentering() {
		t.Error("glide should complete with the default ease")
	}
}

// --- Callback handles ---

func TestCallbackHandleRemove(t *testing.T) {
	rig := newTestRig()
	var first, second int
	handle := rig.router.OnSelectStructure(func(SelectContext) { first++ })
	rig.router.OnSelectStructure(func(SelectContext) { second++ })

	handle.Remove()

	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{}, Dir: mgl64.Vec3{0, 1, 0}})
	rig.session.StartSelect("right")
	rig.session.CompleteSelect("right")

	if first != 0 {
		t.Errorf("removed handler fired %d times", first)
	}
	if second != 1 {
		t.Errorf("remaining handler fired %d times, want 1", second)
	}
}

func TestCallbackHandleRemoveIdempotent(t *testing.T) {
	rig := newTestRig()
	handle := rig.router.OnAnchorScale(func(ScaleContext) {})
	handle.Remove()
	handle.Remove() // second removal is a no-op

	var zero CallbackHandle
	zero.Remove() // zero-value handle is inert
}

func TestCallbackRemoveOnlyTargetsItsEvent(t *testing.T) {
	rig := newTestRig()
	var hovers int
	rig.router.OnHoverEnter(func(HoverContext) { hovers++ })
	actionHandle := rig.router.OnUIAction(func(UIActionContext) {})
	actionHandle.Remove()

	rig.ui.Add("reset", HitSphere{Center: mgl64.Vec3{0, 1.4, -0.5}, Radius: 0.04})
	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{0, 1.4, 0}, Dir: mgl64.Vec3{0, 0, -1}})
	rig.frame()

	if hovers != 1 {
		t.Errorf("unrelated handler should survive removal, hovers = %d", hovers)
	}
}

// --- Configuration ---

func TestNewRouterRequiresAnchor(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a nil anchor")
		}
	}()
	NewRouter(RouterConfig{})
}

func TestRouterAnchorAccessor(t *testing.T) {
	anchor := NewBasicAnchor()
	router := NewRouter(RouterConfig{Anchor: anchor})
	if router.Anchor() != Anchor(anchor) {
		t.Error("Anchor() should return the configured anchor")
	}
}

func TestSetMoveThreshold(t *testing.T) {
	rig := newTestRig()
	rig.router.SetMoveThreshold(0.5)
	var selects int
	rig.router.OnSelectStructure(func(SelectContext) { selects++ })

	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{}, Dir: mgl64.Vec3{0, 1, 0}})
	rig.session.SetGripPosition("right", mgl64.Vec3{0, 1, 0})
	rig.session.StartSelect("right")
	rig.frame()
	rig.session.SetGripPosition("right", mgl64.Vec3{0.1, 1, 0})
	rig.frame()
	rig.session.CompleteSelect("right")

	if selects != 1 {
		t.Errorf("0.1 of travel under a 0.5 threshold should still tap, selects = %d", selects)
	}
}

func TestSetTapWindow(t *testing.T) {
	rig := newTestRig()
	rig.router.SetTapWindow(50 * time.Millisecond)
	var selects int
	rig.router.OnSelectStructure(func(SelectContext) { selects++ })

	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{}, Dir: mgl64.Vec3{0, 1, 0}})
	rig.session.StartSelect("right")
	rig.advance(100 * time.Millisecond)
	rig.session.CompleteSelect("right")

	if selects != 0 {
		t.Errorf("release beyond a shortened tap window must not tap, selects = %d", selects)
	}
}

func TestRouterWithoutOptionalLayers(t *testing.T) {
	anchor := NewBasicAnchor()
	router := NewRouter(RouterConfig{Anchor: anchor})
	session := NewSyntheticSession()
	router.AttachSession(session)
	var selects []SelectContext
	router.OnSelectStructure(func(ctx SelectContext) { selects = append(selects, ctx) })

	// No UI set, no content picker: a tap still resolves (to nothing).
	session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{}, Dir: mgl64.Vec3{0, 0, -1}})
	session.StartSelect("right")
	router.Update(session)
	session.CompleteSelect("right")

	if len(selects) != 1 || selects[0].Structure != "" {
		t.Errorf("selects = %+v, want one empty selection", selects)
	}
}

// --- Benchmarks ---

func BenchmarkRouterUpdateIdle(b *testing.B) {
	rig := newTestRig()
	rig.ui.Add("reset", HitSphere{Center: mgl64.Vec3{0, 1.4, -0.5}, Radius: 0.04})
	rig.session.SetTargetRay("right", Ray{Origin: mgl64.Vec3{0, 1.4, 0}, Dir: mgl64.Vec3{0, 0, -1}})
	rig.session.SetGripPosition("right", mgl64.Vec3{0, 1.5, -0.3})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rig.router.Update(rig.session)
	}
}

func BenchmarkRouterUpdateSingleDrag(b *testing.B) {
	rig := newTestRig()
	rig.session.SetGripPosition("right", mgl64.Vec3{0, 1.5, -0.5})
	rig.session.StartSelect("right")
	rig.frame()
	rig.session.SetGripPosition("right", mgl64.Vec3{0.1, 1.5, -0.5})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rig.router.Update(rig.session)
	}
}

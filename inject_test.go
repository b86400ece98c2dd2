package marrow

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// recordingListener logs every session event it receives, in order.
type recordingListener struct {
	events  []string
	onEnded func() // optional hook run during SessionEnded dispatch
}

func (l *recordingListener) SelectStart(id SourceID, _ Frame) {
	l.events = append(l.events, "start "+string(id))
}

func (l *recordingListener) Select(id SourceID, _ Frame) {
	l.events = append(l.events, "select "+string(id))
}

func (l *recordingListener) SelectEnd(id SourceID, _ Frame) {
	l.events = append(l.events, "end "+string(id))
}

func (l *recordingListener) SessionEnded() {
	l.events = append(l.events, "ended")
	if l.onEnded != nil {
		l.onEnded()
	}
}

func assertEvents(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

// --- Event dispatch ---

func TestCompleteSelectSequence(t *testing.T) {
	s := NewSyntheticSession()
	l := &recordingListener{}
	s.Subscribe(l)

	s.StartSelect("right")
	s.CompleteSelect("right")

	assertEvents(t, l.events, []string{"start right", "select right", "end right"})
}

func TestCancelSelectSkipsSelect(t *testing.T) {
	s := NewSyntheticSession()
	l := &recordingListener{}
	s.Subscribe(l)

	s.StartSelect("right")
	s.CancelSelect("right")

	assertEvents(t, l.events, []string{"start right", "end right"})
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := NewSyntheticSession()
	l := &recordingListener{}
	unsubscribe := s.Subscribe(l)

	s.StartSelect("right")
	unsubscribe()
	s.CompleteSelect("right")

	assertEvents(t, l.events, []string{"start right"})
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	s := NewSyntheticSession()
	a := &recordingListener{}
	b := &recordingListener{}
	unsubscribe := s.Subscribe(a)
	s.Subscribe(b)

	unsubscribe()
	unsubscribe()
	s.StartSelect("right")

	assertEvents(t, a.events, nil)
	assertEvents(t, b.events, []string{"start right"})
}

func TestEndSessionFiresOnce(t *testing.T) {
	s := NewSyntheticSession()
	l := &recordingListener{}
	s.Subscribe(l)

	s.EndSession()
	s.EndSession()

	assertEvents(t, l.events, []string{"ended"})
	if !s.Ended() {
		t.Error("Ended() should report true")
	}
}

func TestEndedSessionIgnoresEvents(t *testing.T) {
	s := NewSyntheticSession()
	l := &recordingListener{}
	s.Subscribe(l)

	s.EndSession()
	s.StartSelect("right")
	s.CompleteSelect("right")
	s.CancelSelect("right")

	assertEvents(t, l.events, []string{"ended"})
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	s := NewSyntheticSession()
	a := &recordingListener{}
	b := &recordingListener{}
	// a unsubscribes itself while SessionEnded is being dispatched; b must
	// still receive the event.
	unsubscribeA := s.Subscribe(a)
	a.onEnded = func() { unsubscribeA() }
	s.Subscribe(b)

	s.EndSession()

	assertEvents(t, a.events, []string{"ended"})
	assertEvents(t, b.events, []string{"ended"})
}

// --- Frame state ---

func TestSourcesKeepInsertionOrder(t *testing.T) {
	s := NewSyntheticSession()
	s.AddSource("right")
	s.AddSource("left")
	s.AddSource("right") // duplicate is a no-op

	got := s.Sources()
	if len(got) != 2 || got[0] != "right" || got[1] != "left" {
		t.Errorf("Sources() = %v, want [right left]", got)
	}
}

func TestPoseSettersRegisterSource(t *testing.T) {
	s := NewSyntheticSession()
	s.SetGripPosition("left", mgl64.Vec3{0, 1, 0})
	s.SetTargetRay("right", Ray{Dir: mgl64.Vec3{0, 0, -1}})

	if len(s.Sources()) != 2 {
		t.Errorf("Sources() = %v, want both implicitly registered", s.Sources())
	}
}

func TestGripPoseRoundTrip(t *testing.T) {
	s := NewSyntheticSession()
	if _, ok := s.GripPose("right"); ok {
		t.Fatal("grip pose should be absent before placement")
	}

	s.SetGripPosition("right", mgl64.Vec3{0.1, 1.5, -0.3})
	p, ok := s.GripPose("right")
	if !ok {
		t.Fatal("grip pose should be present after placement")
	}
	assertVec3(t, "grip position", p.Position, mgl64.Vec3{0.1, 1.5, -0.3})
	if p.Orientation != mgl64.QuatIdent() {
		t.Errorf("default grip orientation = %v, want identity", p.Orientation)
	}

	s.ClearGripPose("right")
	if _, ok := s.GripPose("right"); ok {
		t.Error("grip pose should be absent after clear")
	}
	if len(s.Sources()) != 1 {
		t.Error("clearing a pose must not drop the source")
	}
}

func TestSetGripPositionKeepsOrientation(t *testing.T) {
	s := NewSyntheticSession()
	q := mgl64.QuatRotate(0.5, mgl64.Vec3{0, 1, 0})
	s.SetGripPose("right", Pose{Position: mgl64.Vec3{1, 1, 1}, Orientation: q})

	s.SetGripPosition("right", mgl64.Vec3{2, 2, 2})
	p, _ := s.GripPose("right")
	assertVec3(t, "grip position", p.Position, mgl64.Vec3{2, 2, 2})
	if p.Orientation != q {
		t.Errorf("orientation = %v, want preserved %v", p.Orientation, q)
	}
}

func TestTargetRayNormalized(t *testing.T) {
	s := NewSyntheticSession()
	s.SetTargetRay("right", Ray{Origin: mgl64.Vec3{1, 2, 3}, Dir: mgl64.Vec3{0, 0, -2}})

	r, ok := s.TargetRay("right")
	if !ok {
		t.Fatal("ray should be present")
	}
	assertVec3(t, "ray origin", r.Origin, mgl64.Vec3{1, 2, 3})
	assertVec3(t, "ray dir", r.Dir, mgl64.Vec3{0, 0, -1})
}

func TestTargetRayRejectsZeroDir(t *testing.T) {
	s := NewSyntheticSession()
	s.SetTargetRay("right", Ray{Origin: mgl64.Vec3{1, 2, 3}})

	if _, ok := s.TargetRay("right"); ok {
		t.Error("a zero-direction ray must be rejected")
	}
}

func TestViewerPoseRoundTrip(t *testing.T) {
	s := NewSyntheticSession()
	if _, ok := s.ViewerPose(); ok {
		t.Fatal("viewer pose should be absent initially")
	}

	s.SetViewerPose(PoseAt(0, 1.6, 0))
	p, ok := s.ViewerPose()
	if !ok {
		t.Fatal("viewer pose should be present after set")
	}
	assertVec3(t, "viewer position", p.Position, mgl64.Vec3{0, 1.6, 0})

	s.ClearViewerPose()
	if _, ok := s.ViewerPose(); ok {
		t.Error("viewer pose should be absent after clear")
	}
}

func TestRemoveSourceClearsPoses(t *testing.T) {
	s := NewSyntheticSession()
	s.SetGripPosition("right", mgl64.Vec3{0, 1, 0})
	s.SetTargetRay("right", Ray{Dir: mgl64.Vec3{0, 0, -1}})

	s.RemoveSource("right")

	if len(s.Sources()) != 0 {
		t.Errorf("Sources() = %v, want empty", s.Sources())
	}
	if _, ok := s.GripPose("right"); ok {
		t.Error("grip pose should be gone with the source")
	}
	if _, ok := s.TargetRay("right"); ok {
		t.Error("target ray should be gone with the source")
	}
}

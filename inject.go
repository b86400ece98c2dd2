package marrow

import "github.com/go-gl/mathgl/mgl64"

// SyntheticSession is a programmatic Session and Frame implementation: a
// fake XR device. Tests, the script replay runner, and the desktop emulator
// place poses and fire select events on it exactly as a real runtime would,
// so the router under test cannot tell the difference.
//
// The session doubles as its own Frame — pose lookups read the current
// synthetic state, mirroring how a live adapter resolves poses against the
// frame being presented.
type SyntheticSession struct {
	listeners []sessionListener
	nextID    uint32

	sources []SourceID // insertion order, stable across frames
	grips   map[SourceID]Pose
	rays    map[SourceID]Ray

	viewer    Pose
	hasViewer bool

	ended bool
}

type sessionListener struct {
	id uint32
	l  Listener
}

// NewSyntheticSession returns an empty synthetic session with no sources and
// no viewer pose.
func NewSyntheticSession() *SyntheticSession {
	return &SyntheticSession{
		grips: make(map[SourceID]Pose),
		rays:  make(map[SourceID]Ray),
	}
}

// Subscribe implements Session.
func (s *SyntheticSession) Subscribe(l Listener) func() {
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, sessionListener{id: id, l: l})
	return func() {
		for i := range s.listeners {
			if s.listeners[i].id == id {
				copy(s.listeners[i:], s.listeners[i+1:])
				s.listeners[len(s.listeners)-1] = sessionListener{}
				s.listeners = s.listeners[:len(s.listeners)-1]
				return
			}
		}
	}
}

// snapshotListeners copies the listener list so dispatch survives listeners
// unsubscribing mid-event (the router does exactly that on SessionEnded).
func (s *SyntheticSession) snapshotListeners() []sessionListener {
	out := make([]sessionListener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// --- Frame implementation ---

// Sources implements Frame. The returned slice is the session's own; callers
// must not mutate it.
func (s *SyntheticSession) Sources() []SourceID {
	return s.sources
}

// GripPose implements Frame.
func (s *SyntheticSession) GripPose(id SourceID) (Pose, bool) {
	p, ok := s.grips[id]
	return p, ok
}

// TargetRay implements Frame.
func (s *SyntheticSession) TargetRay(id SourceID) (Ray, bool) {
	r, ok := s.rays[id]
	return r, ok
}

// ViewerPose implements Frame.
func (s *SyntheticSession) ViewerPose() (Pose, bool) {
	return s.viewer, s.hasViewer
}

// --- Pose placement ---

// AddSource registers a source with no poses yet. Setting a pose on an
// unknown source registers it implicitly; AddSource exists to pin the
// Sources() order explicitly.
func (s *SyntheticSession) AddSource(id SourceID) {
	for _, v := range s.sources {
		if v == id {
			return
		}
	}
	s.sources = append(s.sources, id)
}

// RemoveSource drops a source and its poses, simulating a controller
// disconnect. It fires no select events; hosts that want an orderly end
// call CancelSelect first.
func (s *SyntheticSession) RemoveSource(id SourceID) {
	for i, v := range s.sources {
		if v == id {
			s.sources = append(s.sources[:i], s.sources[i+1:]...)
			break
		}
	}
	delete(s.grips, id)
	delete(s.rays, id)
}

// SetGripPose places a source's grip pose.
func (s *SyntheticSession) SetGripPose(id SourceID, p Pose) {
	s.AddSource(id)
	s.grips[id] = p
}

// SetGripPosition places a source's grip at the given position, preserving
// any previously set grip orientation (identity if none).
func (s *SyntheticSession) SetGripPosition(id SourceID, pos mgl64.Vec3) {
	prev, ok := s.grips[id]
	if !ok {
		prev = Pose{Orientation: mgl64.QuatIdent()}
	}
	prev.Position = pos
	s.SetGripPose(id, prev)
}

// ClearGripPose removes a source's grip pose, simulating tracking loss. The
// source remains listed.
func (s *SyntheticSession) ClearGripPose(id SourceID) {
	delete(s.grips, id)
}

// SetTargetRay places a source's pointing ray. Dir is normalized; a zero
// Dir leaves the ray unset.
func (s *SyntheticSession) SetTargetRay(id SourceID, r Ray) {
	l := r.Dir.Len()
	if l < 1e-12 {
		return
	}
	r.Dir = r.Dir.Mul(1 / l)
	s.AddSource(id)
	s.rays[id] = r
}

// ClearTargetRay removes a source's pointing ray.
func (s *SyntheticSession) ClearTargetRay(id SourceID) {
	delete(s.rays, id)
}

// SetViewerPose places the viewer's head pose.
func (s *SyntheticSession) SetViewerPose(p Pose) {
	s.viewer = p
	s.hasViewer = true
}

// ClearViewerPose removes the viewer pose.
func (s *SyntheticSession) ClearViewerPose() {
	s.hasViewer = false
}

// --- Select lifecycle ---

// StartSelect fires a select-start for the source, carrying this session as
// the event frame.
func (s *SyntheticSession) StartSelect(id SourceID) {
	if s.ended {
		return
	}
	s.AddSource(id)
	for _, sl := range s.snapshotListeners() {
		sl.l.SelectStart(id, s)
	}
}

// CompleteSelect fires the normal release sequence: select, then select-end.
func (s *SyntheticSession) CompleteSelect(id SourceID) {
	if s.ended {
		return
	}
	for _, sl := range s.snapshotListeners() {
		sl.l.Select(id, s)
	}
	for _, sl := range s.snapshotListeners() {
		sl.l.SelectEnd(id, s)
	}
}

// CancelSelect fires a select-end only, simulating a gesture the runtime
// aborted without recognizing a primary action.
func (s *SyntheticSession) CancelSelect(id SourceID) {
	if s.ended {
		return
	}
	for _, sl := range s.snapshotListeners() {
		sl.l.SelectEnd(id, s)
	}
}

// EndSession fires SessionEnded to all listeners and marks the session
// terminated; further event calls are ignored.
func (s *SyntheticSession) EndSession() {
	if s.ended {
		return
	}
	s.ended = true
	for _, sl := range s.snapshotListeners() {
		sl.l.SessionEnded()
	}
}

// Ended reports whether EndSession was called.
func (s *SyntheticSession) Ended() bool { return s.ended }

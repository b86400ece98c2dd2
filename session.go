package marrow

// Frame is the pose-lookup capability for one presentation frame. The host's
// render loop obtains a Frame from its XR runtime (or from a replay fixture
// or synthetic harness) and passes it to Router.Update.
//
// Absence of a pose is a normal transient condition — tracking loss, a source
// briefly out of the reference space — never an error. Callers skip the
// affected source for the frame and try again on the next one.
type Frame interface {
	// Sources lists the input sources tracked this frame, in a stable order.
	Sources() []SourceID

	// GripPose returns the grip pose of a source: the position and
	// orientation of the physical hold, as opposed to the pointing ray.
	GripPose(SourceID) (Pose, bool)

	// TargetRay returns the pointing ray used for selection raycasts.
	TargetRay(SourceID) (Ray, bool)

	// ViewerPose returns the viewer's head pose.
	ViewerPose() (Pose, bool)
}

// Listener receives session lifecycle events. Events arrive between frames
// and mutate only the gesture-record map; the per-frame Update consumes the
// result. All methods are invoked on the host loop's goroutine.
//
// The Frame argument carries the pose context in which the event was
// recognized and may be nil when the host cannot provide one; implementations
// must tolerate that.
type Listener interface {
	// SelectStart fires when a source begins its primary action (press).
	SelectStart(SourceID, Frame)

	// Select fires when the host recognizes a completed primary action.
	// Decoupled from SelectStart/SelectEnd: a given gesture may complete
	// with or without one.
	Select(SourceID, Frame)

	// SelectEnd fires when the primary action ends (release or cancel).
	SelectEnd(SourceID, Frame)

	// SessionEnded fires when the session terminates, normally or not.
	// Receivers treat it as detach semantics: all per-source state tied to
	// the session is invalid from this point.
	SessionEnded()
}

// Session delivers select lifecycle events to subscribers. Subscribe returns
// an unsubscribe function so listener lifetime is caller-controlled.
type Session interface {
	Subscribe(Listener) (unsubscribe func())
}

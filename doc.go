// Package marrow interprets spatial input for hand-tracked 3D viewers.
//
// Marrow turns raw grip poses and select events from an XR-style session
// into the interactions a model viewer needs: tap-versus-drag resolution,
// one-hand dragging, two-hand scale/translate/yaw, ray picking against
// floating UI and model content, hover tracking, viewer-relative placement,
// and adaptive render-quality stepping.
//
// Full documentation, tutorials, and examples are available at:
//
// https://phanxgames.github.io/marrow/
//
// # Quick start
//
// Create an anchor for the model's root transform, describe the pickable UI,
// and route a session's events through a [Router]:
//
//	anchor := marrow.NewBasicAnchor()
//	ui := marrow.NewPickableSet()
//	ui.Add(marrow.UIAction("reset"), marrow.HitSphere{
//		Center: mgl64.Vec3{0, 1.4, -0.5}, Radius: 0.04,
//	})
//
//	router := marrow.NewRouter(marrow.RouterConfig{
//		Anchor:      anchor,
//		UI:          ui,
//		PickContent: index.Pick,
//	})
//	router.AttachSession(session)
//
//	// once per frame:
//	router.Update(frame)
//
// Register callbacks for the interactions the router resolves:
//
//	router.OnUIAction(func(ctx marrow.UIActionContext) { ... })
//	router.OnSelectStructure(func(ctx marrow.SelectContext) { ... })
//	router.OnAnchorScale(func(ctx marrow.ScaleContext) { ... })
//
// # Gestures
//
// A press that ends within the tap window without the grip moving past the
// move threshold is a tap; it re-tests the target ray and either triggers a
// UI action or selects the content structure under the ray. A press that
// moves drags the anchor with a fixed grip-to-anchor offset, unless it began
// on a pickable, which locks the gesture to tap-only. When two drag-eligible
// presses are held, the router switches to two-hand mode: hand separation
// scales the anchor (clamped), the midpoint translates it, and the line
// between the hands yaws it about the world up axis. Thresholds and the
// scale clamp are tunable via [Router.SetMoveThreshold],
// [Router.SetTapWindow], and [Router.SetScaleClamp].
//
// # Placement
//
// [PlaceInFront] parks an anchor a fixed distance along the viewer's gaze,
// and [Router.Recenter] glides it there over a configurable duration with a
// [gween] easing curve. [CaptureTransform] and [RestoreTransform] snapshot
// and reapply an anchor's pose for undo-style flows.
//
// # Adaptive quality
//
// [PerfGovernor] keeps a sliding window of frame times and steps a quality
// tier down when the 95th percentile is too slow, or back up when there is
// headroom, with a cooldown between switches.
//
// # Replay
//
// [SyntheticSession] implements [Session] and [Frame] for tests and tools.
// [GestureScript] files drive it deterministically through a [ScriptRunner],
// and a [Recorder] captures live sessions back into scripts. The marrow/emu
// package adds a desktop emulation rig on [Ebitengine].
//
// [gween]: https://github.com/tanema/gween
// [Ebitengine]: https://ebitengine.org
package marrow

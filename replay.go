package marrow

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// scriptStep is a single action in a gesture script. Vector fields are
// [x, y, z] triples.
type scriptStep struct {
	Action string    `json:"action"`           // press|release|cancel|move|ray|viewer|wait|end
	Source string    `json:"source,omitempty"` // input source id for source-bound actions
	From   []float64 `json:"from,omitempty"`   // move: grip start (defaults to the current grip)
	To     []float64 `json:"to,omitempty"`     // move: grip end; viewer: position
	Origin []float64 `json:"origin,omitempty"` // ray: origin
	Dir    []float64 `json:"dir,omitempty"`    // ray: direction; viewer: forward
	Frames int       `json:"frames,omitempty"` // move/wait: tick count
	Ease   string    `json:"ease,omitempty"`   // move: easing curve, default linear

	easeFn ease.TweenFunc // resolved from Ease at load time
}

// GestureScript is a replayable sequence of synthetic session activity. The
// ID correlates a recorded trace with its replays; Load assigns one when the
// file carries none.
type GestureScript struct {
	ID    string       `json:"id,omitempty"`
	Name  string       `json:"name,omitempty"`
	Steps []scriptStep `json:"steps"`
}

// LoadGestureScript parses and validates a JSON gesture script.
func LoadGestureScript(jsonData []byte) (*GestureScript, error) {
	var script GestureScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse gesture script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse gesture script: no steps")
	}
	for i := range script.Steps {
		if err := validateStep(i, &script.Steps[i]); err != nil {
			return nil, err
		}
	}
	if script.ID == "" {
		script.ID = uuid.NewString()
	}
	return &script, nil
}

func validateStep(i int, st *scriptStep) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("parse gesture script: step %d (%s): %s", i, st.Action, fmt.Sprintf(format, args...))
	}
	vec := func(name string, v []float64, required bool) error {
		if v == nil {
			if required {
				return fail("missing %q", name)
			}
			return nil
		}
		if len(v) != 3 {
			return fail("%q must have 3 components, got %d", name, len(v))
		}
		return nil
	}

	switch st.Action {
	case "press", "release", "cancel":
		if st.Source == "" {
			return fail("missing source")
		}
	case "move":
		if st.Source == "" {
			return fail("missing source")
		}
		if err := vec("to", st.To, true); err != nil {
			return err
		}
		if err := vec("from", st.From, false); err != nil {
			return err
		}
		if st.Frames < 0 {
			return fail("negative frames")
		}
		fn, ok := easeByName(st.Ease)
		if !ok {
			return fail("unknown ease %q", st.Ease)
		}
		st.easeFn = fn
	case "ray":
		if st.Source == "" {
			return fail("missing source")
		}
		if err := vec("origin", st.Origin, true); err != nil {
			return err
		}
		if err := vec("dir", st.Dir, true); err != nil {
			return err
		}
		if vec3Of(st.Dir).Len() < 1e-12 {
			return fail("zero dir")
		}
	case "viewer":
		if err := vec("to", st.To, true); err != nil {
			return err
		}
		if err := vec("dir", st.Dir, true); err != nil {
			return err
		}
		if vec3Of(st.Dir).Len() < 1e-12 {
			return fail("zero dir")
		}
	case "wait":
		if st.Frames < 1 {
			return fail("frames must be at least 1")
		}
	case "end":
	default:
		return fmt.Errorf("parse gesture script: step %d: unknown action %q", i, st.Action)
	}
	return nil
}

// easeByName maps a script ease name to its curve. Empty means linear.
func easeByName(name string) (ease.TweenFunc, bool) {
	switch name {
	case "", "linear":
		return ease.Linear, true
	case "in-quad":
		return ease.InQuad, true
	case "out-quad":
		return ease.OutQuad, true
	case "in-out-quad":
		return ease.InOutQuad, true
	case "in-cubic":
		return ease.InCubic, true
	case "out-cubic":
		return ease.OutCubic, true
	default:
		return nil, false
	}
}

func vec3Of(v []float64) mgl64.Vec3 {
	return mgl64.Vec3{v[0], v[1], v[2]}
}

func vec3Slice(v mgl64.Vec3) []float64 {
	return []float64{v[0], v[1], v[2]}
}

// poseLooking returns a pose at the given position oriented to look along
// dir. dir must not be vertical.
func poseLooking(position, dir mgl64.Vec3) Pose {
	return Pose{
		Position:    position,
		Orientation: mgl64.QuatLookAtV(position, position.Add(dir), worldUp),
	}
}

// --- ScriptRunner ---

// ScriptRunner replays a gesture script against a synthetic session, one
// frame per Step call. The host loop interleaves Step with Router.Update
// until Done reports true.
type ScriptRunner struct {
	session *SyntheticSession
	steps   []scriptStep
	cursor  int
	wait    int
	move    *gripMove
	done    bool
}

// gripMove is an in-flight interpolated grip motion.
type gripMove struct {
	source SourceID
	tween  *gween.Tween // progress 0→1 over the step's frame count
	from   mgl64.Vec3
	to     mgl64.Vec3
}

// NewScriptRunner prepares a runner that drives the given session.
func NewScriptRunner(script *GestureScript, session *SyntheticSession) *ScriptRunner {
	return &ScriptRunner{session: session, steps: script.Steps}
}

// Done reports whether every step has been executed and drained.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// Step advances the replay by one frame. An in-flight move or wait consumes
// the frame; otherwise the next step executes. A move of N frames occupies
// N+1 ticks: one to place the start position, N to interpolate.
func (r *ScriptRunner) Step() {
	if r.done {
		return
	}
	if r.move != nil {
		r.advanceMove()
		return
	}
	if r.wait > 0 {
		r.wait--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "press":
		r.session.StartSelect(SourceID(st.Source))
	case "release":
		r.session.CompleteSelect(SourceID(st.Source))
	case "cancel":
		r.session.CancelSelect(SourceID(st.Source))
	case "move":
		r.beginMove(st)
	case "ray":
		r.session.SetTargetRay(SourceID(st.Source), Ray{
			Origin: vec3Of(st.Origin),
			Dir:    vec3Of(st.Dir),
		})
	case "viewer":
		r.session.SetViewerPose(poseLooking(vec3Of(st.To), vec3Of(st.Dir)))
	case "wait":
		if st.Frames > 0 {
			r.wait = st.Frames - 1 // this frame counts as one
		}
	case "end":
		r.session.EndSession()
	}

	if r.cursor >= len(r.steps) && r.wait == 0 && r.move == nil {
		r.done = true
	}
}

func (r *ScriptRunner) beginMove(st scriptStep) {
	source := SourceID(st.Source)
	to := vec3Of(st.To)

	var from mgl64.Vec3
	switch {
	case st.From != nil:
		from = vec3Of(st.From)
	default:
		pose, ok := r.session.GripPose(source)
		if !ok || st.Frames <= 1 {
			// Nothing to interpolate from (or instant move): place directly.
			r.session.SetGripPosition(source, to)
			return
		}
		from = pose.Position
	}

	if st.Frames <= 1 {
		r.session.SetGripPosition(source, to)
		return
	}

	easeFn := st.easeFn
	if easeFn == nil {
		// Scripts straight from a Recorder bypass load-time resolution.
		easeFn = ease.Linear
	}
	r.session.SetGripPosition(source, from)
	r.move = &gripMove{
		source: source,
		tween:  gween.New(0, 1, float32(st.Frames), easeFn),
		from:   from,
		to:     to,
	}
}

func (r *ScriptRunner) advanceMove() {
	v, done := r.move.tween.Update(1)
	t := float64(v)
	pos := r.move.from.Add(r.move.to.Sub(r.move.from).Mul(t))
	r.session.SetGripPosition(r.move.source, pos)
	if done {
		r.move = nil
	}
}

// --- Recorder ---

// Recorder captures live session activity back into a replayable script.
// Subscribe it to the session for events and call RecordFrame once per frame
// for poses. Continuous motion is re-timed as per-frame linear move steps
// coalesced into one; easing of the original hand path is not preserved.
type Recorder struct {
	script   GestureScript
	grips    map[SourceID]mgl64.Vec3
	selected map[SourceID]bool // sources whose current gesture saw a Select
	pending  int               // idle frames since the last recorded step
	sawFrame bool
}

// NewRecorder starts a recording with a fresh trace id.
func NewRecorder(name string) *Recorder {
	return &Recorder{
		script:   GestureScript{ID: uuid.NewString(), Name: name},
		grips:    make(map[SourceID]mgl64.Vec3),
		selected: make(map[SourceID]bool),
	}
}

// RecordFrame samples grip positions (and, on the first frame, the viewer
// pose) from the frame. Call once per presentation frame.
func (rec *Recorder) RecordFrame(frame Frame) {
	if !rec.sawFrame {
		rec.sawFrame = true
		if viewer, ok := frame.ViewerPose(); ok {
			forward := viewer.Orientation.Rotate(defaultForward)
			rec.script.Steps = append(rec.script.Steps, scriptStep{
				Action: "viewer",
				To:     vec3Slice(viewer.Position),
				Dir:    vec3Slice(forward),
			})
		}
	}

	movedAny := false
	for _, id := range frame.Sources() {
		pose, ok := frame.GripPose(id)
		if !ok {
			continue
		}
		prev, seen := rec.grips[id]
		if seen && pose.Position == prev {
			continue
		}
		rec.grips[id] = pose.Position
		movedAny = true

		if !seen {
			// First sighting: instant placement.
			rec.flushWait()
			rec.script.Steps = append(rec.script.Steps, scriptStep{
				Action: "move", Source: string(id), To: vec3Slice(pose.Position),
			})
			continue
		}
		if last := rec.lastStep(); rec.pending == 0 && last != nil &&
			last.Action == "move" && last.Source == string(id) && last.Frames > 0 {
			// Contiguous motion: extend the previous move.
			last.To = vec3Slice(pose.Position)
			last.Frames++
			continue
		}
		rec.flushWait()
		rec.script.Steps = append(rec.script.Steps, scriptStep{
			Action: "move", Source: string(id),
			From: vec3Slice(prev), To: vec3Slice(pose.Position), Frames: 1,
		})
	}

	if !movedAny {
		rec.pending++
	}
}

// SelectStart implements Listener. The event ray is recorded first so the
// replayed gesture resolves the same drag eligibility.
func (rec *Recorder) SelectStart(id SourceID, frame Frame) {
	rec.recordRay(id, frame)
	rec.flushWait()
	rec.script.Steps = append(rec.script.Steps, scriptStep{Action: "press", Source: string(id)})
}

// Select implements Listener. Only the ray is recorded here; the composite
// release step is emitted by the SelectEnd that follows.
func (rec *Recorder) Select(id SourceID, frame Frame) {
	rec.recordRay(id, frame)
	rec.selected[id] = true
}

// SelectEnd implements Listener.
func (rec *Recorder) SelectEnd(id SourceID, _ Frame) {
	rec.flushWait()
	action := "cancel"
	if rec.selected[id] {
		action = "release"
		delete(rec.selected, id)
	}
	rec.script.Steps = append(rec.script.Steps, scriptStep{Action: action, Source: string(id)})
}

// SessionEnded implements Listener.
func (rec *Recorder) SessionEnded() {
	rec.flushWait()
	rec.script.Steps = append(rec.script.Steps, scriptStep{Action: "end"})
}

// Script finalizes any trailing idle time and returns the captured script.
func (rec *Recorder) Script() *GestureScript {
	rec.flushWait()
	return &rec.script
}

func (rec *Recorder) recordRay(id SourceID, frame Frame) {
	if frame == nil {
		return
	}
	ray, ok := frame.TargetRay(id)
	if !ok {
		return
	}
	rec.flushWait()
	rec.script.Steps = append(rec.script.Steps, scriptStep{
		Action: "ray", Source: string(id),
		Origin: vec3Slice(ray.Origin), Dir: vec3Slice(ray.Dir),
	})
}

func (rec *Recorder) flushWait() {
	if rec.pending == 0 {
		return
	}
	rec.script.Steps = append(rec.script.Steps, scriptStep{Action: "wait", Frames: rec.pending})
	rec.pending = 0
}

func (rec *Recorder) lastStep() *scriptStep {
	if len(rec.script.Steps) == 0 {
		return nil
	}
	return &rec.script.Steps[len(rec.script.Steps)-1]
}

package marrow

import (
	"fmt"
	"os"
	"time"
)

// debugPrintf writes one [marrow]-prefixed line to stderr. All debug output
// funnels through here.
func debugPrintf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "[marrow] "+format+"\n", args...)
}

// SetDebugMode toggles stderr logging of record lifecycle, tap resolutions,
// and bimanual engage/disengage. Off by default; release paths log nothing.
func (r *Router) SetDebugMode(on bool) {
	r.debug = on
}

func (r *Router) debugf(format string, args ...any) {
	if !r.debug {
		return
	}
	debugPrintf(format, args...)
}

// SetDebugMode toggles stderr logging of tier switches and resets.
func (g *PerfGovernor) SetDebugMode(on bool) {
	g.debug = on
}

func (g *PerfGovernor) debugf(format string, args ...any) {
	if !g.debug {
		return
	}
	debugPrintf(format, args...)
}

// debugMaxSources is the record count above which debugCheckSourceCount
// warns. XR runtimes track at most a handful of sources; more indicates a
// host failing to deliver select-end events.
const debugMaxSources = 8

func (r *Router) debugCheckSourceCount() {
	if !r.debug {
		return
	}
	if len(r.records) > debugMaxSources {
		debugPrintf("warning: %d gesture records active (threshold %d); missing select-end events?",
			len(r.records), debugMaxSources)
	}
}

// --- Gesture introspection ---

// GestureInfo is a read-only snapshot of one active gesture record, for
// debug overlays and HUDs.
type GestureInfo struct {
	Source    SourceID
	Moved     bool
	AllowDrag bool
	Bimanual  bool
	Duration  time.Duration
}

// ActiveGestures returns snapshots of all in-progress gestures, ordered by
// source id. The returned slice is freshly allocated and safe to retain.
func (r *Router) ActiveGestures() []GestureInfo {
	if len(r.records) == 0 {
		return nil
	}
	now := r.now()
	out := make([]GestureInfo, 0, len(r.records))
	for _, id := range r.sortedSources() {
		rec := r.records[id]
		out = append(out, GestureInfo{
			Source:    id,
			Moved:     rec.moved,
			AllowDrag: rec.allowDrag,
			Bimanual:  r.bimanual.active && (id == r.bimanual.source0 || id == r.bimanual.source1),
			Duration:  now.Sub(rec.startTime),
		})
	}
	return out
}

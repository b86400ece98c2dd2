package marrow

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// perfWindow is the number of most recent frame durations retained for
	// percentile computation.
	perfWindow = 120

	// stepDownAbove / stepUpBelow are the p95 thresholds for tier changes.
	// The dead band between them absorbs normal frame-time noise.
	stepDownAbove = 28 * time.Millisecond
	stepUpBelow   = 18 * time.Millisecond

	// tierCooldown is the minimum time between tier switches. Without it a
	// p95 hovering near a threshold would oscillate the renderer between
	// quality levels every frame.
	tierCooldown = 5000 * time.Millisecond
)

// PerfSample is the result of recording one frame duration: the statistics
// the caller applies (tier) and displays (p95).
type PerfSample struct {
	FrameTime time.Duration
	P95       time.Duration
	Tier      QualityTier
	Switched  bool // true when this sample caused a tier change
}

// PerfStats summarizes the current sample window for debug overlays and
// replay reports.
type PerfStats struct {
	Samples int
	P95     time.Duration
	Mean    time.Duration
	StdDev  time.Duration
	Min     time.Duration
	Max     time.Duration
}

// PerfGovernor converts observed frame durations into a render quality tier.
// It keeps a bounded ring of recent frame times and steps the tier down when
// the window's 95th percentile exceeds stepDownAbove, or up when it falls
// below stepUpBelow, at most once per cooldown period.
//
// PerfGovernor is frame-driven and not safe for concurrent use; feed it from
// the same loop that calls Router.Update.
type PerfGovernor struct {
	window  []time.Duration // ring storage, grows to perfWindow then wraps
	head    int             // index of the oldest sample once the ring is full
	scratch []time.Duration // reused sort buffer for percentile computation

	tier       QualityTier
	lastSwitch time.Time

	now   func() time.Time
	debug bool
}

// NewPerfGovernor returns a governor starting at the given tier. The switch
// timestamp is initialized to now, so a full cooldown of observation elapses
// before the first tier change.
func NewPerfGovernor(initial QualityTier) *PerfGovernor {
	g := &PerfGovernor{
		window:  make([]time.Duration, 0, perfWindow),
		scratch: make([]time.Duration, 0, perfWindow),
		tier:    initial,
		now:     time.Now,
	}
	g.lastSwitch = g.now()
	return g
}

// RecordFrame pushes one frame duration into the window, recomputes the p95,
// and evaluates a tier transition if the cooldown has elapsed. It returns the
// tier and p95 for the caller to act on.
func (g *PerfGovernor) RecordFrame(frameTime time.Duration) PerfSample {
	if len(g.window) < perfWindow {
		g.window = append(g.window, frameTime)
	} else {
		g.window[g.head] = frameTime
		g.head = (g.head + 1) % perfWindow
	}

	p95 := g.percentile95(frameTime)
	sample := PerfSample{FrameTime: frameTime, P95: p95, Tier: g.tier}

	now := g.now()
	if now.Sub(g.lastSwitch) < tierCooldown {
		return sample
	}

	switch {
	case p95 > stepDownAbove && g.tier > TierLow:
		g.setTier(g.tier-1, now, p95)
	case p95 < stepUpBelow && g.tier < TierHigh:
		g.setTier(g.tier+1, now, p95)
	default:
		return sample
	}

	sample.Tier = g.tier
	sample.Switched = true
	return sample
}

func (g *PerfGovernor) setTier(tier QualityTier, now time.Time, p95 time.Duration) {
	g.debugf("tier %s -> %s (p95 %v)", g.tier, tier, p95)
	g.tier = tier
	g.lastSwitch = now
}

// percentile95 computes the window's 95th percentile by the nearest-rank
// method: sort and index at floor(0.95 * length), no interpolation. Falls
// back to the given frame time if the window is somehow empty.
func (g *PerfGovernor) percentile95(fallback time.Duration) time.Duration {
	n := len(g.window)
	if n == 0 {
		return fallback
	}
	g.scratch = append(g.scratch[:0], g.window...)
	sort.Slice(g.scratch, func(i, j int) bool { return g.scratch[i] < g.scratch[j] })

	idx := int(math.Floor(float64(n) * 0.95))
	if idx >= n {
		idx = n - 1
	}
	return g.scratch[idx]
}

// Tier returns the current quality tier.
func (g *PerfGovernor) Tier() QualityTier { return g.tier }

// P95 returns the current window's 95th percentile, or zero when no frames
// have been recorded yet.
func (g *PerfGovernor) P95() time.Duration {
	return g.percentile95(0)
}

// Reset forces the tier, clears the sample window, and restarts the switch
// cooldown. Call it when entering or leaving an XR session or switching
// devices: frame timings from a different rendering context are not
// comparable.
func (g *PerfGovernor) Reset(tier QualityTier) {
	g.window = g.window[:0]
	g.head = 0
	g.tier = tier
	g.lastSwitch = g.now()
	g.debugf("reset to tier %s", tier)
}

// Stats summarizes the current window. Samples is zero when no frames have
// been recorded; the remaining fields are zero in that case.
func (g *PerfGovernor) Stats() PerfStats {
	n := len(g.window)
	if n == 0 {
		return PerfStats{}
	}

	ms := make([]float64, n)
	min, max := g.window[0], g.window[0]
	for i, d := range g.window {
		ms[i] = float64(d) / float64(time.Millisecond)
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}

	mean := stat.Mean(ms, nil)
	sd := 0.0
	if n > 1 {
		sd = stat.StdDev(ms, nil)
	}

	return PerfStats{
		Samples: n,
		P95:     g.percentile95(0),
		Mean:    time.Duration(mean * float64(time.Millisecond)),
		StdDev:  time.Duration(sd * float64(time.Millisecond)),
		Min:     min,
		Max:     max,
	}
}

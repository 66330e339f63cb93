package vizcore

import "time"

// StageTimes splits a frame into its CPU stages.
type StageTimes struct {
	Prepare time.Duration
	DrawSet time.Duration
	Render  time.Duration
}

func (s StageTimes) Total() time.Duration {
	return s.Prepare + s.DrawSet + s.Render
}

// Profiler accumulates per-stage frame timings over a one second window and
// a rolling frame rate.
type Profiler struct {
	PrepareTime time.Duration
	DrawSetTime time.Duration
	RenderTime  time.Duration

	FrameCount int
	FPS        float64
	fpsTime    time.Duration

	// Average holds the per-frame stage times of the last completed window.
	Average StageTimes
}

// Reset clears the stage times of the current window.
func (p *Profiler) Reset() {
	p.PrepareTime = 0
	p.DrawSetTime = 0
	p.RenderTime = 0
}

// Tick records one frame of length dt. Once a second it refreshes FPS and
// Average and starts a new window.
func (p *Profiler) Tick(dt time.Duration) {
	p.FrameCount++
	p.fpsTime += dt
	if p.fpsTime < time.Second {
		return
	}
	n := time.Duration(p.FrameCount)
	p.FPS = float64(p.FrameCount) / p.fpsTime.Seconds()
	p.Average = StageTimes{
		Prepare: p.PrepareTime / n,
		DrawSet: p.DrawSetTime / n,
		Render:  p.RenderTime / n,
	}
	p.FrameCount = 0
	p.fpsTime = 0
	p.Reset()
}

func since(start time.Time, into *time.Duration) {
	*into += time.Since(start)
}

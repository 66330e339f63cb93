package vizcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfilerWindowRollsOver(t *testing.T) {
	var p Profiler
	for i := 0; i < 4; i++ {
		p.PrepareTime += time.Millisecond
		p.DrawSetTime += 2 * time.Millisecond
		p.RenderTime += 3 * time.Millisecond
		p.Tick(250 * time.Millisecond)
	}

	assert.InDelta(t, 4.0, p.FPS, 1e-9)
	assert.Equal(t, 0, p.FrameCount)
	assert.Equal(t, StageTimes{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, p.Average)
	assert.Equal(t, 6*time.Millisecond, p.Average.Total())
	assert.Zero(t, p.PrepareTime+p.DrawSetTime+p.RenderTime, "stage times start over with the window")

	p.RenderTime += time.Millisecond
	p.Tick(100 * time.Millisecond)
	assert.Equal(t, 1, p.FrameCount)
	assert.Equal(t, time.Millisecond, p.RenderTime)
}

package buffer

import "math"

const (
	plotFloor    = 30
	plotCeiling  = 200
	plotPadding  = 5
	plotMinWidth = 30
)

// PlotRange describes the axes a chart should use for a set of samples.
type PlotRange struct {
	XMax int `json:"x_max"`
	YMin int `json:"y_min"`
	YMax int `json:"y_max"`
}

// PlotRange computes chart bounds for the buffered samples: the y axis pads the
// observed range by 5 bpm and clamps it to [30, 200], the x axis spans at least
// 30 points. ok is false when there are no samples to scale against.
func (b *SampleBuffer) PlotRange() (PlotRange, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return PlotRange{}, false
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < b.size; i++ {
		v := b.data[(b.start+i)%len(b.data)]
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	yMin := max(plotFloor, int(lo)-plotPadding)
	yMax := min(plotCeiling, int(hi)+plotPadding)
	if yMin >= yMax {
		yMax = yMin + plotPadding
	}

	return PlotRange{
		XMax: max(plotMinWidth, b.size),
		YMin: yMin,
		YMax: yMax,
	}, true
}

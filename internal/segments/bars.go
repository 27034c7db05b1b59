package segments

import (
	"math"

	"github.com/voxwire/voxwire/pkg/types"
)

// normalizeHeadroom keeps the tallest bar below full scale so the
// rendered waveform has visual headroom.
const normalizeHeadroom = 1.3

// BarHeights condenses a recording into numBars visualizer bars. Each bar
// is the RMS of an equal-length sample window, normalized against the
// loudest window, and attributed to the speaker active at the window's
// start time. Trailing samples that do not fill a whole window are
// dropped. Returns nil when the timeline is empty or the recording is
// shorter than one sample per bar.
func BarHeights(samples []int16, numBars, sampleRate int, sync *Synchronizer) []types.BarHeight {
	if sync.Len() == 0 || numBars <= 0 || sampleRate <= 0 {
		return nil
	}
	samplesPerBar := len(samples) / numBars
	if samplesPerBar == 0 {
		return nil
	}

	rms := make([]float64, numBars)
	maxRMS := 0.0
	for bar := range numBars {
		window := samples[bar*samplesPerBar : (bar+1)*samplesPerBar]
		sumSquares := 0.0
		for _, s := range window {
			v := float64(s)
			sumSquares += v * v
		}
		rms[bar] = math.Sqrt(sumSquares / float64(samplesPerBar))
		if rms[bar] > maxRMS {
			maxRMS = rms[bar]
		}
	}

	secondsPerBar := float64(samplesPerBar) / float64(sampleRate)
	bars := make([]types.BarHeight, numBars)
	for i := range numBars {
		height := rms[i]
		if maxRMS > 0 {
			height = rms[i] / (maxRMS * normalizeHeadroom)
		}
		bars[i] = types.BarHeight{
			Height:  height,
			Speaker: sync.ActiveAt(float64(i) * secondsPerBar),
		}
	}
	return bars
}

package audio

import (
	"math"
	"time"
)

// Features summarizes the signal characteristics of one window. The AMD
// estimators consume these rather than raw samples.
type Features struct {
	Energy            float64 `json:"energy"`
	PeakAmplitude     float64 `json:"peak_amplitude"`
	AmplitudeVariance float64 `json:"amplitude_variance"`
	ZeroCrossingRate  float64 `json:"zero_crossing_rate"`

	SpectralCentroid float64 `json:"spectral_centroid"`
	SpectralFlatness float64 `json:"spectral_flatness"`
	SpectralRolloff  float64 `json:"spectral_rolloff"`

	// Fundamental frequency statistics over voiced frames
	PitchMean     float64 `json:"pitch_mean"`
	PitchVariance float64 `json:"pitch_variance"`
	VoicedRatio   float64 `json:"voiced_ratio"`

	// Frame-level silence statistics
	SilenceRatio   float64       `json:"silence_ratio"`
	SilenceRuns    int           `json:"silence_runs"`
	LongestSilence time.Duration `json:"longest_silence"`

	Duration time.Duration `json:"duration"`
}

// FeatureExtractor computes window features frame by frame.
type FeatureExtractor struct {
	sampleRate int
	frameSize  int
	hopSize    int
	hamming    []float64

	// Frames with RMS energy below this are counted as silence
	silenceThreshold float64
}

// NewFeatureExtractor creates an extractor for the given sample rate.
func NewFeatureExtractor(sampleRate int) *FeatureExtractor {
	frameSize := 256
	fe := &FeatureExtractor{
		sampleRate:       sampleRate,
		frameSize:        frameSize,
		hopSize:          frameSize / 2,
		silenceThreshold: 0.01,
	}
	fe.hamming = make([]float64, frameSize)
	for i := range fe.hamming {
		fe.hamming[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(frameSize-1))
	}
	return fe
}

// Extract computes features for normalized samples in [-1, 1]. Returns nil
// when the window is shorter than one analysis frame.
func (fe *FeatureExtractor) Extract(samples []float64) *Features {
	if len(samples) < fe.frameSize {
		return nil
	}

	f := &Features{
		Duration: time.Duration(len(samples)) * time.Second / time.Duration(fe.sampleRate),
	}

	f.Energy = rmsEnergy(samples)
	f.ZeroCrossingRate = zeroCrossingRate(samples)

	mean := 0.0
	for _, s := range samples {
		a := math.Abs(s)
		if a > f.PeakAmplitude {
			f.PeakAmplitude = a
		}
		mean += a
	}
	mean /= float64(len(samples))
	for _, s := range samples {
		d := math.Abs(s) - mean
		f.AmplitudeVariance += d * d
	}
	f.AmplitudeVariance /= float64(len(samples))

	fe.extractSpectral(samples, f)
	fe.extractPitch(samples, f)
	fe.extractSilence(samples, f)

	return f
}

func (fe *FeatureExtractor) extractSpectral(samples []float64, f *Features) {
	// Single-frame DFT; averaging across all frames is not worth the cost
	// at 1s windows
	magnitudes := fe.magnitudeSpectrum(samples[:fe.frameSize])

	var weighted, total float64
	for i, m := range magnitudes {
		freq := float64(i) * float64(fe.sampleRate) / float64(fe.frameSize)
		weighted += freq * m
		total += m
	}
	if total > 0 {
		f.SpectralCentroid = weighted / total
	}

	// Flatness: geometric mean over arithmetic mean of the power spectrum
	logSum, linSum := 0.0, 0.0
	n := 0
	for _, m := range magnitudes {
		p := m*m + 1e-12
		logSum += math.Log(p)
		linSum += p
		n++
	}
	if n > 0 && linSum > 0 {
		f.SpectralFlatness = math.Exp(logSum/float64(n)) / (linSum / float64(n))
	}

	// Rolloff: frequency below which 95% of the spectral energy sits
	target := 0.95 * total
	cum := 0.0
	for i, m := range magnitudes {
		cum += m
		if cum >= target {
			f.SpectralRolloff = float64(i) * float64(fe.sampleRate) / float64(fe.frameSize)
			break
		}
	}
}

func (fe *FeatureExtractor) extractPitch(samples []float64, f *Features) {
	var pitches []float64
	voiced, total := 0, 0

	for i := 0; i+fe.frameSize <= len(samples); i += fe.hopSize {
		frame := samples[i : i+fe.frameSize]
		total++
		if rmsEnergy(frame) < fe.silenceThreshold {
			continue
		}
		if f0 := fe.estimatePitch(frame); f0 >= 50 && f0 <= 500 {
			pitches = append(pitches, f0)
			voiced++
		}
	}

	if total > 0 {
		f.VoicedRatio = float64(voiced) / float64(total)
	}
	if len(pitches) == 0 {
		return
	}
	for _, p := range pitches {
		f.PitchMean += p
	}
	f.PitchMean /= float64(len(pitches))
	for _, p := range pitches {
		d := p - f.PitchMean
		f.PitchVariance += d * d
	}
	f.PitchVariance /= float64(len(pitches))
}

func (fe *FeatureExtractor) extractSilence(samples []float64, f *Features) {
	frameDur := time.Duration(fe.hopSize) * time.Second / time.Duration(fe.sampleRate)

	silent, total := 0, 0
	run := 0
	longest := 0
	inRun := false

	for i := 0; i+fe.frameSize <= len(samples); i += fe.hopSize {
		frame := samples[i : i+fe.frameSize]
		total++
		if rmsEnergy(frame) < fe.silenceThreshold {
			silent++
			run++
			if !inRun {
				f.SilenceRuns++
				inRun = true
			}
			if run > longest {
				longest = run
			}
		} else {
			run = 0
			inRun = false
		}
	}

	if total > 0 {
		f.SilenceRatio = float64(silent) / float64(total)
	}
	f.LongestSilence = time.Duration(longest) * frameDur
}

// estimatePitch runs autocorrelation-based F0 estimation on one frame.
func (fe *FeatureExtractor) estimatePitch(frame []float64) float64 {
	minLag := fe.sampleRate / 500
	maxLag := fe.sampleRate / 50
	if maxLag >= len(frame) {
		maxLag = len(frame) - 1
	}
	if minLag < 1 || minLag >= maxLag {
		return 0
	}

	bestLag := 0
	bestVal := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		sum := 0.0
		for i := 0; i < len(frame)-lag; i++ {
			sum += frame[i] * frame[i+lag]
		}
		if sum > bestVal {
			bestVal = sum
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0
	}
	return float64(fe.sampleRate) / float64(bestLag)
}

// magnitudeSpectrum computes a windowed DFT magnitude spectrum of one frame.
func (fe *FeatureExtractor) magnitudeSpectrum(frame []float64) []float64 {
	n := fe.frameSize
	magnitudes := make([]float64, n/2)
	for k := 0; k < n/2; k++ {
		var re, im float64
		for j := 0; j < n; j++ {
			angle := -2 * math.Pi * float64(k) * float64(j) / float64(n)
			v := frame[j] * fe.hamming[j]
			re += v * math.Cos(angle)
			im += v * math.Sin(angle)
		}
		magnitudes[k] = math.Hypot(re, im)
	}
	return magnitudes
}

func rmsEnergy(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func zeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

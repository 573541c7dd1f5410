package audio

import (
	"encoding/binary"
	"math"
)

// MinDBFS is the floor used when clamping decibel measurements. Digital
// silence is reported as this value rather than negative infinity.
const MinDBFS = -120.0

// DecodePCM16 interprets b as little-endian 16-bit signed PCM and returns
// the samples normalized to [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(b []byte) []float64 {
	samples := make([]float64, len(b)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(b[i*2:]))) / 32768.0
	}
	return samples
}

// RMS returns the root-mean-square amplitude of normalized samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS converts an RMS amplitude to decibels relative to full scale,
// clamped to [MinDBFS, 0].
func DBFS(rms float64) float64 {
	if rms <= 0 {
		return MinDBFS
	}

	db := 20 * math.Log10(rms)
	if db < MinDBFS {
		return MinDBFS
	}
	if db > 0 {
		return 0
	}
	return db
}

// MeanAbs returns the mean absolute amplitude of normalized samples.
func MeanAbs(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += math.Abs(s)
	}
	return sum / float64(len(samples))
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs whose
// signs differ.
func ZeroCrossingRate(samples []float64) float64 {
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

// AttenuatePCM16 returns a copy of b with every 16-bit sample scaled by
// gain. Used for packet loss concealment replays.
func AttenuatePCM16(b []byte, gain float64) []byte {
	out := make([]byte, len(b))
	for i := 0; i+1 < len(b); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(b[i:])))
		scaled := sample * gain
		if scaled > math.MaxInt16 {
			scaled = math.MaxInt16
		} else if scaled < math.MinInt16 {
			scaled = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(scaled)))
	}
	return out
}

package vad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(durationSec float64, sampleRate int, amplitude float32) []float32 {
	n := int(durationSec * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		out[i] = amplitude * float32(math.Sin(float64(i)*0.2))
	}
	return out
}

func silence(durationSec float64, sampleRate int) []float32 {
	return make([]float32, int(durationSec*float64(sampleRate)))
}

func TestDetectSegmentsFindsOneSpeechRegion(t *testing.T) {
	d := NewEnergyDetector()
	sampleRate := 16000

	samples := append(silence(0.5, sampleRate), tone(1.0, sampleRate, 0.5)...)
	samples = append(samples, silence(0.5, sampleRate)...)

	segments := d.DetectSegments(samples, sampleRate, 300)
	require.Len(t, segments, 1)
	assert.InDelta(t, 0.5, segments[0].StartSec, 0.05)
}

func TestDetectSegmentsSilenceOnlyFindsNothing(t *testing.T) {
	d := NewEnergyDetector()
	segments := d.DetectSegments(silence(1.0, 16000), 16000, 300)
	assert.Empty(t, segments)
}

func TestDetectSegmentsSplitsOnLongSilence(t *testing.T) {
	d := NewEnergyDetector()
	sampleRate := 16000

	samples := tone(0.5, sampleRate, 0.5)
	samples = append(samples, silence(1.0, sampleRate)...)
	samples = append(samples, tone(0.5, sampleRate, 0.5)...)

	segments := d.DetectSegments(samples, sampleRate, 300)
	assert.Len(t, segments, 2)
}

func TestDetectSegmentsEmptyInput(t *testing.T) {
	d := NewEnergyDetector()
	assert.Nil(t, d.DetectSegments(nil, 16000, 300))
}

package vad

import (
	"math"

	vadengine "github.com/sepia-stt/sttserve/src/engine/vad"
)

// EnergyDetector implements vadengine.SegmentDetector using an
// exponentially smoothed RMS volume measure, run over fixed-size frames
// across a static buffer instead of streaming state, to produce the
// speech-segment timestamps the VAD-driven engine needs (spec.md §4.6).
// It is the only SegmentDetector implementation in this module.
type EnergyDetector struct {
	Confidence float64 // RMS threshold above which a frame counts as speech
	FrameMs    int     // analysis frame size in milliseconds
}

// NewEnergyDetector returns a detector with a 0.02 RMS speech threshold
// and 20ms analysis frames.
func NewEnergyDetector() *EnergyDetector {
	return &EnergyDetector{Confidence: 0.02, FrameMs: 20}
}

// DetectSegments scans samples in fixed frames, smooths RMS volume with
// an exponential factor (0.2 new, 0.8 previous), and merges
// consecutive speech frames into segments, closing a segment once
// minSilenceMs of quiet frames have elapsed.
func (d *EnergyDetector) DetectSegments(samples []float32, sampleRate int, minSilenceMs int) []vadengine.Segment {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil
	}
	frameSize := sampleRate * d.frameMsOrDefault() / 1000
	if frameSize < 1 {
		frameSize = 1
	}
	minSilenceFrames := minSilenceMs / d.frameMsOrDefault()
	if minSilenceFrames < 1 {
		minSilenceFrames = 1
	}

	var segments []vadengine.Segment
	var smoothed float64
	inSpeech := false
	var speechStart int
	silenceRun := 0
	var lastSpeechEnd int

	for start := 0; start < len(samples); start += frameSize {
		end := start + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		rms := rmsOf(samples[start:end])
		smoothed = 0.2*rms + 0.8*smoothed

		isSpeech := smoothed >= d.Confidence
		if isSpeech {
			if !inSpeech {
				inSpeech = true
				speechStart = start
			}
			silenceRun = 0
			lastSpeechEnd = end
		} else if inSpeech {
			silenceRun++
			if silenceRun >= minSilenceFrames {
				segments = append(segments, vadengine.Segment{
					StartSec: float64(speechStart) / float64(sampleRate),
					EndSec:   float64(lastSpeechEnd) / float64(sampleRate),
				})
				inSpeech = false
				silenceRun = 0
			}
		}
	}
	if inSpeech {
		segments = append(segments, vadengine.Segment{
			StartSec: float64(speechStart) / float64(sampleRate),
			EndSec:   float64(lastSpeechEnd) / float64(sampleRate),
		})
	}
	return segments
}

func (d *EnergyDetector) frameMsOrDefault() int {
	if d.FrameMs <= 0 {
		return 20
	}
	return d.FrameMs
}

func rmsOf(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

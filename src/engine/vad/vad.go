// Package vad implements the VAD-driven buffered engine strategy
// (spec.md §4.6, C3), grounded on original_source/src/engine_whisper.py's
// WhisperProcessor: buffer accumulation, silence-driven segmentation,
// back-pressure, and model-cache integration (spec.md §4.7, C4).
package vad

import (
	"fmt"
	"sync"
	"time"

	"github.com/sepia-stt/sttserve/src/chunkprocessor"
	"github.com/sepia-stt/sttserve/src/engine"
	"github.com/sepia-stt/sttserve/src/logger"
	"github.com/sepia-stt/sttserve/src/messages"
	"github.com/sepia-stt/sttserve/src/modelcache"
	"github.com/sepia-stt/sttserve/src/textproc/datetime"
	"github.com/sepia-stt/sttserve/src/textproc/numbers"
)

// Segment is a detected speech region in a PCM buffer, in seconds from
// the buffer's start.
type Segment struct {
	StartSec float64
	EndSec   float64
}

// SegmentDetector runs voice-activity detection over a float32 PCM
// buffer, with minSilenceMs controlling how much trailing silence ends a
// segment -- the dynamic threshold of spec.md §4.6. Concrete backends
// (e.g. src/audio/vad.EnergyDetector) implement this.
type SegmentDetector interface {
	DetectSegments(samples []float32, sampleRate int, minSilenceMs int) []Segment
}

// SegmentResult is one whole-utterance inference result segment, before
// being joined into a single transcript.
type SegmentResult struct {
	Text         string
	NoSpeechProb float64
	AvgLogProb   float64
	Words        []string
}

// Recognizer runs whole-utterance inference over a float32 PCM buffer
// using a model handle leased from the Model Cache.
type Recognizer interface {
	Transcribe(model interface{}, samples []float32, sampleRate int, opts engine.Options) ([]SegmentResult, error)
}

// Loader loads the model handle a Recognizer needs, registered with the
// shared modelcache.Cache.
type Loader = modelcache.Loader

const (
	minBufferSeconds = 2.0
	maxSegmentSeconds = 30.0
	bufferReduceSeconds = 4.0
	bufferReduceKeepSeconds = 2.0
	trailingSilenceSeconds = 1.0
	finishMinBufferSeconds = 0.5
	noSpeechProbThreshold = 0.7
	maxQueueSizeContinuous = 3
)

// dynamicMinSilenceMs / dynamicMinSilenceThreshSec implement the 3-step
// schedule from spec.md §4.6: longer buffered audio tolerates less
// silence before a cut is forced, active only in continuous mode.
var dynamicMinSilenceMs = []int{1750, 1000, 500}
var dynamicMinSilenceThreshSec = []float64{0, 10, 20}

// Engine is the C3 strategy.
type Engine struct {
	opts       engine.Options
	sender     engine.Sender
	detector   SegmentDetector
	recognizer Recognizer
	lease      *modelcache.Lease
	log        *logger.Logger

	mu         sync.Mutex
	buffer     []float32
	open       bool
	accept     bool
	inferring  bool
	queueSize  int
}

// New constructs a VAD-driven Engine, leasing a model from cache via
// loader keyed on opts.ModelPath.
func New(opts engine.Options, sender engine.Sender, cache *modelcache.Cache, loader Loader, detector SegmentDetector, recognizer Recognizer) (*Engine, error) {
	lease, err := cache.Acquire(opts.ModelPath, opts.ModelProperties, loader)
	if err != nil {
		return nil, fmt.Errorf("vad: acquire model: %w", err)
	}
	return &Engine{
		opts:       opts,
		sender:     sender,
		detector:   detector,
		recognizer: recognizer,
		lease:      lease,
		log:        logger.WithPrefix("engine:vad"),
		open:       true,
		accept:     true,
	}, nil
}

// Register installs a named constructor in the shared chunkprocessor
// factory table.
func Register(name string, cache *modelcache.Cache, loader Loader, detector SegmentDetector, recognizer Recognizer) {
	chunkprocessor.Register(name, func(opts engine.Options, sender engine.Sender) (engine.Engine, error) {
		return New(opts, sender, cache, loader, detector, recognizer)
	})
}

// Process implements engine.Engine: spec.md §4.6 steps 1-5.
func (e *Engine) Process(chunk []byte) error {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return nil
	}
	e.buffer = append(e.buffer, pcm16ToFloat32(chunk)...)

	if e.inferring {
		e.queueSize++
		e.log.Warn("inference already running, queue_size=%d", e.queueSize)
		overload := e.opts.Continuous && e.queueSize >= maxQueueSizeContinuous
		e.mu.Unlock()
		if overload {
			e.accept = false
			return e.sender.SendError(messages.CodeAsrEngineError, messages.NameAsrEngineError, "Inference too slow for continuous mode")
		}
		return nil
	}

	bufferSeconds := float64(len(e.buffer)) / float64(e.opts.SampleRate)
	if bufferSeconds < minBufferSeconds {
		e.mu.Unlock()
		return nil
	}

	minSilenceMs := e.dynamicMinSilenceMsLocked(bufferSeconds)
	segments := e.detector.DetectSegments(e.buffer, e.opts.SampleRate, minSilenceMs)
	splitStart, splitEnd, doSplit := decideSplit(segments, bufferSeconds)
	if !doSplit {
		if len(segments) == 0 && bufferSeconds > bufferReduceSeconds {
			e.reduceBufferLocked()
		}
		e.mu.Unlock()
		return nil
	}

	samples := e.extractSplitLocked(splitStart, splitEnd)
	e.inferring = true
	e.mu.Unlock()

	return e.runInference(samples, true)
}

// dynamicMinSilenceMsLocked must be called with e.mu held.
func (e *Engine) dynamicMinSilenceMsLocked(bufferSeconds float64) int {
	if !e.opts.Continuous {
		return dynamicMinSilenceMs[0]
	}
	chosen := dynamicMinSilenceMs[0]
	for i, threshold := range dynamicMinSilenceThreshSec {
		if bufferSeconds >= threshold {
			chosen = dynamicMinSilenceMs[i]
		}
	}
	return chosen
}

// decideSplit implements spec.md §4.6 step 4's decision tree.
func decideSplit(segments []Segment, bufferSeconds float64) (start, end float64, ok bool) {
	if bufferSeconds > maxSegmentSeconds {
		return 0, bufferSeconds, true
	}
	if len(segments) >= 2 {
		return segments[0].StartSec, segments[len(segments)-1].EndSec, true
	}
	if len(segments) == 1 {
		trailing := bufferSeconds - segments[0].EndSec
		if trailing >= trailingSilenceSeconds {
			return segments[0].StartSec, segments[0].EndSec, true
		}
	}
	return 0, 0, false
}

// extractSplitLocked removes samples in [startSec, endSec) from the
// buffer and returns them. Must be called with e.mu held.
func (e *Engine) extractSplitLocked(startSec, endSec float64) []float32 {
	sr := e.opts.SampleRate
	start := int(startSec * float64(sr))
	end := int(endSec * float64(sr))
	if start < 0 {
		start = 0
	}
	if end > len(e.buffer) {
		end = len(e.buffer)
	}
	out := make([]float32, end-start)
	copy(out, e.buffer[start:end])
	e.buffer = append([]float32{}, e.buffer[end:]...)
	return out
}

// reduceBufferLocked implements the buffer-reduction rule: drop all but
// the last bufferReduceKeepSeconds of audio. Process calls it only when the
// VAD found no speech segment. Must be called with e.mu held.
func (e *Engine) reduceBufferLocked() {
	sr := e.opts.SampleRate
	keep := int(bufferReduceKeepSeconds * float64(sr))
	if keep >= len(e.buffer) {
		return
	}
	e.log.Warn("reducing buffer from %d to %d samples (no speech detected)", len(e.buffer), keep)
	e.buffer = append([]float32{}, e.buffer[len(e.buffer)-keep:]...)
}

// runInference drives one whole-utterance inference and emits its
// result. Holds no lock while the recognizer runs (spec.md §5's
// suspension point b), but resets e.inferring/e.queueSize under lock
// when done.
func (e *Engine) runInference(samples []float32, isFinalSegment bool) error {
	segments, err := e.recognizer.Transcribe(e.lease.Handle(), samples, e.opts.SampleRate, e.opts)

	e.mu.Lock()
	e.inferring = false
	e.queueSize = 0
	e.mu.Unlock()

	if err != nil {
		return fmt.Errorf("vad: transcribe: %w", err)
	}

	tr := joinSegments(segments)
	tr.IsFinal = isFinalSegment
	if tr.IsFinal && tr.Text != "" && e.opts.OptimizeFinalResult {
		tr.Text = numbers.Convert(tr.Text, e.opts.LanguageShort)
		tr.Text = datetime.Optimize(tr.Text, e.opts.LanguageShort)
	}
	if tr.Text == "" {
		return nil
	}
	return e.sender.SendTranscript(tr)
}

// joinSegments discards low-confidence segments (no_speech_prob too
// high) and joins the rest, per spec.md §4.6's "Inference post-processing".
func joinSegments(segments []SegmentResult) engine.TranscriptResult {
	var texts []string
	var logProbSum float64
	var count int
	for _, seg := range segments {
		if seg.NoSpeechProb >= noSpeechProbThreshold {
			continue
		}
		if seg.Text == "" {
			continue
		}
		texts = append(texts, seg.Text)
		logProbSum += seg.AvgLogProb
		count++
	}
	confidence := -1.0
	if count > 0 {
		confidence = logProbSum / float64(count)
	}
	text := ""
	for i, t := range texts {
		if i > 0 {
			text += " "
		}
		text += t
	}
	return engine.TranscriptResult{Text: text, Confidence: confidence}
}

// Finish implements engine.Engine: spec.md §4.6's "on finish()" rule --
// a final inference only if there's enough buffered audio and the VAD
// finds speech in it.
func (e *Engine) Finish() error {
	e.mu.Lock()
	e.accept = false
	bufferSeconds := float64(len(e.buffer)) / float64(e.opts.SampleRate)
	if bufferSeconds < finishMinBufferSeconds {
		e.mu.Unlock()
		return nil
	}
	segments := e.detector.DetectSegments(e.buffer, e.opts.SampleRate, dynamicMinSilenceMs[0])
	if len(segments) == 0 {
		e.mu.Unlock()
		return nil
	}
	samples := e.extractSplitLocked(0, bufferSeconds)
	e.inferring = true
	e.mu.Unlock()

	return e.runInference(samples, true)
}

// Close implements engine.Engine: releases the model cache lease after
// waiting for any in-flight inference to settle (spec.md §5, "Cancellation").
func (e *Engine) Close() error {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return nil
	}
	e.open = false
	e.accept = false
	e.mu.Unlock()

	for {
		e.mu.Lock()
		inflight := e.inferring
		e.mu.Unlock()
		if !inflight {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	e.lease.Release()
	return nil
}

// Options implements engine.Engine.
func (e *Engine) Options() engine.Options { return e.opts }

// IsOpen implements engine.Engine.
func (e *Engine) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// AcceptsChunks implements engine.Engine.
func (e *Engine) AcceptsChunks() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accept
}

// pcm16ToFloat32 converts little-endian signed 16-bit PCM to the
// normalized float32 samples Recognizer/SegmentDetector expect.
func pcm16ToFloat32(chunk []byte) []float32 {
	n := len(chunk) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(uint16(chunk[2*i]) | uint16(chunk[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return out
}


// Package streaming implements the native-partials engine strategy
// (spec.md §4.5, C2), grounded on original_source/src/engine_vosk.py's
// VoskProcessor, generalized from Vosk specifically to any Recognizer
// that emits its own partial/final boundaries -- the same generalization
// src/engine/deepgram applies to an external streaming recognizer
// connection.
package streaming

import (
	"fmt"
	"sync"

	"github.com/sepia-stt/sttserve/src/chunkprocessor"
	"github.com/sepia-stt/sttserve/src/engine"
	"github.com/sepia-stt/sttserve/src/logger"
	"github.com/sepia-stt/sttserve/src/textproc/datetime"
	"github.com/sepia-stt/sttserve/src/textproc/numbers"
)

// Result is what a Recognizer reports back for one chunk.
type Result struct {
	Text         string
	Confidence   float64
	Words        []string
	Alternatives []engine.TranscriptResult
}

// Recognizer is the minimal contract a native-streaming backend (Vosk,
// a cloud streaming STT websocket, ...) must satisfy. AcceptWaveform
// mirrors Vosk's own method name since that is the shape this engine was
// generalized from.
type Recognizer interface {
	// AcceptWaveform feeds chunk to the recognizer. final is true when
	// the recognizer has reached a silence-driven boundary, in which
	// case the returned result is the finished utterance; otherwise it
	// is the latest partial.
	AcceptWaveform(chunk []byte) (final bool, result Result, err error)
	// FinalResult forces the recognizer to flush on session finish.
	FinalResult() (Result, error)
	Close() error
}

// RecognizerFactory builds a Recognizer for a resolved model + options.
type RecognizerFactory func(opts engine.Options) (Recognizer, error)

// engineState mirrors VoskProcessor's 0/1/2/3 state machine.
type engineState int

const (
	stateWaiting engineState = iota
	statePartial
	stateFinal
	stateClosing
)

// Engine is the C2 strategy: wraps a Recognizer, normalizes its output,
// and applies continuous/non-continuous accumulation semantics.
type Engine struct {
	opts       engine.Options
	sender     engine.Sender
	recognizer Recognizer
	log        *logger.Logger

	mu              sync.Mutex
	state           engineState
	open            bool
	accept          bool
	lastPartialText string
	accumulated     engine.TranscriptResult
}

// New constructs a streaming Engine from a recognizer factory. Concrete
// backends register themselves under a name via chunkprocessor.Register
// (see Register below) with their own RecognizerFactory.
func New(opts engine.Options, sender engine.Sender, newRecognizer RecognizerFactory) (*Engine, error) {
	rec, err := newRecognizer(opts)
	if err != nil {
		return nil, fmt.Errorf("streaming: create recognizer: %w", err)
	}
	return &Engine{
		opts:       opts,
		sender:     sender,
		recognizer: rec,
		log:        logger.WithPrefix("engine:streaming"),
		open:       true,
		accept:     true,
	}, nil
}

// Register installs a named constructor in the shared chunkprocessor
// factory table, the Go analogue of chunk_processor.py's
// get_processor_instance dispatch.
func Register(name string, newRecognizer RecognizerFactory) {
	chunkprocessor.Register(name, func(opts engine.Options, sender engine.Sender) (engine.Engine, error) {
		return New(opts, sender, newRecognizer)
	})
}

// Process implements engine.Engine.
func (e *Engine) Process(chunk []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateClosing {
		return nil
	}
	final, result, err := e.recognizer.AcceptWaveform(chunk)
	if err != nil {
		return fmt.Errorf("streaming: accept waveform: %w", err)
	}
	if final {
		e.state = stateFinal
		return e.handleFinal(result)
	}
	e.state = statePartial
	return e.handlePartial(result)
}

func (e *Engine) handlePartial(result Result) error {
	if result.Text == "" || result.Text == e.lastPartialText {
		return nil
	}
	e.lastPartialText = result.Text
	return e.sender.SendTranscript(engine.TranscriptResult{
		Text:       result.Text,
		Confidence: result.Confidence,
		IsFinal:    false,
	})
}

func (e *Engine) handleFinal(result Result) error {
	tr := toTranscript(result)
	if e.opts.Continuous {
		e.accumulated = tr
		return e.send(tr, true)
	}
	e.accumulated = appendResult(e.accumulated, tr)
	return nil
}

// Finish implements engine.Engine: spec.md §4.5's "on finish()" rules.
func (e *Engine) Finish() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	wasFinal := e.state == stateFinal
	e.state = stateClosing
	e.accept = false

	if wasFinal && !e.opts.Continuous {
		return e.send(e.accumulated, true)
	}
	if wasFinal {
		return nil
	}
	result, err := e.recognizer.FinalResult()
	if err != nil {
		return fmt.Errorf("streaming: final result: %w", err)
	}
	tr := toTranscript(result)
	e.accumulated = appendResult(e.accumulated, tr)
	return e.send(e.accumulated, true)
}

func (e *Engine) send(tr engine.TranscriptResult, isFinal bool) error {
	tr.IsFinal = isFinal
	if isFinal && tr.Text != "" && e.opts.OptimizeFinalResult {
		tr.Text = numbers.Convert(tr.Text, e.opts.LanguageShort)
		tr.Text = datetime.Optimize(tr.Text, e.opts.LanguageShort)
	}
	return e.sender.SendTranscript(tr)
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return nil
	}
	e.open = false
	e.accept = false
	return e.recognizer.Close()
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

func toTranscript(r Result) engine.TranscriptResult {
	return engine.TranscriptResult{Text: r.Text, Confidence: r.Confidence}
}

// appendResult mirrors VoskProcessor.append_to_result: join text with
// ", ", take the min confidence, concatenate words.
func appendResult(given, next engine.TranscriptResult) engine.TranscriptResult {
	if next.Text == "" {
		return given
	}
	if given.Text == "" {
		return next
	}
	merged := given
	merged.Text = given.Text + ", " + next.Text
	merged.Confidence = minConfidence(given.Confidence, next.Confidence)
	return merged
}

func minConfidence(a, b float64) float64 {
	if a < 0 {
		return b
	}
	if b < 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

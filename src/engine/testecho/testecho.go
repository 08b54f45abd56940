// Package testecho implements the "test" engine, grounded on
// original_source/src/chunk_processor.py's ThreadTestProcessor: a
// backend used by the protocol-handler integration tests instead of a
// real recognizer. It "pretends to compute" on each chunk and reports
// the total bytes processed as its final transcript.
package testecho

import (
	"fmt"
	"sync"
	"time"

	"github.com/sepia-stt/sttserve/src/chunkprocessor"
	"github.com/sepia-stt/sttserve/src/engine"
)

func init() {
	chunkprocessor.Register("test", func(opts engine.Options, sender engine.Sender) (engine.Engine, error) {
		return New(opts, sender), nil
	})
}

// Engine is the test/load engine.
type Engine struct {
	opts   engine.Options
	sender engine.Sender

	mu         sync.Mutex
	open       bool
	accept     bool
	totalBytes int
}

// New constructs a testecho Engine.
func New(opts engine.Options, sender engine.Sender) *Engine {
	return &Engine{opts: opts, sender: sender, open: true, accept: true}
}

// Process implements engine.Engine: simulates a fixed compute cost per
// chunk, mirroring ThreadTestProcessor._compute's time.sleep(0.05).
func (e *Engine) Process(chunk []byte) error {
	time.Sleep(50 * time.Millisecond)
	e.mu.Lock()
	e.totalBytes += len(chunk)
	e.mu.Unlock()
	return nil
}

// Finish implements engine.Engine.
func (e *Engine) Finish() error {
	e.mu.Lock()
	e.accept = false
	total := e.totalBytes
	e.mu.Unlock()
	return e.sender.SendTranscript(engine.TranscriptResult{
		Text:       fmt.Sprintf("[processed bytes: %d]", total),
		Confidence: 1.0,
		IsFinal:    true,
	})
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
	e.accept = false
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


// Package chunkprocessor implements the per-session dispatcher (spec.md
// §4.3, C5), grounded on original_source/src/chunk_processor.py's
// ChunkProcessor and get_processor_instance factory.
package chunkprocessor

import (
	"fmt"

	"github.com/sepia-stt/sttserve/src/engine"
	"github.com/sepia-stt/sttserve/src/messages"
)

// Constructor builds a concrete Engine from normalized options and a
// Sender to emit results/errors through. Registered in the Factory
// table below, one per engine name (spec.md §4.3's "dynamic" variant
// reads the name from the resolved model instead of the options).
type Constructor func(opts engine.Options, sender engine.Sender) (engine.Engine, error)

// Factory maps an engine name to its Constructor, mirroring
// get_processor_instance's if/elif chain. Populated by the engine
// subpackages themselves (from an init() func or from a Register function
// called at startup) to avoid an import cycle between chunkprocessor and
// the concrete engines.
var Factory = map[string]Constructor{}

// Register adds a named engine constructor to the Factory. Concrete
// engine packages call this from an init() func or from their own
// Register function.
func Register(name string, ctor Constructor) {
	Factory[name] = ctor
}

// NewEngine constructs a named engine, or ErrEngineNotFound if name has
// no registered constructor (original_source raises EngineNotFound).
func NewEngine(name string, opts engine.Options, sender engine.Sender) (engine.Engine, error) {
	ctor, ok := Factory[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrEngineNotFound, name)
	}
	return ctor(opts, sender)
}

// Processor owns one engine instance for one authenticated session and
// guards it with the is_open/accept_chunks flags from spec.md §3.
type Processor struct {
	eng          engine.Engine
	sender       engine.Sender
	acceptChunks bool
}

// New creates a Processor wrapping a freshly constructed named engine.
func New(engineName string, opts engine.Options, sender engine.Sender) (*Processor, error) {
	eng, err := NewEngine(engineName, opts, sender)
	if err != nil {
		return nil, err
	}
	return &Processor{eng: eng, sender: sender, acceptChunks: true}, nil
}

// Process forwards chunk to the engine, or emits a 400 ProcessError if
// the processor is not open and accepting (spec.md §4.3).
func (p *Processor) Process(chunk []byte) error {
	if p.eng == nil || !p.eng.IsOpen() || !p.acceptChunks || !p.eng.AcceptsChunks() {
		return p.sender.SendError(messages.CodeProcessError, messages.NameProcessError,
			"Chunk processor was (already) closed or didn't accept data (anymore)")
	}
	if err := p.eng.Process(chunk); err != nil {
		return p.sender.SendError(messages.CodeAsrEngineError, messages.NameAsrEngineError, err.Error())
	}
	return nil
}

// FinishProcessing stops accepting chunks and asks the engine for its
// last result. The caller (the session, which owns the socket) is
// responsible for sending the "audioend" acknowledgement before calling
// this, per spec.md §4.3's ordering.
func (p *Processor) FinishProcessing() error {
	if p.eng == nil || !p.eng.IsOpen() || !p.acceptChunks || !p.eng.AcceptsChunks() {
		return nil
	}
	p.acceptChunks = false
	if err := p.eng.Finish(); err != nil {
		return p.sender.SendError(messages.CodeAsrEngineError, messages.NameAsrEngineError, err.Error())
	}
	return nil
}

// Close drives the engine through its own Close, releasing resources.
// Idempotent: calling Close twice is a no-op the second time, since the
// engine is itself required to make Close idempotent (spec.md §5).
func (p *Processor) Close() error {
	if p.eng == nil || !p.eng.IsOpen() {
		return nil
	}
	return p.eng.Close()
}

// Options returns the engine's normalized active options, used to build
// the welcome response's capability info.
func (p *Processor) Options() engine.Options {
	if p.eng == nil {
		return engine.Options{}
	}
	return p.eng.Options()
}

// Package dynamic implements the "dynamic" engine swap, grounded on
// original_source/src/chunk_processor.py's DynamicEngineSwap: the
// concrete engine is chosen at construction time from the resolved
// model's own "engine" property instead of a fixed name (spec.md §4.3's
// "dynamic dispatcher variant", §11.1 supplement).
package dynamic

import (
	"fmt"

	"github.com/sepia-stt/sttserve/src/chunkprocessor"
	"github.com/sepia-stt/sttserve/src/engine"
)

func init() {
	chunkprocessor.Register("dynamic", func(opts engine.Options, sender engine.Sender) (engine.Engine, error) {
		return New(opts, sender)
	})
}

// New reads opts.ModelProperties["engine"] and delegates to that engine's
// constructor.
func New(opts engine.Options, sender engine.Sender) (engine.Engine, error) {
	name, ok := opts.ModelProperties["engine"]
	if !ok || name == "" {
		return nil, fmt.Errorf("dynamic: selected model has no \"engine\" property")
	}
	current, err := chunkprocessor.NewEngine(name, opts, sender)
	if err != nil {
		return nil, fmt.Errorf("dynamic: %w", err)
	}
	return &Engine{current: current}, nil
}

// Engine delegates every call to the concrete engine chosen at construction.
type Engine struct {
	current engine.Engine
}

func (e *Engine) Process(chunk []byte) error   { return e.current.Process(chunk) }
func (e *Engine) Finish() error                { return e.current.Finish() }
func (e *Engine) Close() error                 { return e.current.Close() }
func (e *Engine) Options() engine.Options      { return e.current.Options() }
func (e *Engine) IsOpen() bool                 { return e.current.IsOpen() }
func (e *Engine) AcceptsChunks() bool          { return e.current.AcceptsChunks() }

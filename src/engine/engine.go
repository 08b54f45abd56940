// Package engine defines the uniform streaming contract every concrete
// ASR backend implements (spec.md §4.4, C1), grounded on
// original_source/src/engine_interface.py's EngineInterface base class.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sepia-stt/sttserve/src/config"
	"github.com/sepia-stt/sttserve/src/messages"
)

// ErrEngineNotFound mirrors original_source's EngineNotFound: the
// requested engine name has no registered constructor.
var ErrEngineNotFound = errors.New("engine: unknown engine name")

// ErrModelNotFound mirrors original_source's ModelNotFound: no configured
// model satisfies the requested name/language/task combination.
var ErrModelNotFound = errors.New("engine: no matching model")

// Options is the normalized engine options value object (spec.md §3,
// "Engine Options (normalized)").
type Options struct {
	SampleRate          int
	Language            string
	LanguageShort       string
	ModelName           string
	ModelPath           string
	ModelProperties     map[string]string
	Task                string
	Continuous          bool
	OptimizeFinalResult bool

	Alternatives int
	Words        bool
	Speaker      bool
	Phrases      []string
	Format       string
}

// TranscriptResult is the normalized result value object any engine
// emits (spec.md §3, "Transcript Result (normalized)").
type TranscriptResult struct {
	Text         string
	Confidence   float64
	IsFinal      bool
	Alternatives []messages.AlternativeResult
	Features     map[string]interface{}
	Duration     float64
}

// Sender delivers a finished transcript to the owning session. Engines
// never touch the socket directly; they always go through this, matching
// spec.md §4.2's "all outbound JSON is emitted through the session".
type Sender interface {
	SendTranscript(TranscriptResult) error
	SendError(code int, name, message string) error
}

// Engine is the capability interface every concrete ASR strategy
// implements (spec.md §4.4): process/finish/close/options, plus an
// internal notion of being open and accepting chunks.
type Engine interface {
	Process(chunk []byte) error
	Finish() error
	Close() error
	Options() Options
	IsOpen() bool
	AcceptsChunks() bool
}

// ResolvedModel is the outcome of model selection: the concrete model
// plus the options it was selected from.
type ResolvedModel struct {
	Name       string
	Language   string
	Path       string
	Properties map[string]string
}

// ResolveModel implements the deterministic model-selection algorithm of
// spec.md §4.4, ported from EngineInterface.__init__'s priority chain:
//  1. explicit model name, exact match or ModelNotFound
//  2. explicit language: exact tag match, else first prefix match
//     (optionally narrowed by task), else ModelNotFound
//  3. task alone, with no language -> ModelNotFound
//  4. nothing given -> first configured model
func ResolveModel(models []config.ModelConfig, modelName, language, task string) (ResolvedModel, error) {
	if modelName != "" {
		for _, m := range models {
			if m.Name == modelName {
				return toResolved(m), nil
			}
		}
		return ResolvedModel{}, fmt.Errorf("%w: model %q", ErrModelNotFound, modelName)
	}

	if language != "" {
		normalized := strings.ReplaceAll(language, "_", "-")
		short := strings.ToLower(strings.SplitN(normalized, "-", 2)[0])

		for _, m := range models {
			if strings.EqualFold(m.Language, normalized) {
				return toResolved(m), nil
			}
		}

		var prefixMatches []config.ModelConfig
		for _, m := range models {
			if strings.HasPrefix(strings.ToLower(m.Language), short) {
				prefixMatches = append(prefixMatches, m)
			}
		}
		if len(prefixMatches) == 0 {
			return ResolvedModel{}, fmt.Errorf("%w: language %q", ErrModelNotFound, language)
		}
		if task != "" {
			for _, m := range prefixMatches {
				if strings.EqualFold(m.Task, task) {
					return toResolved(m), nil
				}
			}
		}
		return toResolved(prefixMatches[0]), nil
	}

	if task != "" {
		return ResolvedModel{}, fmt.Errorf("%w: no language given for task %q", ErrModelNotFound, task)
	}

	if len(models) == 0 {
		return ResolvedModel{}, fmt.Errorf("%w: no models configured", ErrModelNotFound)
	}
	return toResolved(models[0]), nil
}

func toResolved(m config.ModelConfig) ResolvedModel {
	return ResolvedModel{Name: m.Name, Language: m.Language, Path: m.Path, Properties: m.Properties}
}

// NormalizeOptions merges a client's welcome.data request with a resolved
// model to produce the Options every engine constructs from.
func NormalizeOptions(sampleRate int, continuous, optimizeFinal bool, alternatives int, words, speaker bool, phrases []string, format string, model ResolvedModel) Options {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	if alternatives == 0 {
		alternatives = 1
	}
	short := model.Language
	if idx := strings.IndexAny(short, "-_"); idx > 0 {
		short = short[:idx]
	}
	return Options{
		SampleRate:          sampleRate,
		Language:            model.Language,
		LanguageShort:       strings.ToLower(short),
		ModelName:           model.Name,
		ModelPath:           model.Path,
		ModelProperties:     model.Properties,
		Continuous:          continuous,
		OptimizeFinalResult: optimizeFinal,
		Alternatives:        alternatives,
		Words:               words,
		Speaker:             speaker,
		Phrases:             phrases,
		Format:              format,
	}
}

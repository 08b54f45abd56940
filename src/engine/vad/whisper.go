package vad

import (
	"fmt"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go"

	"github.com/sepia-stt/sttserve/src/engine"
)

// WhisperLoader loads a whisper.cpp model from path, the Loader
// counterpart engine_whisper.py's get_or_create_model passes to the
// Model Cache (spec.md §4.7). properties is not read; the thread count
// is set per inference from WhisperRecognizer.ThreadsPerModel.
func WhisperLoader(path string, properties map[string]string) (interface{}, error) {
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("vad: load whisper model %q: %w", path, err)
	}
	return model, nil
}

// WhisperRecognizer adapts whisper.cpp to the vad.Recognizer interface.
type WhisperRecognizer struct {
	ThreadsPerModel int
}

// Transcribe implements Recognizer.
func (w *WhisperRecognizer) Transcribe(modelHandle interface{}, samples []float32, sampleRate int, opts engine.Options) ([]SegmentResult, error) {
	model, ok := modelHandle.(whisper.Model)
	if !ok {
		return nil, fmt.Errorf("vad: unexpected model handle type %T", modelHandle)
	}
	ctx, err := model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("vad: new whisper context: %w", err)
	}
	if opts.Language != "" {
		_ = ctx.SetLanguage(opts.LanguageShort)
	}
	if w.ThreadsPerModel > 0 {
		ctx.SetThreads(uint(w.ThreadsPerModel))
	}

	if err := ctx.Process(samples, nil, nil); err != nil {
		return nil, fmt.Errorf("vad: whisper process: %w", err)
	}

	var results []SegmentResult
	for {
		segment, err := ctx.NextSegment()
		if err != nil {
			break
		}
		results = append(results, SegmentResult{
			Text:       segment.Text,
			AvgLogProb: 0,
			NoSpeechProb: 0,
		})
	}
	return results, nil
}

package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepia-stt/sttserve/src/engine"
)

type scriptedRecognizer struct {
	steps []struct {
		final  bool
		result Result
	}
	i         int
	finalText string
}

func (r *scriptedRecognizer) AcceptWaveform(chunk []byte) (bool, Result, error) {
	s := r.steps[r.i]
	r.i++
	return s.final, s.result, nil
}
func (r *scriptedRecognizer) FinalResult() (Result, error) {
	return Result{Text: r.finalText, Confidence: 0.9}, nil
}
func (r *scriptedRecognizer) Close() error { return nil }

type captureSender struct {
	results []engine.TranscriptResult
}

func (s *captureSender) SendTranscript(r engine.TranscriptResult) error {
	s.results = append(s.results, r)
	return nil
}
func (s *captureSender) SendError(code int, name, message string) error { return nil }

func TestPartialDedupSendsOnlyOnChange(t *testing.T) {
	rec := &scriptedRecognizer{steps: []struct {
		final  bool
		result Result
	}{
		{false, Result{Text: "hel"}},
		{false, Result{Text: "hel"}},
		{false, Result{Text: "hello"}},
	}}
	sender := &captureSender{}
	e, err := New(engine.Options{}, sender, func(engine.Options) (Recognizer, error) { return rec, nil })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Process([]byte("chunk")))
	}
	require.Len(t, sender.results, 2)
	assert.Equal(t, "hel", sender.results[0].Text)
	assert.Equal(t, "hello", sender.results[1].Text)
	assert.False(t, sender.results[0].IsFinal)
}

func TestContinuousFinalSendsImmediately(t *testing.T) {
	rec := &scriptedRecognizer{steps: []struct {
		final  bool
		result Result
	}{
		{true, Result{Text: "done", Confidence: 0.8}},
	}}
	sender := &captureSender{}
	e, err := New(engine.Options{Continuous: true}, sender, func(engine.Options) (Recognizer, error) { return rec, nil })
	require.NoError(t, err)

	require.NoError(t, e.Process([]byte("chunk")))
	require.Len(t, sender.results, 1)
	assert.Equal(t, "done", sender.results[0].Text)
	assert.True(t, sender.results[0].IsFinal)
}

func TestNonContinuousAccumulatesUntilFinish(t *testing.T) {
	rec := &scriptedRecognizer{steps: []struct {
		final  bool
		result Result
	}{
		{true, Result{Text: "first", Confidence: 0.9}},
		{true, Result{Text: "second", Confidence: 0.7}},
	}}
	sender := &captureSender{}
	e, err := New(engine.Options{Continuous: false}, sender, func(engine.Options) (Recognizer, error) { return rec, nil })
	require.NoError(t, err)

	require.NoError(t, e.Process([]byte("a")))
	require.NoError(t, e.Process([]byte("b")))
	assert.Empty(t, sender.results, "non-continuous finals accumulate silently until Finish")

	require.NoError(t, e.Finish())
	require.Len(t, sender.results, 1)
	assert.Equal(t, "first, second", sender.results[0].Text)
	assert.Equal(t, 0.7, sender.results[0].Confidence)
}

func TestFinishAppliesOptimizeFinalResult(t *testing.T) {
	rec := &scriptedRecognizer{steps: []struct {
		final  bool
		result Result
	}{
		{false, Result{Text: "two"}},
	}}
	rec.finalText = "two hundred"
	sender := &captureSender{}
	e, err := New(engine.Options{OptimizeFinalResult: true, LanguageShort: "en"}, sender,
		func(engine.Options) (Recognizer, error) { return rec, nil })
	require.NoError(t, err)

	require.NoError(t, e.Process([]byte("chunk")))
	require.NoError(t, e.Finish())

	require.Len(t, sender.results, 2)
	assert.Equal(t, "200", sender.results[1].Text)
	assert.True(t, sender.results[1].IsFinal)
}

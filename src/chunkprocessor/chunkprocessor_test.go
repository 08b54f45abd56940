package chunkprocessor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepia-stt/sttserve/src/engine"
)

type fakeEngine struct {
	processErr error
	finishErr  error
	open       bool
	accepting  bool
	processed  [][]byte
	finished   bool
	closed     bool
}

func (f *fakeEngine) Process(chunk []byte) error {
	f.processed = append(f.processed, chunk)
	return f.processErr
}
func (f *fakeEngine) Finish() error {
	f.finished = true
	return f.finishErr
}
func (f *fakeEngine) Close() error            { f.closed = true; f.open = false; return nil }
func (f *fakeEngine) Options() engine.Options { return engine.Options{ModelName: "fake"} }
func (f *fakeEngine) IsOpen() bool            { return f.open }
func (f *fakeEngine) AcceptsChunks() bool     { return f.accepting }

type fakeSender struct {
	transcripts []engine.TranscriptResult
	errors      []string
}

func (s *fakeSender) SendTranscript(r engine.TranscriptResult) error {
	s.transcripts = append(s.transcripts, r)
	return nil
}
func (s *fakeSender) SendError(code int, name, message string) error {
	s.errors = append(s.errors, name)
	return nil
}

func withFakeEngine(t *testing.T, fe *fakeEngine) (*Processor, *fakeSender) {
	t.Helper()
	Register("fake-test-engine", func(opts engine.Options, sender engine.Sender) (engine.Engine, error) {
		return fe, nil
	})
	sender := &fakeSender{}
	p, err := New("fake-test-engine", engine.Options{}, sender)
	require.NoError(t, err)
	return p, sender
}

func TestProcessForwardsToOpenEngine(t *testing.T) {
	fe := &fakeEngine{open: true, accepting: true}
	p, sender := withFakeEngine(t, fe)

	err := p.Process([]byte("chunk"))
	require.NoError(t, err)
	assert.Len(t, fe.processed, 1)
	assert.Empty(t, sender.errors)
}

func TestProcessRejectsWhenNotAccepting(t *testing.T) {
	fe := &fakeEngine{open: true, accepting: false}
	p, sender := withFakeEngine(t, fe)

	err := p.Process([]byte("chunk"))
	require.NoError(t, err)
	assert.Empty(t, fe.processed)
	assert.Equal(t, []string{"ProcessError"}, sender.errors)
}

func TestProcessTranslatesEngineErrorToAsrEngineError(t *testing.T) {
	fe := &fakeEngine{open: true, accepting: true, processErr: errors.New("boom")}
	p, sender := withFakeEngine(t, fe)

	err := p.Process([]byte("chunk"))
	require.NoError(t, err)
	assert.Equal(t, []string{"AsrEngineError"}, sender.errors)
}

func TestFinishProcessingStopsAcceptingAndCallsFinish(t *testing.T) {
	fe := &fakeEngine{open: true, accepting: true}
	p, _ := withFakeEngine(t, fe)

	err := p.FinishProcessing()
	require.NoError(t, err)
	assert.True(t, fe.finished)

	err = p.Process([]byte("late"))
	require.NoError(t, err)
	assert.Empty(t, fe.processed, "no chunks should be accepted after finish")
}

func TestNewEngineUnknownNameErrors(t *testing.T) {
	_, err := NewEngine("does-not-exist", engine.Options{}, &fakeSender{})
	assert.ErrorIs(t, err, engine.ErrEngineNotFound)
}

func TestCloseIsIdempotent(t *testing.T) {
	fe := &fakeEngine{open: true, accepting: true}
	p, _ := withFakeEngine(t, fe)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, fe.closed)
}

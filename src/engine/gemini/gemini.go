// Package gemini implements a native-partials engine strategy backed by
// the Gemini Live streaming API, registered as chunkprocessor engine
// name "gemini" (SPEC_FULL.md §11's domain-stack expansion). It plugs
// into src/engine/streaming the same way engine_vosk.py's VoskProcessor
// wraps a concrete recognizer, generalized to an external bidi
// connection the same way src/engine/deepgram wraps Deepgram's
// websocket.
package gemini

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/sepia-stt/sttserve/src/engine"
	"github.com/sepia-stt/sttserve/src/engine/streaming"
	"github.com/sepia-stt/sttserve/src/logger"
)

// Config holds the ambient bits needed to build Gemini Live sessions:
// only the model name to request (credentials are picked up from
// Application Default Credentials via cloud.google.com/go/auth,
// consumed transitively by genai.NewClient).
type Config struct {
	Model string
}

// Register installs the "gemini" constructor in the shared
// chunkprocessor factory table.
func Register(cfg Config) {
	streaming.Register("gemini", func(opts engine.Options) (streaming.Recognizer, error) {
		return newRecognizer(context.Background(), cfg, opts)
	})
}

// recognizer adapts a Gemini Live session to streaming.Recognizer.
type recognizer struct {
	client  *genai.Client
	session *genai.Session
	log     *logger.Logger

	mu           sync.Mutex
	lastText     string
	lastFinal    bool
}

func newRecognizer(ctx context.Context, cfg Config, opts engine.Options) (streaming.Recognizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash-live"
	}

	session, err := client.Live.Connect(ctx, model, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityText},
		SpeechConfig: &genai.SpeechConfig{
			LanguageCode: opts.Language,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: connect live session: %w", err)
	}

	return &recognizer{client: client, session: session, log: logger.WithPrefix("engine:gemini")}, nil
}

// AcceptWaveform implements streaming.Recognizer: sends the raw PCM16
// chunk as realtime audio input and drains whatever the session has
// produced so far, classifying it as final if the server signaled end
// of turn.
func (r *recognizer) AcceptWaveform(chunk []byte) (bool, streaming.Result, error) {
	if err := r.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: chunk, MIMEType: "audio/pcm;rate=16000"},
	}); err != nil {
		return false, streaming.Result{}, fmt.Errorf("gemini: send audio: %w", err)
	}

	msg, err := r.session.Receive()
	if err != nil {
		return false, streaming.Result{}, fmt.Errorf("gemini: receive: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	text := extractText(msg)
	turnComplete := msg.ServerContent != nil && msg.ServerContent.TurnComplete
	r.lastText = text
	r.lastFinal = turnComplete
	return turnComplete, streaming.Result{Text: text, Confidence: -1}, nil
}

// FinalResult implements streaming.Recognizer.
func (r *recognizer) FinalResult() (streaming.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return streaming.Result{Text: r.lastText, Confidence: -1}, nil
}

// Close implements streaming.Recognizer.
func (r *recognizer) Close() error {
	if r.session != nil {
		r.session.Close()
	}
	return nil
}

func extractText(msg *genai.LiveServerMessage) string {
	if msg == nil || msg.ServerContent == nil || msg.ServerContent.ModelTurn == nil {
		return ""
	}
	var text string
	for _, part := range msg.ServerContent.ModelTurn.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}

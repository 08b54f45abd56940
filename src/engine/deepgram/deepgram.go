// Package deepgram adapts a Deepgram realtime STT WebSocket connection to
// the streaming.Recognizer contract (spec.md §4.5, C2): one connection
// per session with a keepalive ticker, driven by the chunk processor's
// Process/Finish calls instead of a frame pipeline. A failed audio write
// is returned as an error; the connection is not re-established.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sepia-stt/sttserve/src/engine"
	"github.com/sepia-stt/sttserve/src/engine/streaming"
	"github.com/sepia-stt/sttserve/src/logger"
)

// Config holds the credentials and defaults used to build a Deepgram
// Live connection per session.
type Config struct {
	APIKey string
	Model  string
}

// Register installs the "deepgram" constructor in the shared streaming
// factory table (spec.md §4.3's pluggable-engine registry).
func Register(cfg Config) {
	streaming.Register("deepgram", func(opts engine.Options) (streaming.Recognizer, error) {
		return newRecognizer(cfg, opts)
	})
}

type recognizer struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger

	connMu sync.Mutex

	resultMu   sync.Mutex
	pending    streaming.Result
	pendingFin bool
	lastErr    error
}

func newRecognizer(cfg Config, opts engine.Options) (streaming.Recognizer, error) {
	encoding := "linear16"
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	params := url.Values{}
	params.Set("language", opts.LanguageShort)
	params.Set("model", cfg.Model)
	params.Set("encoding", encoding)
	params.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	params.Set("channels", "1")
	params.Set("interim_results", "true")

	wsURL := fmt.Sprintf("wss://api.deepgram.com/v1/listen?%s", params.Encode())
	header := map[string][]string{
		"Authorization": {fmt.Sprintf("Token %s", cfg.APIKey)},
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("deepgram: connect: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &recognizer{conn: conn, ctx: ctx, cancel: cancel, log: logger.WithPrefix("engine:deepgram")}
	go r.receiveLoop()
	go r.keepaliveLoop()
	return r, nil
}

// AcceptWaveform implements streaming.Recognizer: forwards the chunk and
// reports whatever the background receive loop has accumulated since the
// last call, the same shape as engine.streaming's native-partials
// recognizers.
func (r *recognizer) AcceptWaveform(chunk []byte) (bool, streaming.Result, error) {
	r.connMu.Lock()
	err := r.conn.WriteMessage(websocket.BinaryMessage, chunk)
	r.connMu.Unlock()
	if err != nil {
		return false, streaming.Result{}, fmt.Errorf("deepgram: send audio: %w", err)
	}

	r.resultMu.Lock()
	defer r.resultMu.Unlock()
	if r.lastErr != nil {
		err, r.lastErr = r.lastErr, nil
		return false, streaming.Result{}, err
	}
	result := r.pending
	final := r.pendingFin
	r.pendingFin = false
	return final, result, nil
}

// FinalResult implements streaming.Recognizer.
func (r *recognizer) FinalResult() (streaming.Result, error) {
	r.resultMu.Lock()
	defer r.resultMu.Unlock()
	return r.pending, nil
}

// Close implements streaming.Recognizer.
func (r *recognizer) Close() error {
	r.cancel()
	time.Sleep(50 * time.Millisecond)
	return r.conn.Close()
}

func (r *recognizer) receiveLoop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		_, message, err := r.conn.ReadMessage()
		if err != nil {
			r.resultMu.Lock()
			r.lastErr = fmt.Errorf("deepgram: receive: %w", err)
			r.resultMu.Unlock()
			return
		}

		var response struct {
			IsFinal bool `json:"is_final"`
			Channel struct {
				Alternatives []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channel"`
		}
		if err := json.Unmarshal(message, &response); err != nil {
			continue
		}
		if len(response.Channel.Alternatives) == 0 {
			continue
		}
		alt := response.Channel.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		r.resultMu.Lock()
		r.pending = streaming.Result{Text: alt.Transcript, Confidence: alt.Confidence}
		r.pendingFin = response.IsFinal
		r.resultMu.Unlock()
	}
}

func (r *recognizer) keepaliveLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.connMu.Lock()
			err := r.conn.WriteJSON(map[string]string{"type": "KeepAlive"})
			r.connMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Package transports implements the WebSocket protocol handler (spec.md
// §4.1, C7): an upgrader plus one read loop per connection, built around
// the session/chunk-processor/engine pipeline instead of a frame
// pipeline graph, since the wire contract here (spec.md §6) is a small
// bidirectional JSON+binary protocol rather than a media bridge.
package transports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sepia-stt/sttserve/src/audio"
	"github.com/sepia-stt/sttserve/src/chunkprocessor"
	"github.com/sepia-stt/sttserve/src/config"
	"github.com/sepia-stt/sttserve/src/engine"
	"github.com/sepia-stt/sttserve/src/logger"
	"github.com/sepia-stt/sttserve/src/messages"
	"github.com/sepia-stt/sttserve/src/session"
)

// ServerInfo is the capability descriptor advertised in the welcome
// response and GET /settings (spec.md §6).
type ServerInfo struct {
	Version string
	Engine  string
	Models  []string
}

// STTServer upgrades WebSocket connections to a path and drives each one
// through the PRE_AUTH -> READY -> FINISHING -> CLOSED state machine.
type STTServer struct {
	settings config.Settings
	info     ServerInfo
	path     string
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// New creates an STTServer bound to settings, advertising info in the
// welcome handshake.
func New(settings config.Settings, info ServerInfo, path string) *STTServer {
	if path == "" {
		path = "/"
	}
	return &STTServer{
		settings: settings,
		info:     info,
		path:     path,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.WithPrefix("transports:stt"),
	}
}

// RegisterHandlers mounts the WebSocket endpoint on mux.
func (s *STTServer) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc(s.path, s.handleWebSocket)
}

func (s *STTServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := session.New(ctx, conn, s.settings)
	s.log.Info("session %s connected", sess.ID)
	var opusDecoder *audio.OpusDecoder
	defer func() {
		sess.Close()
		s.log.Info("session %s closed", sess.ID)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if sess.State() == session.Closed {
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if err := s.handleText(ctx, sess, data); err != nil {
				s.log.Debug("session %s: %v", sess.ID, err)
			}
		case websocket.BinaryMessage:
			s.handleBinary(sess, data, &opusDecoder)
		}
	}
}

func (s *STTServer) handleText(ctx context.Context, sess *session.Session, data []byte) error {
	var env messages.InboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return sess.Send(messages.NewErrorMessage(messages.CodeInvalidMessage, messages.NameInvalidMessage,
			"JSON message invalid or incomplete."))
	}

	switch env.Type {
	case "welcome":
		return s.handleWelcome(ctx, sess, env)
	case "pong":
		sess.OnPong()
		return nil
	case "audioend":
		return s.handleAudioEnd(sess, env)
	default:
		return sess.Send(messages.NewErrorMessage(messages.CodeInvalidMessage, messages.NameInvalidMessage,
			fmt.Sprintf("Unknown message type %q", env.Type)))
	}
}

func (s *STTServer) handleWelcome(ctx context.Context, sess *session.Session, env messages.InboundEnvelope) error {
	if sess.State() != session.PreAuth {
		return sess.Send(messages.NewErrorMessage(messages.CodeNotPossible, messages.NameNotPossible,
			"A welcome message was already received for this session."))
	}

	if !sess.Authenticate(ctx, env.ClientID, env.AccessToken) {
		return sess.Send(messages.NewErrorMessage(messages.CodeUnauthorized, messages.NameUnauthorized,
			"Authentication failed."))
	}

	var reqData messages.WelcomeData
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &reqData)
	}

	engineName := reqData.Engine
	if engineName == "" {
		engineName = s.settings.ASREngine
	}

	model, err := engine.ResolveModel(s.settings.Models, reqData.Model, reqData.Language, reqData.Task)
	if err != nil {
		return sess.Send(messages.NewErrorMessage(messages.CodeChunkProcessorError, messages.NameChunkProcessorError, err.Error()))
	}
	opts := engine.NormalizeOptions(reqData.SampleRate, reqData.Continuous, reqData.OptimizeFinalResult,
		reqData.Alternatives, reqData.Words, reqData.Speaker, reqData.Phrases, reqData.Format, model)

	proc, err := chunkprocessor.New(engineName, opts, sess)
	if err != nil {
		return sess.Send(messages.NewErrorMessage(messages.CodeChunkProcessorError, messages.NameChunkProcessorError, err.Error()))
	}
	sess.AttachProcessor(proc)

	return sess.Send(messages.NewWelcomeMessage(messages.WelcomeInfo{
		Version: s.info.Version,
		Engine:  engineName,
		Models:  s.info.Models,
		More: map[string]interface{}{
			"language":   opts.Language,
			"model":      opts.ModelName,
			"continuous": opts.Continuous,
		},
	}))
}

func (s *STTServer) handleBinary(sess *session.Session, data []byte, opusDecoder **audio.OpusDecoder) {
	if sess.State() != session.Ready && sess.State() != session.Finishing {
		_ = sess.Send(messages.NewErrorMessage(messages.CodeUnauthorized, messages.NameUnauthorized,
			"Binary audio received before authentication."))
		return
	}
	sess.OnBinaryActivity()
	proc := sess.Processor()
	if proc == nil {
		return
	}

	if proc.Options().Format == "opus" {
		if *opusDecoder == nil {
			*opusDecoder = audio.NewOpusDecoder()
		}
		decoded, err := (*opusDecoder).Decode(data)
		if err != nil {
			s.log.Debug("session %s: opus decode error: %v", sess.ID, err)
			_ = sess.Send(messages.NewErrorMessage(messages.CodeChunkProcessorError, messages.NameChunkProcessorError,
				"Could not decode Opus audio frame."))
			return
		}
		data = decoded
	}

	if err := proc.Process(data); err != nil {
		s.log.Debug("session %s: process error: %v", sess.ID, err)
	}
}

func (s *STTServer) handleAudioEnd(sess *session.Session, env messages.InboundEnvelope) error {
	if sess.State() != session.Ready {
		return nil
	}
	sess.BeginFinishing()
	if err := sess.Send(messages.NewResponseMessage(env.MsgID, "audioend")); err != nil {
		return err
	}
	proc := sess.Processor()
	if proc == nil {
		return nil
	}
	return proc.FinishProcessing()
}

// Package session implements the per-connection Session/SocketUser
// (spec.md §4.2, C6): authentication, heartbeat/timeout, and the single
// send path every outbound message travels through. Grounded on
// original_source/src/users.py's SocketUser class.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sepia-stt/sttserve/src/chunkprocessor"
	"github.com/sepia-stt/sttserve/src/config"
	"github.com/sepia-stt/sttserve/src/engine"
	"github.com/sepia-stt/sttserve/src/logger"
	"github.com/sepia-stt/sttserve/src/messages"
)

// sessionCounter mirrors users.py's SessionIds static counter.
var sessionCounter uint64

// SessionIDGenerator produces a session's opaque ID string. spec.md §3
// only requires Session.ID to be an opaque string; the exact scheme is a
// config choice (SPEC_FULL.md §11).
type SessionIDGenerator func() string

// CounterSessionID returns the next session id in the "{counter}-{unix_ts}"
// format original_source uses, without the counter's artificial wraparound
// (a Go process id space has no reason to reuse small integers).
func CounterSessionID() string {
	n := atomic.AddUint64(&sessionCounter, 1)
	return fmt.Sprintf("%d-%d", n, time.Now().Unix())
}

// UUIDSessionID is the alternative generator selected by
// config.Settings.SessionIDMode == "uuid", for deployments that want
// globally-unique correlation IDs instead of the counter scheme.
func UUIDSessionID() string {
	return uuid.NewString()
}

// NextSessionID returns an id from the counter generator, the one New
// uses unless settings.SessionIDMode is "uuid". New itself does not call
// NextSessionID.
func NextSessionID() string {
	return CounterSessionID()
}

// State is the per-session protocol state machine (spec.md §4.1).
type State int

const (
	PreAuth State = iota
	Ready
	Finishing
	Closed
)

func (s State) String() string {
	switch s {
	case PreAuth:
		return "PRE_AUTH"
	case Ready:
		return "READY"
	case Finishing:
		return "FINISHING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Conn is the subset of *websocket.Conn the session needs, so tests can
// substitute a fake without standing up a real socket.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetCloseHandler(h func(code int, text string) error)
}

// Session is one connected client, from upgrade to close.
type Session struct {
	ID       string
	settings config.Settings
	conn     Conn
	log      *logger.Logger

	mu            sync.Mutex
	state         State
	authenticated bool
	lastActivity  time.Time
	lastPong      time.Time
	processor     *chunkprocessor.Processor

	writeMu sync.Mutex

	cancel context.CancelFunc
}

// New wraps conn in a Session and starts its heartbeat loop. Call Close
// when the socket's read loop exits.
func New(ctx context.Context, conn Conn, settings config.Settings) *Session {
	ctx, cancel := context.WithCancel(ctx)
	idGen := CounterSessionID
	if settings.SessionIDMode == "uuid" {
		idGen = UUIDSessionID
	}
	s := &Session{
		ID:           idGen(),
		settings:     settings,
		conn:         conn,
		log:          logger.WithPrefix("session:" + "new"),
		state:        PreAuth,
		lastActivity: time.Now(),
		cancel:       cancel,
	}
	s.log = logger.WithPrefix("session:" + s.ID)
	go s.heartbeatLoop(ctx)
	return s
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// touch refreshes last-activity, the data-activity timer described in
// spec.md §4.2 ("only binary frames and the initial welcome count").
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Send serializes v to JSON and writes it as a text frame, the single
// path every outbound message uses (spec.md §4.2, "Send discipline").
// Exported so the protocol handler can send welcome/response messages
// that don't belong to the engine.Sender boundary.
func (s *Session) Send(v interface{}) error {
	return s.send(v)
}

func (s *Session) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: marshal outbound message: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// SendTranscript implements engine.Sender.
func (s *Session) SendTranscript(result engine.TranscriptResult) error {
	msg := messages.NewResultMessage(result.Text, result.IsFinal, result.Confidence)
	msg.Features = result.Features
	msg.Alternatives = result.Alternatives
	return s.send(msg)
}

// SendError implements engine.Sender.
func (s *Session) SendError(code int, name, message string) error {
	return s.send(messages.NewErrorMessage(code, name, message))
}

var (
	// ErrAlreadyAuthenticated signals a duplicate welcome (418 NotPossible).
	ErrAlreadyAuthenticated = errors.New("session: already authenticated")
	// ErrNotReady signals data arriving before authentication (401 Unauthorized).
	ErrNotReady = errors.New("session: not authenticated")
)

// Authenticate validates client_id/access_token per spec.md §4.2's two
// auth modes, transitioning PRE_AUTH -> READY on success. On failure it
// sleeps ~3s (matching original_source's throttle) and returns false.
func (s *Session) Authenticate(ctx context.Context, clientID, token string) bool {
	s.mu.Lock()
	if s.state != PreAuth {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	if !s.settings.CheckToken(clientID, token) {
		s.log.Warn("authentication failed for client_id=%q", clientID)
		select {
		case <-time.After(3 * time.Second):
		case <-ctx.Done():
		}
		return false
	}

	s.mu.Lock()
	s.state = Ready
	s.authenticated = true
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return true
}

// IsAuthenticated reports whether Authenticate has succeeded. The Chunk
// Processor is attached separately by AttachProcessor, so a session whose
// engine construction failed is authenticated without a processor.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// AttachProcessor binds the session's Chunk Processor once authenticated.
func (s *Session) AttachProcessor(p *chunkprocessor.Processor) {
	s.mu.Lock()
	s.processor = p
	s.mu.Unlock()
}

// Processor returns the session's Chunk Processor, or nil before auth.
func (s *Session) Processor() *chunkprocessor.Processor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processor
}

// OnBinaryActivity refreshes the data-activity timer for an inbound
// binary audio chunk. Must be called by the protocol handler for every
// binary frame, per spec.md §4.2.
func (s *Session) OnBinaryActivity() {
	s.touch()
}

// OnPong records a liveness reply on its own clock, kept entirely apart
// from lastActivity. heartbeatLoop's timeout decision never reads
// lastPong, so a pong neither resets the data-activity timer nor
// postpones a timeout: a session that never sends audio is still closed.
func (s *Session) OnPong() {
	s.mu.Lock()
	s.lastPong = time.Now()
	s.mu.Unlock()
}

// BeginFinishing transitions READY -> FINISHING.
func (s *Session) BeginFinishing() {
	s.mu.Lock()
	if s.state == Ready {
		s.state = Finishing
	}
	s.mu.Unlock()
}

// Close transitions to CLOSED, closes the Chunk Processor, and cancels
// the heartbeat loop. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	proc := s.processor
	s.mu.Unlock()

	s.cancel()
	if proc != nil {
		if err := proc.Close(); err != nil {
			s.log.Warn("error closing chunk processor: %v", err)
		}
	}
	_ = s.conn.Close()
}

// heartbeatLoop mirrors users.py's heartbeat_loop: every
// HEARTBEAT_DELAY seconds, close with 1013 + 408 TimeoutMessage if the
// client has been idle past TIMEOUT_SECONDS, else send a ping.
func (s *Session) heartbeatLoop(ctx context.Context) {
	delay := time.Duration(s.settings.HeartbeatDelaySeconds) * time.Second
	timeout := time.Duration(s.settings.TimeoutSeconds) * time.Second
	ticker := time.NewTicker(delay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastActivity)
			closed := s.state == Closed
			s.mu.Unlock()
			if closed {
				return
			}
			if idle > timeout {
				s.log.Info("session idle for %s, closing", idle)
				_ = s.send(messages.NewErrorMessage(messages.CodeTimeout, messages.NameTimeout, "Session timed out due to inactivity"))
				s.writeMu.Lock()
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(1013, "timeout"))
				s.writeMu.Unlock()
				s.Close()
				return
			}
			if err := s.send(messages.NewPingMessage()); err != nil {
				s.log.Debug("ping send failed: %v", err)
			}
		}
	}
}

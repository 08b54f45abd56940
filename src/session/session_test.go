package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepia-stt/sttserve/src/config"
	"github.com/sepia-stt/sttserve/src/engine"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}
func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
func (c *fakeConn) SetCloseHandler(h func(code int, text string) error) {}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// quietSettings keeps the heartbeat loop from firing mid-test.
func quietSettings() config.Settings {
	s := config.Default()
	s.HeartbeatDelaySeconds = 3600
	s.TimeoutSeconds = 7200
	return s
}

func TestNewSessionStartsInPreAuth(t *testing.T) {
	conn := &fakeConn{}
	s := New(context.Background(), conn, quietSettings())
	defer s.Close()
	assert.Equal(t, PreAuth, s.State())
	assert.False(t, s.IsAuthenticated())
}

func TestAuthenticateWithValidTokenTransitionsToReady(t *testing.T) {
	conn := &fakeConn{}
	settings := quietSettings()
	settings.CommonAuthToken = "secret"
	s := New(context.Background(), conn, settings)
	defer s.Close()

	ok := s.Authenticate(context.Background(), "client-1", "secret")
	assert.True(t, ok)
	assert.Equal(t, Ready, s.State())
	assert.True(t, s.IsAuthenticated())
}

func TestAuthenticateWithInvalidTokenFails(t *testing.T) {
	conn := &fakeConn{}
	settings := quietSettings()
	settings.CommonAuthToken = "secret"
	s := New(context.Background(), conn, settings)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // avoid the real ~3s throttle sleep in this test
	ok := s.Authenticate(ctx, "client-1", "wrong")
	assert.False(t, ok)
	assert.Equal(t, PreAuth, s.State())
}

func TestCloseIsIdempotentAndClosesConn(t *testing.T) {
	conn := &fakeConn{}
	s := New(context.Background(), conn, quietSettings())

	s.Close()
	s.Close()
	assert.Equal(t, Closed, s.State())
	assert.True(t, conn.closed)
}

func TestSendTranscriptWritesOneMessage(t *testing.T) {
	conn := &fakeConn{}
	s := New(context.Background(), conn, quietSettings())
	defer s.Close()

	require.NoError(t, s.SendTranscript(engine.TranscriptResult{Text: "hello", IsFinal: true}))
	assert.Equal(t, 1, conn.count())
}

func TestNewSessionUsesUUIDGeneratorWhenConfigured(t *testing.T) {
	conn := &fakeConn{}
	settings := quietSettings()
	settings.SessionIDMode = "uuid"
	s := New(context.Background(), conn, settings)
	defer s.Close()

	assert.Len(t, s.ID, 36, "uuid.NewString() output is a 36-char canonical UUID")
}

func TestNewSessionUsesCounterGeneratorByDefault(t *testing.T) {
	conn := &fakeConn{}
	s := New(context.Background(), conn, quietSettings())
	defer s.Close()

	parts := strings.Split(s.ID, "-")
	require.Len(t, parts, 2, "counter id is \"{counter}-{unix_ts}\"")
	_, err := strconv.Atoi(parts[0])
	assert.NoError(t, err)
	_, err = strconv.Atoi(parts[1])
	assert.NoError(t, err)
}

func TestBeginFinishingOnlyTransitionsFromReady(t *testing.T) {
	conn := &fakeConn{}
	s := New(context.Background(), conn, quietSettings())
	defer s.Close()

	s.BeginFinishing()
	assert.Equal(t, PreAuth, s.State(), "no-op outside READY")
}

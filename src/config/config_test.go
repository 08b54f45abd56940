package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := Default()
	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, 10, s.HeartbeatDelaySeconds)
	assert.Equal(t, 15, s.TimeoutSeconds)
	assert.Equal(t, "test", s.ASREngine)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	contents := []byte("port: 9000\nasrEngine: vad\nmodels:\n  - name: en-base\n    path: /models/en\n    lang: en-US\n")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, s.Port)
	assert.Equal(t, "vad", s.ASREngine)
	assert.Equal(t, 10, s.HeartbeatDelaySeconds, "unset fields keep their default")
	require.Len(t, s.Models, 1)
	assert.Equal(t, "en-base", s.Models[0].Name)
}

func TestDefaultSessionIDModeIsCounter(t *testing.T) {
	assert.Equal(t, "counter", Default().SessionIDMode)
}

func TestLoadMergesSessionIDModeOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sessionIdMode: uuid\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "uuid", s.SessionIDMode)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestCheckTokenCommonToken(t *testing.T) {
	s := Settings{CommonAuthToken: "shared-secret"}
	assert.True(t, s.CheckToken("anyone", "shared-secret"))
	assert.False(t, s.CheckToken("anyone", "wrong"))
}

func TestCheckTokenPerUserToken(t *testing.T) {
	s := Settings{UserTokens: map[string]string{"alice": "alice-token"}}
	assert.True(t, s.CheckToken("alice", "alice-token"))
	assert.False(t, s.CheckToken("bob", "alice-token"))
	assert.False(t, s.CheckToken("alice", "wrong-token"))
}

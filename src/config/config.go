// Package config loads server settings from a YAML file (CLI-flag
// overrides are applied by cmd/sttserve), grounded on the settings surface implied
// by original_source/src/launch_setup.py and engine_vosk.py/engine_whisper.py
// (which is considerably richer than the stub original_source/src/settings.py).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelConfig describes one configured ASR model.
type ModelConfig struct {
	Name       string            `yaml:"name"`
	Path       string            `yaml:"path"`
	Language   string            `yaml:"lang"`
	Engine     string            `yaml:"engine,omitempty"`
	Task       string            `yaml:"task,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Settings is the read-only, process-wide configuration object described
// in spec.md §6 ("Configuration (read-only)"). It is loaded once at
// startup and never mutated afterwards (§5, "Shared-resource policy").
type Settings struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	LogLevel string `yaml:"logLevel"`

	HeartbeatDelaySeconds int `yaml:"heartbeatDelaySeconds"`
	TimeoutSeconds        int `yaml:"timeoutSeconds"`

	CommonAuthToken string            `yaml:"commonAuthToken"`
	UserTokens      map[string]string `yaml:"userTokens"`

	RecordingsPath string `yaml:"recordingsPath"`

	ASREngine string        `yaml:"asrEngine"`
	Models    []ModelConfig `yaml:"models"`

	ModelCacheSize      int `yaml:"modelCacheSize"`
	ThreadsPerModel     int `yaml:"threadsPerModel"`

	CORSOrigins []string `yaml:"corsOrigins"`

	// SessionIDMode selects the session.SessionIDGenerator: "counter"
	// (default, original_source's "{counter}-{unix_ts}" scheme) or
	// "uuid" for a github.com/google/uuid-backed generator.
	SessionIDMode string `yaml:"sessionIdMode"`
}

// Default returns the settings used when no file is supplied, mirroring
// the defaults scattered across original_source (HEARTBEAT_DELAY=10,
// TIMEOUT_SECONDS=15, default engine "test" so the server is runnable
// without a real model configured).
func Default() Settings {
	return Settings{
		Host:                  "0.0.0.0",
		Port:                  8080,
		LogLevel:              "INFO",
		HeartbeatDelaySeconds: 10,
		TimeoutSeconds:        15,
		RecordingsPath:        "./recordings/",
		ASREngine:             "test",
		ModelCacheSize:        4,
		ThreadsPerModel:       4,
		CORSOrigins:           []string{"*"},
		SessionIDMode:         "counter",
	}
}

// Load reads settings from path, falling back to Default() for any field
// the file omits (zero-value fields are filled in after decode).
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	var fromFile Settings
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Settings{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	mergeNonZero(&s, fromFile)
	return s, nil
}

func mergeNonZero(dst *Settings, src Settings) {
	if src.Host != "" {
		dst.Host = src.Host
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.HeartbeatDelaySeconds != 0 {
		dst.HeartbeatDelaySeconds = src.HeartbeatDelaySeconds
	}
	if src.TimeoutSeconds != 0 {
		dst.TimeoutSeconds = src.TimeoutSeconds
	}
	if src.CommonAuthToken != "" {
		dst.CommonAuthToken = src.CommonAuthToken
	}
	if len(src.UserTokens) > 0 {
		dst.UserTokens = src.UserTokens
	}
	if src.RecordingsPath != "" {
		dst.RecordingsPath = src.RecordingsPath
	}
	if src.ASREngine != "" {
		dst.ASREngine = src.ASREngine
	}
	if len(src.Models) > 0 {
		dst.Models = src.Models
	}
	if src.ModelCacheSize != 0 {
		dst.ModelCacheSize = src.ModelCacheSize
	}
	if src.ThreadsPerModel != 0 {
		dst.ThreadsPerModel = src.ThreadsPerModel
	}
	if len(src.CORSOrigins) > 0 {
		dst.CORSOrigins = src.CORSOrigins
	}
	if src.SessionIDMode != "" {
		dst.SessionIDMode = src.SessionIDMode
	}
}

// CheckToken validates a welcome handshake's access token against the
// common token first, then the per-client_id table, per spec.md §4.2.
func (s Settings) CheckToken(clientID, token string) bool {
	if s.CommonAuthToken != "" && token == s.CommonAuthToken {
		return true
	}
	if want, ok := s.UserTokens[clientID]; ok && want != "" && token == want {
		return true
	}
	return false
}

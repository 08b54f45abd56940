package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sepia-stt/sttserve/src/config"
)

func testModels() []config.ModelConfig {
	return []config.ModelConfig{
		{Name: "en-small", Path: "/models/en-small", Language: "en-US"},
		{Name: "de-base", Path: "/models/de-base", Language: "de-DE", Task: "transcribe"},
		{Name: "en-large", Path: "/models/en-large", Language: "en-GB", Task: "translate"},
	}
}

func TestResolveModelExactNameMatch(t *testing.T) {
	m, err := ResolveModel(testModels(), "de-base", "", "")
	require.NoError(t, err)
	assert.Equal(t, "de-base", m.Name)
}

func TestResolveModelLanguagePrefixMatch(t *testing.T) {
	m, err := ResolveModel(testModels(), "", "en", "")
	require.NoError(t, err)
	assert.Contains(t, []string{"en-small", "en-large"}, m.Name)
}

func TestResolveModelLanguageWithTaskPreference(t *testing.T) {
	m, err := ResolveModel(testModels(), "", "en-GB", "translate")
	require.NoError(t, err)
	assert.Equal(t, "en-large", m.Name)
}

func TestResolveModelTaskWithoutLanguageErrors(t *testing.T) {
	_, err := ResolveModel(testModels(), "", "", "translate")
	assert.Error(t, err)
}

func TestResolveModelFallsBackToFirstConfigured(t *testing.T) {
	m, err := ResolveModel(testModels(), "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "en-small", m.Name)
}

func TestResolveModelUnknownNameErrors(t *testing.T) {
	_, err := ResolveModel(testModels(), "does-not-exist", "", "")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestResolveModelNoModelsConfigured(t *testing.T) {
	_, err := ResolveModel(nil, "", "", "")
	assert.Error(t, err)
}

package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextMsgIDIsMonotonic(t *testing.T) {
	a := NextMsgID()
	b := NextMsgID()
	assert.Greater(t, b, a)
}

func TestNewWelcomeMessageMarshalsTypeAndInfo(t *testing.T) {
	msg := NewWelcomeMessage(WelcomeInfo{Version: "1.0", Engine: "vad", Models: []string{"en-base"}})
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "welcome", decoded["type"])
	assert.Equal(t, float64(200), decoded["code"])
	info := decoded["info"].(map[string]interface{})
	assert.Equal(t, "vad", info["engine"])
}

func TestNewResponseMessageCarriesRefMsgID(t *testing.T) {
	msg := NewResponseMessage(42, "audioend")
	assert.Equal(t, "response", msg.Type)
	assert.Equal(t, 42, msg.RefMsgID)
	assert.Equal(t, "audioend", msg.Name)
}

func TestNewResultMessageFieldsRoundTripThroughJSON(t *testing.T) {
	msg := NewResultMessage("hello world", true, 0.93)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded ResultMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "hello world", decoded.Transcript)
	assert.True(t, decoded.IsFinal)
	assert.InDelta(t, 0.93, decoded.Confidence, 0.0001)
}

func TestNewErrorMessageSetsCodeAndName(t *testing.T) {
	msg := NewErrorMessage(CodeUnauthorized, NameUnauthorized, "bad token")
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, CodeUnauthorized, msg.Code)
	assert.Equal(t, NameUnauthorized, msg.Name)
	assert.Equal(t, "bad token", msg.Message)
}

func TestNewPingMessageHasPingType(t *testing.T) {
	msg := NewPingMessage()
	assert.Equal(t, "ping", msg.Type)
	assert.Equal(t, 200, msg.Code)
}

func TestInboundEnvelopeDecodesWelcomeData(t *testing.T) {
	raw := []byte(`{"type":"welcome","data":{"language":"en-US","samplerate":16000,"continuous":true},"client_id":"c1","access_token":"tok"}`)
	var env InboundEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "welcome", env.Type)
	assert.Equal(t, "c1", env.ClientID)

	var data WelcomeData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "en-US", data.Language)
	assert.Equal(t, 16000, data.SampleRate)
	assert.True(t, data.Continuous)
}

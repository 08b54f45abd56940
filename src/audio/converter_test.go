package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToPCMRoundTrip(t *testing.T) {
	pcm := []int16{0, 1, -1, 32767, -32768}
	data := PCMToBytes(pcm)
	back, err := BytesToPCM(data)
	require.NoError(t, err)
	assert.Equal(t, pcm, back)
}

func TestBytesToPCMOddLengthErrors(t *testing.T) {
	_, err := BytesToPCM([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestMulawRoundTripIsLossyButClose(t *testing.T) {
	pcm := []int16{1000, -1000, 0, 16000}
	mulaw := PCMToMulaw(pcm)
	back := MulawToPCM(mulaw)
	require.Len(t, back, len(pcm))
	for i, want := range pcm {
		diff := int(back[i]) - int(want)
		if diff < 0 {
			diff = -diff
		}
		assert.Lessf(t, diff, 2000, "sample %d: %d vs %d", i, back[i], want)
	}
}

func TestResampleSameRateIsNoop(t *testing.T) {
	pcm := []int16{1, 2, 3, 4}
	assert.Equal(t, pcm, Resample(pcm, 16000, 16000))
}

func TestResampleDownsampleHalvesLength(t *testing.T) {
	pcm := make([]int16, 100)
	for i := range pcm {
		pcm[i] = int16(i)
	}
	out := Resample(pcm, 16000, 8000)
	assert.InDelta(t, 50, len(out), 2)
}

func TestConvertLinear16PassesThroughWithResample(t *testing.T) {
	pcm := []int16{10, 20, 30, 40}
	data := PCMToBytes(pcm)
	out, err := Convert(data, "linear16", 16000, 16000)
	require.NoError(t, err)
	back, err := BytesToPCM(out)
	require.NoError(t, err)
	assert.Equal(t, pcm, back)
}

func TestConvertUnsupportedCodecErrors(t *testing.T) {
	_, err := Convert([]byte{1, 2}, "g729", 8000, 16000)
	assert.Error(t, err)
}

func TestConvertMulawDecodesToPCM(t *testing.T) {
	out, err := Convert([]byte{0xFF, 0x7F}, "mulaw", 8000, 8000)
	require.NoError(t, err)
	back, err := BytesToPCM(out)
	require.NoError(t, err)
	assert.Len(t, back, 2)
}

func TestClipAudioBoundsSamples(t *testing.T) {
	out := ClipAudio([]int16{100, -100, 50}, 60)
	assert.Equal(t, []int16{60, -60, 50}, out)
}

func TestNormalizeAudioScalesToTargetRMS(t *testing.T) {
	pcm := []int16{1000, -1000, 1000, -1000}
	out := NormalizeAudio(pcm, 2000)
	assert.Greater(t, int(out[0]), 1000)
}

func TestNormalizeAudioSilenceIsUnchanged(t *testing.T) {
	pcm := []int16{0, 0, 0}
	assert.Equal(t, pcm, NormalizeAudio(pcm, 2000))
}

// Package audio implements the PCM16 codec/resampling helpers and the
// optional Opus ingest path negotiated via welcome.format=="opus"
// (SPEC_FULL.md §11's domain-stack expansion). The codec math is exposed
// as plain functions rather than wrapped in a frame pipeline stage.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pion/opus"
)

// Convert decodes data from inputCodec at inputRate into linear16 PCM
// bytes at outputRate. The WebSocket transport does not call it; the
// only non-linear16 ingest it wires is Opus, through OpusDecoder.
func Convert(data []byte, inputCodec string, inputRate, outputRate int) ([]byte, error) {
	var pcm []int16
	var err error

	switch inputCodec {
	case "mulaw", "ulaw":
		pcm = MulawToPCM(data)
	case "linear16", "":
		pcm, err = BytesToPCM(data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("audio: unsupported input codec %q", inputCodec)
	}

	if inputRate != 0 && outputRate != 0 && inputRate != outputRate {
		pcm = Resample(pcm, inputRate, outputRate)
	}
	return PCMToBytes(pcm), nil
}

// OpusDecoder decodes a sequence of Opus frames (as sent over the
// "audio" binary messages once welcome.format=="opus" is negotiated)
// into linear16 PCM, one call per frame.
type OpusDecoder struct {
	decoder opus.Decoder
}

// NewOpusDecoder creates a decoder for a single session's Opus stream.
func NewOpusDecoder() *OpusDecoder {
	return &OpusDecoder{decoder: opus.Decoder{}}
}

// Decode decodes one Opus packet into linear16 PCM bytes.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	samples, _, _, err := d.decoder.Decode(packet)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = int16(s)
	}
	return PCMToBytes(pcm), nil
}

// MulawToPCM converts mulaw audio to linear PCM int16.
func MulawToPCM(mulaw []byte) []int16 {
	pcm := make([]int16, len(mulaw))
	for i, val := range mulaw {
		pcm[i] = mulawDecode(val)
	}
	return pcm
}

// PCMToMulaw converts linear PCM int16 to mulaw.
func PCMToMulaw(pcm []int16) []byte {
	mulaw := make([]byte, len(pcm))
	for i, val := range pcm {
		mulaw[i] = mulawEncode(val)
	}
	return mulaw
}

// BytesToPCM converts byte array to int16 PCM (little-endian).
func BytesToPCM(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("audio: invalid PCM data length: %d", len(data))
	}
	pcm := make([]int16, len(data)/2)
	for i := 0; i < len(pcm); i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return pcm, nil
}

// PCMToBytes converts int16 PCM to byte array (little-endian).
func PCMToBytes(pcm []int16) []byte {
	data := make([]byte, len(pcm)*2)
	for i, val := range pcm {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(val))
	}
	return data
}

// Resample performs linear-interpolation resampling between sample
// rates; not broadcast-quality, but sufficient ahead of an ASR model
// that itself tolerates some resampling error.
func Resample(input []int16, inputRate, outputRate int) []int16 {
	if inputRate == outputRate {
		return input
	}

	ratio := float64(inputRate) / float64(outputRate)
	outputLen := int(float64(len(input)) / ratio)
	output := make([]int16, outputLen)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx+1 < len(input) {
			sample1 := float64(input[srcIdx])
			sample2 := float64(input[srcIdx+1])
			output[i] = int16(sample1 + (sample2-sample1)*frac)
		} else if srcIdx < len(input) {
			output[i] = input[srcIdx]
		}
	}

	return output
}

const (
	mulawBias = 0x84
	mulawClip = 32635
)

var mulawDecodeTable = [256]int16{
	-32124, -31100, -30076, -29052, -28028, -27004, -25980, -24956,
	-23932, -22908, -21884, -20860, -19836, -18812, -17788, -16764,
	-15996, -15484, -14972, -14460, -13948, -13436, -12924, -12412,
	-11900, -11388, -10876, -10364, -9852, -9340, -8828, -8316,
	-7932, -7676, -7420, -7164, -6908, -6652, -6396, -6140,
	-5884, -5628, -5372, -5116, -4860, -4604, -4348, -4092,
	-3900, -3772, -3644, -3516, -3388, -3260, -3132, -3004,
	-2876, -2748, -2620, -2492, -2364, -2236, -2108, -1980,
	-1884, -1820, -1756, -1692, -1628, -1564, -1500, -1436,
	-1372, -1308, -1244, -1180, -1116, -1052, -988, -924,
	-876, -844, -812, -780, -748, -716, -684, -652,
	-620, -588, -556, -524, -492, -460, -428, -396,
	-372, -356, -340, -324, -308, -292, -276, -260,
	-244, -228, -212, -196, -180, -164, -148, -132,
	-120, -112, -104, -96, -88, -80, -72, -64,
	-56, -48, -40, -32, -24, -16, -8, 0,
	32124, 31100, 30076, 29052, 28028, 27004, 25980, 24956,
	23932, 22908, 21884, 20860, 19836, 18812, 17788, 16764,
	15996, 15484, 14972, 14460, 13948, 13436, 12924, 12412,
	11900, 11388, 10876, 10364, 9852, 9340, 8828, 8316,
	7932, 7676, 7420, 7164, 6908, 6652, 6396, 6140,
	5884, 5628, 5372, 5116, 4860, 4604, 4348, 4092,
	3900, 3772, 3644, 3516, 3388, 3260, 3132, 3004,
	2876, 2748, 2620, 2492, 2364, 2236, 2108, 1980,
	1884, 1820, 1756, 1692, 1628, 1564, 1500, 1436,
	1372, 1308, 1244, 1180, 1116, 1052, 988, 924,
	876, 844, 812, 780, 748, 716, 684, 652,
	620, 588, 556, 524, 492, 460, 428, 396,
	372, 356, 340, 324, 308, 292, 276, 260,
	244, 228, 212, 196, 180, 164, 148, 132,
	120, 112, 104, 96, 88, 80, 72, 64,
	56, 48, 40, 32, 24, 16, 8, 0,
}

func mulawDecode(mulaw byte) int16 {
	return mulawDecodeTable[mulaw]
}

func mulawEncode(pcm int16) byte {
	sign := uint8(0)
	if pcm < 0 {
		sign = 0x80
		pcm = -pcm
	}
	if pcm > mulawClip {
		pcm = mulawClip
	}
	pcm += mulawBias

	var exponent uint8
	var mantissa uint8

	switch {
	case pcm >= 0x4000:
		exponent = 7
		mantissa = uint8((pcm >> 10) & 0x0F)
	case pcm >= 0x2000:
		exponent = 6
		mantissa = uint8((pcm >> 9) & 0x0F)
	case pcm >= 0x1000:
		exponent = 5
		mantissa = uint8((pcm >> 8) & 0x0F)
	case pcm >= 0x800:
		exponent = 4
		mantissa = uint8((pcm >> 7) & 0x0F)
	case pcm >= 0x400:
		exponent = 3
		mantissa = uint8((pcm >> 6) & 0x0F)
	case pcm >= 0x200:
		exponent = 2
		mantissa = uint8((pcm >> 5) & 0x0F)
	case pcm >= 0x100:
		exponent = 1
		mantissa = uint8((pcm >> 4) & 0x0F)
	default:
		exponent = 0
		mantissa = uint8((pcm >> 3) & 0x0F)
	}

	mulaw := sign | (exponent << 4) | mantissa
	return ^mulaw
}

// ClipAudio clips audio samples to prevent overflow.
func ClipAudio(pcm []int16, maxValue int16) []int16 {
	output := make([]int16, len(pcm))
	for i, val := range pcm {
		switch {
		case val > maxValue:
			output[i] = maxValue
		case val < -maxValue:
			output[i] = -maxValue
		default:
			output[i] = val
		}
	}
	return output
}

// NormalizeAudio normalizes audio to a target RMS level.
func NormalizeAudio(pcm []int16, targetRMS float64) []int16 {
	var sum float64
	for _, val := range pcm {
		sum += float64(val) * float64(val)
	}
	currentRMS := math.Sqrt(sum / float64(len(pcm)))
	if currentRMS == 0 {
		return pcm
	}

	gain := targetRMS / currentRMS
	output := make([]int16, len(pcm))
	for i, val := range pcm {
		scaled := float64(val) * gain
		switch {
		case scaled > 32767:
			output[i] = 32767
		case scaled < -32768:
			output[i] = -32768
		default:
			output[i] = int16(scaled)
		}
	}
	return output
}

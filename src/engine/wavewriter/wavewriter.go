// Package wavewriter implements the "wave_file_writer" recordings
// engine, grounded on original_source/src/chunk_processor.py's
// WaveFileWriter: writes raw PCM chunks to a .wav file, mostly useful
// for debugging a live session (spec.md §11.1 supplement).
package wavewriter

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	opusenc "gopkg.in/hraban/opus.v2"

	"github.com/sepia-stt/sttserve/src/chunkprocessor"
	"github.com/sepia-stt/sttserve/src/engine"
	"github.com/sepia-stt/sttserve/src/logger"
)

// opusFrameSamples is 20ms at 16kHz mono, the frame size the encoder
// below is driven at.
const opusFrameSamples = 320

var (
	fileIndexMu sync.Mutex
	fileIndex   int
)

// nextFileIndex mirrors WaveFileWriter.file_index, wrapping at 99.
func nextFileIndex() int {
	fileIndexMu.Lock()
	defer fileIndexMu.Unlock()
	fileIndex++
	if fileIndex > 99 {
		fileIndex = 1
	}
	return fileIndex
}

// Config wires in the recordings directory from settings.
type Config struct {
	RecordingsPath string
}

// Register installs the "wave_file_writer" constructor. Called once at
// startup with the loaded settings' recordings path.
func Register(cfg Config) {
	chunkprocessor.Register("wave_file_writer", func(opts engine.Options, sender engine.Sender) (engine.Engine, error) {
		return New(cfg, opts, sender)
	})
}

// Engine writes a session's raw PCM audio to a single .wav file.
type Engine struct {
	opts     engine.Options
	sender   engine.Sender
	log      *logger.Logger
	fileName string

	mu          sync.Mutex
	file        *os.File
	bytesWritten uint32
	open        bool
	accept      bool

	// opusFile/opusEnc back an optional compressed sidecar recording,
	// written alongside the .wav when the negotiated format is Opus
	// (spec.md §11's ingest format, SPEC_FULL.md §11's domain-stack
	// wiring of gopkg.in/hraban/opus.v2): PCM audio is always decoded to
	// linear16 before reaching any engine, so re-encoding here trades a
	// little CPU for a much smaller file on disk.
	opusFile *os.File
	opusEnc  *opusenc.Encoder
	pending  []int16
}

// New creates the backing file and an Engine that writes PCM16 mono
// chunks to it as they arrive, patching up the WAV header on close.
func New(cfg Config, opts engine.Options, sender engine.Sender) (*Engine, error) {
	name := fmt.Sprintf("%s%d-%d.wav", cfg.RecordingsPath, nextFileIndex(), time.Now().Unix())
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("wavewriter: create %q: %w", name, err)
	}
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	if err := writeWavHeaderPlaceholder(f, sampleRate); err != nil {
		f.Close()
		return nil, err
	}
	e := &Engine{opts: opts, sender: sender, log: logger.WithPrefix("engine:wavewriter"), fileName: name, file: f, open: true, accept: true}

	if opts.Format == "opus" {
		opusName := fmt.Sprintf("%s.opus", name[:len(name)-len(".wav")])
		of, err := os.Create(opusName)
		if err != nil {
			e.log.Warn("could not create opus sidecar %q: %v", opusName, err)
		} else if enc, err := opusenc.NewEncoder(sampleRate, 1, opusenc.AppVoIP); err != nil {
			e.log.Warn("could not create opus encoder: %v", err)
			of.Close()
		} else {
			e.opusFile = of
			e.opusEnc = enc
		}
	}

	e.log.Info("created recording file: %s", name)
	return e, nil
}

// Process implements engine.Engine.
func (e *Engine) Process(chunk []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	n, err := e.file.Write(chunk)
	if err != nil {
		return fmt.Errorf("wavewriter: write: %w", err)
	}
	e.bytesWritten += uint32(n)

	if e.opusEnc != nil {
		e.encodeOpusLocked(chunk)
	}
	return nil
}

// encodeOpusLocked buffers incoming PCM16 bytes into opusFrameSamples-sized
// frames and writes each encoded frame as a length-prefixed record, since
// Opus has no fixed-size-packet container of its own here (no Ogg/WebM
// muxing library is wired for this sidecar file).
func (e *Engine) encodeOpusLocked(chunk []byte) {
	for i := 0; i+1 < len(chunk); i += 2 {
		e.pending = append(e.pending, int16(uint16(chunk[i])|uint16(chunk[i+1])<<8))
	}
	out := make([]byte, 4000)
	for len(e.pending) >= opusFrameSamples {
		n, err := e.opusEnc.Encode(e.pending[:opusFrameSamples], out)
		e.pending = e.pending[opusFrameSamples:]
		if err != nil {
			e.log.Warn("opus encode failed: %v", err)
			continue
		}
		lenPrefix := make([]byte, 2)
		binary.LittleEndian.PutUint16(lenPrefix, uint16(n))
		e.opusFile.Write(lenPrefix)
		e.opusFile.Write(out[:n])
	}
}

// Finish implements engine.Engine.
func (e *Engine) Finish() error {
	e.closeFile()
	return e.sender.SendTranscript(engine.TranscriptResult{Text: "[file closed]", Confidence: 1.0, IsFinal: true})
}

// Close implements engine.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.open = false
	e.accept = false
	e.mu.Unlock()
	e.closeFile()
	return nil
}

func (e *Engine) closeFile() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return
	}
	if err := patchWavHeader(e.file, e.bytesWritten); err != nil {
		e.log.Warn("failed to patch wav header for %s: %v", e.fileName, err)
	}
	if err := e.file.Close(); err != nil {
		e.log.Warn("failed to close %s: %v", e.fileName, err)
	} else {
		e.log.Info("file closed: %s", e.fileName)
	}
	e.file = nil

	if e.opusFile != nil {
		e.opusFile.Close()
		e.opusFile = nil
		e.opusEnc = nil
	}
}

// Options implements engine.Engine.
func (e *Engine) Options() engine.Options { return e.opts }

// IsOpen implements engine.Engine.
func (e *Engine) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// AcceptsChunks implements engine.Engine.
func (e *Engine) AcceptsChunks() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accept
}

// writeWavHeaderPlaceholder writes a canonical 44-byte PCM WAV header
// with zeroed size fields, mono 16-bit at sampleRate; patchWavHeader
// fills in the real sizes once the total byte count is known.
func writeWavHeaderPlaceholder(f *os.File, sampleRate int) error {
	const bitsPerSample = 16
	const numChannels = 1
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], numChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	_, err := f.Write(header)
	return err
}

func patchWavHeader(f *os.File, dataBytes uint32) error {
	riffSize := make([]byte, 4)
	binary.LittleEndian.PutUint32(riffSize, 36+dataBytes)
	if _, err := f.WriteAt(riffSize, 4); err != nil {
		return err
	}
	dataSize := make([]byte, 4)
	binary.LittleEndian.PutUint32(dataSize, dataBytes)
	_, err := f.WriteAt(dataSize, 40)
	return err
}

// Command sttserve runs the speech-to-text WebSocket server, wiring the
// configuration, model cache, and all registered ASR engine strategies
// into the HTTP+WebSocket transport, grounded on original_source/src/launch.py
// and this repository's own cmd entrypoints.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/sepia-stt/sttserve/src/audio/vad"
	"github.com/sepia-stt/sttserve/src/config"
	"github.com/sepia-stt/sttserve/src/engine/deepgram"
	"github.com/sepia-stt/sttserve/src/engine/gemini"
	vadengine "github.com/sepia-stt/sttserve/src/engine/vad"
	"github.com/sepia-stt/sttserve/src/engine/wavewriter"
	"github.com/sepia-stt/sttserve/src/httpapi"
	"github.com/sepia-stt/sttserve/src/logger"
	"github.com/sepia-stt/sttserve/src/modelcache"
	"github.com/sepia-stt/sttserve/src/transports"

	_ "github.com/sepia-stt/sttserve/src/engine/dynamic"
	_ "github.com/sepia-stt/sttserve/src/engine/testecho"
)

const version = "0.1.0"

func main() {
	settingsPath := flag.String("settings", "", "path to a YAML settings file")
	port := flag.Int("port", 0, "override the configured port")
	engineName := flag.String("engine", "", "override the default ASR engine")
	recordingsPath := flag.String("recordings", "", "override the recordings directory")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	settings, err := config.Load(*settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != 0 {
		settings.Port = *port
	}
	if *engineName != "" {
		settings.ASREngine = *engineName
	}
	if *recordingsPath != "" {
		settings.RecordingsPath = *recordingsPath
	}
	if *logLevel != "" {
		settings.LogLevel = *logLevel
		os.Setenv("LOG_LEVEL", *logLevel)
	}

	logger.Init()
	log := logger.WithPrefix("main")

	wavewriter.Register(wavewriter.Config{RecordingsPath: settings.RecordingsPath})
	gemini.Register(gemini.Config{})
	deepgram.Register(deepgram.Config{APIKey: os.Getenv("DEEPGRAM_API_KEY")})

	cache := modelcache.New(settings.ModelCacheSize)
	vadengine.Register("vad", cache, vadengine.WhisperLoader, vad.NewEnergyDetector(),
		&vadengine.WhisperRecognizer{ThreadsPerModel: settings.ThreadsPerModel})

	capsFor := func(s config.Settings) httpapi.Capabilities {
		var modelNames, languages []string
		for _, m := range s.Models {
			modelNames = append(modelNames, m.Name)
			languages = append(languages, m.Language)
		}
		return httpapi.Capabilities{Engine: s.ASREngine, Models: modelNames, Languages: languages}
	}

	// reloadSettings implements POST /settings: re-read the YAML file and
	// report the capabilities it now implies. It deliberately does not
	// touch already-open sessions or re-register engines/model caches,
	// matching spec.md §5's read-once settings contract for in-flight work.
	reloadSettings := func() (httpapi.Capabilities, error) {
		reloaded, err := config.Load(*settingsPath)
		if err != nil {
			return httpapi.Capabilities{}, fmt.Errorf("reload settings: %w", err)
		}
		log.Info("settings reloaded from %q", *settingsPath)
		return capsFor(reloaded), nil
	}

	mux := http.NewServeMux()
	httpapi.RegisterHandlers(mux, capsFor(settings), reloadSettings)
	transports.New(settings, transports.ServerInfo{
		Version: version,
		Engine:  settings.ASREngine,
		Models:  capsFor(settings).Models,
	}, "/").RegisterHandlers(mux)

	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	log.Info("listening on %s (default engine %q, %d model(s) configured)", addr, settings.ASREngine, len(settings.Models))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server stopped: %v", err)
		os.Exit(1)
	}
}

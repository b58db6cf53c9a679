// Command speech-translate runs the streaming speech-to-speech translation
// pipeline: capture -> VAD -> draft/final ASR -> semantically gated
// translation -> output, until an OS signal or the configured session
// duration elapses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/realtime-ai/speech-translate/pkg/asr"
	"github.com/realtime-ai/speech-translate/pkg/audio"
	"github.com/realtime-ai/speech-translate/pkg/config"
	"github.com/realtime-ai/speech-translate/pkg/controller"
	"github.com/realtime-ai/speech-translate/pkg/metrics"
	"github.com/realtime-ai/speech-translate/pkg/output"
	"github.com/realtime-ai/speech-translate/pkg/pipeline"
	"github.com/realtime-ai/speech-translate/pkg/trace"
	"github.com/realtime-ai/speech-translate/pkg/translate"
	"github.com/realtime-ai/speech-translate/pkg/vad"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	metricsAddr := flag.String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	if err := trace.Initialize(ctx, trace.DefaultConfig()); err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer trace.Shutdown(ctx)

	meterProvider, err := metrics.NewPrometheusMeterProvider("speech-translate")
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}
	defer meterProvider.Shutdown(ctx)

	collector, err := metrics.NewCollector().WithMeter(meterProvider.Meter("speech-translate"))
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	source, err := buildSource(cfg)
	if err != nil {
		log.Fatalf("capture: %v", err)
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		log.Fatalf("vad: %v", err)
	}

	provider, err := buildASRProvider(cfg)
	if err != nil {
		log.Fatalf("asr: %v", err)
	}
	defer provider.Close()

	translator, cache, err := buildTranslator(ctx, cfg)
	if err != nil {
		log.Fatalf("translate: %v", err)
	}
	defer cache.Close()

	ctrl := controller.NewAdaptiveDraftController(controller.AdaptiveConfig{
		DraftIntervalMs:     float64(cfg.ASRDraftIntervalMs),
		PauseThresholdMs:    float64(cfg.ASRPauseThresholdMs),
		MaxQueueDepth:       cfg.ASRMaxQueueDepth,
		MinSpeechDurationMs: float64(cfg.VADMinSpeechDurationMs),
	})

	sink, wsSink, err := buildSink(cfg)
	if err != nil {
		log.Fatalf("output: %v", err)
	}
	if wsSink != nil {
		startWebSocketServer(cfg.OutputWebsocketAddr, wsSink)
	}

	pipeCfg := pipeline.DefaultPipelineConfig()
	pipeCfg.QueueCaptureToVAD = cfg.QueueCaptureToVAD
	pipeCfg.QueueVADToASR = cfg.QueueVADToASR
	pipeCfg.QueueASRToTranslation = cfg.QueueASRToTranslation
	pipeCfg.QueueTranslationToOutput = cfg.QueueTranslationToOutput
	pipeCfg.ASRWorkers = cfg.ASRWorkerCount
	pipeCfg.SourceLang = cfg.SourceLang
	pipeCfg.TargetLang = cfg.TargetLang
	pipeCfg.EnableTranslation = cfg.TranslateEnabled
	pipeCfg.ProcessFinalOnShutdown = cfg.ProcessFinalOnShutdown
	pipeCfg.HardStopTimeout = cfg.ShutdownHardTimeout
	pipeCfg.DrainTimeout = cfg.ShutdownDrainTimeout
	pipeCfg.MonitorInterval = cfg.MonitorInterval
	pipeCfg.MonitorCooldown = cfg.MonitorCooldown
	pipeCfg.ASRConfig.Language = cfg.ASRLanguage
	pipeCfg.ASRConfig.DedupSimilarityThreshold = cfg.DedupSimilarityThreshold
	pipeCfg.ASRConfig.PostProcess.ContextWindowSize = cfg.DedupWindowSize
	pipeCfg.ASRConfig.PostProcess.Language = cfg.SourceLang

	p := pipeline.New(pipeCfg, source, engine, provider, translator, ctrl, collector, sink)

	log.Printf("starting pipeline: %s -> %s, asr=%s, translate=%s",
		cfg.SourceLang, cfg.TargetLang, cfg.ASRProvider, cfg.TranslateProvider)
	if err := p.Start(ctx); err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	waitForStop(cfg.SessionDuration)

	summary := p.Stop()
	if err := cache.SaveToFile(cfg.CacheDir); err != nil {
		log.Printf("translation cache save: %v", err)
	}

	snap := collector.Snapshot()
	log.Printf("session summary: created=%d emitted=%d dropped=%d errored=%d in_flight=%d",
		summary.Created, summary.Emitted, summary.Dropped, summary.Errored, summary.InFlight)
	log.Printf("latency: ttft=%.0fms meaning=%.0fms ear_to_voice=%.0fms stability=%.2f loss_rate=%.1f%%",
		snap.AvgTTFTMs, snap.AvgMeaningMs, snap.AvgEarToVoiceMs, snap.AvgDraftStability, snap.LossRate*100)
	if !snap.MeetsTargets(metrics.DefaultTargets()) {
		log.Printf("latency targets not met this session")
	}
}

func waitForStop(sessionDuration time.Duration) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if sessionDuration > 0 {
		select {
		case <-sigCh:
		case <-time.After(sessionDuration):
			log.Printf("session duration %v elapsed", sessionDuration)
		}
		return
	}
	<-sigCh
}

func buildSource(cfg config.Config) (audio.Source, error) {
	capCfg := audio.DefaultCaptureConfig()
	capCfg.DeviceIndex = strconv.Itoa(cfg.CaptureDeviceIndex)
	capCfg.SampleRate = cfg.CaptureSampleRate
	capCfg.Channels = cfg.CaptureChannels
	capCfg.ChunkDurationMs = cfg.CaptureChunkMs
	capCfg.HandoffCapacity = cfg.CaptureHandoffCap

	switch cfg.CaptureSource {
	case "microphone":
		capCfg.Source = audio.SourceMicrophone
		src, err := audio.NewDeviceSource(capCfg)
		if err != nil {
			return nil, err
		}
		return audio.NormalizeTo16000(src, capCfg)
	case "system":
		capCfg.Source = audio.SourceSystemAudio
		src, err := audio.NewDeviceSource(capCfg)
		if err != nil {
			return nil, err
		}
		return audio.NormalizeTo16000(src, capCfg)
	case "file":
		f, err := os.Open(cfg.CaptureFilePath)
		if err != nil {
			return nil, fmt.Errorf("open capture file: %w", err)
		}
		return audio.NewFileSource(f, capCfg), nil
	case "stdin":
		return audio.NewFileSource(os.Stdin, capCfg), nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.CaptureSource)
	}
}

func buildEngine(cfg config.Config) (*vad.Engine, error) {
	detector, err := vad.NewRuntimeDetector(cfg.VADModelPath, 16000)
	if err != nil {
		return nil, err
	}

	// The capture boundary normalizes every source to 16 kHz; the engine
	// always runs at the internal rate regardless of the device rate.
	engCfg := vad.DefaultEngineConfig()
	engCfg.SampleRate = 16000
	engCfg.ChunkDurationMs = cfg.CaptureChunkMs
	engCfg.Threshold = float32(cfg.VADThreshold)
	engCfg.MinSpeechDurationMs = cfg.VADMinSpeechDurationMs
	engCfg.MinSilenceDurationMs = cfg.VADMinSilenceDurationMs
	engCfg.SpeechPadMs = cfg.VADSpeechPadMs
	engCfg.MaxSegmentDurationMs = cfg.VADMaxSegmentDurationMs
	engCfg.PauseThresholdMs = cfg.VADPauseThresholdMs

	if cfg.VADCalibrationMs > 0 {
		return vad.NewCalibratingEngine(detector, engCfg, cfg.VADCalibrationMs), nil
	}
	if cfg.VADAdaptive {
		return vad.NewAdaptiveEngine(detector, engCfg, -50), nil
	}
	return vad.NewEngine(detector, engCfg), nil
}

func buildASRProvider(cfg config.Config) (asr.Provider, error) {
	switch cfg.ASRProvider {
	case "openai":
		return asr.NewWhisperProvider(cfg.ASRAPIKey)
	case "whispercpp":
		return asr.NewLocalProvider(cfg.ASRModelPath)
	default:
		return nil, fmt.Errorf("unknown asr provider %q", cfg.ASRProvider)
	}
}

func buildTranslator(ctx context.Context, cfg config.Config) (translate.Translator, *translate.Cache, error) {
	cache, err := translate.NewCache(cfg.CacheMaxEntries, cfg.CacheTTL)
	if err != nil {
		return nil, nil, err
	}
	if err := cache.LoadFromFile(cfg.CacheDir); err != nil {
		log.Printf("translation cache load: %v", err)
	}

	var backend translate.Backend
	switch cfg.TranslateProvider {
	case "openai":
		backend = translate.NewOpenAIBackend(cfg.TranslateAPIKey, cfg.TranslateModel)
	case "gemini":
		backend, err = translate.NewGeminiBackend(ctx, cfg.TranslateAPIKey, cfg.TranslateModel)
		if err != nil {
			cache.Close()
			return nil, nil, err
		}
	default:
		cache.Close()
		return nil, nil, fmt.Errorf("unknown translate provider %q", cfg.TranslateProvider)
	}

	tcfg := translate.DefaultConfig()
	tcfg.Gate.MinWords = cfg.TranslateMinWords
	tcfg.CacheEntries = cfg.CacheMaxEntries
	tcfg.CacheTTL = cfg.CacheTTL

	return translate.NewStreamingTranslator(tcfg, backend, cache), cache, nil
}

func buildSink(cfg config.Config) (output.Sink, *output.WebSocketSink, error) {
	switch cfg.OutputSink {
	case "jsonl":
		f, err := os.Create(cfg.OutputJSONLPath)
		if err != nil {
			return nil, nil, fmt.Errorf("create output file: %w", err)
		}
		return output.NewJSONLSink(f), nil, nil
	case "websocket":
		ws := output.NewWebSocketSink()
		return ws, ws, nil
	case "memory":
		return output.NewMemorySink(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown output sink %q", cfg.OutputSink)
	}
}

func startWebSocketServer(addr string, sink *output.WebSocketSink) {
	if addr == "" {
		addr = ":8765"
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade: %v", err)
			return
		}
		sink.AddClient(conn)
	})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("websocket server: %v", err)
		}
	}()
}

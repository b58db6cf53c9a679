package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/realtime-ai/speech-translate/pkg/asr"
	"github.com/realtime-ai/speech-translate/pkg/audio"
	"github.com/realtime-ai/speech-translate/pkg/controller"
	"github.com/realtime-ai/speech-translate/pkg/fabric"
	"github.com/realtime-ai/speech-translate/pkg/metrics"
	"github.com/realtime-ai/speech-translate/pkg/output"
	"github.com/realtime-ai/speech-translate/pkg/translate"
	"github.com/realtime-ai/speech-translate/pkg/vad"
)

// Config holds the fabric topology and the per-session policy knobs.
type Config struct {
	QueueCaptureToVAD        int
	QueueVADToASR            int
	QueueASRToTranslation    int
	QueueTranslationToOutput int
	ASRWorkers               int

	SourceLang        string
	TargetLang        string
	EnableTranslation bool

	// ProcessFinalOnShutdown flushes the in-flight VAD segment through the
	// full ASR/translation path when the session stops, instead of
	// abandoning it.
	ProcessFinalOnShutdown bool

	// OutputPutTimeout bounds the translation worker's blocking put on the
	// output queue; the output path tolerates brief stalls where every
	// other producer drops immediately.
	OutputPutTimeout time.Duration

	HardStopTimeout time.Duration
	DrainTimeout    time.Duration

	MonitorInterval time.Duration
	MonitorCooldown time.Duration

	ASRConfig asr.StreamingConfig
}

func DefaultPipelineConfig() Config {
	return Config{
		QueueCaptureToVAD:        10,
		QueueVADToASR:            10,
		QueueASRToTranslation:    5,
		QueueTranslationToOutput: 20,
		ASRWorkers:               2,
		SourceLang:               "en",
		TargetLang:               "zh",
		EnableTranslation:        true,
		ProcessFinalOnShutdown:   true,
		OutputPutTimeout:         500 * time.Millisecond,
		HardStopTimeout:          3 * time.Second,
		DrainTimeout:             2 * time.Second,
		MonitorInterval:          time.Second,
		MonitorCooldown:          5 * time.Second,
		ASRConfig:                asr.DefaultStreamingConfig(),
	}
}

// Pipeline owns the workers and the queues between them. Workers borrow the
// shared tracker, monitor, and collector; no worker owns another, and no
// state is shared between workers except through those three objects and
// the queues.
type Pipeline struct {
	cfg Config

	source      audio.Source
	engine      *vad.Engine
	asrProvider asr.Provider
	translator  translate.Translator
	ctrl        controller.DraftController
	sinks       []output.Sink

	tracker   *fabric.Tracker
	monitor   *fabric.Monitor
	collector *metrics.Collector

	frameQ *fabric.Queue[audio.Frame]
	asrQ   *fabric.Queue[asrJob]
	transQ *fabric.Queue[translationJob]
	outQ   *fabric.Queue[outputJob]

	sessionStart time.Time

	sessMu   sync.Mutex
	sessions map[string]*asr.StreamingSession

	wg         sync.WaitGroup
	hardCancel context.CancelFunc
	monCancel  context.CancelFunc

	droppedFrames int64
	droppedDrafts int64
	statMu        sync.Mutex
}

// New wires the six components together. The tracker, monitor, and
// collector are constructed here and passed by reference into each worker;
// none of them is a package-level singleton.
func New(cfg Config, source audio.Source, engine *vad.Engine, provider asr.Provider,
	translator translate.Translator, ctrl controller.DraftController,
	collector *metrics.Collector, sinks ...output.Sink) *Pipeline {

	p := &Pipeline{
		cfg:         cfg,
		source:      source,
		engine:      engine,
		asrProvider: provider,
		translator:  translator,
		ctrl:        ctrl,
		sinks:       sinks,
		tracker:     fabric.NewTracker(),
		monitor:     fabric.NewMonitor(cfg.MonitorInterval, cfg.MonitorCooldown),
		collector:   collector,
		frameQ:      fabric.NewQueue[audio.Frame](cfg.QueueCaptureToVAD),
		asrQ:        fabric.NewQueue[asrJob](cfg.QueueVADToASR),
		transQ:      fabric.NewQueue[translationJob](cfg.QueueASRToTranslation),
		outQ:        fabric.NewQueue[outputJob](cfg.QueueTranslationToOutput),
		sessions:    make(map[string]*asr.StreamingSession),
	}

	p.monitor.Register("capture_to_vad", p.frameQ)
	p.monitor.Register("vad_to_asr", p.asrQ)
	p.monitor.Register("asr_to_translation", p.transQ)
	p.monitor.Register("translation_to_output", p.outQ)
	p.monitor.OnAlert(func(a fabric.Alert) {
		log.Printf("[monitor] queue %s %s: depth %d/%d", a.QueueName, a.Level, a.Depth, a.Capacity)
	})

	return p
}

// Tracker exposes the shared tracker for callers that want per-segment
// traces or drop/error callbacks.
func (p *Pipeline) Tracker() *fabric.Tracker { return p.tracker }

// Monitor exposes the shared queue monitor.
func (p *Pipeline) Monitor() *fabric.Monitor { return p.monitor }

// Start launches every worker and begins capture. It fails fast if the
// capture source cannot start (device unavailable).
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.source.Start(ctx); err != nil {
		return &Error{K: KindDevice, Op: "start capture", Err: err}
	}
	p.sessionStart = time.Now()

	hardCtx, hardCancel := context.WithCancel(context.Background())
	p.hardCancel = hardCancel
	monCtx, monCancel := context.WithCancel(context.Background())
	p.monCancel = monCancel

	go p.monitor.Run(monCtx)

	p.wg.Add(4)
	go func() { defer p.wg.Done(); p.capturePump(hardCtx) }()
	go func() { defer p.wg.Done(); p.vadWorker(hardCtx) }()
	go func() { defer p.wg.Done(); p.runASRPool(hardCtx) }()
	go func() { defer p.wg.Done(); p.translationWorker(hardCtx) }()

	p.wg.Add(1)
	go func() { defer p.wg.Done(); p.outputWorker(hardCtx) }()

	return nil
}

// Stop shuts the session down: capture first, so no new frames enter, then
// a natural drain down the queue cascade, then a hard cancellation if the
// drain exceeds its budget. The returned summary is the authoritative
// post-mortem; a Partial summary means some segment was left in flight.
func (p *Pipeline) Stop() fabric.Summary {
	if err := p.source.Stop(); err != nil {
		log.Printf("[pipeline] capture stop: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.cfg.HardStopTimeout):
		log.Printf("[pipeline] drain exceeded %v, forcing worker detach", p.cfg.HardStopTimeout)
		p.hardCancel()
		select {
		case <-done:
		case <-time.After(p.cfg.DrainTimeout):
			log.Printf("[pipeline] workers did not detach within %v", p.cfg.DrainTimeout)
		}
	}

	p.hardCancel()
	p.monCancel()
	for _, sink := range p.sinks {
		if err := sink.Close(); err != nil {
			log.Printf("[pipeline] sink close: %v", err)
		}
	}

	summary := p.tracker.Summarize()
	if summary.Partial() {
		log.Printf("[pipeline] partial shutdown: %d segment(s) still in flight, %d incomplete trace(s)",
			summary.InFlight, len(summary.Incomplete))
	}
	return summary
}

// DroppedFrames reports capture frames discarded because the VAD queue was
// full. Frames are not tracked segments; this is a plain counter.
func (p *Pipeline) DroppedFrames() int64 {
	p.statMu.Lock()
	defer p.statMu.Unlock()
	return p.droppedFrames
}

// DroppedDrafts reports draft jobs discarded under backpressure. Draft
// drops never affect the segment-loss invariant; the segment's final still
// flows.
func (p *Pipeline) DroppedDrafts() int64 {
	p.statMu.Lock()
	defer p.statMu.Unlock()
	return p.droppedDrafts
}

// wallClock maps a VAD chunk-clock offset (seconds since session start)
// onto the wall clock, for latency metrics.
func (p *Pipeline) wallClock(sec float64) time.Time {
	return p.sessionStart.Add(time.Duration(sec * float64(time.Second)))
}

func (p *Pipeline) sessionFor(uuid string) *asr.StreamingSession {
	p.sessMu.Lock()
	defer p.sessMu.Unlock()
	if s, ok := p.sessions[uuid]; ok {
		return s
	}
	s := asr.NewStreamingSession(p.asrProvider, p.cfg.ASRConfig)
	p.sessions[uuid] = s
	return s
}

func (p *Pipeline) dropSession(uuid string) {
	p.sessMu.Lock()
	delete(p.sessions, uuid)
	p.sessMu.Unlock()
}

// dropSegment records a terminal drop everywhere the segment is known.
func (p *Pipeline) dropSegment(uuid, reason string) {
	p.tracker.Drop(uuid, reason)
	p.collector.SegmentDropped(reason)
	p.collector.ForgetSegment(uuid)
	p.translator.ForgetSegment(uuid)
	p.dropSession(uuid)
}

// errorSegment records a terminal error everywhere the segment is known.
func (p *Pipeline) errorSegment(uuid, reason string) {
	p.tracker.Error(uuid, reason)
	p.collector.SegmentErrored()
	p.collector.ForgetSegment(uuid)
	p.translator.ForgetSegment(uuid)
	p.dropSession(uuid)
}

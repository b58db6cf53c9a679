//go:build vad

package vad

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Silero model I/O contract: the network takes the audio chunk, a 2x1x128
// LSTM state carried between chunks, and the sample rate; it returns one
// speech probability and the next state. A 64-sample tail of the previous
// chunk is prepended to each call so the model sees continuous audio even
// though the segmentation engine feeds it one 30ms frame at a time.
const (
	sileroStateLen   = 2 * 1 * 128
	sileroContextLen = 64
)

var sileroInputNames = []string{"input", "state", "sr"}
var sileroOutputNames = []string{"output", "stateN"}

var (
	ortReady bool
	ortMu    sync.Mutex
)

// InitRuntime loads the ONNX Runtime shared library, once per process.
// An empty libraryPath searches ONNXRUNTIME_LIB, the loader path
// variables, and the usual install prefixes. Detectors auto-initialize on
// first construction, so calling this explicitly only matters when the
// library lives somewhere unusual.
func InitRuntime(libraryPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortReady {
		return nil
	}
	if libraryPath == "" {
		libraryPath = locateRuntime()
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("vad: initialize onnxruntime: %w", err)
	}
	ortReady = true
	return nil
}

// DestroyRuntime tears the ONNX environment down at process exit.
func DestroyRuntime() error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if !ortReady {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("vad: destroy onnxruntime: %w", err)
	}
	ortReady = false
	return nil
}

// locateRuntime probes the conventional install locations for the
// onnxruntime shared library, preferring an explicit ONNXRUNTIME_LIB.
func locateRuntime() string {
	candidates := []string{os.Getenv("ONNXRUNTIME_LIB")}

	for _, dir := range []string{"/usr/lib", "/usr/local/lib", "/opt/onnxruntime/lib"} {
		candidates = append(candidates, filepath.Join(dir, "libonnxruntime.so"))
	}
	for _, dir := range []string{"/opt/homebrew/lib", "/usr/local/lib"} {
		candidates = append(candidates, filepath.Join(dir, "libonnxruntime.dylib"))
	}
	for _, dir := range filepath.SplitList(os.Getenv("LD_LIBRARY_PATH")) {
		candidates = append(candidates, filepath.Join(dir, "libonnxruntime.so"))
	}
	for _, dir := range filepath.SplitList(os.Getenv("DYLD_LIBRARY_PATH")) {
		candidates = append(candidates, filepath.Join(dir, "libonnxruntime.dylib"))
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// SileroConfig configures a SileroDetector.
type SileroConfig struct {
	// ModelPath points at the silero_vad.onnx weights.
	ModelPath string
	// SampleRate must match the pipeline's internal rate; the model is
	// trained for 16000 (and accepts 8000).
	SampleRate int
}

func (c SileroConfig) validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("vad: silero model path is required")
	}
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("vad: silero supports 8000 or 16000 Hz, got %d", c.SampleRate)
	}
	return nil
}

// SileroDetector scores each audio frame with the Silero neural VAD. It is
// stateful (the LSTM state and context tail persist across Infer calls),
// so one detector belongs to exactly one Engine, mirroring the engine's
// own single-owner contract. Reset clears the carried state when a session
// restarts.
type SileroDetector struct {
	session *ort.DynamicAdvancedSession
	cfg     SileroConfig

	state      [sileroStateLen]float32
	context    [sileroContextLen]float32
	hasContext bool
}

// NewSileroDetector loads the model and prepares an inference session.
// The ONNX runtime is initialized on demand.
func NewSileroDetector(cfg SileroConfig) (*SileroDetector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := InitRuntime(""); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("vad: create session options: %w", err)
	}
	defer options.Destroy()

	// VAD chunks are tiny; a single thread per op avoids contending with
	// the ASR workers for cores.
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("vad: set optimization level: %w", err)
	}
	if err := options.SetIntraOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("vad: set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("vad: set inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, sileroInputNames, sileroOutputNames, options)
	if err != nil {
		return nil, fmt.Errorf("vad: load silero model %s: %w", cfg.ModelPath, err)
	}

	return &SileroDetector{session: session, cfg: cfg}, nil
}

// Infer returns the speech probability for one frame of normalized mono
// samples. The engine pads frames below the model's 512-sample minimum
// before calling, so samples here is always a full chunk.
func (d *SileroDetector) Infer(samples []float32) (float32, error) {
	if d == nil || d.session == nil {
		return 0, fmt.Errorf("vad: detector not initialized")
	}

	chunk := samples
	if d.hasContext {
		chunk = append(d.context[:], samples...)
	}
	if len(samples) >= sileroContextLen {
		copy(d.context[:], samples[len(samples)-sileroContextLen:])
		d.hasContext = true
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(len(chunk))), chunk)
	if err != nil {
		return 0, fmt.Errorf("vad: create input tensor: %w", err)
	}
	defer input.Destroy()

	state, err := ort.NewTensor(ort.NewShape(2, 1, 128), d.state[:])
	if err != nil {
		return 0, fmt.Errorf("vad: create state tensor: %w", err)
	}
	defer state.Destroy()

	sr, err := ort.NewTensor(ort.NewShape(1), []int64{int64(d.cfg.SampleRate)})
	if err != nil {
		return 0, fmt.Errorf("vad: create sample-rate tensor: %w", err)
	}
	defer sr.Destroy()

	prob, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("vad: create output tensor: %w", err)
	}
	defer prob.Destroy()

	stateN, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return 0, fmt.Errorf("vad: create state output tensor: %w", err)
	}
	defer stateN.Destroy()

	inputs := []ort.Value{input, state, sr}
	outputs := []ort.Value{prob, stateN}
	if err := d.session.Run(inputs, outputs); err != nil {
		return 0, fmt.Errorf("vad: silero inference: %w", err)
	}

	copy(d.state[:], stateN.GetData())

	probs := prob.GetData()
	if len(probs) == 0 {
		return 0, fmt.Errorf("vad: silero returned no output")
	}
	return probs[0], nil
}

// Reset clears the LSTM state and the context tail, for a fresh audio
// stream. The segmentation engine does not call it, so the model's state
// carries across silence and segment boundaries, which is what keeps its
// probabilities stable.
func (d *SileroDetector) Reset() error {
	if d == nil {
		return fmt.Errorf("vad: detector not initialized")
	}
	clear(d.state[:])
	clear(d.context[:])
	d.hasContext = false
	return nil
}

// Destroy releases the inference session. The detector is unusable after.
func (d *SileroDetector) Destroy() error {
	if d == nil || d.session == nil {
		return nil
	}
	if err := d.session.Destroy(); err != nil {
		return fmt.Errorf("vad: destroy silero session: %w", err)
	}
	d.session = nil
	return nil
}

var _ DetectorInterface = (*SileroDetector)(nil)

package recognize

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/fieldops/ticketscan/internal/imgproc"
	"github.com/fieldops/ticketscan/internal/mempool"
)

// ONNXConfig configures the CTC recognition model.
type ONNXConfig struct {
	ModelPath   string
	DictPath    string
	ImageHeight int // input height expected by the model; 0 adopts the model's
	MaxWidth    int // crops wider than this after scaling are clipped
	NumThreads  int
	LibraryPath string // optional explicit onnxruntime shared library path
}

// DefaultONNXConfig returns the default model configuration.
func DefaultONNXConfig() ONNXConfig {
	return ONNXConfig{
		ImageHeight: 48,
		MaxWidth:    1280,
	}
}

// ONNXModel runs a CTC text recognition model through ONNX Runtime. The
// session is shared; Run calls are serialized by the runtime, so the model
// is safe for concurrent use.
type ONNXModel struct {
	mu      sync.Mutex
	cfg     ONNXConfig
	session *onnxrt.DynamicAdvancedSession
	charset *Charset
}

// NewONNXModel loads the recognition model and its dictionary.
func NewONNXModel(cfg ONNXConfig) (*ONNXModel, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("recognition model not found: %s", cfg.ModelPath)
	}
	charset, err := LoadCharset(cfg.DictPath)
	if err != nil {
		return nil, err
	}

	if cfg.LibraryPath != "" {
		onnxrt.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !onnxrt.IsInitialized() {
		if err := onnxrt.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("model input/output info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d/%d", len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return nil, fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}
	if h := inputs[0].Dimensions[2]; h > 0 && cfg.ImageHeight <= 0 {
		cfg.ImageHeight = int(h)
	}
	if cfg.ImageHeight <= 0 {
		cfg.ImageHeight = 48
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("set thread count: %w", err)
		}
	}

	session, err := onnxrt.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXModel{cfg: cfg, session: session, charset: charset}, nil
}

// RecognizeBatch implements Model. Crops are scaled to the model height,
// padded to a common width and run as one NCHW batch.
func (m *ONNXModel) RecognizeBatch(ctx context.Context, crops []image.Image) ([]string, error) {
	if len(crops) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grays, batchW := m.prepareCrops(crops)
	h := m.cfg.ImageHeight
	n := len(grays)

	// The loop below writes every element, as the pooled buffer requires.
	data := mempool.GetFloat32(n * 3 * h * batchW)
	defer mempool.PutFloat32(data)
	plane := h * batchW
	for i, g := range grays {
		base := i * 3 * plane
		gb := g.Bounds()
		for y := 0; y < h; y++ {
			for x := 0; x < batchW; x++ {
				// Right padding beyond the crop stays zero.
				var v float32
				if x < gb.Dx() {
					v = float32(g.Pix[y*g.Stride+x]) / 255.0
				}
				off := y*batchW + x
				data[base+off] = v
				data[base+plane+off] = v
				data[base+2*plane+off] = v
			}
		}
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(int64(n), 3, int64(h), int64(batchW)), data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	m.mu.Lock()
	outputs := []onnxrt.Value{nil}
	runErr := m.session.Run([]onnxrt.Value{input}, outputs)
	m.mu.Unlock()
	if runErr != nil {
		return nil, fmt.Errorf("run recognition model: %w", runErr)
	}
	out := outputs[0].(*onnxrt.Tensor[float32])
	defer out.Destroy()

	shape := out.GetShape()
	if len(shape) != 3 || int(shape[0]) != n {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	steps, classes := int(shape[1]), int(shape[2])
	logits := out.GetData()

	texts := make([]string, n)
	seqLen := steps * classes
	for i := range texts {
		texts[i] = greedyDecode(logits[i*seqLen:(i+1)*seqLen], steps, classes, m.charset)
	}
	return texts, nil
}

// prepareCrops converts each crop to grayscale at the model height and
// returns them with the padded batch width.
func (m *ONNXModel) prepareCrops(crops []image.Image) ([]*image.Gray, int) {
	h := m.cfg.ImageHeight
	grays := make([]*image.Gray, len(crops))
	batchW := 1
	for i, crop := range crops {
		scaled := imaging.Resize(crop, 0, h, imaging.Linear)
		if m.cfg.MaxWidth > 0 && scaled.Bounds().Dx() > m.cfg.MaxWidth {
			scaled = imaging.Crop(scaled, image.Rect(0, 0, m.cfg.MaxWidth, h))
		}
		g := imgproc.ToGray(scaled)
		grays[i] = g
		if w := g.Bounds().Dx(); w > batchW {
			batchW = w
		}
	}
	return grays, batchW
}

// Close releases the ONNX session.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			return fmt.Errorf("destroy session: %w", err)
		}
		m.session = nil
	}
	return nil
}

// Package onnx runs a YOLOv8 export through onnxruntime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/vbonduro/lootbot/internal/detect"
)

// ErrModelNotFound is returned when the weights file is missing.
var ErrModelNotFound = errors.New("model file not found")

const (
	inputName  = "images"
	outputName = "output0"
)

type Config struct {
	ModelPath           string
	Labels              detect.ClassNames
	InputSize           int
	ConfidenceThreshold float32
	IoUThreshold        float32
	// IntraOpThreads bounds onnxruntime's per-session thread pool. Zero
	// lets onnxruntime decide.
	IntraOpThreads int
}

// Initialize loads the onnxruntime shared library. It must be called once
// before NewDetector; an empty libPath uses onnxruntime_go's default.
func Initialize(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		if _, err := os.Stat(libPath); err != nil {
			return fmt.Errorf("onnxruntime library not found at %s: %w", libPath, err)
		}
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	return nil
}

// Shutdown releases the onnxruntime environment after all detectors are
// closed.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Detector owns one inference session. Detect calls are serialized; run
// several Detectors behind a detect.Pool for parallelism.
type Detector struct {
	mu      sync.Mutex
	cfg     Config
	classes int
	anchors int
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	logger  *slog.Logger
}

func NewDetector(cfg Config, logger *slog.Logger) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}
	if len(cfg.Labels) == 0 {
		return nil, fmt.Errorf("no class labels configured")
	}
	if cfg.InputSize <= 0 || cfg.InputSize%32 != 0 {
		return nil, fmt.Errorf("input size %d must be a positive multiple of 32", cfg.InputSize)
	}

	classes := numClasses(cfg.Labels)
	anchors := anchorCount(cfg.InputSize)
	size := int64(cfg.InputSize)

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+classes), int64(anchors)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()
	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			input.Destroy()
			output.Destroy()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}

	return &Detector{
		cfg:     cfg,
		classes: classes,
		anchors: anchors,
		session: session,
		input:   input,
		output:  output,
		logger:  logger,
	}, nil
}

func (d *Detector) Detect(ctx context.Context, imagePath string) (*detect.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := loadImage(imagePath)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := fillInput(img, d.cfg.InputSize, d.input.GetData()); err != nil {
		return nil, fmt.Errorf("failed to prepare input: %w", err)
	}

	start := time.Now()
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	cands, err := decodeOutput(d.output.GetData(), d.classes, d.anchors, d.cfg.InputSize,
		bounds.Dx(), bounds.Dy(), d.cfg.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	kept := suppress(cands, d.cfg.IoUThreshold)
	d.logger.Debug("onnx inference complete",
		"image", imagePath,
		"candidates", len(cands),
		"detections", len(kept),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &detect.Result{Rows: toRows(kept), Names: d.cfg.Labels}, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.session != nil {
		errs = append(errs, d.session.Destroy())
		d.session = nil
	}
	if d.input != nil {
		errs = append(errs, d.input.Destroy())
		d.input = nil
	}
	if d.output != nil {
		errs = append(errs, d.output.Destroy())
		d.output = nil
	}
	return errors.Join(errs...)
}

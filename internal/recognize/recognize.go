// Package recognize turns enhanced cell crops into text. The ONNX-backed
// model does the actual inference; BatchRecognizer wraps any Model with the
// fail-safe contract the pipeline relies on.
package recognize

import (
	"context"
	"image"
	"log/slog"
)

// Model recognizes a batch of text crops. Implementations must return one
// string per crop, in crop order.
type Model interface {
	RecognizeBatch(ctx context.Context, crops []image.Image) ([]string, error)
	Close() error
}

// BatchRecognizer runs a Model and absorbs its failures: a model error or a
// malformed result degrades to empty strings for the whole batch instead of
// failing the document. Positional alignment between crops and results is
// preserved in every case.
type BatchRecognizer struct {
	model  Model
	logger *slog.Logger
}

// NewBatchRecognizer wraps a model with fail-safe batch recognition.
func NewBatchRecognizer(model Model, logger *slog.Logger) *BatchRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRecognizer{model: model, logger: logger}
}

// Recognize returns exactly one text per crop. Nil crops map to empty
// strings without reaching the model.
func (r *BatchRecognizer) Recognize(ctx context.Context, crops []image.Image) []string {
	texts := make([]string, len(crops))
	if len(crops) == 0 {
		return texts
	}

	live := make([]image.Image, 0, len(crops))
	liveIdx := make([]int, 0, len(crops))
	for i, crop := range crops {
		if crop != nil {
			live = append(live, crop)
			liveIdx = append(liveIdx, i)
		}
	}
	if len(live) == 0 {
		return texts
	}

	results, err := r.model.RecognizeBatch(ctx, live)
	if err != nil {
		r.logger.Warn("batch recognition failed, returning empty texts",
			"crops", len(live), "error", err)
		return texts
	}
	if len(results) != len(live) {
		r.logger.Warn("model returned wrong result count, returning empty texts",
			"want", len(live), "got", len(results))
		return texts
	}
	for i, text := range results {
		texts[liveIdx[i]] = text
	}
	return texts
}

// Close releases the underlying model.
func (r *BatchRecognizer) Close() error {
	return r.model.Close()
}

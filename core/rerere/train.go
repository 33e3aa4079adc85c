package rerere

import (
	"context"
	"log/slog"
)

// TrainPair is one historical conflict and the content it was resolved to.
type TrainPair struct {
	// Path labels the pair in logs.
	Path       string
	Conflicted []byte
	Resolved   []byte
}

// TrainResult summarizes a training batch.
type TrainResult struct {
	Recorded  int // hunks whose resolution was written
	Unchanged int // hunks already recorded with the same resolution
	Kept      int // hunks with a different resolution left in place
	Failed    int // hunks whose store write failed
	Skipped   int // pairs that could not be aligned or parsed
}

// Train records the resolutions found in historical (conflicted, resolved)
// pairs. Existing resolutions are replaced only when overwrite is set. A
// pair that cannot be parsed or aligned is logged and skipped.
func (e *Engine) Train(ctx context.Context, pairs []TrainPair, overwrite bool) (*TrainResult, error) {
	result := &TrainResult{}

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		stats, err := e.recordPair(pair.Path, pair.Conflicted, pair.Resolved, overwrite)
		if err != nil {
			e.logger.Warn("skipping training pair",
				slog.String("path", pair.Path),
				slog.String("error", err.Error()))
			result.Skipped++
			continue
		}

		result.Recorded += stats.Recorded
		result.Unchanged += stats.Unchanged
		result.Kept += stats.Kept
		result.Failed += stats.Failed

		if stats.Recorded > 0 {
			e.logger.Info("recorded resolution", slog.String("path", pair.Path))
		}
	}

	return result, nil
}

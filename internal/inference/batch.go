package inference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "paycast/internal/errors"
)

// BatchItem pairs one input index with its outcome. Exactly one of Result
// and Err is set.
type BatchItem struct {
	Index  int
	Result *Prediction
	Err    error
}

// PredictBatch runs independent predictions for every item under a bounded
// worker pool. The returned slice always has exactly len(items) entries in
// input order: items unresolved at the deadline carry a timeout error,
// items never dispatched a not-completed error. Cancellation of in-flight
// work is best-effort; a worker that already started its prediction finishes
// it even if the result is discarded.
//
// The call fails wholesale only when the model cannot be loaded before any
// item is attempted.
func (s *Service) PredictBatch(ctx context.Context, modelID string, items []map[string]any, concurrency int, timeout time.Duration) ([]BatchItem, error) {
	if s.cfg.MaxBatchSize > 0 && len(items) > s.cfg.MaxBatchSize {
		return nil, apperrors.NewInvalidInputError([]string{
			fmt.Sprintf("batch of %d items exceeds the maximum of %d", len(items), s.cfg.MaxBatchSize),
		})
	}

	f, _, err := s.Model(modelID)
	if err != nil {
		return nil, err
	}

	concurrency = s.clampConcurrency(concurrency)
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}

	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n := len(items)
	var mu sync.Mutex
	results := make([]BatchItem, n)
	dispatched := make([]bool, n)
	completed := make([]bool, n)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

dispatch:
	for i := range items {
		select {
		case <-bctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		dispatched[i] = true
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					results[i] = BatchItem{Index: i, Err: apperrors.NewPredictionError(fmt.Errorf("panic: %v", r))}
					completed[i] = true
					mu.Unlock()
				}
			}()

			if bctx.Err() != nil {
				return
			}

			pred, err := s.predictLoaded(bctx, f, items[i])
			mu.Lock()
			results[i] = BatchItem{Index: i, Result: pred, Err: err}
			completed[i] = true
			mu.Unlock()
		}(i)
	}

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
	case <-bctx.Done():
		// stragglers keep running; their late results are ignored below
	}

	mu.Lock()
	out := make([]BatchItem, n)
	for i := 0; i < n; i++ {
		switch {
		case completed[i]:
			out[i] = results[i]
		case dispatched[i]:
			out[i] = BatchItem{Index: i, Err: apperrors.NewBatchTimeoutError(i)}
		default:
			out[i] = BatchItem{Index: i, Err: apperrors.NewNotCompletedError(i)}
		}
	}
	mu.Unlock()

	s.observeBatch(ctx, out)
	return out, nil
}

func (s *Service) clampConcurrency(concurrency int) int {
	if concurrency < 1 {
		concurrency = s.cfg.DefaultConcurrency
	}
	if s.cfg.MaxConcurrency > 0 && concurrency > s.cfg.MaxConcurrency {
		concurrency = s.cfg.MaxConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return concurrency
}

func (s *Service) observeBatch(ctx context.Context, items []BatchItem) {
	if s.metrics == nil {
		return
	}
	counts := map[string]int64{}
	for _, item := range items {
		counts[batchStatus(item.Err)]++
	}
	for status, count := range counts {
		s.metrics.BatchItemsTotal.Add(ctx, count,
			metric.WithAttributes(attribute.String("status", status)))
	}
}

func batchStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperrors.IsType(err, apperrors.ErrTypeValidation):
		return "validation_error"
	case apperrors.IsType(err, apperrors.ErrTypeTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// Package hydration fetches detail records for discovered place IDs in
// bounded-concurrency batches, checkpointing progress after every settled
// batch so an interrupted run resumes where it stopped.
package hydration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/areainsights"
	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/models"
)

const (
	// DefaultConcurrency is the per-batch fan-out for detail fetches.
	DefaultConcurrency = 8

	// DefaultBatchDelay is the pause between settled batches, a coarse
	// throttle on top of the client's own rate limiter.
	DefaultBatchDelay = 500 * time.Millisecond
)

// ErrHydrationActive is returned when a hydration run is already in flight
// for the requested area.
var ErrHydrationActive = errors.New("hydration already running for area")

// Pipeline hydrates an area's discovered IDs into full place records.
type Pipeline struct {
	client  interfaces.AreaClient
	storage interfaces.AreaStorage
	logger  arbor.ILogger

	concurrency int
	batchDelay  time.Duration

	mu     sync.Mutex
	active map[string]bool
}

// PipelineOption configures the Pipeline.
type PipelineOption func(*Pipeline)

// WithConcurrency sets the default per-batch fan-out.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithBatchDelay sets the pause between settled batches. Zero disables it.
func WithBatchDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.batchDelay = d
	}
}

// NewPipeline creates a hydration pipeline.
func NewPipeline(client interfaces.AreaClient, storage interfaces.AreaStorage, logger arbor.ILogger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		client:      client,
		storage:     storage,
		logger:      logger,
		concurrency: DefaultConcurrency,
		batchDelay:  DefaultBatchDelay,
		active:      make(map[string]bool),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// fetchOutcome is one settled detail fetch within a batch.
type fetchOutcome struct {
	id     string
	record *models.PlaceRecord
	err    error
}

// HydrateBatch hydrates one window of the area's unprocessed IDs.
//
// Already hydrated IDs are filtered out first; the window offsets index the
// remaining unprocessed list. Each batch of up to Concurrency fetches is
// launched together and fully settled before its records and checkpoint are
// persisted, so the stored offset never runs ahead of saved records. A rate
// limit response from any fetch halts the run after its batch settles; other
// fetch errors skip that ID and the run continues.
func (p *Pipeline) HydrateBatch(ctx context.Context, area string, opts interfaces.HydrateOptions) (*interfaces.HydrateResult, error) {
	if !p.acquire(area) {
		return nil, fmt.Errorf("%w: %s", ErrHydrationActive, area)
	}
	defer p.release(area)

	state, err := p.storage.GetHydrationState(ctx, area)
	if err != nil {
		return nil, fmt.Errorf("failed to load hydration state for area %s: %w", area, err)
	}

	hydrated, err := p.storage.HydratedIDs(ctx, area)
	if err != nil {
		return nil, fmt.Errorf("failed to load hydrated IDs for area %s: %w", area, err)
	}

	pending := make([]string, 0, len(state.IDs))
	for _, id := range state.IDs {
		if _, done := hydrated[id]; !done {
			pending = append(pending, id)
		}
	}

	start := opts.StartOffset
	if start < 0 {
		start = 0
	}
	end := len(pending)
	if opts.MaxCount > 0 && start+opts.MaxCount < end {
		end = start + opts.MaxCount
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = p.concurrency
	}
	delay := opts.BatchDelay
	if delay <= 0 {
		delay = p.batchDelay
	}

	result := &interfaces.HydrateResult{}

	if start >= end {
		result.TotalRecords, err = p.storage.CountPlaces(ctx, area)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	work := pending[start:end]
	rateLimited := false

	for batchStart := 0; batchStart < len(work) && !rateLimited; batchStart += concurrency {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batchEnd := batchStart + concurrency
		if batchEnd > len(work) {
			batchEnd = len(work)
		}
		batch := work[batchStart:batchEnd]

		outcomes := p.fetchBatch(ctx, batch)

		records := make([]*models.PlaceRecord, 0, len(batch))
		for _, out := range outcomes {
			switch {
			case out.err != nil:
				var rle *areainsights.RateLimitError
				if errors.As(out.err, &rle) {
					rateLimited = true
					p.logger.Warn().Str("area", area).Str("id", out.id).Msg("Rate limited, halting after this batch")
				} else {
					p.logger.Warn().Err(out.err).Str("area", area).Str("id", out.id).Msg("Detail fetch failed, skipping")
				}
			case out.record == nil:
				// Stale ID: the place no longer exists remotely.
				p.logger.Debug().Str("area", area).Str("id", out.id).Msg("Place gone, skipping")
			default:
				out.record.Area = area
				records = append(records, out.record)
			}
		}

		if len(records) > 0 {
			if err := p.storage.SavePlaces(ctx, area, records); err != nil {
				return nil, fmt.Errorf("failed to save place records for area %s: %w", area, err)
			}
		}

		state.Offset += len(batch)
		state.RateLimited = rateLimited
		state.UpdatedAt = time.Now().UTC()
		if err := p.storage.SaveHydrationState(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to checkpoint hydration state for area %s: %w", area, err)
		}

		result.Processed += len(batch)
		result.Successful += len(records)

		if !rateLimited && batchEnd < len(work) && delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	result.RateLimitHit = rateLimited
	result.NextStart = start + result.Processed
	result.HasMore = result.NextStart < len(pending)

	result.TotalRecords, err = p.storage.CountPlaces(ctx, area)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("area", area).
		Int("processed", result.Processed).
		Int("successful", result.Successful).
		Int("total_records", result.TotalRecords).
		Bool("rate_limited", result.RateLimitHit).
		Bool("has_more", result.HasMore).
		Msg("Hydration batch completed")

	return result, nil
}

// fetchBatch launches every fetch in the batch and waits for all of them.
func (p *Pipeline) fetchBatch(ctx context.Context, batch []string) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(batch))

	var wg sync.WaitGroup
	for i, id := range batch {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			record, err := p.client.PlaceDetails(ctx, id)
			outcomes[i] = fetchOutcome{id: id, record: record, err: err}
		}(i, id)
	}
	wg.Wait()

	return outcomes
}

func (p *Pipeline) acquire(area string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[area] {
		return false
	}
	p.active[area] = true
	return true
}

func (p *Pipeline) release(area string) {
	p.mu.Lock()
	delete(p.active, area)
	p.mu.Unlock()
}

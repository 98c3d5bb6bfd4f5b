// Package discovery implements the adaptive subdivision search: a polygon is
// recursively quartered until every sub-region's remote match count fits the
// list operation's cap, then the IDs of each accepted sub-region are unioned
// into one deduplicated set.
package discovery

import (
	"context"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/areainsights"
	"github.com/ibrasaif1/topspots/internal/geo"
	"github.com/ibrasaif1/topspots/internal/interfaces"
)

const (
	// DefaultListCap mirrors the remote list operation's hard result limit.
	DefaultListCap = areainsights.ListCap

	// DefaultPendingCeiling bounds the worklist so pathological geometry
	// (or a remote that errors on every count) cannot grow work without
	// bound. Regions that would push past the ceiling are dropped.
	DefaultPendingCeiling = 2048
)

// Engine runs the subdivision search. It is deliberately sequential: each
// region's split decision depends on its count result, so there is nothing
// to parallelize without giving up cap-respecting behavior.
type Engine struct {
	client  interfaces.AreaClient
	logger  arbor.ILogger
	filter  areainsights.AreaFilter // base filter; Polygon is set per region
	listCap int
	ceiling int
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithListCap overrides the remote list cap (tests only; the production cap
// is fixed by the remote service).
func WithListCap(limit int) EngineOption {
	return func(e *Engine) {
		e.listCap = limit
	}
}

// WithPendingCeiling overrides the worklist safety ceiling.
func WithPendingCeiling(ceiling int) EngineOption {
	return func(e *Engine) {
		e.ceiling = ceiling
	}
}

// NewEngine creates a subdivision search engine. The filter's polygon field
// is ignored; it is replaced per examined region.
func NewEngine(client interfaces.AreaClient, filter areainsights.AreaFilter, logger arbor.ILogger, opts ...EngineOption) *Engine {
	e := &Engine{
		client:  client,
		logger:  logger,
		filter:  filter,
		listCap: DefaultListCap,
		ceiling: DefaultPendingCeiling,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// DiscoverIDs walks the polygon's subdivision tree and returns the sorted,
// deduplicated set of place IDs found in all accepted sub-regions.
//
// Per region: count==0 is terminal; 0<count<=cap enumerates IDs; count>cap
// splits into quadrants. A failed count or a failed enumeration downgrades
// to a split rather than aborting the run, so one bad region never loses its
// siblings and the run always terminates with some result. All splits respect
// the pending ceiling.
func (e *Engine) DiscoverIDs(ctx context.Context, polygon geo.Polygon) ([]string, error) {
	if err := polygon.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	stack := []geo.Polygon{polygon}
	ids := make(map[string]struct{})
	var examined, splits, dropped int

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		region := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		examined++

		count, err := e.client.Count(ctx, e.regionFilter(region))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Defensive fallback: keep progressing by splitting, bounded by
			// the ceiling so a remote that always errors still terminates.
			if e.pushChildren(&stack, region) {
				splits++
			} else {
				dropped++
			}
			e.logger.Warn().Err(err).Int("pending", len(stack)).Msg("Count failed, splitting region")
			continue
		}

		switch {
		case count == 0:
			// Terminal for this branch; also ends recursion on degenerate
			// zero-area quadrants.
			continue

		case count <= e.listCap:
			names, err := e.client.ListPlaceIDs(ctx, e.regionFilter(region))
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// The count succeeded but enumeration failed. Splitting and
				// requeueing the children retries the region at finer grain
				// instead of silently losing it.
				if e.pushChildren(&stack, region) {
					splits++
				} else {
					dropped++
				}
				e.logger.Warn().Err(err).Int("count", count).Msg("ID enumeration failed, splitting region")
				continue
			}
			for _, name := range names {
				ids[name] = struct{}{}
			}

		default:
			if e.pushChildren(&stack, region) {
				splits++
			} else {
				dropped++
				e.logger.Warn().
					Int("count", count).
					Int("pending", len(stack)).
					Msg("Pending ceiling reached, dropping region")
			}
		}
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	e.logger.Info().
		Int("regions_examined", examined).
		Int("splits", splits).
		Int("regions_dropped", dropped).
		Int("unique_ids", len(sorted)).
		Dur("elapsed", time.Since(start)).
		Msg("Subdivision search completed")

	return sorted, nil
}

// pushChildren quarters the region and pushes the quadrants, returning false
// (without pushing) when that would exceed the pending ceiling.
func (e *Engine) pushChildren(stack *[]geo.Polygon, region geo.Polygon) bool {
	children := region.Split()
	if len(*stack)+len(children) > e.ceiling {
		return false
	}
	*stack = append(*stack, children[:]...)
	return true
}

func (e *Engine) regionFilter(region geo.Polygon) areainsights.AreaFilter {
	filter := e.filter
	filter.Polygon = region
	return filter
}

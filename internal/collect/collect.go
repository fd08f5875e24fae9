// Package collect gathers optional context for an issue from multiple
// sources concurrently. Collectors are independent and best-effort: a
// failing or slow source degrades to absent context and never blocks the
// others.
package collect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/planbot/pkg/models"
)

// Collector fetches one source's slice of context for an issue. A source
// with nothing to contribute returns (nil, nil); errors mean the source was
// tried and failed.
type Collector interface {
	Name() string
	Fetch(ctx context.Context, issue *models.Issue) (*models.PartialContext, error)
}

// Result is the outcome of one collector run.
type Result struct {
	Name    string
	Partial *models.PartialContext
	Err     error
}

// RunAll runs every collector concurrently, each under its own timeout. A
// panic in one collector is recovered and recorded as that collector's
// failure. Results come back in collector order regardless of completion
// order.
func RunAll(ctx context.Context, timeout time.Duration, issue *models.Issue, collectors []Collector) []Result {
	results := make([]Result, len(collectors))

	var wg sync.WaitGroup
	for i, col := range collectors {
		wg.Add(1)
		go func(i int, col Collector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("collector", col.Name()).Interface("panic", r).
						Msg("collector panicked, treating source as absent")
					results[i] = Result{Name: col.Name(), Err: fmt.Errorf("collector panic: %v", r)}
				}
			}()

			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			partial, err := col.Fetch(cctx, issue)
			if err != nil {
				log.Warn().Err(err).Str("collector", col.Name()).Msg("collector failed, treating source as absent")
			}
			results[i] = Result{Name: col.Name(), Partial: partial, Err: err}
		}(i, col)
	}
	wg.Wait()

	return results
}

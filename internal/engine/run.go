package engine

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/olehluchkiv/scopescan/internal/universe"
)

// Recorder observes the outcome of every visit. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveVisit(scope string, outcome Outcome, added int)
}

// Options controls a traversal.
type Options struct {
	// Workers bounds the number of concurrent visits. Zero means GOMAXPROCS;
	// one visits sequentially in walk order.
	Workers  int
	Recorder Recorder
}

// ScopeMatches is the result of one analyzer over a traversal.
type ScopeMatches struct {
	Scope    string
	Entities *EntitySet
}

// Run walks u once and visits every candidate with each analyzer. Each
// analyzer accumulates into its own EntitySet.
//
// When ctx is cancelled no further visits start; the returned sets hold
// every match found so far and the context error is returned alongside.
func Run(ctx context.Context, u universe.Universe, analyzers []*Analyzer, opts Options) ([]ScopeMatches, int64, error) {
	results := make([]ScopeMatches, len(analyzers))
	for i, a := range analyzers {
		results[i] = ScopeMatches{Scope: a.ScopeName(), Entities: NewEntitySet()}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var visited atomic.Int64
	walkErr := u.Walk(gctx, func(t universe.TypeHandle) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			visited.Add(1)
			for i, a := range analyzers {
				outcome, added := a.VisitOutcome(t, results[i].Entities)
				if opts.Recorder != nil {
					opts.Recorder.ObserveVisit(a.ScopeName(), outcome, added)
				}
			}
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return results, visited.Load(), err
	}
	if walkErr != nil {
		return results, visited.Load(), walkErr
	}
	return results, visited.Load(), ctx.Err()
}

package lineage

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Request is one entry point of a batch.
type Request struct {
	Table   string
	Columns []string
}

// BatchResult pairs a request with its outcome. Err holds per-request
// failures such as *ColumnNotFoundError.
type BatchResult struct {
	Request Request
	Result  *Result
	Err     error
}

// TraceAll runs independent requests concurrently, at most concurrency at a
// time (unlimited when < 1). Results keep request order. The returned error
// is only set when ctx is cancelled; requests not yet started are skipped.
func (t *Tracer) TraceAll(ctx context.Context, reqs []Request, concurrency int) ([]BatchResult, error) {
	results := make([]BatchResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, req := range reqs {
		results[i].Request = req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := t.TraceColumns(req.Table, req.Columns...)
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

package formats

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-sample-data/elastic"
)

// Raw writes every hit with its metadata as one JSON line.
type Raw struct {
	Outfile     io.Writer
	ProgressBar *pb.ProgressBar
}

func (r Raw) Run(ctx context.Context, hits <-chan elastic.SearchHit) (int64, error) {
	var written int64
	for hit := range hits {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		data, err := elastic.JSON.Marshal(hit)
		if err != nil {
			return written, fmt.Errorf("hit %s: %w", hit.ID, err)
		}
		if _, err := fmt.Fprintln(r.Outfile, string(data)); err != nil {
			return written, err
		}
		written++
		if r.ProgressBar != nil {
			r.ProgressBar.Increment()
		}
	}
	return written, nil
}

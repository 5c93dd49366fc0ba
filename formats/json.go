package formats

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-sample-data/elastic"
)

// JSON writes the source of every hit as one line.
type JSON struct {
	Outfile     io.Writer
	ProgressBar *pb.ProgressBar
}

func (j JSON) Run(ctx context.Context, hits <-chan elastic.SearchHit) (int64, error) {
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case hit, ok := <-hits:
			if !ok {
				return written, nil
			}
			if _, err := fmt.Fprintln(j.Outfile, string(hit.GetSource())); err != nil {
				return written, err
			}
			written++
			if j.ProgressBar != nil {
				j.ProgressBar.Increment()
			}
		}
	}
}

package formats

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"

	"golang.org/x/sync/errgroup"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-sample-data/elastic"
)

var lineBreaks = regexp.MustCompile(`\x{000D}\x{000A}|[\x{000A}\x{000B}\x{000C}\x{000D}\x{0085}\x{2028}\x{2029}]`)

// CSV writes one row per hit. With Fields set, a header row is written and
// columns follow Fields, where nested values are addressed as "a.b". Without
// Fields, the leaf values of each document are written in key order.
type CSV struct {
	Fields      []string
	Outfile     io.Writer
	Workers     int
	ProgressBar *pb.ProgressBar
}

// Run returns the number of data rows written.
func (c CSV) Run(ctx context.Context, hits <-chan elastic.SearchHit) (int64, error) {
	g, ctx := errgroup.WithContext(ctx)

	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	csvout := make(chan []string, workers)

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for hit := range hits {
				row, err := c.row(hit.GetSource())
				if err != nil {
					return fmt.Errorf("hit %s: %w", hit.ID, err)
				}

				select {
				case csvout <- row:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(csvout)
	}()

	w := csv.NewWriter(c.Outfile)
	var werr error
	if len(c.Fields) > 0 {
		werr = w.Write(c.Fields)
	}

	var written int64
	for row := range csvout {
		if werr != nil {
			continue
		}
		if werr = w.Write(row); werr != nil {
			continue
		}
		written++
		if c.ProgressBar != nil {
			c.ProgressBar.Increment()
		}
	}
	w.Flush()

	if err := g.Wait(); err != nil {
		return written, err
	}
	if werr != nil {
		return written, werr
	}
	return written, w.Error()
}

func (c CSV) row(source []byte) ([]string, error) {
	var document map[string]interface{}
	if err := elastic.JSON.Unmarshal(source, &document); err != nil {
		return nil, err
	}
	flat := flatten(document)

	if len(c.Fields) > 0 {
		row := make([]string, 0, len(c.Fields))
		for _, field := range c.Fields {
			row = append(row, cell(flat[field]))
		}
		return row, nil
	}

	keys := make([]string, 0, len(flat))
	for k, v := range flat {
		if _, nested := v.(map[string]interface{}); nested {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := make([]string, 0, len(keys))
	for _, k := range keys {
		row = append(row, cell(flat[k]))
	}
	return row, nil
}

func cell(val interface{}) string {
	switch val := val.(type) {
	case nil:
		return ""
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		d := int(val)
		if val == float64(d) {
			return fmt.Sprintf("%d", d)
		}
		return fmt.Sprintf("%f", val)
	default:
		return removeLBR(fmt.Sprintf("%v", val))
	}
}

// flatten adds every nested value of document under its dotted path. The
// nested maps themselves are kept.
func flatten(document map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(document))
	flattenInto(out, "", document)
	return out
}

func flattenInto(out map[string]interface{}, prefix string, m map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		out[key] = v
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(out, key, nested)
		}
	}
}

func removeLBR(text string) string {
	return lineBreaks.ReplaceAllString(text, ``)
}

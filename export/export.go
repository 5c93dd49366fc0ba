// Package export dumps the documents of an index through a scroll.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-sample-data/elastic"
	"github.com/pteich/elastic-sample-data/flags"
	"github.com/pteich/elastic-sample-data/formats"
)

const workers = 8

type Formatter interface {
	Run(context.Context, <-chan elastic.SearchHit) (int64, error)
}

// BuildQuery combines the raw query, or else the query string, into a bool
// query. Without either it matches all documents.
func BuildQuery(conf *flags.ExportFlags) (elastic.Query, error) {
	esQuery := elastic.NewBoolQuery()

	switch {
	case conf.RAWQuery != "":
		raw, err := elastic.NewRawStringQuery(conf.RAWQuery)
		if err != nil {
			return nil, fmt.Errorf("invalid raw query: %w", err)
		}
		esQuery.Must(raw)
	case conf.Query != "":
		esQuery.Must(elastic.NewQueryStringQuery(conf.Query))
	default:
		esQuery.Must(elastic.NewMatchAllQuery())
	}

	return esQuery, nil
}

func formatter(conf *flags.ExportFlags, out io.Writer, bar *pb.ProgressBar) (Formatter, error) {
	switch conf.OutFormat {
	case flags.FormatJSON:
		return formats.JSON{Outfile: out, ProgressBar: bar}, nil
	case flags.FormatRAW:
		return formats.Raw{Outfile: out, ProgressBar: bar}, nil
	case flags.FormatCSV, "":
		return formats.CSV{Fields: conf.Fields, Outfile: out, Workers: workers, ProgressBar: bar}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", conf.OutFormat)
	}
}

// Run writes every document of index matching conf to out and returns the
// number of documents written. progress, if not nil, receives a progress bar.
func Run(ctx context.Context, store elastic.Store, index string, conf *flags.ExportFlags, out, progress io.Writer, log *zap.Logger) (int64, error) {
	if conf.Fieldlist != "" && conf.Fields == nil {
		conf.Fields = strings.Split(conf.Fieldlist, ",")
	}

	query, err := BuildQuery(conf)
	if err != nil {
		return 0, err
	}

	counted, err := store.Search(ctx, index, query, 0)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	total := counted.Total()
	log.Debug("exporting documents", zap.String("index", index), zap.Int64("total", total))

	var bar *pb.ProgressBar
	if progress != nil {
		bar = pb.New64(total).SetWriter(progress).Start()
		defer bar.Finish()
	}

	output, err := formatter(conf, out, bar)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hits := make(chan elastic.SearchHit)
	scrollErr := make(chan error, 1)

	go func() {
		defer close(hits)
		scrollErr <- scrollAll(ctx, store, index, conf, query, hits, log)
	}()

	written, err := output.Run(ctx, hits)
	cancel()
	// drain so the scroll goroutine can exit
	for range hits {
	}
	if err != nil {
		return written, fmt.Errorf("write output: %w", err)
	}
	if err := <-scrollErr; err != nil {
		return written, err
	}

	log.Debug("documents exported", zap.Int64("written", written), zap.Int64("total", total))
	return written, nil
}

func scrollAll(ctx context.Context, store elastic.Store, index string, conf *flags.ExportFlags, query elastic.Query, hits chan<- elastic.SearchHit, log *zap.Logger) error {
	size := conf.ScrollSize
	if size <= 0 {
		size = 1000
	}

	scroll := store.Scroll(index, size, query)
	if conf.Fields != nil {
		scroll = scroll.FetchSourceContext(conf.Fields)
	}
	defer func() {
		if err := scroll.Clear(context.WithoutCancel(ctx)); err != nil {
			log.Debug("clear scroll failed", zap.String("index", index), zap.Error(err))
		}
	}()

	for {
		result, err := scroll.Do(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scroll: %w", err)
		}

		for _, hit := range result.Hits() {
			select {
			case hits <- hit:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Package seed writes the sample documents into an index.
package seed

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-sample-data/elastic"
)

// SampleDocuments are seeded under the ids "1", "2" and "3".
var SampleDocuments = []elastic.Document{
	{Title: "Test1", Body: "Elasticsearchデータ投入", Tag: "demo"},
	{Title: "Test2", Body: "Kibanaで可視化できる", Tag: "tutorial"},
	{Title: "Test3", Body: "Pythonからも楽々投入", Tag: "demo"},
}

type Seeder struct {
	store    elastic.Store
	index    string
	log      *zap.Logger
	progress io.Writer
	refresh  bool
}

type Option func(*Seeder)

// WithProgress draws a progress bar to w while writing.
func WithProgress(w io.Writer) Option {
	return func(s *Seeder) {
		s.progress = w
	}
}

// WithRefresh refreshes the index once all documents are written. Without it
// documents become searchable after the index refresh interval.
func WithRefresh(refresh bool) Option {
	return func(s *Seeder) {
		s.refresh = refresh
	}
}

func New(store elastic.Store, index string, log *zap.Logger, opts ...Option) *Seeder {
	s := &Seeder{
		store: store,
		index: index,
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the id of the document at position i of the seeded slice.
func ID(i int) string {
	return strconv.Itoa(i + 1)
}

// EnsureIndex creates the index unless it already exists.
func (s *Seeder) EnsureIndex(ctx context.Context) (bool, error) {
	exists, err := s.store.IndexExists(ctx, s.index)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", s.index, err)
	}
	if exists {
		return false, nil
	}

	if err := s.store.CreateIndex(ctx, s.index); err != nil {
		return false, fmt.Errorf("create index %s: %w", s.index, err)
	}
	s.log.Info("index created", zap.String("index", s.index))
	return true, nil
}

// Run ensures the index exists and writes docs in order under 1-based ids.
func (s *Seeder) Run(ctx context.Context, docs []elastic.Document) error {
	if _, err := s.EnsureIndex(ctx); err != nil {
		return err
	}

	var bar *pb.ProgressBar
	if s.progress != nil {
		bar = pb.New(len(docs)).SetWriter(s.progress).Start()
		defer bar.Finish()
	}

	for i, doc := range docs {
		res, err := s.store.Index(ctx, s.index, ID(i), doc)
		if err != nil {
			return fmt.Errorf("index document %s: %w", ID(i), err)
		}
		s.log.Debug("document written",
			zap.String("id", res.ID),
			zap.String("result", res.Result),
			zap.Int64("version", res.Version),
		)
		if bar != nil {
			bar.Increment()
		}
	}

	if s.refresh {
		if err := s.store.Refresh(ctx, s.index); err != nil {
			return fmt.Errorf("refresh index %s: %w", s.index, err)
		}
	}

	return nil
}

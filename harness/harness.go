// Package harness verifies that a store honors the document store contract
// the seeder relies on. Every case starts from an empty index.
package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/pteich/elastic-sample-data/elastic"
)

type Harness struct {
	store elastic.Store
	index string
	log   *zap.Logger
}

// Case is a named check. Run returns a non-nil error when the store deviates
// from the expected behavior.
type Case struct {
	Name string
	Run  func(ctx context.Context, h *Harness) error
}

type Result struct {
	Name     string
	Duration time.Duration
	Err      error
}

func (r Result) Passed() bool {
	return r.Err == nil
}

func New(store elastic.Store, index string, log *zap.Logger) *Harness {
	return &Harness{
		store: store,
		index: index,
		log:   log,
	}
}

// Reset deletes the index if present and creates it again.
func (h *Harness) Reset(ctx context.Context) error {
	if err := h.Cleanup(ctx); err != nil {
		return err
	}
	if err := h.store.CreateIndex(ctx, h.index); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Cleanup deletes the index, ignoring a missing one.
func (h *Harness) Cleanup(ctx context.Context) error {
	if err := h.store.DeleteIndex(ctx, h.index); err != nil && !elastic.IsNotFound(err) {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}

// Find returns the cases with the given names, or all cases if names is empty.
func Find(names ...string) ([]Case, error) {
	all := Cases()
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]Case, len(all))
	for _, c := range all {
		byName[c.Name] = c
	}

	selected := make([]Case, 0, len(names))
	var unknown []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c, ok := byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, c)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown cases: %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}

// RunCase resets the index and runs c.
func (h *Harness) RunCase(ctx context.Context, c Case) Result {
	start := time.Now()
	err := h.Reset(ctx)
	if err == nil {
		err = c.Run(ctx, h)
	}
	res := Result{Name: c.Name, Duration: time.Since(start), Err: err}

	if err != nil {
		h.log.Error("case failed", zap.String("case", c.Name), zap.Duration("duration", res.Duration), zap.Error(err))
	} else {
		h.log.Info("case passed", zap.String("case", c.Name), zap.Duration("duration", res.Duration))
	}
	return res
}

// Run runs the cases one after another and stops early only when ctx is
// canceled.
func (h *Harness) Run(ctx context.Context, cases []Case) []Result {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		if ctx.Err() != nil {
			results = append(results, Result{Name: c.Name, Err: ctx.Err()})
			continue
		}
		results = append(results, h.RunCase(ctx, c))
	}
	return results
}

// Failed returns the failed results joined into one error, or nil.
func Failed(results []Result) error {
	var result *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return result.ErrorOrNil()
}

package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/pteich/elastic-sample-data/elastic"
	"github.com/pteich/elastic-sample-data/elastic/elastictest"
)

func TestCasesPassOnConformingStore(t *testing.T) {
	h := New(elastictest.NewStore(), "sample-index", zaptest.NewLogger(t))

	for _, c := range Cases() {
		t.Run(c.Name, func(t *testing.T) {
			res := h.RunCase(context.Background(), c)
			require.NoError(t, res.Err)
			assert.True(t, res.Passed())
		})
	}
}

func TestCaseNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range Cases() {
		assert.False(t, seen[c.Name], c.Name)
		seen[c.Name] = true
	}
}

func TestFind(t *testing.T) {
	all, err := Find()
	require.NoError(t, err)
	assert.Len(t, all, len(Cases()))

	selected, err := Find("bulk-delete", " partial-update ", "")
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "bulk-delete", selected[0].Name)
	assert.Equal(t, "partial-update", selected[1].Name)

	_, err = Find("bulk-delete", "no-such-case")
	assert.ErrorContains(t, err, "no-such-case")
}

func TestResetRecreatesIndex(t *testing.T) {
	ctx := context.Background()
	store := elastictest.NewStore()
	h := New(store, "sample-index", zap.NewNop())

	require.NoError(t, h.Reset(ctx))
	_, err := store.Index(ctx, "sample-index", "1", elastic.Document{Title: "stale"})
	require.NoError(t, err)

	require.NoError(t, h.Reset(ctx))
	ok, err := store.Exists(ctx, "sample-index", "1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.Cleanup(ctx))
	require.NoError(t, h.Cleanup(ctx), "cleanup of a missing index is not an error")
}

// overwritingStore ignores create-only mode and concurrency preconditions.
type overwritingStore struct {
	*elastictest.Store
}

func (s overwritingStore) Index(ctx context.Context, index, id string, doc any, _ ...elastic.WriteOption) (*elastic.WriteResult, error) {
	return s.Store.Index(ctx, index, id, doc)
}

// lenientStore reports success when deleting absent documents.
type lenientStore struct {
	*elastictest.Store
}

func (s lenientStore) Delete(ctx context.Context, index, id string, opts ...elastic.WriteOption) (*elastic.WriteResult, error) {
	res, err := s.Store.Delete(ctx, index, id, opts...)
	if elastic.IsNotFound(err) {
		return &elastic.WriteResult{Index: index, ID: id, Result: elastic.ResultNotFound}, nil
	}
	return res, err
}

// duplicateCreateStore accepts creating an index that already exists.
type duplicateCreateStore struct {
	*elastictest.Store
}

func (s duplicateCreateStore) CreateIndex(ctx context.Context, index string) error {
	exists, err := s.Store.IndexExists(ctx, index)
	if err != nil || exists {
		return err
	}
	return s.Store.CreateIndex(ctx, index)
}

func TestCasesDetectDeviations(t *testing.T) {
	tests := []struct {
		name   string
		store  elastic.Store
		failed []string
	}{
		{
			name:   "overwriting",
			store:  overwritingStore{elastictest.NewStore()},
			failed: []string{"create-duplicate-id", "version-conflict"},
		},
		{
			name:   "lenient delete",
			store:  lenientStore{elastictest.NewStore()},
			failed: []string{"delete-existing", "delete-missing"},
		},
		{
			name:   "duplicate index creation",
			store:  duplicateCreateStore{elastictest.NewStore()},
			failed: []string{"index-creation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.store, "sample-index", zap.NewNop())
			results := h.Run(context.Background(), Cases())
			require.Len(t, results, len(Cases()))

			var failed []string
			for _, r := range results {
				if !r.Passed() {
					failed = append(failed, r.Name)
				}
			}
			assert.Equal(t, tt.failed, failed)
			assert.Error(t, Failed(results))
		})
	}
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := elastictest.NewStore()
	h := New(store, "sample-index", zap.NewNop())

	results := h.Run(ctx, Cases()[:3])
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, errors.Is(r.Err, context.Canceled))
	}
	assert.Empty(t, store.Calls)
}

func TestFailed(t *testing.T) {
	assert.NoError(t, Failed([]Result{{Name: "a"}, {Name: "b"}}))

	err := Failed([]Result{{Name: "a"}, {Name: "b", Err: elastic.ErrConflict}})
	require.Error(t, err)
	assert.ErrorIs(t, err, elastic.ErrConflict)
	assert.Contains(t, err.Error(), "b: version conflict")
}

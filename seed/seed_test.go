package seed

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pteich/elastic-sample-data/elastic"
	"github.com/pteich/elastic-sample-data/elastic/elastictest"
)

func TestRunCreatesIndexAndWritesSequentialIDs(t *testing.T) {
	ctx := context.Background()
	store := elastictest.NewStore()

	err := New(store, "sample-index", zap.NewNop()).Run(ctx, SampleDocuments)
	require.NoError(t, err)

	exists, err := store.IndexExists(ctx, "sample-index")
	require.NoError(t, err)
	assert.True(t, exists)

	for i, want := range SampleDocuments {
		res, err := store.Get(ctx, "sample-index", ID(i))
		require.NoError(t, err)

		var got elastic.Document
		require.NoError(t, res.Decode(&got))
		assert.Equal(t, want, got)
	}

	assert.Equal(t, []string{"IndexExists", "CreateIndex", "Index", "Index", "Index", "IndexExists", "Get", "Get", "Get"}, store.Calls)
}

func TestRunDoesNotRefresh(t *testing.T) {
	ctx := context.Background()
	store := elastictest.NewStore()

	require.NoError(t, New(store, "sample-index", zap.NewNop()).Run(ctx, SampleDocuments))

	res, err := store.Search(ctx, "sample-index", elastic.NewMatchAllQuery(), 10)
	require.NoError(t, err)
	assert.Zero(t, res.Total(), "documents must not be searchable before a refresh")

	require.NoError(t, store.Refresh(ctx, "sample-index"))
	res, err = store.Search(ctx, "sample-index", elastic.NewMatchAllQuery(), 10)
	require.NoError(t, err)
	assert.EqualValues(t, len(SampleDocuments), res.Total())
}

func TestRunWithRefresh(t *testing.T) {
	ctx := context.Background()
	store := elastictest.NewStore()

	require.NoError(t, New(store, "sample-index", zap.NewNop(), WithRefresh(true)).Run(ctx, SampleDocuments))

	res, err := store.Search(ctx, "sample-index", elastic.NewMatchQuery("tag", "demo"), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total())
}

func TestRunKeepsExistingIndex(t *testing.T) {
	ctx := context.Background()
	store := elastictest.NewStore()
	require.NoError(t, store.CreateIndex(ctx, "sample-index"))
	_, err := store.Index(ctx, "sample-index", "42", elastic.Document{Title: "keep me"})
	require.NoError(t, err)
	store.Calls = nil

	s := New(store, "sample-index", zap.NewNop())
	created, err := s.EnsureIndex(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, s.Run(ctx, SampleDocuments))
	assert.NotContains(t, store.Calls, "CreateIndex")

	_, ok := store.Source("sample-index", "42")
	assert.True(t, ok)
}

func TestRunTwiceOverwrites(t *testing.T) {
	ctx := context.Background()
	store := elastictest.NewStore()
	s := New(store, "sample-index", zap.NewNop())

	require.NoError(t, s.Run(ctx, SampleDocuments))
	require.NoError(t, s.Run(ctx, SampleDocuments))

	res, err := store.Get(ctx, "sample-index", "1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Version)
}

func TestRunDrawsProgress(t *testing.T) {
	var buf bytes.Buffer
	store := elastictest.NewStore()

	err := New(store, "sample-index", zap.NewNop(), WithProgress(&buf)).Run(context.Background(), SampleDocuments)
	require.NoError(t, err)
	assert.NotEmpty(t, buf.String())
}

func TestID(t *testing.T) {
	assert.Equal(t, "1", ID(0))
	assert.Equal(t, "3", ID(2))
}

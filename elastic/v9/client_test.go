package v9

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pteich/elastic-sample-data/elastic"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   string
}

type reply struct {
	status int
	body   string
}

// fakeTransport answers requests in order and records them.
type fakeTransport struct {
	mu       sync.Mutex
	replies  []reply
	requests []recordedRequest
}

func (f *fakeTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}}
	for k, v := range r.URL.Query() {
		rec.Query[k] = v[0]
	}
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		rec.Body = string(data)
	}
	f.requests = append(f.requests, rec)

	rep := reply{status: http.StatusOK, body: `{}`}
	if len(f.replies) > 0 {
		rep, f.replies = f.replies[0], f.replies[1:]
	}

	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: rep.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(rep.body)),
		Request:    r,
	}, nil
}

func newTestClient(t *testing.T, replies ...reply) (*Client, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{replies: replies}
	client, err := NewClient(NewConfig("http://localhost:9200", "", "", &http.Client{Transport: tr}, nil))
	require.NoError(t, err)
	return client, tr
}

func TestIndexCreateOnlyConflict(t *testing.T) {
	client, tr := newTestClient(t, reply{
		status: http.StatusConflict,
		body:   `{"error":{"type":"version_conflict_engine_exception","reason":"[1]: version conflict, document already exists (current version [1])"},"status":409}`,
	})

	_, err := client.Index(context.Background(), "sample-index", "1", elastic.Document{Title: "Test1"}, elastic.CreateOnly())
	require.Error(t, err)
	assert.True(t, elastic.IsConflict(err))

	require.Len(t, tr.requests, 1)
	req := tr.requests[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/sample-index/_doc/1", req.Path)
	assert.Equal(t, "create", req.Query["op_type"])
	assert.JSONEq(t, `{"title":"Test1","body":"","tag":""}`, req.Body)
}

func TestIndexWithPreconditionAndRefresh(t *testing.T) {
	client, tr := newTestClient(t, reply{
		status: http.StatusOK,
		body:   `{"_index":"sample-index","_id":"600","_version":2,"result":"updated","_seq_no":4,"_primary_term":1}`,
	})

	res, err := client.Index(context.Background(), "sample-index", "600", elastic.Document{Title: "v2"},
		elastic.IfMatch(3, 1), elastic.WithRefresh())
	require.NoError(t, err)
	assert.Equal(t, &elastic.WriteResult{Index: "sample-index", ID: "600", Version: 2, Result: elastic.ResultUpdated, SeqNo: 4, PrimaryTerm: 1}, res)

	req := tr.requests[0]
	assert.Equal(t, "3", req.Query["if_seq_no"])
	assert.Equal(t, "1", req.Query["if_primary_term"])
	assert.Equal(t, "true", req.Query["refresh"])
}

func TestIndexWithoutID(t *testing.T) {
	client, tr := newTestClient(t, reply{
		status: http.StatusCreated,
		body:   `{"_index":"sample-index","_id":"Zx3a","_version":1,"result":"created","_seq_no":0,"_primary_term":1}`,
	})

	res, err := client.Index(context.Background(), "sample-index", "", elastic.Document{Title: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "Zx3a", res.ID)

	req := tr.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/sample-index/_doc", req.Path)
}

func TestGetAndExists(t *testing.T) {
	client, tr := newTestClient(t,
		reply{status: http.StatusOK, body: `{"_index":"sample-index","_id":"1","_version":1,"_seq_no":0,"_primary_term":1,"found":true,"_source":{"title":"Test1","body":"b","tag":"demo"}}`},
		reply{status: http.StatusNotFound, body: `{"_index":"sample-index","_id":"999","found":false}`},
		reply{status: http.StatusNotFound},
		reply{status: http.StatusOK},
	)
	ctx := context.Background()

	res, err := client.Get(ctx, "sample-index", "1")
	require.NoError(t, err)
	var doc elastic.Document
	require.NoError(t, res.Decode(&doc))
	assert.Equal(t, elastic.Document{Title: "Test1", Body: "b", Tag: "demo"}, doc)

	_, err = client.Get(ctx, "sample-index", "999")
	assert.True(t, elastic.IsNotFound(err))

	ok, err := client.Exists(ctx, "sample-index", "999")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = client.Exists(ctx, "sample-index", "1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, http.MethodHead, tr.requests[2].Method)
}

func TestUpdateWrapsPartialDocument(t *testing.T) {
	client, tr := newTestClient(t, reply{
		status: http.StatusOK,
		body:   `{"_index":"sample-index","_id":"500","_version":2,"result":"updated","_seq_no":1,"_primary_term":1}`,
	})

	res, err := client.Update(context.Background(), "sample-index", "500", map[string]any{"title": "部分更新後"})
	require.NoError(t, err)
	assert.Equal(t, elastic.ResultUpdated, res.Result)

	req := tr.requests[0]
	assert.Equal(t, "/sample-index/_update/500", req.Path)
	assert.JSONEq(t, `{"doc":{"title":"部分更新後"}}`, req.Body)
}

func TestDeleteByQuery(t *testing.T) {
	client, tr := newTestClient(t, reply{status: http.StatusOK, body: `{"took":3,"deleted":2,"failures":[]}`})

	deleted, err := client.DeleteByQuery(context.Background(), "sample-index", elastic.NewMatchQuery("tag", "to-delete"), elastic.WithRefresh())
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	req := tr.requests[0]
	assert.Equal(t, "/sample-index/_delete_by_query", req.Path)
	assert.Equal(t, "true", req.Query["refresh"])
	assert.JSONEq(t, `{"query":{"match":{"tag":"to-delete"}}}`, req.Body)
}

func TestBulk(t *testing.T) {
	client, tr := newTestClient(t, reply{
		status: http.StatusOK,
		body: `{"took":7,"errors":true,"items":[
			{"create":{"_index":"sample-index","_id":"a","status":409,"error":{"type":"version_conflict_engine_exception","reason":"exists"}}},
			{"delete":{"_index":"sample-index","_id":"b","_version":2,"result":"deleted","status":200,"_seq_no":5,"_primary_term":1}}]}`,
	})

	res, err := client.Bulk(context.Background(), "sample-index", []elastic.BulkAction{
		elastic.BulkCreate("a", elastic.Document{Title: "A"}),
		elastic.BulkDelete("b"),
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.True(t, res.Errors)
	assert.True(t, elastic.IsConflict(res.Err()))
	assert.Equal(t, elastic.ResultDeleted, res.Items[1].Result)

	req := tr.requests[0]
	assert.Equal(t, "/sample-index/_bulk", req.Path)
	assert.Equal(t, 3, strings.Count(req.Body, "\n"))

	empty, err := client.Bulk(context.Background(), "sample-index", nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Len(t, tr.requests, 1)
}

func TestScroll(t *testing.T) {
	client, tr := newTestClient(t,
		reply{status: http.StatusOK, body: `{"_scroll_id":"s1","hits":{"total":{"value":2},"hits":[{"_index":"sample-index","_id":"1","_source":{"title":"Test1"}}]}}`},
		reply{status: http.StatusOK, body: `{"_scroll_id":"s1","hits":{"total":{"value":2},"hits":[{"_index":"sample-index","_id":"2","_source":{"title":"Test2"}}]}}`},
		reply{status: http.StatusOK, body: `{"_scroll_id":"s1","hits":{"total":{"value":2},"hits":[]}}`},
		reply{status: http.StatusOK, body: `{"succeeded":true}`},
	)
	ctx := context.Background()

	scroll := client.Scroll("sample-index", 1, elastic.NewMatchAllQuery()).FetchSourceContext([]string{"title"})

	var ids []string
	for {
		res, err := scroll.Do(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.EqualValues(t, 2, res.Total())
		for _, hit := range res.Hits() {
			ids = append(ids, hit.ID)
		}
	}
	require.NoError(t, scroll.Clear(ctx))

	assert.Equal(t, []string{"1", "2"}, ids)
	require.Len(t, tr.requests, 4)
	assert.Equal(t, "/sample-index/_search", tr.requests[0].Path)
	assert.Equal(t, "1", tr.requests[0].Query["size"])
	assert.JSONEq(t, `{"query":{"match_all":{}},"_source":["title"]}`, tr.requests[0].Body)
	assert.Equal(t, "/_search/scroll", tr.requests[1].Path)
	assert.Equal(t, http.MethodDelete, tr.requests[3].Method)
}

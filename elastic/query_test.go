package elastic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoolQuery(t *testing.T) {
	q := NewBoolQuery().
		Must(NewQueryStringQuery("tag:demo")).
		Filter(NewMatchQuery("tag", "demo")).
		Must(nil)

	assert.Equal(t, map[string]interface{}{
		"bool": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{"query_string": map[string]interface{}{"query": "tag:demo"}},
			},
			"filter": []interface{}{
				map[string]interface{}{"match": map[string]interface{}{"tag": "demo"}},
			},
		},
	}, q.Build())
}

func TestRawStringQuery(t *testing.T) {
	q, err := NewRawStringQuery(`{"term":{"tag":"demo"}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"tag": "demo"}}, q.Build())

	_, err = NewRawStringQuery(`{"term":`)
	assert.Error(t, err)
}

func TestEncodeQueryBody(t *testing.T) {
	buf, err := EncodeQueryBody(NewMatchAllQuery(), []string{"title", "tag"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"match_all":{}},"_source":["title","tag"]}`, buf.String())

	buf, err = EncodeQueryBody(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, buf.Len())

	buf, err = EncodeQueryBody(NewBoolQuery(), nil)
	require.NoError(t, err)
	assert.Zero(t, buf.Len(), "an empty bool query is omitted")
}

func TestWriteOptions(t *testing.T) {
	o := ApplyWriteOptions([]WriteOption{CreateOnly(), IfMatch(4, 1), WithRefresh()})
	assert.Equal(t, OpTypeCreate, o.OpType)
	require.NotNil(t, o.IfSeqNo)
	require.NotNil(t, o.IfPrimaryTerm)
	assert.EqualValues(t, 4, *o.IfSeqNo)
	assert.EqualValues(t, 1, *o.IfPrimaryTerm)
	assert.Equal(t, "true", o.RefreshParam())

	assert.Equal(t, "", ApplyWriteOptions(nil).RefreshParam())
}

func TestDecodeSearch(t *testing.T) {
	body := `{"_scroll_id":"abc","hits":{"total":{"value":2,"relation":"eq"},"hits":[
		{"_index":"sample-index","_id":"1","_source":{"title":"Test1"}},
		{"_index":"sample-index","_id":"2","_source":{"title":"Test2"}}]}}`

	res, scrollID, err := DecodeSearch(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "abc", scrollID)
	assert.EqualValues(t, 2, res.Total())
	require.Len(t, res.Hits(), 2)
	assert.Equal(t, "2", res.Hits()[1].ID)
	assert.JSONEq(t, `{"title":"Test1"}`, string(res.Hits()[0].GetSource()))
}

func TestDecodeDeleteByQuery(t *testing.T) {
	deleted, err := DecodeDeleteByQuery(strings.NewReader(`{"took":5,"deleted":2,"failures":[]}`))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	deleted, err = DecodeDeleteByQuery(strings.NewReader(`{"deleted":1,"failures":[{"id":"3","status":409,"cause":{"type":"version_conflict_engine_exception","reason":"conflict"}}]}`))
	assert.EqualValues(t, 1, deleted)
	assert.True(t, IsConflict(err))
}

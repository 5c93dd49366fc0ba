package elastic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBulk(t *testing.T) {
	buf, err := EncodeBulk("sample-index", []BulkAction{
		BulkCreate("1", Document{Title: "Test1", Body: "b", Tag: "demo"}),
		BulkIndex("", map[string]string{"title": "auto"}),
		BulkUpdate("1", map[string]string{"title": "Test1b"}),
		BulkDelete("2"),
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.JSONEq(t, `{"create":{"_index":"sample-index","_id":"1"}}`, lines[0])
	assert.JSONEq(t, `{"title":"Test1","body":"b","tag":"demo"}`, lines[1])
	assert.JSONEq(t, `{"index":{"_index":"sample-index"}}`, lines[2])
	assert.JSONEq(t, `{"title":"auto"}`, lines[3])
	assert.JSONEq(t, `{"update":{"_index":"sample-index","_id":"1"}}`, lines[4])
	assert.JSONEq(t, `{"doc":{"title":"Test1b"}}`, lines[5])
	assert.JSONEq(t, `{"delete":{"_index":"sample-index","_id":"2"}}`, lines[6])
}

func TestEncodeBulkUnsupported(t *testing.T) {
	_, err := EncodeBulk("sample-index", []BulkAction{{Op: "upsert", ID: "1"}})
	assert.Error(t, err)
}

const bulkResponseBody = `{
  "took": 12,
  "errors": true,
  "items": [
    {"create": {"_index": "sample-index", "_id": "b", "_version": 1, "result": "created", "status": 201, "_seq_no": 1, "_primary_term": 1}},
    {"create": {"_index": "sample-index", "_id": "a", "status": 409, "error": {"type": "version_conflict_engine_exception", "reason": "[a]: version conflict, document already exists (current version [1])"}}},
    {"delete": {"_index": "sample-index", "_id": "x", "_version": 1, "result": "not_found", "status": 404, "_seq_no": 2, "_primary_term": 1}}
  ]
}`

func TestDecodeBulk(t *testing.T) {
	res, err := DecodeBulk(strings.NewReader(bulkResponseBody))
	require.NoError(t, err)

	assert.EqualValues(t, 12, res.Took)
	assert.True(t, res.Errors)
	require.Len(t, res.Items, 3)

	assert.Equal(t, BulkOpCreate, res.Items[0].Op)
	assert.Equal(t, ResultCreated, res.Items[0].Result)
	assert.EqualValues(t, 1, res.Items[0].SeqNo)
	assert.False(t, res.Items[0].Failed())

	assert.Equal(t, BulkOpDelete, res.Items[2].Op)
	assert.Equal(t, ResultNotFound, res.Items[2].Result)
	assert.False(t, res.Items[2].Failed(), "a delete of an absent id is not a failure")

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "a", failed[0].ID)

	err = res.Err()
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "create a:")
}

func TestBulkResultErrNil(t *testing.T) {
	res := &BulkResult{Items: []BulkItem{{Op: BulkOpIndex, ID: "1", Status: 201, Result: ResultCreated}}}
	assert.NoError(t, res.Err())
	assert.Empty(t, res.Failed())
}

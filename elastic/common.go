package elastic

import (
	"context"
	"encoding/json"
)

// Store is the document store contract every Elasticsearch version
// implementation satisfies.
type Store interface {
	Ping(ctx context.Context) error

	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string) error
	DeleteIndex(ctx context.Context, index string) error
	Refresh(ctx context.Context, index string) error

	// Index writes doc under id, or under an engine assigned id when id is empty.
	Index(ctx context.Context, index, id string, doc any, opts ...WriteOption) (*WriteResult, error)
	Get(ctx context.Context, index, id string) (*GetResult, error)
	Exists(ctx context.Context, index, id string) (bool, error)
	// Update merges the fields of partial into the stored document.
	Update(ctx context.Context, index, id string, partial any, opts ...WriteOption) (*WriteResult, error)
	Delete(ctx context.Context, index, id string, opts ...WriteOption) (*WriteResult, error)

	Search(ctx context.Context, index string, query Query, size int) (*SearchResult, error)
	DeleteByQuery(ctx context.Context, index string, query Query, opts ...WriteOption) (int64, error)
	Bulk(ctx context.Context, index string, actions []BulkAction, opts ...WriteOption) (*BulkResult, error)

	Scroll(index string, size int, query Query) ScrollService
	Stop()
}

type Query interface {
	Build() map[string]interface{}
}

// ScrollService pages through all hits of a query. Do returns io.EOF once
// the hits are exhausted.
type ScrollService interface {
	Do(ctx context.Context) (*SearchResult, error)
	Clear(ctx context.Context) error
	FetchSourceContext(includeFields []string) ScrollService
}

// Document is the shape of the sample data.
type Document struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}

const (
	ResultCreated  = "created"
	ResultUpdated  = "updated"
	ResultDeleted  = "deleted"
	ResultNoop     = "noop"
	ResultNotFound = "not_found"
)

// WriteResult is the metadata returned by index, update and delete calls.
type WriteResult struct {
	Index       string `json:"_index"`
	ID          string `json:"_id"`
	Version     int64  `json:"_version"`
	Result      string `json:"result"`
	SeqNo       int64  `json:"_seq_no"`
	PrimaryTerm int64  `json:"_primary_term"`
}

type GetResult struct {
	Index       string          `json:"_index"`
	ID          string          `json:"_id"`
	Version     int64           `json:"_version"`
	SeqNo       int64           `json:"_seq_no"`
	PrimaryTerm int64           `json:"_primary_term"`
	Found       bool            `json:"found"`
	Source      json.RawMessage `json:"_source"`
}

// Decode unmarshals the document source into v.
func (g *GetResult) Decode(v any) error {
	return JSON.Unmarshal(g.Source, v)
}

type SearchResult struct {
	total int64
	hits  []SearchHit
}

func NewSearchResult(total int64, hits []SearchHit) *SearchResult {
	return &SearchResult{total: total, hits: hits}
}

func (r *SearchResult) Hits() []SearchHit {
	return r.hits
}

func (r *SearchResult) Total() int64 {
	return r.total
}

type SearchHit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

func (h SearchHit) GetSource() []byte {
	return h.Source
}

// WriteOptions are the per request preconditions and flags of a write.
type WriteOptions struct {
	OpType        string
	IfSeqNo       *int64
	IfPrimaryTerm *int64
	Refresh       bool
}

type WriteOption func(*WriteOptions)

const OpTypeCreate = "create"

// CreateOnly makes the write fail with ErrConflict if the id already exists.
func CreateOnly() WriteOption {
	return func(o *WriteOptions) {
		o.OpType = OpTypeCreate
	}
}

// IfMatch conditions the write on the sequence number and primary term of a
// previous write.
func IfMatch(seqNo, primaryTerm int64) WriteOption {
	return func(o *WriteOptions) {
		o.IfSeqNo = &seqNo
		o.IfPrimaryTerm = &primaryTerm
	}
}

// WithRefresh makes the change visible to search before the call returns.
func WithRefresh() WriteOption {
	return func(o *WriteOptions) {
		o.Refresh = true
	}
}

func ApplyWriteOptions(opts []WriteOption) WriteOptions {
	var o WriteOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RefreshParam renders the refresh flag as the query parameter value the
// REST API expects. Empty means the parameter is omitted.
func (o WriteOptions) RefreshParam() string {
	if o.Refresh {
		return "true"
	}
	return ""
}

package elastic

import (
	"bytes"
)

type QueryBuilder struct {
	query map[string]interface{}
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		query: make(map[string]interface{}),
	}
}

func (q *QueryBuilder) Build() map[string]interface{} {
	return q.query
}

type BoolQuery struct {
	builder *QueryBuilder
}

func NewBoolQuery() *BoolQuery {
	return &BoolQuery{
		builder: NewQueryBuilder(),
	}
}

func (q *BoolQuery) Must(query Query) *BoolQuery {
	return q.add("must", query)
}

func (q *BoolQuery) Filter(query Query) *BoolQuery {
	return q.add("filter", query)
}

func (q *BoolQuery) add(clause string, query Query) *BoolQuery {
	if query == nil {
		return q
	}
	if q.builder.query["bool"] == nil {
		q.builder.query["bool"] = make(map[string]interface{})
	}
	boolQuery := q.builder.query["bool"].(map[string]interface{})
	if boolQuery[clause] == nil {
		boolQuery[clause] = []interface{}{}
	}
	boolQuery[clause] = append(boolQuery[clause].([]interface{}), query.Build())
	return q
}

func (q *BoolQuery) Build() map[string]interface{} {
	return q.builder.Build()
}

type MatchAllQuery struct{}

func NewMatchAllQuery() MatchAllQuery {
	return MatchAllQuery{}
}

func (MatchAllQuery) Build() map[string]interface{} {
	return map[string]interface{}{"match_all": map[string]interface{}{}}
}

// MatchQuery is a full text match of a single field.
type MatchQuery struct {
	field string
	value interface{}
}

func NewMatchQuery(field string, value interface{}) MatchQuery {
	return MatchQuery{field: field, value: value}
}

func (q MatchQuery) Build() map[string]interface{} {
	return map[string]interface{}{
		"match": map[string]interface{}{q.field: q.value},
	}
}

type QueryStringQuery struct {
	query string
}

func NewQueryStringQuery(query string) QueryStringQuery {
	return QueryStringQuery{query: query}
}

func (q QueryStringQuery) Build() map[string]interface{} {
	return map[string]interface{}{
		"query_string": map[string]interface{}{
			"query": q.query,
		},
	}
}

type RawStringQuery struct {
	query map[string]interface{}
}

// NewRawStringQuery parses a JSON query clause such as {"term":{"tag":"demo"}}.
func NewRawStringQuery(rawQuery string) (RawStringQuery, error) {
	q := RawStringQuery{query: make(map[string]interface{})}
	if err := JSON.Unmarshal([]byte(rawQuery), &q.query); err != nil {
		return RawStringQuery{}, err
	}
	return q, nil
}

func (q RawStringQuery) Build() map[string]interface{} {
	return q.query
}

// EncodeQueryBody renders the body of a search, count or delete-by-query
// request. A nil query matches everything.
func EncodeQueryBody(query Query, includeFields []string) (*bytes.Buffer, error) {
	body := make(map[string]interface{})
	if query != nil {
		if q := query.Build(); len(q) > 0 {
			body["query"] = q
		}
	}
	if len(includeFields) > 0 {
		body["_source"] = includeFields
	}

	var buf bytes.Buffer
	if len(body) == 0 {
		return &buf, nil
	}
	if err := JSON.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	return &buf, nil
}

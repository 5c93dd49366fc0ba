// Package elastictest provides an in-memory elastic.Store for tests.
//
// It models the parts of the engine contract the seeder and harness rely on:
// realtime reads by id, search visibility only after a refresh, sequence
// numbers and versions that survive deletion, and create-only and
// if_seq_no/if_primary_term preconditions. Queries support match_all, match
// and term on top level fields by exact value, a "*" query_string, and bool
// queries with a single must clause.
package elastictest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pteich/elastic-sample-data/elastic"
)

const primaryTerm = 1

type doc struct {
	source      map[string]any
	version     int64
	seqNo       int64
	primaryTerm int64
}

type index struct {
	seqNo    int64
	docs     map[string]*doc
	visible  map[string]*doc
	versions map[string]int64
}

func newIndex() *index {
	return &index{
		seqNo:    -1,
		docs:     make(map[string]*doc),
		visible:  make(map[string]*doc),
		versions: make(map[string]int64),
	}
}

func (ix *index) refresh() {
	ix.visible = make(map[string]*doc, len(ix.docs))
	for id, d := range ix.docs {
		ix.visible[id] = d
	}
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	indices map[string]*index
	// Calls records the name of every method invoked, in order.
	Calls []string
}

var _ elastic.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{indices: make(map[string]*index)}
}

func notFound(reason string) error {
	return &elastic.StatusError{Status: http.StatusNotFound, Type: "not_found", Reason: reason}
}

func conflict(reason string) error {
	return &elastic.StatusError{Status: http.StatusConflict, Type: "version_conflict_engine_exception", Reason: reason}
}

func (s *Store) record(call string) {
	s.Calls = append(s.Calls, call)
}

func (s *Store) lookup(name string) (*index, error) {
	ix, ok := s.indices[name]
	if !ok {
		return nil, &elastic.StatusError{Status: http.StatusNotFound, Type: "index_not_found_exception", Reason: "no such index [" + name + "]"}
	}
	return ix, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := elastic.JSON.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if err := elastic.JSON.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("IndexExists")

	_, ok := s.indices[name]
	return ok, nil
}

func (s *Store) CreateIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateIndex")

	if _, ok := s.indices[name]; ok {
		return &elastic.StatusError{Status: http.StatusBadRequest, Type: "resource_already_exists_exception", Reason: "index [" + name + "] already exists"}
	}
	s.indices[name] = newIndex()
	return nil
}

func (s *Store) DeleteIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteIndex")

	if _, err := s.lookup(name); err != nil {
		return err
	}
	delete(s.indices, name)
	return nil
}

func (s *Store) Refresh(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Refresh")

	ix, err := s.lookup(name)
	if err != nil {
		return err
	}
	ix.refresh()
	return nil
}

func (s *Store) Index(_ context.Context, name, id string, v any, opts ...elastic.WriteOption) (*elastic.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Index")

	o := elastic.ApplyWriteOptions(opts)
	source, err := toMap(v)
	if err != nil {
		return nil, err
	}

	ix, ok := s.indices[name]
	if !ok {
		// dynamic index creation on first write
		ix = newIndex()
		s.indices[name] = ix
	}
	if id == "" {
		id = uuid.NewString()
	}

	return s.write(ix, name, id, source, o)
}

func (s *Store) write(ix *index, name, id string, source map[string]any, o elastic.WriteOptions) (*elastic.WriteResult, error) {
	current, exists := ix.docs[id]
	if o.OpType == elastic.OpTypeCreate && exists {
		return nil, conflict(fmt.Sprintf("[%s]: version conflict, document already exists (current version [%d])", id, current.version))
	}
	if err := checkPreconditions(id, current, o); err != nil {
		return nil, err
	}

	ix.seqNo++
	ix.versions[id]++
	d := &doc{source: source, version: ix.versions[id], seqNo: ix.seqNo, primaryTerm: primaryTerm}
	ix.docs[id] = d
	if o.Refresh {
		ix.refresh()
	}

	result := elastic.ResultCreated
	if exists {
		result = elastic.ResultUpdated
	}
	return &elastic.WriteResult{
		Index:       name,
		ID:          id,
		Version:     d.version,
		Result:      result,
		SeqNo:       d.seqNo,
		PrimaryTerm: d.primaryTerm,
	}, nil
}

func checkPreconditions(id string, current *doc, o elastic.WriteOptions) error {
	if o.IfSeqNo == nil && o.IfPrimaryTerm == nil {
		return nil
	}
	if current == nil {
		return conflict(fmt.Sprintf("[%s]: version conflict, required seqNo [%d], but no document was found", id, deref(o.IfSeqNo)))
	}
	if deref(o.IfSeqNo) != current.seqNo || deref(o.IfPrimaryTerm) != current.primaryTerm {
		return conflict(fmt.Sprintf("[%s]: version conflict, required seqNo [%d], primary term [%d]. current document has seqNo [%d] and primary term [%d]",
			id, deref(o.IfSeqNo), deref(o.IfPrimaryTerm), current.seqNo, current.primaryTerm))
	}
	return nil
}

func deref(v *int64) int64 {
	if v == nil {
		return -1
	}
	return *v
}

func (s *Store) Get(_ context.Context, name, id string) (*elastic.GetResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Get")

	ix, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	d, ok := ix.docs[id]
	if !ok {
		return nil, notFound("document [" + id + "] not found")
	}

	source, err := elastic.JSON.Marshal(d.source)
	if err != nil {
		return nil, err
	}
	return &elastic.GetResult{
		Index:       name,
		ID:          id,
		Version:     d.version,
		SeqNo:       d.seqNo,
		PrimaryTerm: d.primaryTerm,
		Found:       true,
		Source:      source,
	}, nil
}

func (s *Store) Exists(_ context.Context, name, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Exists")

	ix, ok := s.indices[name]
	if !ok {
		return false, nil
	}
	_, ok = ix.docs[id]
	return ok, nil
}

func (s *Store) Update(_ context.Context, name, id string, partial any, opts ...elastic.WriteOption) (*elastic.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Update")

	return s.update(name, id, partial, elastic.ApplyWriteOptions(opts))
}

func (s *Store) update(name, id string, partial any, o elastic.WriteOptions) (*elastic.WriteResult, error) {
	ix, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	current, ok := ix.docs[id]
	if !ok {
		return nil, notFound("[" + id + "]: document missing")
	}

	fields, err := toMap(partial)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any, len(current.source)+len(fields))
	for k, v := range current.source {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	if reflect.DeepEqual(merged, current.source) {
		return &elastic.WriteResult{
			Index:       name,
			ID:          id,
			Version:     current.version,
			Result:      elastic.ResultNoop,
			SeqNo:       current.seqNo,
			PrimaryTerm: current.primaryTerm,
		}, nil
	}

	o.OpType = ""
	return s.write(ix, name, id, merged, o)
}

func (s *Store) Delete(_ context.Context, name, id string, opts ...elastic.WriteOption) (*elastic.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Delete")

	return s.delete(name, id, elastic.ApplyWriteOptions(opts))
}

func (s *Store) delete(name, id string, o elastic.WriteOptions) (*elastic.WriteResult, error) {
	ix, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	current, ok := ix.docs[id]
	if !ok {
		return nil, notFound("document [" + id + "] not found")
	}
	if err := checkPreconditions(id, current, o); err != nil {
		return nil, err
	}

	ix.seqNo++
	ix.versions[id]++
	delete(ix.docs, id)
	if o.Refresh {
		ix.refresh()
	}

	return &elastic.WriteResult{
		Index:       name,
		ID:          id,
		Version:     ix.versions[id],
		Result:      elastic.ResultDeleted,
		SeqNo:       ix.seqNo,
		PrimaryTerm: primaryTerm,
	}, nil
}

func (s *Store) Search(_ context.Context, name string, query elastic.Query, size int) (*elastic.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Search")

	ix, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	ids, err := s.match(ix, query)
	if err != nil {
		return nil, err
	}

	hits := make([]elastic.SearchHit, 0, len(ids))
	for _, id := range ids {
		if len(hits) == size {
			break
		}
		source, err := elastic.JSON.Marshal(ix.visible[id].source)
		if err != nil {
			return nil, err
		}
		hits = append(hits, elastic.SearchHit{Index: name, ID: id, Source: source})
	}
	return elastic.NewSearchResult(int64(len(ids)), hits), nil
}

// match returns the sorted ids of all visible documents matching query.
func (s *Store) match(ix *index, query elastic.Query) ([]string, error) {
	var clause map[string]any
	if query != nil {
		clause = query.Build()
	}

	field, value, err := parseQuery(clause)
	if err != nil {
		return nil, err
	}

	var ids []string
	for id, d := range ix.visible {
		if field == "" || reflect.DeepEqual(d.source[field], value) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func parseQuery(clause map[string]any) (string, any, error) {
	if len(clause) == 0 {
		return "", nil, nil
	}
	if _, ok := clause["match_all"]; ok {
		return "", nil, nil
	}
	if qs, ok := clause["query_string"].(map[string]any); ok && qs["query"] == "*" {
		return "", nil, nil
	}
	if b, ok := clause["bool"].(map[string]any); ok {
		must, _ := b["must"].([]any)
		if len(must) == 1 {
			if inner, ok := must[0].(map[string]any); ok {
				return parseQuery(inner)
			}
		}
	}
	for _, kind := range []string{"match", "term"} {
		m, ok := clause[kind].(map[string]any)
		if !ok {
			continue
		}
		for field, value := range m {
			if inner, ok := value.(map[string]any); ok {
				if q, ok := inner["query"]; ok {
					value = q
				} else {
					value = inner["value"]
				}
			}
			return field, value, nil
		}
	}
	return "", nil, errors.New("elastictest: unsupported query")
}

func (s *Store) DeleteByQuery(_ context.Context, name string, query elastic.Query, opts ...elastic.WriteOption) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteByQuery")

	o := elastic.ApplyWriteOptions(opts)
	ix, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	ids, err := s.match(ix, query)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, id := range ids {
		if _, ok := ix.docs[id]; !ok {
			continue
		}
		ix.seqNo++
		ix.versions[id]++
		delete(ix.docs, id)
		deleted++
	}
	if o.Refresh {
		ix.refresh()
	}
	return deleted, nil
}

func (s *Store) Bulk(_ context.Context, name string, actions []elastic.BulkAction, opts ...elastic.WriteOption) (*elastic.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Bulk")

	o := elastic.ApplyWriteOptions(opts)
	ix, ok := s.indices[name]
	if !ok {
		ix = newIndex()
		s.indices[name] = ix
	}

	result := &elastic.BulkResult{}
	for _, a := range actions {
		var (
			res *elastic.WriteResult
			err error
		)
		id := a.ID
		switch a.Op {
		case elastic.BulkOpIndex, elastic.BulkOpCreate:
			var source map[string]any
			source, err = toMap(a.Doc)
			if err == nil {
				if id == "" {
					id = uuid.NewString()
				}
				wo := elastic.WriteOptions{}
				if a.Op == elastic.BulkOpCreate {
					wo.OpType = elastic.OpTypeCreate
				}
				res, err = s.write(ix, name, id, source, wo)
			}
		case elastic.BulkOpUpdate:
			res, err = s.update(name, id, a.Doc, elastic.WriteOptions{})
		case elastic.BulkOpDelete:
			res, err = s.delete(name, id, elastic.WriteOptions{})
		default:
			return nil, fmt.Errorf("unsupported bulk operation %q", a.Op)
		}

		item := elastic.BulkItem{Op: a.Op, Index: name, ID: id, Status: http.StatusOK}
		if res != nil {
			item.Version, item.Result = res.Version, res.Result
			item.SeqNo, item.PrimaryTerm = res.SeqNo, res.PrimaryTerm
			if res.Result == elastic.ResultCreated {
				item.Status = http.StatusCreated
			}
		}

		var se *elastic.StatusError
		switch {
		case err == nil:
		case a.Op == elastic.BulkOpDelete && elastic.IsNotFound(err):
			item.Status, item.Result = http.StatusNotFound, elastic.ResultNotFound
		case errors.As(err, &se):
			item.Status = se.Status
			item.Error = &elastic.BulkError{Type: se.Type, Reason: se.Reason}
			result.Errors = true
		default:
			return nil, err
		}
		result.Items = append(result.Items, item)
	}

	if o.Refresh {
		ix.refresh()
	}
	return result, nil
}

func (s *Store) Scroll(name string, size int, query elastic.Query) elastic.ScrollService {
	return &scroll{store: s, index: name, size: size, query: query}
}

func (s *Store) Stop() {}

// Source returns the stored source of id, bypassing the call log.
func (s *Store) Source(name, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ix, ok := s.indices[name]
	if !ok {
		return nil, false
	}
	d, ok := ix.docs[id]
	if !ok {
		return nil, false
	}
	return d.source, true
}

type scroll struct {
	store  *Store
	index  string
	size   int
	query  elastic.Query
	fields []string
	offset int
}

func (sc *scroll) Do(ctx context.Context) (*elastic.SearchResult, error) {
	res, err := sc.store.Search(ctx, sc.index, sc.query, sc.offset+sc.size)
	if err != nil {
		return nil, err
	}
	if sc.offset >= len(res.Hits()) {
		return nil, io.EOF
	}

	hits := res.Hits()[sc.offset:]
	sc.offset += len(hits)

	if len(sc.fields) > 0 {
		for i := range hits {
			var full map[string]any
			if err := elastic.JSON.Unmarshal(hits[i].Source, &full); err != nil {
				return nil, err
			}
			filtered := make(map[string]any, len(sc.fields))
			for _, f := range sc.fields {
				if v, ok := full[f]; ok {
					filtered[f] = v
				}
			}
			if hits[i].Source, err = elastic.JSON.Marshal(filtered); err != nil {
				return nil, err
			}
		}
	}
	return elastic.NewSearchResult(res.Total(), hits), nil
}

func (sc *scroll) Clear(context.Context) error {
	sc.offset = 0
	return nil
}

func (sc *scroll) FetchSourceContext(includeFields []string) elastic.ScrollService {
	sc.fields = includeFields
	return sc
}

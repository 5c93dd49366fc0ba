package v7

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/olivere/elastic/v7"

	store "github.com/pteich/elastic-sample-data/elastic"
)

// Client implements the store contract on olivere/elastic for 7.x clusters.
type Client struct {
	client *elastic.Client
	url    string
}

var _ store.Store = (*Client)(nil)

type ClientOptionFunc = elastic.ClientOptionFunc

type ScrollService struct {
	scroll *elastic.ScrollService
}

func NewClient(url string, esOpts []elastic.ClientOptionFunc) (*Client, error) {
	opts := append([]elastic.ClientOptionFunc{elastic.SetURL(url)}, esOpts...)
	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, url: url}, nil
}

// query adapts a store query to the olivere Query interface.
type query struct {
	q store.Query
}

func (q query) Source() (interface{}, error) {
	if q.q == nil {
		return store.NewMatchAllQuery().Build(), nil
	}
	return q.q.Build(), nil
}

// convertError maps olivere errors to *store.StatusError.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	var e *elastic.Error
	if errors.As(err, &e) {
		se := &store.StatusError{Status: e.Status}
		if e.Details != nil {
			se.Type = e.Details.Type
			se.Reason = e.Details.Reason
		}
		return se
	}
	return err
}

func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.client.Ping(c.url).Do(ctx)
	return convertError(err)
}

func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	ok, err := c.client.IndexExists(index).Do(ctx)
	return ok, convertError(err)
}

func (c *Client) CreateIndex(ctx context.Context, index string) error {
	_, err := c.client.CreateIndex(index).Do(ctx)
	return convertError(err)
}

func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	_, err := c.client.DeleteIndex(index).Do(ctx)
	return convertError(err)
}

func (c *Client) Refresh(ctx context.Context, index string) error {
	_, err := c.client.Refresh(index).Do(ctx)
	return convertError(err)
}

func (c *Client) Index(ctx context.Context, index, id string, doc any, opts ...store.WriteOption) (*store.WriteResult, error) {
	o := store.ApplyWriteOptions(opts)

	svc := c.client.Index().Index(index).BodyJson(doc)
	if id != "" {
		svc = svc.Id(id)
	}
	if o.OpType != "" {
		svc = svc.OpType(o.OpType)
	}
	if o.IfSeqNo != nil {
		svc = svc.IfSeqNo(*o.IfSeqNo)
	}
	if o.IfPrimaryTerm != nil {
		svc = svc.IfPrimaryTerm(*o.IfPrimaryTerm)
	}
	if r := o.RefreshParam(); r != "" {
		svc = svc.Refresh(r)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	return &store.WriteResult{
		Index:       res.Index,
		ID:          res.Id,
		Version:     res.Version,
		Result:      res.Result,
		SeqNo:       res.SeqNo,
		PrimaryTerm: res.PrimaryTerm,
	}, nil
}

func (c *Client) Get(ctx context.Context, index, id string) (*store.GetResult, error) {
	res, err := c.client.Get().Index(index).Id(id).Do(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	if !res.Found {
		return nil, &store.StatusError{Status: http.StatusNotFound}
	}

	result := &store.GetResult{
		Index:  res.Index,
		ID:     res.Id,
		Found:  res.Found,
		Source: res.Source,
	}
	if res.Version != nil {
		result.Version = *res.Version
	}
	if res.SeqNo != nil {
		result.SeqNo = *res.SeqNo
	}
	if res.PrimaryTerm != nil {
		result.PrimaryTerm = *res.PrimaryTerm
	}
	return result, nil
}

func (c *Client) Exists(ctx context.Context, index, id string) (bool, error) {
	ok, err := c.client.Exists().Index(index).Id(id).Do(ctx)
	return ok, convertError(err)
}

func (c *Client) Update(ctx context.Context, index, id string, partial any, opts ...store.WriteOption) (*store.WriteResult, error) {
	o := store.ApplyWriteOptions(opts)

	svc := c.client.Update().Index(index).Id(id).Doc(partial)
	if o.IfSeqNo != nil {
		svc = svc.IfSeqNo(*o.IfSeqNo)
	}
	if o.IfPrimaryTerm != nil {
		svc = svc.IfPrimaryTerm(*o.IfPrimaryTerm)
	}
	if r := o.RefreshParam(); r != "" {
		svc = svc.Refresh(r)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	return &store.WriteResult{
		Index:       res.Index,
		ID:          res.Id,
		Version:     res.Version,
		Result:      res.Result,
		SeqNo:       res.SeqNo,
		PrimaryTerm: res.PrimaryTerm,
	}, nil
}

func (c *Client) Delete(ctx context.Context, index, id string, opts ...store.WriteOption) (*store.WriteResult, error) {
	o := store.ApplyWriteOptions(opts)

	svc := c.client.Delete().Index(index).Id(id)
	if o.IfSeqNo != nil {
		svc = svc.IfSeqNo(*o.IfSeqNo)
	}
	if o.IfPrimaryTerm != nil {
		svc = svc.IfPrimaryTerm(*o.IfPrimaryTerm)
	}
	if r := o.RefreshParam(); r != "" {
		svc = svc.Refresh(r)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	return &store.WriteResult{
		Index:       res.Index,
		ID:          res.Id,
		Version:     res.Version,
		Result:      res.Result,
		SeqNo:       res.SeqNo,
		PrimaryTerm: res.PrimaryTerm,
	}, nil
}

func (c *Client) Search(ctx context.Context, index string, q store.Query, size int) (*store.SearchResult, error) {
	res, err := c.client.Search(index).Query(query{q: q}).Size(size).Do(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	return convertSearchResult(res), nil
}

func (c *Client) DeleteByQuery(ctx context.Context, index string, q store.Query, opts ...store.WriteOption) (int64, error) {
	o := store.ApplyWriteOptions(opts)

	svc := c.client.DeleteByQuery(index).Query(query{q: q})
	if r := o.RefreshParam(); r != "" {
		svc = svc.Refresh(r)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return 0, convertError(err)
	}
	if len(res.Failures) > 0 {
		f := res.Failures[0]
		return res.Deleted, &store.StatusError{Status: f.Status, Reason: "delete by query failed for " + f.Id}
	}
	return res.Deleted, nil
}

func (c *Client) Bulk(ctx context.Context, index string, actions []store.BulkAction, opts ...store.WriteOption) (*store.BulkResult, error) {
	if len(actions) == 0 {
		return &store.BulkResult{}, nil
	}
	o := store.ApplyWriteOptions(opts)

	svc := c.client.Bulk().Index(index)
	for _, a := range actions {
		switch a.Op {
		case store.BulkOpDelete:
			svc = svc.Add(elastic.NewBulkDeleteRequest().Index(index).Id(a.ID))
		case store.BulkOpUpdate:
			svc = svc.Add(elastic.NewBulkUpdateRequest().Index(index).Id(a.ID).Doc(a.Doc))
		case store.BulkOpIndex, store.BulkOpCreate:
			req := elastic.NewBulkIndexRequest().Index(index).OpType(string(a.Op)).Doc(a.Doc)
			if a.ID != "" {
				req = req.Id(a.ID)
			}
			svc = svc.Add(req)
		default:
			return nil, errors.New("unsupported bulk operation " + string(a.Op))
		}
	}
	if r := o.RefreshParam(); r != "" {
		svc = svc.Refresh(r)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, convertError(err)
	}

	result := &store.BulkResult{
		Took:   int64(res.Took),
		Errors: res.Errors,
	}
	for _, entry := range res.Items {
		for op, item := range entry {
			bi := store.BulkItem{
				Op:          store.BulkOp(op),
				Index:       item.Index,
				ID:          item.Id,
				Version:     item.Version,
				Result:      item.Result,
				Status:      item.Status,
				SeqNo:       item.SeqNo,
				PrimaryTerm: item.PrimaryTerm,
			}
			if item.Error != nil {
				bi.Error = &store.BulkError{Type: item.Error.Type, Reason: item.Error.Reason}
			}
			result.Items = append(result.Items, bi)
		}
	}
	return result, nil
}

func (c *Client) Scroll(index string, size int, q store.Query) store.ScrollService {
	return &ScrollService{
		scroll: c.client.Scroll(index).Size(size).Query(query{q: q}),
	}
}

func (c *Client) Stop() {
	c.client.Stop()
}

func (s *ScrollService) Do(ctx context.Context) (*store.SearchResult, error) {
	results, err := s.scroll.Do(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	return convertSearchResult(results), nil
}

func (s *ScrollService) Clear(ctx context.Context) error {
	return s.scroll.Clear(ctx)
}

func (s *ScrollService) FetchSourceContext(includeFields []string) store.ScrollService {
	fsc := elastic.NewFetchSourceContext(true)
	for _, field := range includeFields {
		fsc.Include(field)
	}
	return &ScrollService{
		scroll: s.scroll.FetchSourceContext(fsc),
	}
}

func convertSearchResult(res *elastic.SearchResult) *store.SearchResult {
	if res == nil || res.Hits == nil {
		return store.NewSearchResult(0, nil)
	}

	var total int64
	if res.Hits.TotalHits != nil {
		total = res.Hits.TotalHits.Value
	}

	hits := make([]store.SearchHit, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		hits = append(hits, store.SearchHit{
			Index:  hit.Index,
			ID:     hit.Id,
			Source: hit.Source,
		})
	}
	return store.NewSearchResult(total, hits)
}

func SetHttpClient(httpClient *http.Client) elastic.ClientOptionFunc {
	return elastic.SetHttpClient(httpClient)
}

func SetSniff(enabled bool) elastic.ClientOptionFunc {
	return elastic.SetSniff(enabled)
}

func SetHealthcheckInterval(interval time.Duration) elastic.ClientOptionFunc {
	return elastic.SetHealthcheckInterval(interval)
}

func SetErrorLog(logger *log.Logger) elastic.ClientOptionFunc {
	return elastic.SetErrorLog(logger)
}

func SetTraceLog(logger *log.Logger) elastic.ClientOptionFunc {
	return elastic.SetTraceLog(logger)
}

func SetBasicAuth(username, password string) elastic.ClientOptionFunc {
	return elastic.SetBasicAuth(username, password)
}

func SetHealthcheck(enabled bool) elastic.ClientOptionFunc {
	return elastic.SetHealthcheck(enabled)
}

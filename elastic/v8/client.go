package v8

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/pteich/elastic-sample-data/elastic"
)

// Client implements elastic.Store on the official v8 client.
type Client struct {
	client *elasticsearch.Client
}

var _ elastic.Store = (*Client)(nil)

type ScrollService struct {
	client        *elasticsearch.Client
	index         string
	size          int
	query         elastic.Query
	includeFields []string
	scrollID      string
	scrollTime    time.Duration
}

func NewClient(cfg elasticsearch.Config) (*Client, error) {
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

// NewConfig builds the client configuration. logger may be nil.
func NewConfig(url, username, password string, httpClient *http.Client, logger elastictransport.Logger) elasticsearch.Config {
	cfg := elasticsearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
		Transport: httpClient.Transport,
	}
	if logger != nil {
		cfg.Logger = logger
	}
	return cfg
}

// do runs req and turns error responses into *elastic.StatusError.
func (c *Client) do(ctx context.Context, req esapi.Request) (*esapi.Response, error) {
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		defer closeBody(res)
		return nil, elastic.NewStatusError(res.StatusCode, res.Body)
	}
	return res, nil
}

func closeBody(res *esapi.Response) {
	if res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}
}

func (c *Client) Ping(ctx context.Context) error {
	res, err := c.do(ctx, esapi.PingRequest{})
	if err != nil {
		return err
	}
	closeBody(res)
	return nil
}

func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, c.client)
	if err != nil {
		return false, err
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, elastic.NewStatusError(res.StatusCode, res.Body)
	}
}

func (c *Client) CreateIndex(ctx context.Context, index string) error {
	res, err := c.do(ctx, esapi.IndicesCreateRequest{Index: index})
	if err != nil {
		return err
	}
	closeBody(res)
	return nil
}

func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	res, err := c.do(ctx, esapi.IndicesDeleteRequest{Index: []string{index}})
	if err != nil {
		return err
	}
	closeBody(res)
	return nil
}

func (c *Client) Refresh(ctx context.Context, index string) error {
	res, err := c.do(ctx, esapi.IndicesRefreshRequest{Index: []string{index}})
	if err != nil {
		return err
	}
	closeBody(res)
	return nil
}

func (c *Client) Index(ctx context.Context, index, id string, doc any, opts ...elastic.WriteOption) (*elastic.WriteResult, error) {
	o := elastic.ApplyWriteOptions(opts)

	body, err := elastic.JSON.Marshal(doc)
	if err != nil {
		return nil, err
	}

	req := esapi.IndexRequest{
		Index:         index,
		DocumentID:    id,
		Body:          bytes.NewReader(body),
		OpType:        o.OpType,
		IfSeqNo:       intPtr(o.IfSeqNo),
		IfPrimaryTerm: intPtr(o.IfPrimaryTerm),
		Refresh:       o.RefreshParam(),
	}

	res, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	return elastic.DecodeWrite(res.Body)
}

func (c *Client) Get(ctx context.Context, index, id string) (*elastic.GetResult, error) {
	res, err := c.do(ctx, esapi.GetRequest{Index: index, DocumentID: id})
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	return elastic.DecodeGet(res.Body)
}

func (c *Client) Exists(ctx context.Context, index, id string) (bool, error) {
	res, err := esapi.ExistsRequest{Index: index, DocumentID: id}.Do(ctx, c.client)
	if err != nil {
		return false, err
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, elastic.NewStatusError(res.StatusCode, res.Body)
	}
}

func (c *Client) Update(ctx context.Context, index, id string, partial any, opts ...elastic.WriteOption) (*elastic.WriteResult, error) {
	o := elastic.ApplyWriteOptions(opts)

	body, err := elastic.JSON.Marshal(map[string]any{"doc": partial})
	if err != nil {
		return nil, err
	}

	req := esapi.UpdateRequest{
		Index:         index,
		DocumentID:    id,
		Body:          bytes.NewReader(body),
		IfSeqNo:       intPtr(o.IfSeqNo),
		IfPrimaryTerm: intPtr(o.IfPrimaryTerm),
		Refresh:       o.RefreshParam(),
	}

	res, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	return elastic.DecodeWrite(res.Body)
}

func (c *Client) Delete(ctx context.Context, index, id string, opts ...elastic.WriteOption) (*elastic.WriteResult, error) {
	o := elastic.ApplyWriteOptions(opts)

	req := esapi.DeleteRequest{
		Index:         index,
		DocumentID:    id,
		IfSeqNo:       intPtr(o.IfSeqNo),
		IfPrimaryTerm: intPtr(o.IfPrimaryTerm),
		Refresh:       o.RefreshParam(),
	}

	res, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	return elastic.DecodeWrite(res.Body)
}

func (c *Client) Search(ctx context.Context, index string, query elastic.Query, size int) (*elastic.SearchResult, error) {
	buf, err := elastic.EncodeQueryBody(query, nil)
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  buf,
		Size:  &size,
	}

	res, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	result, _, err := elastic.DecodeSearch(res.Body)
	return result, err
}

func (c *Client) DeleteByQuery(ctx context.Context, index string, query elastic.Query, opts ...elastic.WriteOption) (int64, error) {
	o := elastic.ApplyWriteOptions(opts)

	buf, err := elastic.EncodeQueryBody(query, nil)
	if err != nil {
		return 0, err
	}

	req := esapi.DeleteByQueryRequest{
		Index: []string{index},
		Body:  buf,
	}
	if o.Refresh {
		req.Refresh = &o.Refresh
	}

	res, err := c.do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer closeBody(res)

	return elastic.DecodeDeleteByQuery(res.Body)
}

func (c *Client) Bulk(ctx context.Context, index string, actions []elastic.BulkAction, opts ...elastic.WriteOption) (*elastic.BulkResult, error) {
	if len(actions) == 0 {
		return &elastic.BulkResult{}, nil
	}
	o := elastic.ApplyWriteOptions(opts)

	buf, err := elastic.EncodeBulk(index, actions)
	if err != nil {
		return nil, err
	}

	req := esapi.BulkRequest{
		Index:   index,
		Body:    buf,
		Refresh: o.RefreshParam(),
	}

	res, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	return elastic.DecodeBulk(res.Body)
}

func (c *Client) Scroll(index string, size int, query elastic.Query) elastic.ScrollService {
	return &ScrollService{
		client:     c.client,
		index:      index,
		size:       size,
		query:      query,
		scrollTime: 5 * time.Minute,
	}
}

func (c *Client) Stop() {}

func (s *ScrollService) Do(ctx context.Context) (*elastic.SearchResult, error) {
	var res *esapi.Response
	var err error

	if s.scrollID == "" {
		buf, encErr := elastic.EncodeQueryBody(s.query, s.includeFields)
		if encErr != nil {
			return nil, encErr
		}

		req := esapi.SearchRequest{
			Index:  []string{s.index},
			Size:   &s.size,
			Scroll: s.scrollTime,
			Body:   buf,
		}
		res, err = req.Do(ctx, s.client)
	} else {
		req := esapi.ScrollRequest{
			ScrollID: s.scrollID,
			Scroll:   s.scrollTime,
		}
		res, err = req.Do(ctx, s.client)
	}

	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, elastic.NewStatusError(res.StatusCode, res.Body)
	}

	result, scrollID, err := elastic.DecodeSearch(res.Body)
	if err != nil {
		return nil, err
	}
	if scrollID != "" {
		s.scrollID = scrollID
	}

	if len(result.Hits()) == 0 {
		return nil, io.EOF
	}

	return result, nil
}

func (s *ScrollService) Clear(ctx context.Context) error {
	if s.scrollID == "" {
		return nil
	}

	req := esapi.ClearScrollRequest{
		ScrollID: []string{s.scrollID},
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	closeBody(res)

	s.scrollID = ""
	return nil
}

func (s *ScrollService) FetchSourceContext(includeFields []string) elastic.ScrollService {
	s.includeFields = includeFields
	return s
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

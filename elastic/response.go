package elastic

import (
	"io"
)

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []SearchHit `json:"hits"`
	} `json:"hits"`
}

// DecodeSearch parses a search or scroll response body and returns the
// result together with the scroll id, if any.
func DecodeSearch(body io.Reader) (*SearchResult, string, error) {
	var resp searchResponse
	if err := JSON.NewDecoder(body).Decode(&resp); err != nil {
		return nil, "", err
	}
	return NewSearchResult(resp.Hits.Total.Value, resp.Hits.Hits), resp.ScrollID, nil
}

// DecodeDeleteByQuery returns the number of deleted documents.
func DecodeDeleteByQuery(body io.Reader) (int64, error) {
	var resp struct {
		Deleted  int64 `json:"deleted"`
		Failures []struct {
			ID    string `json:"id"`
			Cause struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"cause"`
			Status int `json:"status"`
		} `json:"failures"`
	}
	if err := JSON.NewDecoder(body).Decode(&resp); err != nil {
		return 0, err
	}
	if len(resp.Failures) > 0 {
		f := resp.Failures[0]
		return resp.Deleted, &StatusError{Status: f.Status, Type: f.Cause.Type, Reason: f.Cause.Reason}
	}
	return resp.Deleted, nil
}

func DecodeWrite(body io.Reader) (*WriteResult, error) {
	var res WriteResult
	if err := JSON.NewDecoder(body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

func DecodeGet(body io.Reader) (*GetResult, error) {
	var res GetResult
	if err := JSON.NewDecoder(body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

package elastic

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
)

type BulkOp string

const (
	BulkOpIndex  BulkOp = "index"
	BulkOpCreate BulkOp = "create"
	BulkOpUpdate BulkOp = "update"
	BulkOpDelete BulkOp = "delete"
)

// BulkAction is one directive of a bulk request.
type BulkAction struct {
	Op  BulkOp
	ID  string
	Doc any
}

func BulkIndex(id string, doc any) BulkAction {
	return BulkAction{Op: BulkOpIndex, ID: id, Doc: doc}
}

func BulkCreate(id string, doc any) BulkAction {
	return BulkAction{Op: BulkOpCreate, ID: id, Doc: doc}
}

// BulkUpdate merges partial into the document with the given id.
func BulkUpdate(id string, partial any) BulkAction {
	return BulkAction{Op: BulkOpUpdate, ID: id, Doc: partial}
}

func BulkDelete(id string) BulkAction {
	return BulkAction{Op: BulkOpDelete, ID: id}
}

type BulkItem struct {
	Op          BulkOp     `json:"-"`
	Index       string     `json:"_index"`
	ID          string     `json:"_id"`
	Version     int64      `json:"_version"`
	Result      string     `json:"result"`
	Status      int        `json:"status"`
	SeqNo       int64      `json:"_seq_no"`
	PrimaryTerm int64      `json:"_primary_term"`
	Error       *BulkError `json:"error,omitempty"`
}

type BulkError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Failed reports whether the item carries an error. A delete of an absent id
// answers 404 without an error and does not count as failed.
func (i BulkItem) Failed() bool {
	return i.Error != nil
}

func (i BulkItem) Err() error {
	if !i.Failed() {
		return nil
	}
	se := &StatusError{Status: i.Status}
	if i.Error != nil {
		se.Type, se.Reason = i.Error.Type, i.Error.Reason
	}
	return fmt.Errorf("%s %s: %w", i.Op, i.ID, se)
}

type BulkResult struct {
	Took   int64
	Errors bool
	Items  []BulkItem
}

func (r *BulkResult) Failed() []BulkItem {
	var failed []BulkItem
	for _, item := range r.Items {
		if item.Failed() {
			failed = append(failed, item)
		}
	}
	return failed
}

// Err combines the errors of all failed items, or returns nil if every
// item succeeded.
func (r *BulkResult) Err() error {
	var result *multierror.Error
	for _, item := range r.Failed() {
		result = multierror.Append(result, item.Err())
	}
	return result.ErrorOrNil()
}

// EncodeBulk renders actions as the newline delimited body of the bulk API.
func EncodeBulk(index string, actions []BulkAction) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := JSON.NewEncoder(&buf)

	for _, a := range actions {
		meta := map[string]string{"_index": index}
		if a.ID != "" {
			meta["_id"] = a.ID
		}
		if err := enc.Encode(map[string]any{string(a.Op): meta}); err != nil {
			return nil, err
		}

		switch a.Op {
		case BulkOpDelete:
		case BulkOpUpdate:
			if err := enc.Encode(map[string]any{"doc": a.Doc}); err != nil {
				return nil, err
			}
		case BulkOpIndex, BulkOpCreate:
			if err := enc.Encode(a.Doc); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unsupported bulk operation %q", a.Op)
		}
	}

	return &buf, nil
}

type bulkResponse struct {
	Took   int64                 `json:"took"`
	Errors bool                  `json:"errors"`
	Items  []map[string]BulkItem `json:"items"`
}

// DecodeBulk parses a bulk API response body.
func DecodeBulk(body io.Reader) (*BulkResult, error) {
	var resp bulkResponse
	if err := JSON.NewDecoder(body).Decode(&resp); err != nil {
		return nil, err
	}

	result := &BulkResult{
		Took:   resp.Took,
		Errors: resp.Errors,
		Items:  make([]BulkItem, 0, len(resp.Items)),
	}
	for _, entry := range resp.Items {
		for op, item := range entry {
			item.Op = BulkOp(op)
			result.Items = append(result.Items, item)
		}
	}

	return result, nil
}

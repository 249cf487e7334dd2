package feishu

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/alekspetrov/dobby/internal/taskstore"
)

const searchPageSize = 500

// BitableStore is a taskstore.RecordStore backed by a Bitable table.
type BitableStore struct {
	client   *Client
	appToken string
	tableID  string
}

// NewBitableStore creates a store for the table in cfg.
func NewBitableStore(client *Client, cfg *BitableConfig) *BitableStore {
	return &BitableStore{client: client, appToken: cfg.AppToken, tableID: cfg.TableID}
}

func (s *BitableStore) recordsPath() string {
	return "/bitable/v1/apps/" + url.PathEscape(s.appToken) + "/tables/" + url.PathEscape(s.tableID) + "/records"
}

// Create inserts a record.
func (s *BitableStore) Create(ctx context.Context, fields taskstore.Fields) (string, error) {
	var out struct {
		Record struct {
			RecordID string `json:"record_id"`
		} `json:"record"`
	}
	err := s.client.call(ctx, "create record", http.MethodPost, s.recordsPath(), nil,
		map[string]any{"fields": fields}, &out)
	if err != nil {
		return "", err
	}
	return out.Record.RecordID, nil
}

// Search pages through the whole table. No server-side filter is sent.
func (s *BitableStore) Search(ctx context.Context) ([]taskstore.Record, error) {
	var records []taskstore.Record
	pageToken := ""

	for {
		q := url.Values{"page_size": {strconv.Itoa(searchPageSize)}}
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}

		var out struct {
			Items []struct {
				RecordID string           `json:"record_id"`
				Fields   taskstore.Fields `json:"fields"`
			} `json:"items"`
			HasMore   bool   `json:"has_more"`
			PageToken string `json:"page_token"`
		}
		if err := s.client.call(ctx, "search records", http.MethodPost, s.recordsPath()+"/search", q,
			map[string]any{}, &out); err != nil {
			return nil, err
		}

		for _, item := range out.Items {
			records = append(records, taskstore.Record{ID: item.RecordID, Fields: item.Fields})
		}
		if !out.HasMore || out.PageToken == "" {
			return records, nil
		}
		pageToken = out.PageToken
	}
}

// Update overwrites the given columns of a record.
func (s *BitableStore) Update(ctx context.Context, id string, fields taskstore.Fields) error {
	return s.client.call(ctx, "update record", http.MethodPut, s.recordsPath()+"/"+url.PathEscape(id), nil,
		map[string]any{"fields": fields}, nil)
}

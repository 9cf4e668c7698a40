package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"

	"github.com/tidwall/gjson"
)

// maxPages bounds record pagination.
const maxPages = 50

var errNoAirtableKey = errors.New("airtable API key not configured")

type tableArgs struct {
	BaseID  string `json:"base_id"`
	TableID string `json:"table_id"`
}

type updateArgs struct {
	tableArgs
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// getRecords returns every record of an Airtable table as a JSON array.
func (t *Toolbox) getRecords(ctx context.Context, arguments string) (string, error) {
	var args tableArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return "", err
	}
	if err := required(map[string]string{"base_id": args.BaseID, "table_id": args.TableID}); err != nil {
		return "", err
	}

	records := []json.RawMessage{}
	offset := ""
	for page := 0; page < maxPages; page++ {
		endpoint := t.tableURL(args)
		if offset != "" {
			endpoint += "?offset=" + neturl.QueryEscape(offset)
		}
		body, err := t.airtableCall(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return "", err
		}
		for _, r := range gjson.GetBytes(body, "records").Array() {
			records = append(records, json.RawMessage(r.Raw))
		}
		offset = gjson.GetBytes(body, "offset").String()
		if offset == "" {
			break
		}
	}

	out, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}
	return string(out), nil
}

// updateRecord patches the fields of one Airtable record.
func (t *Toolbox) updateRecord(ctx context.Context, arguments string) (string, error) {
	var args updateArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return "", err
	}
	if err := required(map[string]string{"base_id": args.BaseID, "table_id": args.TableID, "id": args.ID}); err != nil {
		return "", err
	}
	if len(args.Fields) == 0 {
		return "", errors.New("missing required argument(s): fields")
	}

	payload, err := json.Marshal(map[string]any{
		"records": []map[string]any{{"id": args.ID, "fields": args.Fields}},
	})
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	body, err := t.airtableCall(ctx, http.MethodPatch, t.tableURL(args.tableArgs), payload)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (t *Toolbox) tableURL(args tableArgs) string {
	return fmt.Sprintf("%s/%s/%s", t.cfg.AirtableURL, neturl.PathEscape(args.BaseID), neturl.PathEscape(args.TableID))
}

func (t *Toolbox) airtableCall(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	if t.cfg.AirtableKey == "" {
		return nil, errNoAirtableKey
	}
	if err := t.airtable.Wait(ctx); err != nil {
		return nil, fmt.Errorf("airtable rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.AirtableKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	body, err := t.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("airtable %s: %w", method, err)
	}
	return body, nil
}

package supabase

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ============================================================
// PostgREST helpers for GET, POST, PATCH, DELETE and RPC
// ============================================================

func (c *Client) restURL(path string) string {
	return fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
}

func prefer(v string) http.Header {
	return http.Header{"Prefer": []string{v}}
}

func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	return c.send(ctx, method, c.restURL(path), nil, prefer("return=representation"))
}

func (c *Client) doPost(ctx context.Context, table string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPost, c.restURL(table), data, prefer("return=representation"))
}

func (c *Client) doUpsert(ctx context.Context, table, onConflict string, data any) ([]byte, error) {
	path := table + "?" + url.Values{"on_conflict": {onConflict}}.Encode()
	return c.send(ctx, http.MethodPost, c.restURL(path), data, prefer("resolution=merge-duplicates,return=representation"))
}

// doPatch returns the updated rows; an empty array means no row matched.
func (c *Client) doPatch(ctx context.Context, path string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPatch, c.restURL(path), data, prefer("return=representation"))
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	_, err := c.send(ctx, http.MethodDelete, c.restURL(path), nil, prefer("return=minimal"))
	return err
}

func (c *Client) doRPC(ctx context.Context, fn string, args any) ([]byte, error) {
	return c.send(ctx, http.MethodPost, c.restURL("rpc/"+fn), args, nil)
}

// query builds "table?filters" from PostgREST filter pairs.
func query(table string, filters url.Values) string {
	if len(filters) == 0 {
		return table
	}
	return table + "?" + filters.Encode()
}

func eq(v string) string { return "eq." + v }

func empty(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || string(trimmed) == "[]" || string(trimmed) == "null"
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

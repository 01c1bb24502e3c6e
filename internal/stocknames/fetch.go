package stocknames

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPSource implements Fetcher against a JSON name endpoint.
//
// BulkURL must return the full listing as [{"code": "...", "name": "..."}];
// LookupURL resolves one code via a "code" query parameter and returns a
// single such object.
type HTTPSource struct {
	BulkURL   string
	LookupURL string
	Client    *http.Client
}

type nameRow struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (s *HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (s *HTTPSource) BulkNames(ctx context.Context) (map[string]string, error) {
	if s.BulkURL == "" {
		return nil, fmt.Errorf("bulk url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BulkURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bulk name fetch: unexpected status %s", resp.Status)
	}

	var rows []nameRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("bulk name fetch: decode: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.Code != "" && r.Name != "" {
			out[r.Code] = r.Name
		}
	}
	return out, nil
}

func (s *HTTPSource) Name(ctx context.Context, code string) (string, error) {
	if s.LookupURL == "" {
		return "", fmt.Errorf("lookup url not configured")
	}
	u, err := url.Parse(s.LookupURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("name lookup %s: unexpected status %s", code, resp.Status)
	}

	var row nameRow
	if err := json.NewDecoder(resp.Body).Decode(&row); err != nil {
		return "", fmt.Errorf("name lookup %s: decode: %w", code, err)
	}
	return row.Name, nil
}

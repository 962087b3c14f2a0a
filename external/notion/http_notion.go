package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	notionpkg "github.com/foxseedlab/mimamorin/internal/notion"
)

const (
	defaultBaseURL   = "https://api.notion.com"
	notionAPIVersion = "2022-06-28"
	defaultPageSize  = 50
)

type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(token string) *HTTPClient {
	return &HTTPClient{
		baseURL: defaultBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewHTTPClientWithBaseURL exists for tests that point the client at a local
// httptest server.
func NewHTTPClientWithBaseURL(token, baseURL string) *HTTPClient {
	c := NewHTTPClient(token)
	c.baseURL = baseURL
	return c
}

type queryPayload struct {
	PageSize int             `json:"page_size,omitempty"`
	Filter   *queryFilter    `json:"filter,omitempty"`
	Sorts    []querySortSpec `json:"sorts,omitempty"`
}

type queryFilter struct {
	Property string            `json:"property"`
	Date     *queryDateFilter  `json:"date,omitempty"`
	Title    *queryTitleFilter `json:"title,omitempty"`
}

type queryDateFilter struct {
	OnOrAfter string `json:"on_or_after"`
}

type queryTitleFilter struct {
	Equals string `json:"equals"`
}

type querySortSpec struct {
	Timestamp string `json:"timestamp"`
	Direction string `json:"direction"`
}

func (c *HTTPClient) QueryDatabase(ctx context.Context, databaseID string, q notionpkg.Query) ([]notionpkg.Row, error) {
	payload := queryPayload{PageSize: q.PageSize}
	if payload.PageSize == 0 {
		payload.PageSize = defaultPageSize
	}
	if q.DateOnOrAfter != "" {
		payload.Filter = &queryFilter{
			Property: q.DateProperty,
			Date:     &queryDateFilter{OnOrAfter: q.DateOnOrAfter},
		}
	}
	if q.TitleEquals != "" {
		payload.Filter = &queryFilter{
			Property: q.TitleProperty,
			Title:    &queryTitleFilter{Equals: q.TitleEquals},
		}
	}
	if q.SortLatest {
		payload.Sorts = []querySortSpec{{Timestamp: "last_edited_time", Direction: "descending"}}
	}

	url := fmt.Sprintf("%s/v1/databases/%s/query", c.baseURL, databaseID)
	body, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, err
	}

	var decoded queryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode notion query response: %w", err)
	}
	rows := make([]notionpkg.Row, 0, len(decoded.Results))
	for _, w := range decoded.Results {
		rows = append(rows, w.normalize())
	}
	return rows, nil
}

func (c *HTTPClient) UpdatePageDate(ctx context.Context, pageID, dateProperty string, start, end time.Time) error {
	payload := map[string]any{
		"properties": map[string]any{
			dateProperty: map[string]any{
				"date": map[string]string{
					"start": start.Format(time.RFC3339),
					"end":   end.Format(time.RFC3339),
				},
			},
		},
	}
	url := fmt.Sprintf("%s/v1/pages/%s", c.baseURL, pageID)
	_, err := c.do(ctx, http.MethodPatch, url, payload)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", notionAPIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("notion api returned status %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

type queryResponse struct {
	Results []wireRow `json:"results"`
}

type wireRow struct {
	ID         string                  `json:"id"`
	Properties map[string]wireProperty `json:"properties"`
}

type wireProperty struct {
	Type        string       `json:"type"`
	Date        *wireDate    `json:"date"`
	Select      *wireOption  `json:"select"`
	MultiSelect []wireOption `json:"multi_select"`
	Status      *wireOption  `json:"status"`
	Relation    []wireRef    `json:"relation"`
	Title       []wireText   `json:"title"`
	RichText    []wireText   `json:"rich_text"`
}

type wireRef struct {
	ID string `json:"id"`
}

type wireDate struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type wireOption struct {
	Name string `json:"name"`
}

type wireText struct {
	PlainText string `json:"plain_text"`
}

func (w wireRow) normalize() notionpkg.Row {
	row := notionpkg.Row{
		ID:         w.ID,
		Properties: make(map[string]notionpkg.Property, len(w.Properties)),
	}
	for name, p := range w.Properties {
		row.Properties[name] = normalizeProperty(p)
	}
	return row
}

// normalizeProperty is the single place where the provider's property
// variants are collapsed into the canonical Property shape.
func normalizeProperty(p wireProperty) notionpkg.Property {
	out := notionpkg.Property{Type: p.Type}
	switch p.Type {
	case "date":
		if p.Date != nil {
			out.Date = &notionpkg.DateValue{Start: p.Date.Start, End: p.Date.End}
		}
	case "status":
		if p.Status != nil && p.Status.Name != "" {
			out.Options = []string{p.Status.Name}
		}
	case "select":
		if p.Select != nil && p.Select.Name != "" {
			out.Options = []string{p.Select.Name}
		}
	case "multi_select":
		for _, o := range p.MultiSelect {
			if o.Name != "" {
				out.Options = append(out.Options, o.Name)
			}
		}
	case "relation":
		for _, ref := range p.Relation {
			if ref.ID != "" {
				out.Options = append(out.Options, ref.ID)
			}
		}
	case "title":
		out.Text = joinPlainText(p.Title)
	case "rich_text":
		out.Text = joinPlainText(p.RichText)
	}
	return out
}

func joinPlainText(parts []wireText) string {
	var buf bytes.Buffer
	for _, part := range parts {
		buf.WriteString(part.PlainText)
	}
	return buf.String()
}

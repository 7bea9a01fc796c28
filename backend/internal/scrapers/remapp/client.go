// backend/internal/scrapers/remapp/client.go
package remapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

const (
	// DefaultListURL is the public paged project list.
	DefaultListURL = "https://my.remapp.ae/api/project/public/list"
	// DefaultDetailURL returns one project's detail.
	DefaultDetailURL = "https://my.remapp.ae/api/project/details"
	// DefaultLoginURL exchanges username and password for a bearer token.
	DefaultLoginURL = "https://my.remapp.ae/api/login"

	defaultUserAgent = "Mozilla/5.0"
	maxBodyBytes     = 32 << 20
	maxErrorBody     = 512
)

// Endpoints groups the three upstream URLs.
type Endpoints struct {
	List   string
	Detail string
	Login  string
}

// Client talks to the REMApp project API.
type Client struct {
	http      *http.Client
	endpoints Endpoints
	userAgent string
}

// NewClient creates a client. A zero timeout leaves the http.Client default.
func NewClient(endpoints Endpoints, userAgent string, timeout time.Duration) *Client {
	if endpoints.List == "" {
		endpoints.List = DefaultListURL
	}
	if endpoints.Detail == "" {
		endpoints.Detail = DefaultDetailURL
	}
	if endpoints.Login == "" {
		endpoints.Login = DefaultLoginURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		endpoints: endpoints,
		userAgent: userAgent,
	}
}

type listPayload struct {
	Data json.RawMessage `json:"data"`
}

type listData struct {
	Data    []any `json:"data"`
	Total   any   `json:"total"`
	PerPage any   `json:"per_page"`
}

// FetchPage requests one page of the public list. token may be empty.
func (c *Client) FetchPage(ctx context.Context, page int, token string) (domain.Page, error) {
	body, err := c.post(ctx, c.endpoints.List, map[string]any{"page": page}, c.siteHeaders(token))
	if err != nil {
		return domain.Page{}, err
	}

	result := domain.Page{Number: page}

	var payload listPayload
	if err := unmarshalNumbers(body, &payload); err != nil {
		return result, fmt.Errorf("remapp: decode list page %d: %w", page, err)
	}

	var data listData
	// data may be absent or not an object; both mean an empty page.
	if len(payload.Data) == 0 || unmarshalNumbers(payload.Data, &data) != nil {
		return result, nil
	}

	for _, item := range data.Data {
		if rec, ok := domain.AsRecord(item); ok {
			result.Projects = append(result.Projects, rec)
		}
	}

	total, okTotal := domain.AsInt(data.Total)
	perPage, okPer := domain.AsInt(data.PerPage)
	if okTotal && okPer && perPage > 0 {
		result.TotalPages = int((total + perPage - 1) / perPage)
	}

	return result, nil
}

// FetchDetail requests one detail by id when the ref has one, else by slug.
// It returns the decoded response document.
func (c *Client) FetchDetail(ctx context.Context, ref domain.ProjectRef, token string) (any, error) {
	payload := map[string]any{}
	switch {
	case ref.HasID:
		payload["fk_project_id"] = ref.ID
	case ref.Slug != "":
		payload["slug"] = ref.Slug
	default:
		return nil, domain.ErrInvalidRequest
	}

	body, err := c.post(ctx, c.endpoints.Detail, payload, c.siteHeaders(token))
	if err != nil {
		return nil, err
	}

	doc, err := domain.DecodeValue(body)
	if err != nil {
		return nil, fmt.Errorf("remapp: decode detail %s: %w", ref, err)
	}
	return doc, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
		"Device":       "2",
		"Origin":       "https://v3.remapp.ae",
		"Referer":      "https://v3.remapp.ae/",
		"User-Agent":   c.userAgent,
	}
	payload := map[string]any{
		"username":   username,
		"password":   password,
		"rememberMe": false,
	}

	body, err := c.post(ctx, c.endpoints.Login, payload, headers)
	if err != nil {
		return "", err
	}

	doc, err := domain.DecodeValue(body)
	if err != nil {
		return "", fmt.Errorf("remapp: decode login response: %w", err)
	}

	token, ok := ExtractToken(body)
	if !ok {
		var keys []string
		if obj, isObj := doc.(map[string]any); isObj {
			for k := range obj {
				keys = append(keys, k)
			}
			sort.Strings(keys)
		}
		return "", fmt.Errorf("remapp: login succeeded but no token found in response (top-level keys: %s)",
			strings.Join(keys, ", "))
	}
	return token, nil
}

func (c *Client) siteHeaders(token string) map[string]string {
	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
		"Origin":       "https://offplan.remapp.ae",
		"Referer":      "https://offplan.remapp.ae/",
		"User-Agent":   c.userAgent,
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return headers
}

func (c *Client) post(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("remapp: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("remapp: new request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remapp: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("remapp: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.HTTPError{
			StatusCode: resp.StatusCode,
			URL:        url,
			Body:       errorSnippet(resp.Header.Get("Content-Type"), body),
		}
	}

	return body, nil
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

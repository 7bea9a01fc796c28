package remapp_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
	"github.com/ps-vitor/offplan-sys/backend/internal/scrapers/remapp"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *remapp.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return remapp.NewClient(remapp.Endpoints{
		List:   server.URL + "/list",
		Detail: server.URL + "/details",
		Login:  server.URL + "/login",
	}, "", 0)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestClient_FetchPage(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body := decodeBody(t, r)
		assert.Equal(t, float64(2), body["page"])
		w.Write([]byte(`{"data":{"data":[{"id":12,"slug":"a"},{"id":11},"junk"],"total":45,"per_page":20}}`))
	})

	page, err := client.FetchPage(context.Background(), 2, "")
	require.NoError(t, err)
	require.Empty(t, gotAuth)
	require.Len(t, page.Projects, 2)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Number)

	id, ok := page.Projects[0].ID()
	require.True(t, ok)
	assert.Equal(t, int64(12), id)
}

func TestClient_FetchPage_NoPaginationHint(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"data":[{"id":1}],"total":"many"}}`))
	})

	page, err := client.FetchPage(context.Background(), 1, "tok")
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalPages)
	assert.False(t, page.IsLast())
}

func TestClient_FetchPage_DataNotObject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	page, err := client.FetchPage(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Empty(t, page.Projects)
}

func TestClient_FetchPage_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := client.FetchPage(context.Background(), 1, "tok")
	require.Error(t, err)
	assert.True(t, domain.IsAuthFailure(err))
	assert.Equal(t, http.StatusForbidden, domain.StatusCode(err))
}

func TestClient_FetchDetail_Payloads(t *testing.T) {
	var bodies []map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		bodies = append(bodies, decodeBody(t, r))
		w.Write([]byte(`{"data":{"id":99,"name":"Tower"}}`))
	})

	doc, err := client.FetchDetail(context.Background(), domain.ProjectRef{ID: 7, HasID: true, Slug: "tower"}, "")
	require.NoError(t, err)
	_, err = client.FetchDetail(context.Background(), domain.ProjectRef{Slug: "tower"}, "")
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]any{"fk_project_id": float64(7)}, bodies[0])
	assert.Equal(t, map[string]any{"slug": "tower"}, bodies[1])

	rec, ok := domain.AsRecord(doc.(map[string]any)["data"])
	require.True(t, ok)
	id, _ := rec.ID()
	assert.Equal(t, int64(99), id)
}

func TestClient_FetchDetail_MissingIdentifiers(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := client.FetchDetail(context.Background(), domain.ProjectRef{}, "")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Zero(t, calls)
}

func TestClient_Login(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.Header.Get("Device"))
		body := decodeBody(t, r)
		assert.Equal(t, "agent@example.com", body["username"])
		assert.Equal(t, "secret", body["password"])
		assert.Equal(t, false, body["rememberMe"])
		w.Write([]byte(`{"status":true,"data":{"user":{"name":"x"},"access_token":"abc123"}}`))
	})

	token, err := client.Login(context.Background(), "agent@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)
}

func TestClient_Login_NoToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"ok"}`))
	})

	_, err := client.Login(context.Background(), "u", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message, status")
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		want  string
		found bool
	}{
		{"top level", `{"token": "t1"}`, "t1", true},
		{"nested object", `{"data": {"jwt": "t2"}}`, "t2", true},
		{"inside array", `{"items": [{}, {"api_token": "t3"}]}`, "t3", true},
		{"empty string skipped", `{"token": "", "meta": {"access_token": "t4"}}`, "t4", true},
		{"nested before later top level", `{"user": {"token": "nested-first"}, "access_token": "top-later"}`, "nested-first", true},
		{"document order not alphabetical", `{"zeta": {"jwt": "z"}, "alpha": {"jwt": "a"}}`, "z", true},
		{"token key holding an object", `{"token": {"access_token": "t5"}}`, "t5", true},
		{"non-string skipped", `{"token": 12}`, "", false},
		{"scalar", `"token"`, "", false},
		{"null", `null`, "", false},
		{"malformed before token", `{"data": [1,`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := remapp.ExtractToken([]byte(tt.doc))
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_HTMLErrorPageIsSummarised(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `<!DOCTYPE html><html><head><title>Too Many Requests</title>
<style>body{color:red}</style></head>
<body>
<h1>Slow   down</h1>
<script>var x = 1;</script>
<p>Try again later.</p>
</body></html>`)
	})

	_, err := client.FetchDetail(context.Background(), domain.ProjectRef{ID: 1, HasID: true}, "")
	require.Error(t, err)
	assert.True(t, domain.IsRateLimited(err))

	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "Too Many Requests: Slow down Try again later.", httpErr.Body)
}

func TestClient_ErrorSnippetKeepsRunesWhole(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, strings.Repeat("a", 511)+"é and more")
	})

	_, err := client.FetchDetail(context.Background(), domain.ProjectRef{Slug: "x"}, "")
	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.True(t, utf8.ValidString(httpErr.Body))
	assert.Equal(t, strings.Repeat("a", 511), httpErr.Body)
}

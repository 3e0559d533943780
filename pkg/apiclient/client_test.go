package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method      string
	path        string
	query       url.Values
	contentType string
	header      http.Header
	body        []byte
}

func server(t *testing.T, status int, contentType, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.EscapedPath()
		got.query = r.URL.Query()
		got.contentType = r.Header.Get("Content-Type")
		got.header = r.Header.Clone()
		got.body, _ = io.ReadAll(r.Body)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestURL_JoinsBase(t *testing.T) {
	cases := []struct {
		base, path, want string
	}{
		{"http://localhost", "/", "http://localhost/"},
		{"http://localhost", "/api/v1/cats", "http://localhost/api/v1/cats"},
		{"https://example.com", "/", "https://example.com/"},
		{"https://example.com/api/v1", "/", "https://example.com/api/v1/"},
		{"https://example.com/api/v1", "/cats", "https://example.com/api/v1/cats"},
		{"https://example.com/api/v1/", "//cats//x", "https://example.com/api/v1/cats/x"},
		{"https://example.com/api/v1", "/../cats", "https://example.com/api/cats"},
		{"https://example.com", "/files/a%2Fb", "https://example.com/files/a%2Fb"},
	}
	for _, tc := range cases {
		c := New(WithBaseURL(tc.base))
		u, err := c.URL(tc.path, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, u.String(), tc.base+" + "+tc.path)
	}
}

func TestURL_CustomBuilder(t *testing.T) {
	c := New(WithBaseURL("https://example.com/api"), WithURLBuilder(func(base, path string) (*url.URL, error) {
		return url.Parse(base + "/v2" + path)
	}))
	u, err := c.URL("/cats", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/v2/cats", u.String())
}

func TestURL_Search(t *testing.T) {
	type search struct {
		Tags    []string   `json:"tags,omitempty"`
		Limit   *int       `json:"limit,omitempty"`
		Offset  *int       `json:"offset"`
		Since   time.Time  `json:"since"`
		Verbose bool       `json:"verbose"`
		Ratio   float64    `json:"ratio,omitempty"`
		Skip    string     `json:"-"`
		Until   *time.Time `json:"until,omitempty"`
	}
	limit := 10
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := New(WithBaseURL("http://localhost"))

	u, err := c.URL("/items", search{Tags: []string{"a", "b"}, Limit: &limit, Since: since, Skip: "x"})
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "a,b", q.Get("tags"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "2024-01-02T03:04:05Z", q.Get("since"))
	assert.Equal(t, "false", q.Get("verbose"))
	assert.False(t, q.Has("offset"), "nil pointers are skipped")
	assert.False(t, q.Has("ratio"))
	assert.False(t, q.Has("-"))
	assert.False(t, q.Has("Skip"))
	assert.False(t, q.Has("until"))

	u, err = c.URL("/items?fixed=1", map[string]any{"ids": []any{1, 2.5, "x"}, "none": nil})
	require.NoError(t, err)
	assert.Equal(t, "fixed=1&ids=1%2C2.5%2Cx", u.RawQuery)
}

func TestDo_JSONBodyAndHeaders(t *testing.T) {
	srv, got := server(t, http.StatusOK, "application/json", `{"ok":true}`)
	c := New(WithBaseURL(srv.URL), WithHeaders(map[string]string{"X-Api-Key": "k", "X-Env": "prod"}))

	out, err := c.Do(context.Background(), "post", "/users", Request{
		Body:    map[string]any{"name": "ann"},
		Headers: map[string]string{"X-Env": "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/users", got.path)
	assert.Equal(t, "application/json", got.contentType)
	assert.JSONEq(t, `{"name":"ann"}`, string(got.body))
	assert.Equal(t, "k", got.header.Get("X-Api-Key"))
	assert.Equal(t, "test", got.header.Get("X-Env"))
}

func TestDo_StringBodyIsSentVerbatim(t *testing.T) {
	srv, got := server(t, http.StatusOK, "", "")
	c := New(WithBaseURL(srv.URL))

	_, err := c.Do(context.Background(), "put", "/raw", Request{Body: `{"a":1}`})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got.body))
}

func TestDo_Multipart(t *testing.T) {
	srv, got := server(t, http.StatusCreated, "text/plain", "stored")
	c := New(WithBaseURL(srv.URL))

	type upload struct {
		File  []byte `json:"file"`
		Title string `json:"title"`
		Tags  []int  `json:"tags"`
	}
	out, err := c.Do(context.Background(), "post", "/files", Request{
		Body:    upload{File: []byte("hello"), Title: "greeting", Tags: []int{1, 2}},
		Headers: map[string]string{"content-type": "multipart/form-data"},
	})
	require.NoError(t, err)
	assert.Equal(t, "stored", out)

	media, params, err := mime.ParseMediaType(got.contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", media)
	require.NotEmpty(t, params["boundary"])

	form, err := multipart.NewReader(strings.NewReader(string(got.body)), params["boundary"]).ReadForm(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"greeting"}, form.Value["title"])
	assert.Equal(t, []string{"1,2"}, form.Value["tags"])
	require.Len(t, form.File["file"], 1)
	f, err := form.File["file"][0].Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(f)
	assert.Equal(t, "hello", string(data))
}

func TestDo_URLEncoded(t *testing.T) {
	srv, got := server(t, http.StatusOK, "", "")
	c := New(WithBaseURL(srv.URL))

	_, err := c.Do(context.Background(), "post", "/login", Request{
		Body:    map[string]string{"user": "ann", "pass": "a b"},
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded; charset=utf-8"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
	assert.Equal(t, "pass=a+b&user=ann", string(got.body))
}

func TestDo_ErrorCarriesParsedBody(t *testing.T) {
	srv, _ := server(t, http.StatusNotFound, "application/json", `{"message":"no such user"}`)
	c := New(WithBaseURL(srv.URL))

	_, err := c.Do(context.Background(), "get", "/users/1", Request{})
	require.Error(t, err)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "GET", apiErr.Method)
	assert.Equal(t, map[string]any{"message": "no such user"}, apiErr.Body)

	var detail struct {
		Message string `json:"message"`
	}
	require.NoError(t, apiErr.Decode(&detail))
	assert.Equal(t, "no such user", detail.Message)
	assert.Contains(t, err.Error(), "404")
}

func TestDo_ErrorWithRawBody(t *testing.T) {
	srv, _ := server(t, http.StatusBadGateway, "text/html", "<h1>down</h1>")
	c := New(WithBaseURL(srv.URL))

	_, err := Fetch[map[string]any](context.Background(), c, "get", "/", Request{})
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Nil(t, apiErr.Body)
	assert.Equal(t, "<h1>down</h1>", string(apiErr.Raw))
}

func TestDo_ParseDatesAtAnyDepth(t *testing.T) {
	const stamp = "2021-01-01T00:00:00.000Z"
	body, err := json.Marshal(map[string]any{
		"date":  stamp,
		"dates": []string{stamp},
		"more":  map[string]any{"date": stamp, "dates": []string{stamp}},
		"text":  "2021-01-01",
	})
	require.NoError(t, err)
	srv, _ := server(t, http.StatusOK, "application/json", string(body))
	c := New(WithBaseURL(srv.URL), WithParseDates(true))

	out, err := c.Do(context.Background(), "get", "/", Request{})
	require.NoError(t, err)
	m := out.(map[string]any)

	render := func(v any) string {
		tm, ok := v.(time.Time)
		require.True(t, ok, "want time.Time, got %T", v)
		return tm.Format("2006-01-02T15:04:05.000Z07:00")
	}
	assert.Equal(t, stamp, render(m["date"]))
	assert.Equal(t, stamp, render(m["dates"].([]any)[0]))
	more := m["more"].(map[string]any)
	assert.Equal(t, stamp, render(more["date"]))
	assert.Equal(t, stamp, render(more["dates"].([]any)[0]))
	assert.Equal(t, "2021-01-01", m["text"])
}

func TestFetch_Typed(t *testing.T) {
	srv, _ := server(t, http.StatusOK, "application/json", `{"id":"7","createdAt":"2024-05-06T07:08:09+02:00"}`)
	c := New(WithBaseURL(srv.URL))

	type user struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"createdAt"`
	}
	u, err := Fetch[user](context.Background(), c, "get", "/users/7", Request{})
	require.NoError(t, err)
	assert.Equal(t, "7", u.ID)
	assert.Equal(t, 7, u.CreatedAt.Hour())

	s, err := Fetch[string](context.Background(), c, "get", "/users/7", Request{})
	require.NoError(t, err)
	assert.Contains(t, s, `"id":"7"`)
}

func TestFetch_TypedWithParseDates(t *testing.T) {
	srv, _ := server(t, http.StatusOK, "application/json", `{
		"createdAt": "2024-01-02T03:04:05",
		"updatedAt": "2024-01-02T03:04:05+0100",
		"label": "2024-01-02T03:04:05Z",
		"meta": {"at": "2024-01-02T03:04:05Z"},
		"events": [{"at": "2024-01-02T03:04:05Z"}],
		"extra": ["2024-01-02T03:04:05Z"],
		"avatar": "aGk=",
		"base": {"id": 3}
	}`)
	c := New(WithBaseURL(srv.URL), WithParseDates(true))

	type base struct {
		ID float64 `json:"id"`
	}
	type user struct {
		CreatedAt time.Time        `json:"createdAt"`
		UpdatedAt *time.Time       `json:"updatedAt,omitempty"`
		Label     string           `json:"label"`
		Meta      map[string]any   `json:"meta,omitempty"`
		Events    []map[string]any `json:"events,omitempty"`
		Extra     any              `json:"extra,omitempty"`
		Avatar    []byte           `json:"avatar,omitempty"`
		Missing   *time.Time       `json:"missing,omitempty"`
		Base      base             `json:"base"`
	}
	u, err := Fetch[user](context.Background(), c, "get", "/users/7", Request{})
	require.NoError(t, err)

	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, want.Equal(u.CreatedAt), "zone-less timestamp read as UTC, got %v", u.CreatedAt)
	require.NotNil(t, u.UpdatedAt)
	assert.True(t, want.Add(-time.Hour).Equal(*u.UpdatedAt), "offset without colon, got %v", u.UpdatedAt)
	assert.Equal(t, "2024-01-02T03:04:05Z", u.Label, "string fields keep their text")
	assert.IsType(t, time.Time{}, u.Meta["at"])
	require.Len(t, u.Events, 1)
	assert.IsType(t, time.Time{}, u.Events[0]["at"])
	assert.IsType(t, time.Time{}, u.Extra.([]any)[0])
	assert.Equal(t, []byte("hi"), u.Avatar)
	assert.Nil(t, u.Missing)
	assert.Equal(t, float64(3), u.Base.ID)

	m, err := Fetch[map[string]any](context.Background(), c, "get", "/users/7", Request{})
	require.NoError(t, err)
	assert.IsType(t, time.Time{}, m["createdAt"])
	assert.IsType(t, time.Time{}, m["meta"].(map[string]any)["at"])
}

func TestFetch_InvalidTimestamp(t *testing.T) {
	srv, _ := server(t, http.StatusOK, "application/json", `{"createdAt": "yesterday"}`)
	c := New(WithBaseURL(srv.URL), WithParseDates(true))

	_, err := Fetch[struct {
		CreatedAt time.Time `json:"createdAt"`
	}](context.Background(), c, "get", "/u", Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode GET /u response")
}

func TestFetch_Empty(t *testing.T) {
	srv, _ := server(t, http.StatusNoContent, "", "")
	c := New(WithBaseURL(srv.URL))

	out, err := Fetch[struct{}](context.Background(), c, "delete", "/users/7", Request{})
	require.NoError(t, err)
	assert.Equal(t, struct{}{}, out)
}

func TestRequestEditor(t *testing.T) {
	srv, got := server(t, http.StatusOK, "", "")
	c := New(WithBaseURL(srv.URL), WithRequestEditor(func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Bearer t")
		return nil
	}))
	_, err := c.Do(context.Background(), "get", "/", Request{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer t", got.header.Get("Authorization"))
}

func TestPathParam(t *testing.T) {
	assert.Equal(t, "a%2Fb", PathParam("a/b"))
	assert.Equal(t, "42", PathParam(42))
	assert.Equal(t, "1.5", PathParam(1.5))
	id := "x y"
	assert.Equal(t, "x%20y", PathParam(&id))
}

func TestConfig_IsACopy(t *testing.T) {
	c := New(WithHeader("A", "1"))
	cfg := c.Config()
	cfg.Headers["A"] = "2"
	assert.Equal(t, "1", c.Config().Headers["A"])
}

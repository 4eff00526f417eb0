package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/gqlpath/internal/eventbus"
	events "github.com/hanpama/gqlpath/internal/events"
	lazy "github.com/hanpama/gqlpath/internal/lazy"
	reqid "github.com/hanpama/gqlpath/internal/reqid"
	section "github.com/hanpama/gqlpath/internal/section"
)

const heroDoc = `query HeroQuery {
  hero { name friends { name } }
}

query Broken { a(x: ) }

type Character { name: String }
`

func newTestHandler(t *testing.T, opts ...Option) (*Handler, *lazy.Evaluator) {
	t.Helper()
	src := section.NewMemorySource(map[string]string{"hero.graphql": heroDoc})
	ev := lazy.New(lazy.WithSource(src))
	return New(ev, opts...), ev
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func matchPaths(resp QueryResponse) []string {
	out := make([]string, len(resp.Matches))
	for i, m := range resp.Matches {
		out[i] = m.Path
	}
	return out
}

func TestQueryLazy(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, "POST", "/query", `{"document":"hero.graphql","expression":"//hero/friends/name"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	resp := decode[QueryResponse](t, w)
	if diff := cmp.Diff([]string{"HeroQuery/hero/friends/name"}, matchPaths(resp)); diff != "" {
		t.Errorf("matches mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "lazy", resp.Mode)
	require.Len(t, resp.Sections, 1)
	require.Equal(t, "HeroQuery", resp.Sections[0].Name)
	require.False(t, resp.Cached)
	require.Equal(t, "field", resp.Matches[0].Kind.String())

	w = do(t, h, "POST", "/query", `{"document":"hero.graphql","expression":"//hero/friends/name"}`)
	require.True(t, decode[QueryResponse](t, w).Cached)
}

func TestQueryFull(t *testing.T) {
	h, _ := newTestHandler(t)
	// the full parse reaches the broken operation
	w := do(t, h, "POST", "/query", `{"document":"hero.graphql","expression":"//hero","mode":"full"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[QueryResponse](t, w)
	require.Equal(t, "full", resp.Mode)
	require.NotEmpty(t, resp.Error)
	require.Empty(t, resp.Matches)

	w = do(t, h, "POST", "/query", `{"document":"hero.graphql","expression":"//hero","mode":"lazy"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"HeroQuery/hero"}, matchPaths(decode[QueryResponse](t, w)))
}

func TestQueryErrors(t *testing.T) {
	h, _ := newTestHandler(t, WithMaxBodyBytes(200))
	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"missing document", "POST", "/query", `{"expression":"//a"}`, http.StatusBadRequest},
		{"unknown document", "POST", "/query", `{"document":"nope","expression":"//a"}`, http.StatusNotFound},
		{"syntax error", "POST", "/query", `{"document":"hero.graphql","expression":"query[name=Broken]/a"}`, http.StatusUnprocessableEntity},
		{"bad mode", "POST", "/query", `{"document":"hero.graphql","mode":"eager"}`, http.StatusBadRequest},
		{"invalid json", "POST", "/query", `{"document":`, http.StatusBadRequest},
		{"body too large", "POST", "/query", `{"document":"` + string(bytes.Repeat([]byte("x"), 300)) + `"}`, http.StatusRequestEntityTooLarge},
		{"wrong method", "GET", "/query", "", http.StatusMethodNotAllowed},
		{"unknown path", "GET", "/graphql", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, h, tc.method, tc.target, tc.body)
			require.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}

	req := httptest.NewRequest("POST", "/query", bytes.NewBufferString(`document=x`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestCompare(t *testing.T) {
	src := section.NewMemorySource(map[string]string{"ok.graphql": "query Q { a { b } }\nfragment F on T { b }\n"})
	h := New(lazy.New(lazy.WithSource(src)))

	w := do(t, h, "POST", "/compare", `{"document":"ok.graphql","expression":"//b"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CompareResponse](t, w)
	require.True(t, resp.ResultsMatch)
	require.True(t, resp.SameCount)
	require.Equal(t, matchPaths(*resp.Full), matchPaths(*resp.Lazy))
	require.Empty(t, resp.Full.Error)

	w = do(t, h, "POST", "/compare", `{"document":"missing","expression":"//b"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[CompareResponse](t, w)
	require.False(t, resp.ResultsMatch)
	require.NotEmpty(t, resp.Full.Error)
	require.NotEmpty(t, resp.Lazy.Error)
}

func TestSections(t *testing.T) {
	h, _ := newTestHandler(t)
	w := do(t, h, "GET", "/sections?document=hero.graphql", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Document string             `json:"document"`
		Sections []*section.Section `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	names := make([]string, len(body.Sections))
	for i, s := range body.Sections {
		names[i] = string(s.Type) + " " + s.Name
	}
	require.Equal(t, []string{"operation HeroQuery", "operation Broken", "type Character"}, names)

	require.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/sections", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, "GET", "/sections?document=nope", "").Code)
}

func TestStatsAndClear(t *testing.T) {
	h, ev := newTestHandler(t)
	do(t, h, "POST", "/query", `{"document":"hero.graphql","expression":"//hero"}`)
	do(t, h, "POST", "/query", `{"document":"hero.graphql","expression":"//hero"}`)

	w := do(t, h, "GET", "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[lazy.Stats](t, w)
	require.Equal(t, int64(2), st.TotalQueries)
	require.Equal(t, int64(1), st.CacheHits)
	require.Equal(t, 2, st.CacheSize)

	w = do(t, h, "POST", "/cache/clear", `{"document":"hero.graphql"}`)
	require.Equal(t, http.StatusOK, w.Code)
	st = decode[lazy.Stats](t, w)
	require.Equal(t, 0, st.CacheSize)
	require.Equal(t, int64(2), st.TotalQueries)

	w = do(t, h, "POST", "/cache/clear", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, lazy.Stats{}, ev.Stats())
}

func TestCORSAndPreflight(t *testing.T) {
	h, _ := newTestHandler(t, WithCORS("*"))

	// simple request
	req := httptest.NewRequest("GET", "/stats", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	// preflight
	pre := httptest.NewRequest("OPTIONS", "/query", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight missing CORS header")
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}

	h, _ = newTestHandler(t, WithCORS("http://allowed.example"))
	req = httptest.NewRequest("GET", "/stats", nil)
	req.Header.Set("Origin", "http://other.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected CORS header %q", got)
	}
}

func TestRequestID(t *testing.T) {
	bus := eventbus.New()
	var mu sync.Mutex
	var ids []string
	var statuses []int
	eventbus.Subscribe(bus, func(ctx context.Context, e events.EvaluationStart) {
		id, _ := reqid.FromContext(ctx)
		mu.Lock()
		ids = append(ids, id)
		mu.Unlock()
	})
	eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
		mu.Lock()
		statuses = append(statuses, e.Status)
		mu.Unlock()
	})
	src := section.NewMemorySource(map[string]string{"hero.graphql": heroDoc})
	h := New(lazy.New(lazy.WithSource(src), lazy.WithEventBus(bus)), WithEventBus(bus))

	incoming := uuid.NewString()
	req := httptest.NewRequest("POST", "/query", bytes.NewBufferString(`{"document":"hero.graphql","expression":"//hero"}`))
	req.Header.Set(RequestIDHeader, incoming)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, incoming, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest("POST", "/query", bytes.NewBufferString(`{"document":"nope"}`))
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	generated := w.Header().Get(RequestIDHeader)
	require.NotEqual(t, "not-a-uuid", generated)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)

	require.Equal(t, []string{incoming, generated}, ids)
	require.Equal(t, []int{http.StatusOK, http.StatusNotFound}, statuses)
}

func TestDocumentRootConfinement(t *testing.T) {
	var hit atomic.Bool
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
		_, _ = w.Write([]byte("type Internal { adminToken: String }"))
	}))
	defer internal.Close()

	base := t.TempDir()
	dir := filepath.Join(base, "docs")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hero.graphql"), []byte(heroDoc), 0o644))
	private := filepath.Join(base, "private.graphql")
	require.NoError(t, os.WriteFile(private, []byte("type Account { password: String }"), 0o644))

	src, err := section.NewRootedSource(dir, nil)
	require.NoError(t, err)
	h := New(lazy.New(lazy.WithSource(src)))

	w := do(t, h, "POST", "/query", `{"document":"hero.graphql","expression":"//hero/name"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, []string{"HeroQuery/hero/name"}, matchPaths(decode[QueryResponse](t, w)))

	for _, doc := range []string{internal.URL + "/x.graphql", private, "../private.graphql"} {
		for _, mode := range []string{"lazy", "full"} {
			body, err := json.Marshal(QueryRequest{Document: doc, Expression: "type/*", Mode: mode})
			require.NoError(t, err)
			w := do(t, h, "POST", "/query", string(body))
			require.Equal(t, http.StatusForbidden, w.Code, doc)
			require.Empty(t, decode[QueryResponse](t, w).Matches, doc)
		}

		w = do(t, h, "GET", "/sections?document="+url.QueryEscape(doc), "")
		require.Equal(t, http.StatusForbidden, w.Code, doc)

		body, err := json.Marshal(QueryRequest{Document: doc, Expression: "type/*"})
		require.NoError(t, err)
		w = do(t, h, "POST", "/compare", string(body))
		resp := decode[CompareResponse](t, w)
		require.Empty(t, resp.Full.Matches, doc)
		require.Empty(t, resp.Lazy.Matches, doc)
	}
	require.False(t, hit.Load())
}

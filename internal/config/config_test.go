package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqlpath/internal/lazy"
	"github.com/hanpama/gqlpath/internal/section"
)

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
evaluator:
  result_cache: false
  self_check: true
server:
  addr: "127.0.0.1:9090"
  timeout: 2s
  cors_origins: ["http://localhost:3000"]
otel:
  endpoint: collector:4317
documents:
  root: /srv/graphql
`))
	require.NoError(t, err)

	want := Default()
	want.Evaluator.ResultCache = false
	want.Evaluator.SelfCheck = true
	want.Server.Addr = "127.0.0.1:9090"
	want.Server.Timeout = 2 * time.Second
	want.Server.CORSOrigins = []string{"http://localhost:3000"}
	want.Otel.Endpoint = "collector:4317"
	want.Documents.Root = "/srv/graphql"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "server:\n  port: 80\n",
		"unknown section":  "cache:\n  size: 10\n",
		"bad duration":     "server:\n  timeout: soon\n",
		"empty addr":       "server:\n  addr: \"\"\n",
		"negative timeout": "server:\n  timeout: -1s\n",
		"negative body":    "server:\n  max_body_bytes: -1\n",
		"otel service":     "otel:\n  endpoint: x:4317\n  service: \"\"\n",
		"empty root":       "documents:\n  root: \"\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "gqlpath.yaml")
	require.NoError(t, os.WriteFile(p, []byte("server:\n  pretty: true\n"), 0o644))
	cfg, err := Load(p)
	require.NoError(t, err)
	require.True(t, cfg.Server.Pretty)

	require.NoError(t, os.WriteFile(p, []byte("server:\n  nope: 1\n"), 0o644))
	_, err = Load(p)
	require.ErrorContains(t, err, p)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLazyOptions(t *testing.T) {
	cfg := Default()
	cfg.Evaluator.ResultCache = false
	src := section.NewMemorySource(map[string]string{"d": "query Q { a }"})
	ev := lazy.New(cfg.LazyOptions(src, nil)...)

	ctx := context.Background()
	ev.Process(ctx, "d", "//a")
	res := ev.Process(ctx, "d", "//a")
	require.NoError(t, res.Err)
	require.False(t, res.Cached)
	require.Equal(t, int64(1), ev.Stats().CacheStats.SectionHits)
}

func TestDocumentSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.graphql"), []byte("query Q { a }"), 0o644))

	cfg := Default()
	cfg.Documents.Root = dir
	src, err := cfg.DocumentSource()
	require.NoError(t, err)

	ev := lazy.New(cfg.LazyOptions(src, nil)...)
	ctx := context.Background()
	res := ev.Process(ctx, "d.graphql", "//a")
	require.NoError(t, res.Err)
	require.Len(t, res.Matches, 1)

	res = ev.Process(ctx, filepath.Join(dir, "d.graphql"), "//a")
	require.ErrorIs(t, res.Err, section.ErrDocumentAccess)

	cfg.Documents.Root = filepath.Join(dir, "missing")
	_, err = cfg.DocumentSource()
	require.Error(t, err)
}

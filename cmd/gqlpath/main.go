package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/hanpama/gqlpath/internal/config"
	"github.com/hanpama/gqlpath/internal/eventbus"
	"github.com/hanpama/gqlpath/internal/lazy"
	"github.com/hanpama/gqlpath/internal/matcher"
	"github.com/hanpama/gqlpath/internal/otel"
	"github.com/hanpama/gqlpath/internal/server"
)

const rootUsage = `gqlpath: path queries over GraphQL documents

USAGE:
  gqlpath <command> [flags]

COMMANDS:
  query       Evaluate a path expression against a document
  compare     Evaluate lazily and fully, and compare the answers
  sections    List the top-level definitions of a document
  serve       Run the HTTP JSON endpoint
  help        Show help for any command
`

const queryUsage = `query FLAGS <expression>:
  -document <path|url>   Document to query (required). Local paths and afs URLs
  -mode lazy|full        Evaluation mode (default: lazy)
  -self-check            Verify the lazy answer against a full evaluation
  -json                  Print the result as JSON
  -config <file>         YAML configuration file
`

const compareUsage = `compare FLAGS <expression>:
  -document <path|url>   Document to query (required)
  -json                  Print the comparison as JSON
  -config <file>         YAML configuration file
`

const sectionsUsage = `sections FLAGS:
  -document <path|url>   Document to scan (required)
  -json                  Print the sections as JSON
`

const serveUsage = `serve FLAGS:
  -config <file>               YAML configuration file
  -server.addr <addr>          HTTP listen address (default: :8080)
  -server.pretty               Pretty-print JSON responses
  -server.timeout <duration>   Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body <bytes>     Request body limit (default: 1048576)
  -server.cors <origin>        Allowed CORS origin. Repeatable
  -evaluator.self-check        Verify every lazy answer against a full evaluation
  -otel.endpoint <addr>        OTLP collector endpoint
  -otel.service <name>         OpenTelemetry service name (default: gqlpath)
  -documents.root <dir>        Directory documents are served from (default: .)
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := args[0]
	cmdArgs := args[1:]
	switch cmd {
	case "query":
		return cmdQuery(cmdArgs, stdout, stderr)
	case "compare":
		return cmdCompare(cmdArgs, stdout, stderr)
	case "sections":
		return cmdSections(cmdArgs, stdout, stderr)
	case "serve":
		return cmdServe(cmdArgs, stderr)
	case "help", "-h", "-help", "--help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "query":
		fmt.Fprint(stdout, queryUsage)
	case "compare":
		fmt.Fprint(stdout, compareUsage)
	case "sections":
		fmt.Fprint(stdout, sectionsUsage)
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// evalFlags are shared by query and compare.
type evalFlags struct {
	fs         *flag.FlagSet
	document   string
	configFile string
	asJSON     bool
}

func newEvalFlags(name string) *evalFlags {
	f := &evalFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.SetOutput(new(bytes.Buffer))
	f.fs.StringVar(&f.document, "document", "", "Document to query")
	f.fs.StringVar(&f.configFile, "config", "", "YAML configuration file")
	f.fs.BoolVar(&f.asJSON, "json", false, "Print JSON")
	return f
}

// parse parses args and returns the expression argument.
func (f *evalFlags) parse(args []string, usage string, stderr io.Writer) (string, error) {
	if err := f.fs.Parse(args); err != nil {
		fmt.Fprint(stderr, usage)
		return "", err
	}
	if f.document == "" {
		fmt.Fprint(stderr, usage)
		return "", fmt.Errorf("-document is required")
	}
	if f.fs.NArg() != 1 {
		fmt.Fprint(stderr, usage)
		return "", fmt.Errorf("expected exactly one expression, got %d", f.fs.NArg())
	}
	return f.fs.Arg(0), nil
}

func cmdQuery(args []string, stdout, stderr io.Writer) error {
	f := newEvalFlags("query")
	mode := "lazy"
	selfCheck := false
	f.fs.StringVar(&mode, "mode", mode, "Evaluation mode")
	f.fs.BoolVar(&selfCheck, "self-check", selfCheck, "Verify against a full evaluation")
	expr, err := f.parse(args, queryUsage, stderr)
	if err != nil {
		return err
	}
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return err
	}
	if selfCheck {
		cfg.Evaluator.SelfCheck = true
	}
	ev := lazy.New(cfg.LazyOptions(nil, nil)...)
	ctx := context.Background()

	var matches []matcher.Match
	var took time.Duration
	switch mode {
	case "lazy":
		res := ev.Process(ctx, f.document, expr)
		if res.Err != nil {
			return res.Err
		}
		matches, took = res.Matches, res.Duration
		if f.asJSON {
			return writeJSON(stdout, res)
		}
		printMatches(stdout, matches)
		fmt.Fprintf(stderr, "%d matches from %d sections in %s\n", len(matches), len(res.Sections), took)
	case "full":
		res := ev.Reference().Evaluate(ctx, f.document, expr)
		if res.Err != nil {
			return res.Err
		}
		matches, took = res.Matches, res.Duration
		if f.asJSON {
			return writeJSON(stdout, res)
		}
		printMatches(stdout, matches)
		fmt.Fprintf(stderr, "%d matches in %s\n", len(matches), took)
	default:
		fmt.Fprint(stderr, queryUsage)
		return fmt.Errorf("unknown mode %q", mode)
	}
	return nil
}

func cmdCompare(args []string, stdout, stderr io.Writer) error {
	f := newEvalFlags("compare")
	expr, err := f.parse(args, compareUsage, stderr)
	if err != nil {
		return err
	}
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return err
	}
	ev := lazy.New(cfg.LazyOptions(nil, nil)...)
	c := ev.Compare(context.Background(), f.document, expr)
	if f.asJSON {
		if err := writeJSON(stdout, c); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "full\t%d matches\t%s\t%s\n", len(c.Traditional.Matches), c.TraditionalTime, errText(c.Traditional.Err))
		fmt.Fprintf(tw, "lazy\t%d matches\t%s\t%s\n", len(c.Lazy.Matches), c.LazyTime, errText(c.Lazy.Err))
		fmt.Fprintf(tw, "sections\t%d of %d\t\t\n", len(c.Lazy.Sections), sectionCount(ev, f.document))
		fmt.Fprintf(tw, "improvement\t%.1f%%\t\t\n", c.ImprovementPercentage)
		_ = tw.Flush()
	}
	if !c.ResultsMatch() {
		return errors.New("results differ")
	}
	return nil
}

func cmdSections(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sections", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	document := ""
	asJSON := false
	fs.StringVar(&document, "document", document, "Document to scan")
	fs.BoolVar(&asJSON, "json", asJSON, "Print JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, sectionsUsage)
		return err
	}
	if document == "" {
		fmt.Fprint(stderr, sectionsUsage)
		return fmt.Errorf("-document is required")
	}
	doc, err := lazy.New().Document(context.Background(), document)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(stdout, doc.Sections)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, s := range doc.Sections {
		kw := string(s.Type)
		if s.Operation != "" {
			kw = s.Operation
		}
		if s.Extension {
			kw = "extend " + kw
		}
		fmt.Fprintf(tw, "%d:%d\t%s\t%s\t%d bytes\n", s.Line, s.Column, kw, s.Name, s.Size())
	}
	return tw.Flush()
}

func cmdServe(args []string, stderr io.Writer) error {
	def := config.Default()
	configFile := ""
	var cors stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configFile, "config", configFile, "YAML configuration file")
	addr := fs.String("server.addr", def.Server.Addr, "HTTP listen address")
	pretty := fs.Bool("server.pretty", def.Server.Pretty, "Pretty-print JSON responses")
	timeout := fs.Duration("server.timeout", def.Server.Timeout, "Per-request timeout")
	maxBody := fs.Int64("server.max-body", def.Server.MaxBodyBytes, "Request body limit")
	fs.Var(&cors, "server.cors", "Allowed CORS origin")
	selfCheck := fs.Bool("evaluator.self-check", def.Evaluator.SelfCheck, "Verify lazy answers")
	otelEndpoint := fs.String("otel.endpoint", def.Otel.Endpoint, "OTLP collector endpoint")
	otelService := fs.String("otel.service", def.Otel.Service, "OpenTelemetry service name")
	docRoot := fs.String("documents.root", def.Documents.Root, "Directory documents are served from")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	// flags given on the command line win over the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server.addr":
			cfg.Server.Addr = *addr
		case "server.pretty":
			cfg.Server.Pretty = *pretty
		case "server.timeout":
			cfg.Server.Timeout = *timeout
		case "server.max-body":
			cfg.Server.MaxBodyBytes = *maxBody
		case "server.cors":
			cfg.Server.CORSOrigins = cors
		case "evaluator.self-check":
			cfg.Evaluator.SelfCheck = *selfCheck
		case "otel.endpoint":
			cfg.Otel.Endpoint = *otelEndpoint
		case "otel.service":
			cfg.Otel.Service = *otelService
		case "documents.root":
			cfg.Documents.Root = *docRoot
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	src, err := cfg.DocumentSource()
	if err != nil {
		return err
	}

	bus := eventbus.New()
	shutdown, err := otel.Setup(bus, cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ev := lazy.New(cfg.LazyOptions(src, bus)...)
	h := server.New(ev, cfg.ServerOptions(bus)...)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: h}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Printf("gqlpath server listening on %s, documents from %s", cfg.Server.Addr, src.Dir())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Printf("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

func printMatches(w io.Writer, ms []matcher.Match) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range ms {
		fmt.Fprintf(tw, "%d:%d\t%s\t%s\n", m.Line, m.Column, m.Tag, m.Path)
	}
	_ = tw.Flush()
}

func sectionCount(ev *lazy.Evaluator, id string) int {
	doc, err := ev.Document(context.Background(), id)
	if err != nil {
		return 0
	}
	return len(doc.Sections)
}

func errText(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

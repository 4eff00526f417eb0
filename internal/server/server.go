package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	eventbus "github.com/hanpama/gqlpath/internal/eventbus"
	events "github.com/hanpama/gqlpath/internal/events"
	language "github.com/hanpama/gqlpath/internal/language"
	lazy "github.com/hanpama/gqlpath/internal/lazy"
	matcher "github.com/hanpama/gqlpath/internal/matcher"
	pathexpr "github.com/hanpama/gqlpath/internal/pathexpr"
	reqid "github.com/hanpama/gqlpath/internal/reqid"
	section "github.com/hanpama/gqlpath/internal/section"
)

// RequestIDHeader carries the correlation id of a request. An incoming
// valid UUID is reused; otherwise a new one is generated.
const RequestIDHeader = "X-Request-Id"

// Handler is an http.Handler that serves path queries over JSON.
//
//	POST /query        {"document", "expression", "mode": "lazy"|"full"}
//	POST /compare      {"document", "expression"}
//	GET  /sections     ?document=
//	GET  /stats
//	POST /cache/clear  {"document"} (empty clears everything)
type Handler struct {
	ev  *lazy.Evaluator
	opt Options
	mux *http.ServeMux
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// Bus receives HTTPStart and HTTPFinish events.
	Bus *eventbus.Bus
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithEventBus(b *eventbus.Bus) Option { return func(o *Options) { o.Bus = b } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a handler answering queries with ev.
func New(ev *lazy.Evaluator, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{ev: ev, opt: op, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /query", h.query)
	h.mux.HandleFunc("POST /compare", h.compare)
	h.mux.HandleFunc("GET /sections", h.sections)
	h.mux.HandleFunc("GET /stats", h.stats)
	h.mux.HandleFunc("POST /cache/clear", h.clearCache)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.WithID(ctx, r.Header.Get(RequestIDHeader))
	w.Header().Set(RequestIDHeader, rid)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	eventbus.Publish(ctx, h.opt.Bus, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, h.opt.Bus, events.HTTPFinish{Request: r, Status: rec.status, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		rec.WriteHeader(http.StatusNoContent)
		return
	}

	if _, pattern := h.mux.Handler(r); pattern == "" {
		status := http.StatusNotFound
		if h.knownPath(r.URL.Path) {
			status = http.StatusMethodNotAllowed
		}
		h.writeError(rec, status, errors.New(strings.ToLower(http.StatusText(status))))
		return
	}
	h.mux.ServeHTTP(rec, r.WithContext(ctx))
}

func (h *Handler) knownPath(path string) bool {
	switch path {
	case "/query", "/compare", "/sections", "/stats", "/cache/clear":
		return true
	}
	return false
}

// ------------------ Endpoints ------------------

// QueryRequest is the body of /query, /compare and /cache/clear.
type QueryRequest struct {
	Document   string `json:"document"`
	Expression string `json:"expression"`
	Mode       string `json:"mode,omitempty"`
}

// QueryResponse reports one evaluation.
type QueryResponse struct {
	Document      string             `json:"document"`
	Expression    string             `json:"expression"`
	Mode          string             `json:"mode"`
	Matches       []matcher.Match    `json:"matches"`
	Sections      []*section.Section `json:"sections,omitempty"`
	Analysis      *pathexpr.Analysis `json:"analysis,omitempty"`
	Cached        bool               `json:"cached"`
	DurationNanos int64              `json:"durationNanos"`
	Error         string             `json:"error,omitempty"`
}

// CompareResponse reports a full and a lazy evaluation side by side.
type CompareResponse struct {
	Document              string         `json:"document"`
	Expression            string         `json:"expression"`
	Full                  *QueryResponse `json:"full"`
	Lazy                  *QueryResponse `json:"lazy"`
	ResultsMatch          bool           `json:"resultsMatch"`
	SameCount             bool           `json:"sameCount"`
	LazyFaster            bool           `json:"lazyFaster"`
	ImprovementPercentage float64        `json:"improvementPercentage"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r, h.opt.MaxBodyBytes)
	if err != nil {
		h.writeRequestError(w, err)
		return
	}
	if req.Document == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("missing 'document'"))
		return
	}

	var resp *QueryResponse
	var evalErr error
	switch req.Mode {
	case "", events.ModeLazy:
		res := h.ev.Process(r.Context(), req.Document, req.Expression)
		resp, evalErr = lazyResponse(req, res), res.Err
	case events.ModeFull:
		res := h.ev.Reference().Evaluate(r.Context(), req.Document, req.Expression)
		resp = &QueryResponse{
			Document:      req.Document,
			Expression:    req.Expression,
			Mode:          events.ModeFull,
			Matches:       nonNil(res.Matches),
			Analysis:      res.Analysis,
			DurationNanos: res.Duration.Nanoseconds(),
		}
		evalErr = res.Err
		if evalErr != nil {
			resp.Error = evalErr.Error()
		}
	default:
		h.writeError(w, http.StatusBadRequest, errors.New("unknown 'mode' "+req.Mode))
		return
	}
	writeJSON(w, statusFor(evalErr), resp, h.opt.Pretty)
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r, h.opt.MaxBodyBytes)
	if err != nil {
		h.writeRequestError(w, err)
		return
	}
	if req.Document == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("missing 'document'"))
		return
	}
	c := h.ev.Compare(r.Context(), req.Document, req.Expression)
	full := &QueryResponse{
		Document:      req.Document,
		Expression:    req.Expression,
		Mode:          events.ModeFull,
		Matches:       nonNil(c.Traditional.Matches),
		DurationNanos: c.TraditionalTime.Nanoseconds(),
	}
	if c.Traditional.Err != nil {
		full.Error = c.Traditional.Err.Error()
	}
	writeJSON(w, http.StatusOK, CompareResponse{
		Document:              req.Document,
		Expression:            req.Expression,
		Full:                  full,
		Lazy:                  lazyResponse(req, c.Lazy),
		ResultsMatch:          c.ResultsMatch(),
		SameCount:             c.SameCount(),
		LazyFaster:            c.IsLazyFaster(),
		ImprovementPercentage: c.ImprovementPercentage,
	}, h.opt.Pretty)
}

func (h *Handler) sections(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("document")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("missing 'document'"))
		return
	}
	doc, err := h.ev.Document(r.Context(), id)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc.ID,
		"size":     len(doc.Text),
		"sections": nonNilSections(doc.Sections),
	}, h.opt.Pretty)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ev.Stats(), h.opt.Pretty)
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if r.ContentLength != 0 {
		var err error
		if req, err = parseRequest(r, h.opt.MaxBodyBytes); err != nil {
			h.writeRequestError(w, err)
			return
		}
	}
	if req.Document == "" {
		h.ev.ClearCaches()
	} else {
		h.ev.ClearDocumentCache(req.Document)
	}
	writeJSON(w, http.StatusOK, h.ev.Stats(), h.opt.Pretty)
}

func lazyResponse(req QueryRequest, res *lazy.Result) *QueryResponse {
	resp := &QueryResponse{
		Document:      req.Document,
		Expression:    req.Expression,
		Mode:          events.ModeLazy,
		Matches:       nonNil(res.Matches),
		Sections:      res.Sections,
		Analysis:      res.Analysis,
		Cached:        res.Cached,
		DurationNanos: res.Duration.Nanoseconds(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

// statusFor maps evaluation failures to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, section.ErrDocumentAccess):
		return http.StatusForbidden
	case errors.Is(err, section.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, language.ErrSyntax):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func nonNil(ms []matcher.Match) []matcher.Match {
	if ms == nil {
		return []matcher.Match{}
	}
	return ms
}

func nonNilSections(ss []*section.Section) []*section.Section {
	if ss == nil {
		return []*section.Section{}
	}
	return ss
}

// ------------------ Request parsing ------------------

var (
	errBodyTooLarge       = errors.New("body too large")
	errUnsupportedContent = errors.New("unsupported Content-Type")
)

func parseRequest(r *http.Request, maxBody int64) (QueryRequest, error) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return QueryRequest{}, errUnsupportedContent
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return QueryRequest{}, errors.New("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return QueryRequest{}, errBodyTooLarge
	}
	var req QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return QueryRequest{}, errors.New("invalid JSON")
	}
	return req, nil
}

// ------------------ Response formatting ------------------

func (h *Handler) writeRequestError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, errBodyTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errUnsupportedContent):
		status = http.StatusUnsupportedMediaType
	}
	h.writeError(w, status, err)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()}, h.opt.Pretty)
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

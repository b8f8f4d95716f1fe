// Package gateway serves queries of graphs over HTTP. A query is POSTed to
// /query/{graphname}, either as the raw request body or as the "query" field
// of a form-encoded body. Graph names "default" and "all" query the union of
// every graph, and any other name queries the graph of that source.
//
// A Gateway also serves /sparql, which takes the graph and query as URL
// parameters, and /qualify, which counts the results of a list of queries
// within each graph. No query is answered until the Gateway is ready.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.graphsync.dev/core/graph"
	"go.graphsync.dev/core/metrics"
)

// Paths at which a Gateway is mounted by Register.
const (
	PathPrefix  = "/query/"
	SPARQLPath  = "/sparql"
	QualifyPath = "/qualify"
)

// RequestIDHeader identifies a request within logs. It's taken from the
// request if present, or generated otherwise, and returned with the response.
const RequestIDHeader = "X-Request-ID"

// GraphLister enumerates the names of graphs.
type GraphLister interface {
	Graphs() []string
}

// Config of a Gateway.
type Config struct {
	// MaxBody is the maximum accepted size of a query request body.
	MaxBody int64
	// MaxQualifyBody is the maximum accepted size of a qualify request body.
	MaxQualifyBody int64
	// QueryTimeout bounds the execution of a request. Zero is unbounded.
	QueryTimeout time.Duration
	// Prefixes declared by the query prologue in addition to DefaultPrefixes.
	Prefixes []Prefix
	// Ready reports whether queries may be served. Until it returns true,
	// requests fail with 503. If nil, the Gateway is always ready.
	Ready func() bool
	// Graphs enumerates graphs qualified by /qualify. If nil, /qualify
	// isn't registered.
	Graphs GraphLister
}

// Gateway is an http.Handler which executes queries against a graph.Querier.
type Gateway struct {
	decoder  *schema.Decoder
	querier  graph.Querier
	prologue string
	cfg      Config
}

// NewGateway returns a Gateway of the graph.Querier.
func NewGateway(querier graph.Querier, cfg Config) *Gateway {
	var decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	if cfg.MaxBody <= 0 {
		cfg.MaxBody = defaultMaxBody
	}
	if cfg.MaxQualifyBody <= 0 {
		cfg.MaxQualifyBody = defaultMaxQualifyBody
	}
	return &Gateway{
		decoder:  decoder,
		querier:  querier,
		prologue: Prologue(cfg.Prefixes),
		cfg:      cfg,
	}
}

// Register the query, SPARQL and qualify handlers of the Gateway with |mux|.
func (h *Gateway) Register(mux *http.ServeMux) {
	mux.Handle(PathPrefix, h)
	mux.HandleFunc(SPARQLPath, h.serveSPARQL)
	if h.cfg.Graphs != nil {
		mux.HandleFunc(QualifyPath, h.serveQualify)
	}
}

// ServeHTTP serves queries of /query/{graphname}.
func (h *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var name = strings.TrimPrefix(r.URL.Path, PathPrefix)
	var scope = graph.ResolveScope(name)

	h.serve(w, r, scopeLabel(scope), log.Fields{"graph": name, "scope": scope.String()},
		func(w http.ResponseWriter) { h.serveQuery(w, r, name, scope) })
}

func (h *Gateway) serveSPARQL(w http.ResponseWriter, r *http.Request) {
	var site = r.URL.Query().Get("site")
	var scope = graph.UnionScope
	if site != "" {
		scope = graph.ResolveScope(site)
	}

	h.serve(w, r, scopeLabel(scope), log.Fields{"graph": site, "scope": scope.String()},
		func(w http.ResponseWriter) {
			if r.Method != http.MethodGet && r.Method != http.MethodPost {
				w.Header().Set("Allow", "GET, POST")
				writeError(w, http.StatusMethodNotAllowed, "method not allowed: "+r.Method)
				return
			}

			var text = r.URL.Query().Get("query")
			if text == "" {
				var status int
				var err error

				if text, status, err = h.readQuery(w, r); err != nil {
					h.reject(w, status, err.Error())
					return
				}
			}
			if strings.TrimSpace(text) == "" {
				h.reject(w, http.StatusBadRequest, "Bad query")
				return
			}
			h.execute(w, r, scope, text)
		})
}

func (h *Gateway) serveQualify(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "qualify", log.Fields{"scope": "qualify"}, func(w http.ResponseWriter) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed: "+r.Method)
			return
		}

		var queries []string
		var err = json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxQualifyBody)).Decode(&queries)

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, http.StatusRequestEntityTooLarge,
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		} else if err != nil {
			h.reject(w, http.StatusBadRequest, "decoding query list: "+err.Error())
			return
		}

		var ctx, cancel = h.queryContext(r)
		defer cancel()

		counts, err := Qualify(ctx, h.querier, h.cfg.Graphs.Graphs(), h.prologue, queries)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err = json.NewEncoder(w).Encode(counts); err != nil && r.Context().Err() == nil {
			log.WithField("err", err).Warn("gateway: failed to write qualify counts")
		}
	})
}

// Qualify evaluates each of |queries| within each of |graphs|, returning the
// number of results of every query by graph. An ASK query counts one if true.
// Graphs are only present in the returned map if there's at least one query.
func Qualify(ctx context.Context, querier graph.Querier, graphs []string, prologue string, queries []string) (map[string][]int, error) {
	var counts = make(map[string][]int)

	for i, text := range queries {
		for _, name := range graphs {
			var res, err = querier.Query(ctx, graph.Named(name), prologue+text)
			if err != nil {
				return nil, errors.WithMessagef(err, "qualifying query %d of graph %q", i, name)
			}
			if counts[name] == nil {
				counts[name] = make([]int, len(queries))
			}
			if res.IsTabular() {
				counts[name][i] = len(res.Solutions)
			} else if *res.Boolean {
				counts[name][i] = 1
			}
		}
	}
	return counts, nil
}

// serve |fn| as an instrumented request. Requests are rejected with 503
// while the Gateway isn't ready.
func (h *Gateway) serve(w http.ResponseWriter, r *http.Request, label string, fields log.Fields, fn func(http.ResponseWriter)) {
	var started = time.Now()

	var id = r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	w.Header().Set(RequestIDHeader, id)

	var rw = &statusWriter{ResponseWriter: w, status: http.StatusOK}
	if h.cfg.Ready != nil && !h.cfg.Ready() {
		h.reject(rw, http.StatusServiceUnavailable, "graphs are loading")
	} else {
		fn(rw)
	}

	metrics.GatewayRequestsTotal.WithLabelValues(label, strconv.Itoa(rw.status)).Inc()
	metrics.GatewayResponseTimeSeconds.WithLabelValues(label).Observe(time.Since(started).Seconds())

	var entry = log.WithFields(fields).WithFields(log.Fields{
		"requestID": id,
		"path":      r.URL.Path,
		"status":    rw.status,
		"duration":  time.Since(started),
	})
	if rw.status >= http.StatusInternalServerError {
		entry.Warn("query failed")
	} else {
		entry.Debug("served query")
	}
}

func (h *Gateway) serveQuery(w http.ResponseWriter, r *http.Request, name string, scope graph.Scope) {
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "graph not found")
		return
	} else if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed: "+r.Method)
		return
	}

	var text, status, err = h.readQuery(w, r)
	if err != nil {
		h.reject(w, status, err.Error())
		return
	}
	h.execute(w, r, scope, text)
}

// execute query |text| within |scope|, writing its tabular results.
func (h *Gateway) execute(w http.ResponseWriter, r *http.Request, scope graph.Scope, text string) {
	var ctx, cancel = h.queryContext(r)
	defer cancel()

	var res, err = h.querier.Query(ctx, scope, h.prologue+text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if !res.IsTabular() {
		writeError(w, http.StatusInternalServerError, "No results")
		return
	}

	w.Header().Set("Content-Type", graph.ResultsContentType)
	w.WriteHeader(http.StatusOK)

	if err = graph.WriteJSON(w, res); err != nil && r.Context().Err() == nil {
		log.WithField("err", err).Warn("gateway: failed to write results")
	}
}

func (h *Gateway) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.cfg.QueryTimeout > 0 {
		return context.WithTimeout(r.Context(), h.cfg.QueryTimeout)
	}
	return context.WithCancel(r.Context())
}

// reject the request before execution, with |status| and body |msg|.
func (h *Gateway) reject(w http.ResponseWriter, status int, msg string) {
	metrics.GatewayRejectedQueriesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	writeError(w, status, msg)
}

func scopeLabel(scope graph.Scope) string {
	if scope.Union {
		return "union"
	}
	return "named"
}

// readQuery returns the query text of the request, or an error and the
// status with which the request should fail.
func (h *Gateway) readQuery(w http.ResponseWriter, r *http.Request) (string, int, error) {
	var body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBody))

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return "", http.StatusRequestEntityTooLarge,
			errors.Errorf("request body exceeds %d bytes", tooLarge.Limit)
	} else if err != nil {
		return "", http.StatusBadRequest, errors.WithMessage(err, "reading request body")
	} else if !utf8.Valid(body) {
		return "", http.StatusBadRequest, errors.New("request body is not valid UTF-8")
	}

	var mediaType, _, _ = mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		return string(body), 0, nil
	}

	var form struct {
		Query string `schema:"query"`
	}
	values, err := url.ParseQuery(string(body))
	if err == nil {
		err = h.decoder.Decode(&form, values)
	}
	if err != nil {
		return "", http.StatusBadRequest, errors.WithMessage(err, "decoding form")
	} else if form.Query == "" {
		return "", http.StatusInternalServerError, errors.New("Bad query")
	}
	return form.Query, 0, nil
}

// writeError writes |msg| as the complete response body.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

const (
	defaultMaxBody        = 1024
	defaultMaxQualifyBody = 64 * 1024
)

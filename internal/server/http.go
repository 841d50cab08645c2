// Package server exposes datasets over HTTP.
package server

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/coffersTech/photon/internal/controller"
	"github.com/coffersTech/photon/internal/engine"
)

// MaxQueryBytes bounds the size of a query request body.
const MaxQueryBytes = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds the server settings.
type Config struct {
	Version string
	// WebDir is served under /_static/ when set.
	WebDir string
	// AuthTokenHash is a bcrypt hash. When set, API requests need the
	// matching bearer token.
	AuthTokenHash string
}

// Server serves the dataset API.
type Server struct {
	cfg      Config
	store    *controller.Store
	logger   log.Logger
	gatherer prometheus.Gatherer

	router *mux.Router
	srv    *http.Server

	// tokens that already passed the bcrypt check
	verified sync.Map
}

// New creates a server over store. gatherer backs /metrics and may be nil.
func New(store *controller.Store, cfg Config, logger log.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		gatherer: gatherer,
	}
	s.router = s.routes()
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	if s.cfg.WebDir != "" {
		r.PathPrefix("/_static/").Handler(http.StripPrefix("/_static/", http.FileServer(http.Dir(s.cfg.WebDir))))
		// Browsers navigating to any page get the UI entry point.
		r.MatcherFunc(acceptsHTML).Methods(http.MethodGet).HandlerFunc(s.handleIndex)
	}

	r.Handle("/", s.AuthMiddleware(http.HandlerFunc(s.handleRoot))).Methods(http.MethodGet)
	r.Handle("/{dataset}/_fields", s.AuthMiddleware(http.HandlerFunc(s.handleFields))).Methods(http.MethodGet)
	r.Handle("/{dataset}/_query", s.AuthMiddleware(http.HandlerFunc(s.handleQuery))).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleNotFound)
	return r
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called. It returns nil at once if
// Shutdown already happened.
func (s *Server) Serve(ln net.Listener) error {
	level.Info(s.logger).Log("msg", "listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// AuthMiddleware checks the bearer token in the Authorization header against
// the configured hash. It lets every request through when no hash is set.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthTokenHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="photon"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", "")
			return
		}
		if _, seen := s.verified.Load(token); !seen {
			if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AuthTokenHash), []byte(token)); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="photon"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token", "")
				return
			}
			s.verified.Store(token, struct{}{})
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}

// handleRoot reports the version and the state of every dataset.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()

	stream := json.BorrowStream(w)
	defer json.ReturnStream(stream)

	w.Header().Set("Content-Type", "application/json")
	stream.WriteObjectStart()
	stream.WriteObjectField("version")
	stream.WriteString(s.cfg.Version)
	stream.WriteMore()
	stream.WriteObjectField("config_version")
	stream.WriteUint64(snap.Version)
	stream.WriteMore()
	stream.WriteObjectField("datasets")
	stream.WriteObjectStart()
	for i, e := range snap.Entries() {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(e.Name)
		stream.WriteObjectStart()
		stream.WriteObjectField("ok")
		stream.WriteBool(e.Err == nil)
		if e.Err != nil {
			stream.WriteMore()
			stream.WriteObjectField("error")
			stream.WriteString(e.Err.Error())
		}
		stream.WriteObjectEnd()
	}
	stream.WriteObjectEnd()
	stream.WriteObjectEnd()
	s.flush(stream)
}

// handleFields lists the fields of a dataset with their types, in order.
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}

	stream := json.BorrowStream(w)
	defer json.ReturnStream(stream)

	w.Header().Set("Content-Type", "application/json")
	stream.WriteObjectStart()
	for i, f := range ds.Fields() {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(f.Name)
		stream.WriteObjectStart()
		stream.WriteObjectField("type")
		stream.WriteString(f.Type.String())
		stream.WriteObjectEnd()
	}
	stream.WriteObjectEnd()
	s.flush(stream)
}

// handleQuery runs a JSON query. The q parameter may add NanoQL filters.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}

	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request_json", "expected JSON request body", "")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxQueryBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", err.Error())
		return
	}

	q, err := engine.ParseQuery(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", err.Error())
		return
	}
	if expr := r.URL.Query().Get("q"); expr != "" {
		if err := q.AddNanoQL(expr); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid q expression", err.Error())
			return
		}
	}

	rs, err := ds.Query(r.Context(), q)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(w, http.StatusBadRequest, "query_failed", "query failed", err.Error())
		return
	}

	stream := json.BorrowStream(w)
	defer json.ReturnStream(stream)

	w.Header().Set("Content-Type", "application/json")
	stream.WriteObjectStart()
	stream.WriteObjectField("results")
	rs.WriteTo(stream)
	stream.WriteMore()
	stream.WriteObjectField("stats")
	rs.Stats.WriteTo(stream)
	stream.WriteObjectEnd()
	s.flush(stream)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(filepath.Join(s.cfg.WebDir, "index.html"))
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", fi.ModTime(), f)
}

// acceptsHTML reports whether the Accept header lists text/html.
func acceptsHTML(r *http.Request, _ *mux.RouteMatch) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(part, ";")
		if strings.TrimSpace(mt) == "text/html" {
			return true
		}
	}
	return false
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "invalid_route", "no route for "+r.Method+" "+r.URL.Path, "")
}

// dataset resolves the dataset named in the route, writing the error
// response when it is unavailable.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*engine.Dataset, bool) {
	name := mux.Vars(r)["dataset"]
	e, ok := s.store.Snapshot().Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "dataset_not_found", "dataset "+name+" does not exist", "")
		return nil, false
	}
	if e.Err != nil {
		writeError(w, http.StatusServiceUnavailable, "config_error", "dataset "+name+" failed to load", e.Err.Error())
		return nil, false
	}
	return e.Dataset, true
}

func (s *Server) flush(stream *jsoniter.Stream) {
	if err := stream.Flush(); err != nil {
		level.Debug(s.logger).Log("msg", "write response", "err", err)
	}
}

// writeError writes the JSON error envelope.
func writeError(w http.ResponseWriter, status int, code, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	stream := json.BorrowStream(w)
	defer json.ReturnStream(stream)
	stream.WriteObjectStart()
	stream.WriteObjectField("code")
	stream.WriteString(code)
	stream.WriteMore()
	stream.WriteObjectField("message")
	stream.WriteString(message)
	stream.WriteMore()
	stream.WriteObjectField("detail")
	stream.WriteString(detail)
	stream.WriteObjectEnd()
	_ = stream.Flush()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		level.Debug(s.logger).Log("msg", "request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

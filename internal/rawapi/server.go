// Package rawapi exposes a connected BMC over HTTP: raw requests, device
// identity, chassis control, a websocket console and transport metrics.
package rawapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/ipmi"
)

// Options configures a Server.
type Options struct {
	// User and Pass enable basic authentication when both are set.
	User string
	Pass string
	// Gatherer, if set, is served at /metrics.
	Gatherer prometheus.Gatherer
}

// Server is the raw API HTTP server
type Server struct {
	router *mux.Router
	conn   *ipmi.Conn
	opts   Options
	logger *log.Entry
}

// NewServer creates a server that forwards to conn.
func NewServer(conn *ipmi.Conn, opts Options) *Server {
	s := &Server{
		router: mux.NewRouter(),
		conn:   conn,
		opts:   opts,
		logger: log.WithField("component", "rawapi"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	if s.opts.User != "" && s.opts.Pass != "" {
		s.router.Use(s.basicAuthMiddleware)
	}

	s.router.HandleFunc("/v1/raw", s.handleRaw).Methods("POST")
	s.router.HandleFunc("/v1/device", s.handleDevice).Methods("GET")
	s.router.HandleFunc("/v1/chassis", s.handleChassisStatus).Methods("GET")
	s.router.HandleFunc("/v1/chassis", s.handleChassisControl).Methods("POST")
	s.router.HandleFunc("/v1/console", s.handleConsole).Methods("GET")

	if s.opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

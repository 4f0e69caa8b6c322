package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/route-beacon/rib-gateway/internal/gobgp"
	"github.com/route-beacon/rib-gateway/internal/snapshot"
	"go.uber.org/zap"
)

// RIBProvider hands out the most recent decoded snapshot, nil before the
// first successful poll.
type RIBProvider interface {
	Latest() *snapshot.Result
}

// NeighborLister queries the daemon for live peer state.
type NeighborLister interface {
	ListNeighbors(ctx context.Context) ([]gobgp.NeighborSummary, error)
}

// DBChecker abstracts the archive health check for testability.
type DBChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	srv       *http.Server
	ribs      RIBProvider
	neighbors NeighborLister
	dbChecker DBChecker // nil when the archive is disabled
	logger    *zap.Logger
}

func NewServer(addr string, ribs RIBProvider, neighbors NeighborLister, dbChecker DBChecker, logger *zap.Logger) *Server {
	s := &Server{
		ribs:      ribs,
		neighbors: neighbors,
		dbChecker: dbChecker,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rib", s.handleRib)
	mux.HandleFunc("/neighbors", s.handleNeighbors)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleRib(w http.ResponseWriter, r *http.Request) {
	res := s.ribs.Latest()
	w.Header().Set("Content-Type", "application/json")
	if res == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "no_snapshot"})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(res)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	summaries, err := s.neighbors.ListNeighbors(ctx)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, gobgp.ErrPeerNotFound) {
			status = http.StatusNotFound
		}
		s.logger.Error("neighbor listing failed", zap.Error(err))
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"neighbors": summaries})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	allOK := true

	// Ready once the first RIB poll has landed.
	if s.ribs.Latest() != nil {
		checks["rib"] = "ok"
	} else {
		checks["rib"] = "no_snapshot"
		allOK = false
	}

	if s.dbChecker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.dbChecker.Ping(ctx); err != nil {
			checks["postgres"] = "error"
			allOK = false
		} else {
			checks["postgres"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}

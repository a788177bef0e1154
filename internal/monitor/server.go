// Package monitor exposes backtest progress over HTTP: health, Prometheus
// metrics, a ring buffer of recent decisions, and a websocket feed for
// live dashboards.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/quarrylabs/regimeguard/internal/protection"
)

const recentBufferSize = 256

// Server observes decisions and serves them to monitoring clients. Observe
// is called from the single backtest thread; HTTP handlers read under the
// mutex, so cross-thread access stays safe.
type Server struct {
	metrics *Metrics
	reg     *prometheus.Registry

	mu       sync.RWMutex
	recent   []map[string]interface{}
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]bool
	cmu      sync.Mutex

	http *http.Server
}

// NewServer builds a monitor with its own Prometheus registry.
func NewServer() *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		metrics:  NewMetrics(reg),
		reg:      reg,
		recent:   make([]map[string]interface{}, 0, recentBufferSize),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]bool),
	}
}

// Observe records a decision into metrics, the recent ring, and any
// connected websocket clients.
func (s *Server) Observe(d *protection.Decision) {
	s.metrics.Observe(d)
	payload := d.ToMap()

	s.mu.Lock()
	if len(s.recent) == recentBufferSize {
		s.recent = s.recent[1:]
	}
	s.recent = append(s.recent, payload)
	s.mu.Unlock()

	s.broadcast(payload)
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/decisions/recent", s.handleRecent).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebsocket)
	return r
}

// Start serves the monitor on addr until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Monitor server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	recent := make([]map[string]interface{}, len(s.recent))
	copy(recent, s.recent)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"count":     len(recent),
		"decisions": recent,
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	s.cmu.Lock()
	s.clients[conn] = true
	s.cmu.Unlock()
}

func (s *Server) broadcast(payload map[string]interface{}) {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(payload); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

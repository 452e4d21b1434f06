package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sigscope/sigscope/internal/engine"
)

// Server exposes the engine over HTTP: live events as a WebSocket stream
// on /events, Prometheus metrics on /metrics, and a status summary on
// /status. It is meant for local tooling and binds to loopback by
// default.
type Server struct {
	addr     string
	eng      *engine.Engine
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a server for the given engine.
func New(addr string, eng *engine.Engine) *Server {
	s := &Server{
		addr: addr,
		eng:  eng,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{"addr": s.addr}).Info("Event server listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// handleEvents upgrades the connection and relays bus events until the
// client disconnects. A client that cannot keep up loses its oldest
// undelivered events rather than stalling the bus.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := s.eng.Bus().Subscribe(64)
	defer cancel()

	// Drain client frames so close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// statusResponse is the /status payload.
type statusResponse struct {
	HistoryFrames int       `json:"history_frames"`
	Calibrated    bool      `json:"calibrated"`
	CalibratedAt  time.Time `json:"calibrated_at,omitempty"`
	Profiles      int       `json:"profiles"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		HistoryFrames: s.eng.History().Len(),
		Profiles:      s.eng.Library().Len(),
	}
	if np := s.eng.NoiseProfile(); np != nil {
		resp.Calibrated = true
		resp.CalibratedAt = np.CalibratedAt
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to write status response")
	}
}

package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "go.uber.org/zap"

	"clipShuffle/shuffle"
)

// Server exposes the player over HTTP so a phone or a second machine can
// drive the shuffle. Handlers only read display snapshots and enqueue
// intents; all state changes still happen on the poll-loop tick.
type Server struct {
	loop *shuffle.Loop
}

func New(loop *shuffle.Loop) *Server {
	return &Server{loop: loop}
}

// Handler builds the API router wrapped in permissive CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.status).Methods("GET")
	r.HandleFunc("/api/next", s.next).Methods("POST")
	r.HandleFunc("/api/pause", s.pause).Methods("POST")
	r.HandleFunc("/api/seek", s.seek).Methods("POST")
	r.HandleFunc("/api/volume", s.volume).Methods("POST")
	r.HandleFunc("/api/mute", s.mute).Methods("POST")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// ListenAndServe blocks until the context is cancelled, then shuts the
// server down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.S().Infof("remote control listening on %s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.loop.Display())
}

func (s *Server) next(w http.ResponseWriter, _ *http.Request) {
	s.loop.Next()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pause(w http.ResponseWriter, _ *http.Request) {
	s.loop.TogglePause()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) seek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fraction float64 `json:"fraction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Fraction < 0 || body.Fraction > 1 {
		http.Error(w, "fraction must be between 0 and 1", http.StatusBadRequest)
		return
	}
	s.loop.SeekFraction(body.Fraction)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) volume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Volume int `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Volume < 0 || body.Volume > 100 {
		http.Error(w, "volume must be between 0 and 100", http.StatusBadRequest)
		return
	}
	s.loop.SetVolume(body.Volume)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) mute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Muted bool `json:"muted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Muted != s.loop.Display().Muted {
		s.loop.ToggleMute()
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.S().Debugf("encoding response: %v", err)
	}
}

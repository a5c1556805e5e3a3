// Package server exposes the prediction service as a JSON HTTP API. The
// endpoints mirror the service call surface; rendering itself happens
// downstream.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"frostcast/internal/predictor"
)

const dayLayout = "2006-01-02"

// Server routes API requests to the prediction service.
type Server struct {
	svc *predictor.Service
	mux *http.ServeMux
}

func NewServer(svc *predictor.Service) *Server {
	s := &Server{svc: svc, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) Router() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("/api/prediccion", s.handlePrediccion)
	s.mux.HandleFunc("/api/historial", s.handleHistorial)
	s.mux.HandleFunc("/api/estadisticas", s.handleEstadisticas)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// GET /api/prediccion[?fecha=YYYY-MM-DD]
// Responds with the tagged result/error payload; pipeline failures are part
// of the payload, not HTTP errors.
func (s *Server) handlePrediccion(w http.ResponseWriter, r *http.Request) {
	var fecha *time.Time
	if raw := r.URL.Query().Get("fecha"); raw != "" {
		parsed, err := time.Parse(dayLayout, raw)
		if err != nil {
			http.Error(w, "fecha inválida, se espera YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		fecha = &parsed
	}

	resp := s.svc.Predecir(fecha)
	writeJSON(w, resp)
}

// GET /api/historial?dias=n (default 30)
func (s *Server) handleHistorial(w http.ResponseWriter, r *http.Request) {
	dias := 30
	if raw := r.URL.Query().Get("dias"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "dias inválido", http.StatusBadRequest)
			return
		}
		dias = parsed
	}

	writeJSON(w, s.svc.ObtenerHistorial(dias))
}

// GET /api/estadisticas
func (s *Server) handleEstadisticas(w http.ResponseWriter, r *http.Request) {
	resumen, err := s.svc.EstadisticasGenerales()
	if err != nil {
		log.Error().Err(err).Msg("statistics computation failed")
		http.Error(w, "estadísticas no disponibles", http.StatusInternalServerError)
		return
	}
	writeJSON(w, resumen)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"i4.energy/across/rsim/rsim"
)

//go:generate go tool mockgen -destination=mock_session.go -package=main . Session

// Session is the part of the remote SIM service driven over HTTP.
// *rsim.Service implements it.
type Session interface {
	Snapshot(ctx context.Context) (rsim.Snapshot, error)
	HandleSimAction(ctx context.Context, action rsim.SimAction) error
	HandleAPDU(ctx context.Context, apdu []byte) error
}

// Server handles incoming HTTP requests for inspecting and driving the
// remote SIM session
type Server struct {
	Logger  *slog.Logger
	Session Session
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rsim", s.handleSnapshot)
	mux.HandleFunc("POST /rsim/action", s.handleAction)
	mux.HandleFunc("POST /rsim/apdu", s.handleAPDU)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// sendSessionError maps a session error to an HTTP status
func (s *Server) sendSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rsim.ErrIncoherentState), errors.Is(err, rsim.ErrNoHandler):
		s.sendError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, rsim.ErrBadParameter):
		s.sendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, rsim.ErrClosed):
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.sendError(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleSnapshot reports the current session state
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.Session.Snapshot(r.Context())
	if err != nil {
		s.Logger.Error("Failed to read session state", "error", err)
		s.sendSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// handleAction injects a SIM action as if the modem had requested it
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	type ActionRequest struct {
		Action string `json:"action"`
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Action == "" {
		s.sendError(w, "'action' field is required", http.StatusBadRequest)
		return
	}

	action, err := rsim.ParseSimAction(req.Action)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Session.HandleSimAction(r.Context(), action); err != nil {
		s.Logger.Warn("SIM action rejected", "action", action, "error", err)
		s.sendSessionError(w, err)
		return
	}

	s.Logger.Info("SIM action accepted", "action", action)
	w.WriteHeader(http.StatusAccepted)
}

// handleAPDU forwards a command APDU to the remote SIM
func (s *Server) handleAPDU(w http.ResponseWriter, r *http.Request) {
	type APDURequest struct {
		APDU string `json:"apdu"`
	}

	var req APDURequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	apdu, err := hex.DecodeString(req.APDU)
	if err != nil {
		s.sendError(w, "'apdu' must be a hex string: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(apdu) == 0 {
		s.sendError(w, "'apdu' field is required", http.StatusBadRequest)
		return
	}

	if err := s.Session.HandleAPDU(r.Context(), apdu); err != nil {
		s.Logger.Warn("APDU rejected", "error", err)
		s.sendSessionError(w, err)
		return
	}

	s.Logger.Info("APDU sent", "apdu_length", len(apdu))
	w.WriteHeader(http.StatusAccepted)
}

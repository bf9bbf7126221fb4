package revocation

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// Server exposes the authority over HTTP.
//
//	GET  /check?tokenHash=<digest>  -> {"revoked":bool,"expiresAtMs":n?}
//	POST /revoke                    -> {"ok":true} | 400 {"ok":false,"error":...}
type Server struct {
	store *Store
}

// NewServer wraps store in the HTTP wire contract.
func NewServer(store *Store) *Server {
	return &Server{store: store}
}

// Router returns the configured httprouter mux.
func (s *Server) Router() *httprouter.Router {
	router := httprouter.New()
	router.GET("/check", s.handleCheck)
	router.POST("/revoke", s.handleRevoke)
	return router
}

type checkResponse struct {
	Revoked     bool  `json:"revoked"`
	ExpiresAtMs int64 `json:"expiresAtMs,omitempty"`
}

type revokeRequest struct {
	TokenHash   string  `json:"tokenHash"`
	ExpiresAtMs float64 `json:"expiresAtMs"`
}

type revokeResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	digest := r.URL.Query().Get("tokenHash")
	if digest == "" {
		writeJSON(w, http.StatusBadRequest, revokeResponse{OK: false, Error: "missing tokenHash"})
		return
	}
	revoked, untilMs, err := s.store.Check(r.Context(), digest, time.Now().UnixMilli())
	if err != nil {
		log.Print("driveauth: revocation check failed: ", err)
		writeJSON(w, http.StatusInternalServerError, revokeResponse{OK: false, Error: "check failed"})
		return
	}
	resp := checkResponse{Revoked: revoked}
	if revoked {
		resp.ExpiresAtMs = untilMs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req revokeRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, revokeResponse{OK: false, Error: "invalid JSON body"})
		return
	}
	if req.TokenHash == "" {
		writeJSON(w, http.StatusBadRequest, revokeResponse{OK: false, Error: "missing tokenHash"})
		return
	}
	if req.ExpiresAtMs <= 0 || math.IsNaN(req.ExpiresAtMs) || math.IsInf(req.ExpiresAtMs, 0) || req.ExpiresAtMs >= math.MaxInt64 {
		writeJSON(w, http.StatusBadRequest, revokeResponse{OK: false, Error: "invalid expiresAtMs"})
		return
	}
	if err := s.store.Revoke(r.Context(), req.TokenHash, int64(req.ExpiresAtMs)); err != nil {
		log.Print("driveauth: revoke failed: ", err)
		writeJSON(w, http.StatusInternalServerError, revokeResponse{OK: false, Error: "revoke failed"})
		return
	}
	writeJSON(w, http.StatusOK, revokeResponse{OK: true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
)

const authCookie = "camrelay_auth"

// Server exposes the relay over HTTP and WebSocket.
type Server struct {
	cfg   Config
	relay *relay
	mux   *http.ServeMux
}

func NewServer(cfg Config, r *relay) *Server {
	s := &Server{cfg: cfg, relay: r, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /stream", s.handleStream)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("/", s.handleRoot)
	return s
}

// Handler returns the routes wrapped with CORS and panic recovery.
func (s *Server) Handler() http.Handler {
	return withRecover(withCORS(s.mux))
}

// handleStream receives one JPEG frame from the camera.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFrameBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read frame")
		return
	}

	// Chunked uploads carry no declared length.
	contentLength := r.ContentLength
	if contentLength < 0 {
		contentLength = int64(len(data))
	}
	result, err := s.relay.ingest.Ingest(data, contentLength)
	if err != nil {
		if errors.Is(err, ErrInvalidFrame) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		errorLog("Ingest failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.relay.status.Health())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.relay.status.Status())
}

// handleRoot serves the viewer page and accepts WebSocket upgrades on any path.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.authorized(r) {
		renderLogin(w, http.StatusOK, "")
		return
	}
	renderViewer(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ViewerPassword == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !s.checkPassword(r.FormValue("password")) {
		infoLog("Rejected viewer login from %s", r.RemoteAddr)
		renderLogin(w, http.StatusUnauthorized, "Incorrect password")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    passwordToken(s.cfg.ViewerPassword),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// authorized reports whether r may see the viewer page.
func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.ViewerPassword == "" {
		return true
	}
	c, err := r.Cookie(authCookie)
	if err != nil {
		return false
	}
	want := passwordToken(s.cfg.ViewerPassword)
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(want)) == 1
}

func (s *Server) checkPassword(got string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.ViewerPassword)) == 1
}

// passwordToken is the cookie value for a valid login; the password itself never leaves the server.
func passwordToken(password string) string {
	sum := sha256.Sum256([]byte("camrelay:" + password))
	return hex.EncodeToString(sum[:])
}

// withCORS lets the camera post from any origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				errorLog("Panic serving %s %s: %v", r.Method, r.URL.Path, v)
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debugLog("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

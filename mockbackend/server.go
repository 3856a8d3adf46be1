package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

const ERR_MARSHAL = "failed to marshal response message"
const ERR_INVALID_CREDENTIALS = "Invalid credentials"
const ERR_UNAUTHORIZED = "Authentication required"
const ERR_BAD_REQUEST = "Invalid request body"

// multipart bodies above this are rejected
const maxUploadSize = 32 << 20

type ServerConfig struct {
	Host string `json:"host" env:"ELIFE_MOCK_HOST" env-default:"localhost"`
	Port int    `json:"port" env:"ELIFE_MOCK_PORT" env-default:"8081"`
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	slog.Info("Starting mock backend", "host", s.config.Host, "port", s.config.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) Stop() error {
	slog.Info("Shutting down mock backend")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Mock backend shut down successfully")
	}
	return err
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating mock backend", "host", config.Host, "port", config.Port)

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler:      NewRouter(state),
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return &Server{
		server: srv,
		config: config,
	}, nil
}

// NewRouter wires every backend endpoint the client consumes.
func NewRouter(state *ServerState) http.Handler {
	router := mux.NewRouter()
	router.Use(state.countingMiddleware)

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}).Methods(http.MethodGet)

	router.HandleFunc("/login", state.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/profile", state.authenticated(handleProfile)).Methods(http.MethodGet)
	router.HandleFunc("/profile/accept-terms", state.authenticated(handleAcceptTerms)).Methods(http.MethodPost)
	router.HandleFunc("/notifications", state.authenticated(handleNotifications)).Methods(http.MethodGet)
	router.HandleFunc("/verification-history", state.authenticated(handleVerificationHistory)).Methods(http.MethodGet)
	router.HandleFunc("/api/dashboard-summary", state.authenticated(handleDashboardSummary)).Methods(http.MethodGet)
	router.HandleFunc("/verify-id-upload", state.authenticated(handleIdUpload)).Methods(http.MethodPost)
	router.HandleFunc("/detect-face", state.authenticated(handleDetectFace)).Methods(http.MethodPost)
	router.HandleFunc("/verify-images", state.authenticated(handleVerifyImages)).Methods(http.MethodPost)
	router.HandleFunc("/generate-certificate", state.authenticated(handleGenerateCertificate)).Methods(http.MethodPost)
	router.HandleFunc("/update-quarter-verification", state.authenticated(handleQuarterVerification)).Methods(http.MethodPost)
	router.HandleFunc("/update-account-status", state.authenticated(handleAccountStatus)).Methods(http.MethodPost)
	router.HandleFunc("/update-permissions", state.authenticated(handlePermissions)).Methods(http.MethodPost)

	slog.Debug("Registered all mock backend routes")
	return router
}

type authenticatedHandler func(state *ServerState, userId int, w http.ResponseWriter, r *http.Request)

// authenticated resolves the bearer token to a user before calling next.
func (s *ServerState) authenticated(next authenticatedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer closeRequestBody(r)

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondWithErr(w, http.StatusUnauthorized, ERR_UNAUTHORIZED, "missing bearer token", nil)
			return
		}

		claims, err := s.jwtCreator.ParseToken(token)
		if err != nil {
			respondWithErr(w, http.StatusUnauthorized, ERR_UNAUTHORIZED, "invalid bearer token", err)
			return
		}
		if _, exists := s.User(claims.UserID); !exists {
			respondWithErr(w, http.StatusUnauthorized, ERR_UNAUTHORIZED, "token for unknown user", nil)
			return
		}

		next(s, claims.UserID, w, r)
	}
}

func (s *ServerState) countingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.countCall(r.URL.Path)
		slog.Debug("Mock backend request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// helpers ------------

type messageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func respondWithErr(w http.ResponseWriter, code int, message string, logMsg string, e error) {
	slog.Warn(logMsg, "error", e, "status_code", code, "message", message)
	writeJSON(w, code, messageBody{Success: false, Message: message})
}

func respondOK(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, messageBody{Success: true, Message: message})
}

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error(ERR_MARSHAL, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(payload); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

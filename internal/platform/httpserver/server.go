package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	leaderboardservice "ocelot/contexts/evaluation/leaderboard-service"
	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	domainerrors "ocelot/contexts/evaluation/leaderboard-service/domain/errors"
	leaderboardhttp "ocelot/contexts/evaluation/leaderboard-service/transport/http"
	_ "ocelot/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	SessionCookieName = "ocelot_session"

	maxUploadBytes = 32 << 20
	maxJSONBytes   = 1 << 20
)

type Options struct {
	ScorerAPIKey  string
	AdminAPIKey   string
	SecureCookies bool
	SessionTTL    time.Duration
}

type Server struct {
	mux         *http.ServeMux
	httpServer  *http.Server
	logger      *slog.Logger
	addr        string
	options     Options
	leaderboard leaderboardservice.Module
}

func New(
	leaderboard leaderboardservice.Module,
	options Options,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if options.SessionTTL <= 0 {
		options.SessionTTL = 14 * 24 * time.Hour
	}

	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		addr:        addr,
		options:     options,
		leaderboard: leaderboard,
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /v1/leaderboard", s.handleLeaderboard)
	s.mux.HandleFunc("GET /v1/test-sets", s.handleListTestSets)
	s.mux.HandleFunc("GET /v1/limits", s.handleLimits)

	s.mux.HandleFunc("POST /v1/teams", s.handleRegisterTeam)
	s.mux.HandleFunc("POST /v1/session", s.handleSignIn)
	s.mux.HandleFunc("DELETE /v1/session", s.handleSignOut)
	s.mux.HandleFunc("GET /v1/me", s.handleMe)
	s.mux.HandleFunc("PATCH /v1/me", s.handleUpdateProfile)
	s.mux.HandleFunc("GET /v1/me/submissions", s.handleTeamSubmissions)
	s.mux.HandleFunc("POST /v1/submissions", s.handleSubmit)

	s.mux.HandleFunc("POST /internal/submissions/{submission_id}/score", s.handleRecordScore)
	s.mux.HandleFunc("PUT /internal/test-sets/{test_set_id}/active", s.handleSetTestSetActive)
}

// identity resolves the caller once per request. Resolution failures are
// storage errors and are reported as 500.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (entities.Identity, bool) {
	identity, err := s.leaderboard.Handler.ResolveIdentity(r.Context(), sessionID(r), bearerToken(r))
	if err != nil {
		s.logger.Error("identity resolution failed",
			"event", "http_identity_resolution_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeLeaderboardDomainError(w, err)
		return entities.Identity{}, false
	}
	return identity, true
}

func (s *Server) requireIdentity(w http.ResponseWriter, r *http.Request) (entities.Identity, bool) {
	identity, ok := s.identity(w, r)
	if !ok {
		return entities.Identity{}, false
	}
	if identity.IsAnonymous() {
		writeLeaderboardDomainError(w, domainerrors.ErrAuthenticationRequired)
		return entities.Identity{}, false
	}
	return identity, true
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.identity(w, r)
	if !ok {
		return
	}
	resp, err := s.leaderboard.Handler.LeaderboardHandler(r.Context(), viewer)
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTestSets(w http.ResponseWriter, r *http.Request) {
	includeInactive := false
	if raw := r.URL.Query().Get("all"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeLeaderboardError(w, http.StatusBadRequest, "invalid_all", "all must be a boolean")
			return
		}
		includeInactive = parsed
	}
	resp, err := s.leaderboard.Handler.ListTestSetsHandler(r.Context(), includeInactive)
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.leaderboard.Handler.LimitsHandler(r.Context()))
}

func (s *Server) handleRegisterTeam(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req leaderboardhttp.RegisterTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, sessionID, err := s.leaderboard.Handler.RegisterTeamHandler(r.Context(), caller, req)
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	s.setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req leaderboardhttp.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, sessionID, err := s.leaderboard.Handler.SignInHandler(r.Context(), caller, req)
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	s.setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.leaderboard.Handler.SignOutHandler(r.Context(), sessionID(r)); err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	resp, err := s.leaderboard.Handler.MeHandler(r.Context(), identity)
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var req leaderboardhttp.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.leaderboard.Handler.UpdateProfileHandler(r.Context(), identity, req)
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTeamSubmissions(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	resp, err := s.leaderboard.Handler.TeamSubmissionsHandler(r.Context(), identity)
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeLeaderboardError(w, http.StatusBadRequest, "invalid_upload", "request must be multipart/form-data with an sgml_file part")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("sgml_file")
	if err != nil {
		writeLeaderboardError(w, http.StatusBadRequest, "missing_file", "sgml_file is required")
		return
	}
	_ = file.Close()

	resp, err := s.leaderboard.Handler.SubmitHandler(r.Context(), identity, leaderboardhttp.SubmitRequest{
		TestSetID:   r.FormValue("test_set_id"),
		FileName:    header.Filename,
		ContentSize: header.Size,
	})
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRecordScore(w http.ResponseWriter, r *http.Request) {
	if !matchesKey(s.options.ScorerAPIKey, r.Header.Get("X-Scorer-Key")) {
		writeLeaderboardError(w, http.StatusUnauthorized, "invalid_scorer_key", "X-Scorer-Key is missing or invalid")
		return
	}
	var req leaderboardhttp.RecordScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.leaderboard.Handler.RecordScoreHandler(r.Context(), r.PathValue("submission_id"), req)
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetTestSetActive(w http.ResponseWriter, r *http.Request) {
	if !matchesKey(s.options.AdminAPIKey, r.Header.Get("X-Admin-Key")) {
		writeLeaderboardError(w, http.StatusUnauthorized, "invalid_admin_key", "X-Admin-Key is missing or invalid")
		return
	}
	var req leaderboardhttp.SetTestSetActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.leaderboard.Handler.SetTestSetActiveHandler(r.Context(), r.PathValue("test_set_id"), req)
	if err != nil {
		writeLeaderboardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(s.options.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.options.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.options.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeLeaderboardDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrAuthenticationRequired):
		writeLeaderboardError(w, http.StatusUnauthorized, "authentication_required", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidCredentials):
		writeLeaderboardError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, domainerrors.ErrQuotaExceeded):
		writeLeaderboardError(w, http.StatusTooManyRequests, "quota_exceeded", err.Error())
	case errors.Is(err, domainerrors.ErrAlreadySignedIn):
		writeLeaderboardError(w, http.StatusConflict, "already_signed_in", err.Error())
	case errors.Is(err, domainerrors.ErrDuplicateTeam):
		writeLeaderboardError(w, http.StatusConflict, "duplicate_team", err.Error())
	case errors.Is(err, domainerrors.ErrScoreAlreadyRecorded):
		writeLeaderboardError(w, http.StatusConflict, "score_already_recorded", err.Error())
	case errors.Is(err, domainerrors.ErrTestSetInactive):
		writeLeaderboardError(w, http.StatusConflict, "test_set_inactive", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidTeamInput),
		errors.Is(err, domainerrors.ErrInvalidTestSetInput),
		errors.Is(err, domainerrors.ErrInvalidSubmissionInput),
		errors.Is(err, domainerrors.ErrInvalidScoreInput):
		writeLeaderboardError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domainerrors.ErrUnknownTeam),
		errors.Is(err, domainerrors.ErrUnknownTestSet),
		errors.Is(err, domainerrors.ErrSubmissionNotFound):
		writeLeaderboardError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeLeaderboardError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeLeaderboardError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, leaderboardhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	if err := decoder.Decode(target); err != nil {
		writeLeaderboardError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func sessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// matchesKey rejects every request when no key is configured.
func matchesKey(expected string, provided string) bool {
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

package auth

import (
	"net/http"
	"time"

	"github.com/HtFilia/trading-board/internal/observability"
	"github.com/HtFilia/trading-board/internal/schema"

	httpserver "github.com/HtFilia/trading-board/internal/infra/server/http"
)

// HandlerConfig carries the HTTP-facing knobs: cookie shape, CORS origins and
// the register/login rate limit.
type HandlerConfig struct {
	CookieName         string
	CookieDomain       string
	SecureCookies      bool
	SessionTTL         time.Duration
	CORSOrigins        []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

type handler struct {
	service *Service
	cfg     HandlerConfig
}

// sessionResponse is the register/login response body.
type sessionResponse struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewHandler builds the auth HTTP surface: register, login, logout, health.
func NewHandler(service *Service, cfg HandlerConfig) http.Handler {
	h := &handler{service: service, cfg: cfg}
	limiter := httpserver.NewClientRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	mux := http.NewServeMux()
	mux.Handle("/auth/register", limiter.Middleware(httpserver.MethodHandlers(map[string]http.HandlerFunc{
		http.MethodPost: h.handleRegister,
	})))
	mux.Handle("/auth/login", limiter.Middleware(httpserver.MethodHandlers(map[string]http.HandlerFunc{
		http.MethodPost: h.handleLogin,
	})))
	mux.Handle("/auth/logout", httpserver.MethodHandlers(map[string]http.HandlerFunc{
		http.MethodPost: h.handleLogout,
	}))
	mux.Handle("/health", httpserver.MethodHandlers(map[string]http.HandlerFunc{
		http.MethodGet: h.handleHealth,
	}))

	return httpserver.WithCORS(cfg.CORSOrigins, mux)
}

func (h *handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	sess, err := h.service.Register(r.Context(), creds.Email, creds.Password)
	if err != nil {
		httpserver.WriteErr(w, err)
		return
	}
	h.setSessionCookie(w, sess)
	httpserver.WriteJSON(w, http.StatusCreated, sessionResponse{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt})
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}
	sess, err := h.service.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		httpserver.WriteErr(w, err)
		return
	}
	h.setSessionCookie(w, sess)
	httpserver.WriteJSON(w, http.StatusOK, sessionResponse{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt})
}

// handleLogout always answers 204 and clears the cookie; revocation failures
// are logged but never surfaced, so clients can always drop their session.
func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cfg.CookieName); err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			observability.Log().Error("logout revocation failed",
				observability.F("error", err.Error()))
		}
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	httpserver.LimitRequestBody(w, r)
	defer func() { _ = r.Body.Close() }()

	var creds credentialsRequest
	if err := httpserver.DecodeJSON(r, &creds); err != nil {
		httpserver.WriteDecodeError(w, err)
		return credentialsRequest{}, false
	}
	return creds, true
}

func (h *handler) setSessionCookie(w http.ResponseWriter, sess schema.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

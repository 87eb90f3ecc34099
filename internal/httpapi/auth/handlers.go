// Package auth provides the HTTP handlers for the authentication proxy
// endpoints: login, register, and bearer-token identity lookup.
//
// Purpose:
//
//	These handlers are the Go rendition of the original serverless proxy
//	functions. They validate the request, drive the backend auth client, run
//	the server-side identity resolution (profile + memberships with the same
//	degradation policy the orchestrator applies), and answer with the
//	assembled identity.
//
// Error Handling:
//   - Malformed JSON and validation failures return 400
//   - Backend auth rejections return 401 (login) or 400 (register) with the
//     backend's message
//   - Transient backend failures return 502
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/YodHeVauHe/CallCenterX/internal/audit"
	"github.com/YodHeVauHe/CallCenterX/internal/backend"
	"github.com/YodHeVauHe/CallCenterX/internal/cache"
	"github.com/YodHeVauHe/CallCenterX/internal/identity"
	"github.com/YodHeVauHe/CallCenterX/internal/metrics"
)

var validRoles = map[string]bool{"admin": true, "agent": true, "customer": true}

// Handler serves the auth proxy endpoints.
type Handler struct {
	client   backend.Client
	cache    cache.IdentityCache
	audit    audit.Emitter
	logger   zerolog.Logger
	cacheTTL time.Duration
	now      func() time.Time

	profiles    *identity.ProfileResolver
	memberships *identity.MembershipResolver
}

// Options configure the auth handler.
type Options struct {
	Client      backend.Client
	Cache       cache.IdentityCache
	Audit       audit.Emitter
	Logger      zerolog.Logger
	CacheTTL    time.Duration
	Profiles    *identity.ProfileResolver
	Memberships *identity.MembershipResolver
}

// NewHandler builds the auth handler.
func NewHandler(opts Options) *Handler {
	return &Handler{
		client:      opts.Client,
		cache:       opts.Cache,
		audit:       opts.Audit,
		logger:      opts.Logger.With().Str("component", "auth_api").Logger(),
		cacheTTL:    opts.CacheTTL,
		now:         time.Now,
		profiles:    opts.Profiles,
		memberships: opts.Memberships,
	}
}

// RegisterRoutes mounts the auth proxy routes.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/login", h.Login)
	router.Post("/register", h.Register)
	router.Post("/logout", h.Logout)
	router.Get("/user", h.User)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type sessionPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"`
}

func toSessionPayload(sess *backend.Session) *sessionPayload {
	if sess == nil {
		return nil
	}
	return &sessionPayload{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    sess.TokenType,
		ExpiresAt:    sess.ExpiresAt.Unix(),
	}
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := h.client.SignIn(ctx, payload.Email, payload.Password)
	if err != nil {
		h.loginFailure(ctx, w, payload.Email, err)
		return
	}

	user := h.resolveIdentity(ctx, sess)
	metrics.RecordAuthAttempt("login", "success")

	event := audit.NewEvent(audit.ActionLogin, sess.Subject)
	event.Email = sess.Email
	event.IPAddress = r.RemoteAddr
	event.UserAgent = r.UserAgent()
	_ = h.audit.Emit(ctx, event)

	writeJSON(w, http.StatusOK, map[string]any{
		"session": toSessionPayload(sess),
		"user":    user,
	})
}

func (h *Handler) loginFailure(ctx context.Context, w http.ResponseWriter, email string, err error) {
	metrics.RecordAuthAttempt("login", "failure")

	event := audit.NewEvent(audit.ActionLoginFailed, "")
	event.Email = email
	_ = h.audit.Emit(ctx, event)

	var authErr *backend.AuthError
	if errors.As(err, &authErr) {
		writeError(w, http.StatusUnauthorized, authErr.Message)
		return
	}
	h.logger.Error().Err(err).Msg("login failed against backend")
	writeError(w, http.StatusBadGateway, "authentication backend unavailable")
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload registerRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Email == "" || payload.Password == "" || payload.Name == "" || payload.Role == "" {
		writeError(w, http.StatusBadRequest, "email, password, name, and role are required")
		return
	}
	if !validRoles[payload.Role] {
		writeError(w, http.StatusBadRequest, "invalid role specified")
		return
	}

	first, last := splitName(payload.Name)
	result, err := h.client.SignUp(ctx, payload.Email, payload.Password, backend.ProfileHints{
		FirstName: first,
		LastName:  last,
		Role:      payload.Role,
	})
	if err != nil {
		metrics.RecordAuthAttempt("register", "failure")
		var authErr *backend.AuthError
		if errors.As(err, &authErr) {
			writeError(w, http.StatusBadRequest, authErr.Message)
			return
		}
		h.logger.Error().Err(err).Msg("registration failed against backend")
		writeError(w, http.StatusBadGateway, "authentication backend unavailable")
		return
	}
	metrics.RecordAuthAttempt("register", "success")

	event := audit.NewEvent(audit.ActionRegister, result.Subject)
	event.Email = result.Email
	event.Metadata = map[string]any{"role": payload.Role}
	_ = h.audit.Emit(ctx, event)

	response := map[string]any{}
	if result.Session != nil {
		// Session issued immediately: bootstrap the profile row and answer
		// with the full identity.
		response["session"] = toSessionPayload(result.Session)
		response["user"] = h.resolveIdentity(ctx, result.Session)
	} else {
		// Email confirmation pending; no session yet.
		response["user"] = identity.UserIdentity{
			ID:            result.Subject,
			Name:          identity.DisplayName(first, last, result.Email),
			Email:         result.Email,
			Organizations: []identity.Organization{},
		}
	}
	writeJSON(w, http.StatusCreated, response)
}

// Logout handles POST /logout: invalidates the cached identity for the
// bearer token and revokes its session at the backend. A token the backend
// already considers revoked still signs out successfully; only a transient
// backend failure is surfaced, so the caller can retry revocation.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	var subject, email string
	if claims, err := backend.ParseAccessToken(token); err == nil {
		subject, email = claims.Subject, claims.Email
	}

	if err := h.cache.Delete(ctx, cache.TokenSignature(token)); err != nil {
		h.logger.Warn().Err(err).Msg("failed to invalidate cached identity")
	}

	if err := h.client.SignOut(ctx, token); err != nil {
		if backend.IsTransient(err) {
			metrics.RecordAuthAttempt("logout", "failure")
			h.logger.Error().Err(err).Msg("logout failed against backend")
			writeError(w, http.StatusBadGateway, "authentication backend unavailable")
			return
		}
		h.logger.Debug().Err(err).Msg("backend rejected sign-out token")
	}
	metrics.RecordAuthAttempt("logout", "success")

	event := audit.NewEvent(audit.ActionLogout, subject)
	event.Email = email
	event.IPAddress = r.RemoteAddr
	event.UserAgent = r.UserAgent()
	_ = h.audit.Emit(ctx, event)

	w.WriteHeader(http.StatusNoContent)
}

// User handles GET /user: resolves the bearer token to an assembled
// identity, served from the cache when possible.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	claims, err := backend.ParseAccessToken(token)
	if err != nil {
		metrics.RecordAuthAttempt("user", "failure")
		writeError(w, http.StatusUnauthorized, "invalid bearer token")
		return
	}
	if !claims.ExpiresAt.IsZero() && h.now().After(claims.ExpiresAt) {
		metrics.RecordAuthAttempt("user", "failure")
		writeError(w, http.StatusUnauthorized, "token expired")
		return
	}

	signature := cache.TokenSignature(token)
	if cached, err := h.cache.Get(ctx, signature); err != nil {
		metrics.RecordCacheLookup("error")
		h.logger.Warn().Err(err).Msg("identity cache lookup failed")
	} else if cached != nil {
		metrics.RecordCacheLookup("hit")
		metrics.RecordAuthAttempt("user", "success")
		writeJSON(w, http.StatusOK, map[string]any{"user": cached})
		return
	} else {
		metrics.RecordCacheLookup("miss")
	}

	sess := &backend.Session{
		AccessToken: token,
		Subject:     claims.Subject,
		Email:       claims.Email,
		ExpiresAt:   claims.ExpiresAt,
	}
	user := h.resolveIdentity(ctx, sess)
	metrics.RecordAuthAttempt("user", "success")

	ttl := h.cacheTTL
	if !claims.ExpiresAt.IsZero() {
		if remaining := claims.ExpiresAt.Sub(h.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if err := h.cache.Set(ctx, signature, user, ttl); err != nil {
		h.logger.Warn().Err(err).Msg("failed to cache identity")
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// resolveIdentity runs the server-side resolution sequence with the same
// degradation policy as the client orchestrator: profile failure falls back
// to session hints, membership failure degrades to zero organizations.
func (h *Handler) resolveIdentity(ctx context.Context, sess *backend.Session) identity.UserIdentity {
	profile, err := h.profiles.Resolve(ctx, sess)
	if err != nil {
		h.logger.Warn().Err(err).Str("subject", sess.Subject).Msg("profile resolution failed, applying fallback identity")
		event := audit.NewEvent(audit.ActionResolutionFallback, sess.Subject)
		_ = h.audit.Emit(ctx, event)
		return identity.Fallback(sess)
	}
	orgs := h.memberships.Resolve(ctx, sess.Subject)
	return identity.Assemble(sess, profile, orgs)
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

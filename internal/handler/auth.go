package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/sileshop/backend/internal/logging"
	"github.com/sileshop/backend/internal/service"
)

// Cookie names.
const (
	SessionCookie = "sile_session"
	stateCookie   = "sile_oauth_state"
)

const stateTTL = 10 * time.Minute

// AuthHandler handles the Discord login flow and logout.
type AuthHandler struct {
	auth         *service.AuthService
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieSecure: cookieSecure}
}

// Login handles GET /auth/discord.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := h.auth.NewState()
	http.SetCookie(w, h.cookie(stateCookie, state, "/auth", stateTTL))
	http.Redirect(w, r, h.auth.LoginURL(state), http.StatusFound)
}

// Callback handles GET /auth/discord/callback.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}
	state := q.Get("state")
	saved, err := r.Cookie(stateCookie)
	if state == "" || err != nil || subtle.ConstantTimeCompare([]byte(state), []byte(saved.Value)) != 1 {
		http.Error(w, "Bad state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, h.cookie(stateCookie, "", "/auth", -1))

	user, session, err := h.auth.CompleteLogin(r.Context(), code)
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("Discord login failed")
		http.Error(w, "OAuth failed", http.StatusInternalServerError)
		return
	}

	logging.FromContext(r.Context()).Info().Str("user_id", user.ID).Str("discord_id", user.DiscordID).Msg("User logged in")
	http.SetCookie(w, h.cookie(SessionCookie, session, "/", h.auth.SessionTTL()))
	http.Redirect(w, r, "/account", http.StatusFound)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookie(SessionCookie, "", "/", -1))
	OK(w, nil)
}

// cookie builds an HttpOnly, SameSite=Lax cookie. A negative ttl deletes it.
func (h *AuthHandler) cookie(name, value, path string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl / time.Second)
	}
	return c
}

package middleware

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie that carries the raw session token.
const SessionCookieName = "session"

// CookieCarrier adapts an HTTP request/response pair to the auth core's
// credential-carrier capability. The cookie expires in lockstep with the
// session row it represents.
type CookieCarrier struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
}

func NewCookieCarrier(w http.ResponseWriter, r *http.Request, secure bool) *CookieCarrier {
	return &CookieCarrier{w: w, r: r, secure: secure}
}

func (c *CookieCarrier) Token() (string, bool) {
	cookie, err := c.r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *CookieCarrier) SetToken(token string, expiresAt time.Time) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *CookieCarrier) ClearToken() {
	http.SetCookie(c.w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

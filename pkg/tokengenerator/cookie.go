package tokengenerator

import (
	"net/http"
)

// JWT_COOKIE_NAME is also the cookie jwtauth.TokenFromCookie reads.
const JWT_COOKIE_NAME = "jwt"

// CookieSetter writes and clears the session cookie.
type CookieSetter interface {
	SetTokenCookie(w http.ResponseWriter, token TokenValue)
	ClearTokenCookie(w http.ResponseWriter)
}

// BaseCookieSetter provides a base implementation of CookieSetter
type BaseCookieSetter struct {
	Name     string
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

func (c *BaseCookieSetter) SetTokenCookie(w http.ResponseWriter, token TokenValue) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Path:     c.Path,
		Value:    token.Token,
		Expires:  token.Expiry,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c *BaseCookieSetter) ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// NewCookieSetter creates the session cookie setter. Cookies are HttpOnly,
// SameSite=Lax and scoped to the whole site. secure is only turned off for
// local development over plain HTTP.
func NewCookieSetter(secure bool) *BaseCookieSetter {
	return &BaseCookieSetter{
		Name:     JWT_COOKIE_NAME,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

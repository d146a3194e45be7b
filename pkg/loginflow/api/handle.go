package api

import (
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"

	apperrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/loginflow"
	tg "github.com/tendant/simple-auth/pkg/tokengenerator"
)

// Handle contains dependencies for HTTP handlers
type Handle struct {
	loginFlowService *loginflow.LoginFlowService
	cookieSetter     tg.CookieSetter
	tokenAuth        *jwtauth.JWTAuth
}

// NewHandle creates the auth handler. tokenAuth guards GET /me and must use
// the same signing key as the token service.
func NewHandle(loginFlowService *loginflow.LoginFlowService, cookieSetter tg.CookieSetter, tokenAuth *jwtauth.JWTAuth) *Handle {
	return &Handle{
		loginFlowService: loginFlowService,
		cookieSetter:     cookieSetter,
		tokenAuth:        tokenAuth,
	}
}

// Handler returns a router with every auth route mounted.
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all auth routes
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/verify-2fa", h.Verify2FA)
	r.Post("/logout", h.Logout)
	r.Post("/verify-token", h.VerifyToken)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verify(h.tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie))
		r.Use(jwtauth.Authenticator(h.tokenAuth))
		r.Use(h.RejectBannedTokens)
		r.Get("/me", h.Me)
	})
}

// Signup handles POST /signup
func (h *Handle) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		slog.Warn("Failed to decode signup request", "err", err)
		writeErrorCode(w, r, apperrors.ErrCodeInvalidCredentials)
		return
	}

	err := h.loginFlowService.Signup(r.Context(), loginflow.SignupRequest{
		Email:             req.Email,
		Password:          req.Password,
		RequiresTwoFactor: req.Requires2FA,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, MessageResponse{Message: "User created successfully!"})
}

// Login handles POST /login
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		slog.Warn("Failed to decode login request", "err", err)
		writeErrorCode(w, r, apperrors.ErrCodeInvalidCredentials)
		return
	}

	result, err := h.loginFlowService.Login(r.Context(), loginflow.Request{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.RequiresTwoFA() {
		render.Status(r, http.StatusPartialContent)
		render.JSON(w, r, TwoFactorRequiredResponse{
			Message:        "2FA required",
			LoginAttemptID: result.LoginAttemptID.String(),
		})
		return
	}

	h.cookieSetter.SetTokenCookie(w, result.Token)
	w.WriteHeader(http.StatusOK)
}

// Verify2FA handles POST /verify-2fa
func (h *Handle) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req Verify2FARequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		slog.Warn("Failed to decode verify-2fa request", "err", err)
		writeErrorCode(w, r, apperrors.ErrCodeInvalidCredentials)
		return
	}

	result, err := h.loginFlowService.VerifyTwoFactor(r.Context(), loginflow.TwoFAValidationRequest{
		Email:          req.Email,
		LoginAttemptID: req.LoginAttemptID,
		TwoFACode:      req.TwoFACode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookieSetter.SetTokenCookie(w, result.Token)
	w.WriteHeader(http.StatusOK)
}

// Logout handles POST /logout. The token is read from the session cookie only.
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie(tg.JWT_COOKIE_NAME); err == nil {
		token = cookie.Value
	}

	if err := h.loginFlowService.Logout(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}

	h.cookieSetter.ClearTokenCookie(w)
	w.WriteHeader(http.StatusOK)
}

// VerifyToken handles POST /verify-token
func (h *Handle) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		slog.Warn("Failed to decode verify-token request", "err", err)
		writeErrorCode(w, r, apperrors.ErrCodeInvalidToken)
		return
	}

	if _, err := h.loginFlowService.VerifyToken(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Me handles GET /me
func (h *Handle) Me(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		writeErrorCode(w, r, apperrors.ErrCodeInvalidToken)
		return
	}
	email, _ := claims["sub"].(string)
	render.JSON(w, r, MeResponse{Email: email})
}

// RejectBannedTokens runs after jwtauth.Verifier and turns away tokens that
// were revoked by logout.
func (h *Handle) RejectBannedTokens(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := jwtauth.TokenFromHeader(r)
		if token == "" {
			token = jwtauth.TokenFromCookie(r)
		}
		if err := h.loginFlowService.EnsureNotRevoked(r.Context(), token); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	if code == apperrors.ErrCodeInternal {
		slog.Error("Request failed", "path", r.URL.Path, "err", err)
		sentry.CaptureException(err)
	}
	writeErrorCode(w, r, code)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, code apperrors.ErrorCode) {
	render.Status(r, apperrors.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, ErrorResponse{Error: apperrors.PublicMessage(code)})
}

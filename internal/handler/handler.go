package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/rs/zerolog"

	"github.com/naruebet/identity-api/internal/config"
	"github.com/naruebet/identity-api/internal/token"
	"github.com/naruebet/identity-api/internal/usecase"
)

// Handler exposes the authentication core over HTTP.
type Handler struct {
	authUsecase    usecase.AuthUsecase
	sessionUsecase usecase.SessionUsecase
	accountUsecase usecase.AccountUsecase
	jwtAuth        token.Authenticator
	cfg            *config.Config
	logger         *zerolog.Logger
	validate       *validator.Validate
	trans          ut.Translator
}

// New creates a new Handler instance.
func New(
	authUsecase usecase.AuthUsecase,
	sessionUsecase usecase.SessionUsecase,
	accountUsecase usecase.AccountUsecase,
	jwtAuth token.Authenticator,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Handler {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		logger.Fatal().Err(err).Msg("failed to register validator translations")
	}

	return &Handler{
		authUsecase:    authUsecase,
		sessionUsecase: sessionUsecase,
		accountUsecase: accountUsecase,
		jwtAuth:        jwtAuth,
		cfg:            cfg,
		logger:         logger,
		validate:       validate,
		trans:          trans,
	}
}

type route struct {
	method  string
	pattern string
	access  routeAccess
	handler http.HandlerFunc
}

func (h *Handler) routes() []route {
	return []route{
		{http.MethodPost, "/v1/auth/register", accessPublic, h.register},
		{http.MethodGet, "/v1/auth/confirm", accessPublic, h.confirm},
		{http.MethodPost, "/v1/auth/login", accessPublic, h.login},
		{http.MethodPost, "/v1/auth/2fa/verify", accessPublic, h.verifyTwoFactor},
		{http.MethodPost, "/v1/auth/token/refresh", accessPublic, h.refreshToken},
		{http.MethodPost, "/v1/auth/password-reset/request", accessPublic, h.requestPasswordReset},
		{http.MethodPost, "/v1/auth/password-reset/confirm", accessPublic, h.confirmPasswordReset},
		{http.MethodPatch, "/v1/users/{id}", accessProtected, h.updateUser},
		{http.MethodDelete, "/v1/users/{id}", accessProtected, h.deleteUser},
		{http.MethodGet, "/healthz", accessPublic, h.health},
	}
}

// Register mounts every route on the router, wrapping protected routes with
// the access token middleware.
func (h *Handler) Register(r chi.Router) {
	for _, rt := range h.routes() {
		var handler http.Handler = rt.handler
		if rt.access == accessProtected {
			handler = h.requireAuth(handler)
		}
		r.Method(rt.method, rt.pattern, handler)
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeAndValidate decodes the JSON body into dst and validates it. On
// failure it writes the error response and returns false.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			details := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				details = append(details, fieldErr.Translate(h.trans))
			}

			h.respondJSON(w, http.StatusBadRequest, map[string]any{
				"message": "validation failed",
				"details": details,
			})
			return false
		}

		h.respondMessage(w, http.StatusBadRequest, "validation failed")
		return false
	}

	return true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response body")
	}
}

func (h *Handler) respondMessage(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"message": message})
}

// respondUsecaseError translates usecase sentinel errors to HTTP statuses.
// Unknown errors are logged and surface as a generic 500.
func (h *Handler) respondUsecaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		h.respondMessage(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, usecase.ErrInvalidRefreshToken):
		h.respondMessage(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, usecase.ErrUserAlreadyExists):
		h.respondMessage(w, http.StatusConflict, "user already exists")
	case errors.Is(err, usecase.ErrUserNotFound),
		errors.Is(err, usecase.ErrCodeNotFound),
		errors.Is(err, usecase.ErrTokenNotFound):
		h.respondMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, usecase.ErrCodeExpired),
		errors.Is(err, usecase.ErrTokenExpired):
		h.respondMessage(w, http.StatusGone, "expired")
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		h.respondMessage(w, http.StatusInternalServerError, "something went wrong")
	}
}

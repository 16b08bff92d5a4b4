package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/naruebet/identity-api/internal/usecase"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.accountUsecase.Register(r.Context(), usecase.RegisterParams{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, newUserResponse(user))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		h.respondMessage(w, http.StatusBadRequest, "code is required")
		return
	}

	user, err := h.accountUsecase.Confirm(r.Context(), code)
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	challengeToken, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, LoginResponse{ChallengeToken: challengeToken})
}

func (h *Handler) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req VerifyTwoFactorRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.authUsecase.VerifyTwoFactor(r.Context(), req.ChallengeToken, req.Code)
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	accessToken, err := h.sessionUsecase.IssueAccessToken(user)
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	refreshToken, err := h.sessionUsecase.IssueRefreshToken(user)
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, TokensResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	tokens, err := h.sessionUsecase.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, TokensResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (h *Handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req RequestPasswordResetRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.accountUsecase.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	// Always accepted, whether or not the email is registered.
	h.respondJSON(w, http.StatusAccepted, map[string]string{"message": "password reset email sent"})
}

func (h *Handler) confirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPasswordResetRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.accountUsecase.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claims, ok := claimsFromContext(r.Context())
	if !ok || claims.Subject != id {
		h.respondMessage(w, http.StatusForbidden, "forbidden")
		return
	}

	var req UpdateUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if req.Email == nil && req.Username == nil && req.Password == nil {
		h.respondMessage(w, http.StatusBadRequest, "no fields to update")
		return
	}

	user, err := h.accountUsecase.UpdateUser(r.Context(), id, usecase.UpdateUserParams{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claims, ok := claimsFromContext(r.Context())
	if !ok || claims.Subject != id {
		h.respondMessage(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := h.accountUsecase.DeleteUser(r.Context(), id); err != nil {
		h.respondUsecaseError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package adminauth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	httpresp "github.com/sdmg-platform/gateway/internal/delivery/http"
)

type Handler struct {
	usecase   *UseCase
	validator *validator.Validate
}

func NewHandler(usecase *UseCase) *Handler {
	return &Handler{usecase: usecase, validator: validator.New()}
}

// RegisterRoutes mounts the admin auth surface under r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/refresh", h.Refresh)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpresp.WriteValidationError(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpresp.WriteValidationError(w, err.Error())
		return
	}

	result, appErr := h.usecase.Login(req.Email, req.Password)
	if appErr != nil {
		httpresp.WriteAppError(w, appErr)
		return
	}
	httpresp.WriteSuccess(w, result, "login successful")
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	accessToken := bearerFrom(r)
	if accessToken == "" {
		httpresp.WriteUnauthorized(w, "missing bearer token")
		return
	}
	var req logoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if appErr := h.usecase.Logout(accessToken, req.RefreshToken); appErr != nil {
		httpresp.WriteAppError(w, appErr)
		return
	}
	httpresp.WriteSuccess(w, nil, "logged out")
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpresp.WriteValidationError(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpresp.WriteValidationError(w, err.Error())
		return
	}

	result, appErr := h.usecase.RefreshToken(req.RefreshToken)
	if appErr != nil {
		httpresp.WriteAppError(w, appErr)
		return
	}
	httpresp.WriteSuccess(w, result, "token refreshed")
}

func bearerFrom(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return ""
	}
	return auth[len(prefix):]
}
